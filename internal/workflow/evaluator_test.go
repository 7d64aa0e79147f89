package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (f *engineFixture) seedTrigger(t *testing.T, workflowID int64, triggerType, config string, active bool) *models.WorkflowTrigger {
	t.Helper()

	trigger := &models.WorkflowTrigger{
		WorkflowID: workflowID,
		Type:       triggerType,
		IsActive:   active,
		Config:     config,
	}
	require.NoError(t, f.triggerRepo.Create(nil, trigger))
	return trigger
}

func (f *engineFixture) newEvaluator(now time.Time) *Evaluator {
	ev := NewEvaluator(f.triggerRepo, f.engine, 5*time.Minute, zap.NewNop())
	ev.now = func() time.Time { return now }
	return ev
}

func (f *engineFixture) countInstances(t *testing.T, workflowID int64) int {
	t.Helper()

	var n int
	err := f.db.QueryRow(
		"SELECT COUNT(*) FROM workflow_instances WHERE workflow_id = ?", workflowID,
	).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestEvaluatorFiresDueSchedule(t *testing.T) {
	f := newEngineFixture(t)
	def := f.seedDefinition(t, true)
	trigger := f.seedTrigger(t, def.ID, models.TriggerTypeSchedule,
		`{"schedule":"daily:09:00","variables":{"region":"EU"}}`, true)

	now := time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC)
	require.NoError(t, f.newEvaluator(now).Execute(context.Background()))

	assert.Equal(t, 1, f.countInstances(t, def.ID))

	reloaded, err := f.triggerRepo.GetByID(trigger.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastFiredAt)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		reloaded.LastFiredAt.UTC())
	assert.NotNil(t, reloaded.LastEvaluatedAt)
}

func TestEvaluatorFiresOncePerWindow(t *testing.T) {
	f := newEngineFixture(t)
	def := f.seedDefinition(t, true)
	f.seedTrigger(t, def.ID, models.TriggerTypeSchedule,
		`{"schedule":"daily:09:00"}`, true)

	first := time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC)
	require.NoError(t, f.newEvaluator(first).Execute(context.Background()))

	second := time.Date(2026, 3, 10, 9, 2, 0, 0, time.UTC)
	require.NoError(t, f.newEvaluator(second).Execute(context.Background()))

	assert.Equal(t, 1, f.countInstances(t, def.ID))
}

func TestEvaluatorFiresAgainNextDay(t *testing.T) {
	f := newEngineFixture(t)
	def := f.seedDefinition(t, true)
	f.seedTrigger(t, def.ID, models.TriggerTypeSchedule,
		`{"schedule":"daily:09:00"}`, true)

	today := time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC)
	require.NoError(t, f.newEvaluator(today).Execute(context.Background()))

	tomorrow := today.AddDate(0, 0, 1)
	require.NoError(t, f.newEvaluator(tomorrow).Execute(context.Background()))

	assert.Equal(t, 2, f.countInstances(t, def.ID))
}

func TestEvaluatorSkipsOutsideWindow(t *testing.T) {
	f := newEngineFixture(t)
	def := f.seedDefinition(t, true)
	f.seedTrigger(t, def.ID, models.TriggerTypeSchedule,
		`{"schedule":"daily:09:00"}`, true)

	now := time.Date(2026, 3, 10, 9, 6, 0, 0, time.UTC)
	require.NoError(t, f.newEvaluator(now).Execute(context.Background()))

	assert.Equal(t, 0, f.countInstances(t, def.ID))
}

func TestEvaluatorSkipsInactiveTrigger(t *testing.T) {
	f := newEngineFixture(t)
	def := f.seedDefinition(t, true)
	f.seedTrigger(t, def.ID, models.TriggerTypeSchedule,
		`{"schedule":"daily:09:00"}`, false)

	now := time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC)
	require.NoError(t, f.newEvaluator(now).Execute(context.Background()))

	assert.Equal(t, 0, f.countInstances(t, def.ID))
}

func TestEvaluatorNeverFiresNonScheduleTypes(t *testing.T) {
	f := newEngineFixture(t)
	def := f.seedDefinition(t, true)
	f.seedTrigger(t, def.ID, models.TriggerTypeManual, "", true)
	f.seedTrigger(t, def.ID, models.TriggerTypeWebhook, `{"path":"/payments"}`, true)
	f.seedTrigger(t, def.ID, models.TriggerTypeFileWatch, `{"pattern":"inbox/*.xml"}`, true)
	f.seedTrigger(t, def.ID, models.TriggerTypeEvent, `{"event":"filing.submitted"}`, true)

	now := time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC)
	require.NoError(t, f.newEvaluator(now).Execute(context.Background()))

	assert.Equal(t, 0, f.countInstances(t, def.ID))
}

// One trigger with a broken config must not block the rest of the pass.
func TestEvaluatorIsolatesBrokenTrigger(t *testing.T) {
	f := newEngineFixture(t)
	def := f.seedDefinition(t, true)
	f.seedTrigger(t, def.ID, models.TriggerTypeSchedule, `{"schedule":"nope"}`, true)
	f.seedTrigger(t, def.ID, models.TriggerTypeSchedule, `{"schedule":"daily:09:00"}`, true)

	now := time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC)
	require.NoError(t, f.newEvaluator(now).Execute(context.Background()))

	assert.Equal(t, 1, f.countInstances(t, def.ID))
}

func TestStartFromWebhook(t *testing.T) {
	f := newEngineFixture(t)
	def := f.seedDefinition(t, true)
	f.seedTrigger(t, def.ID, models.TriggerTypeWebhook,
		`{"path":"/payments/settled","variables":{"source":"bank"}}`, true)

	ev := f.newEvaluator(time.Now())
	publicID, err := ev.StartFromWebhook(context.Background(), "/payments/settled",
		map[string]interface{}{"amount": 1200}, "webhook")
	require.NoError(t, err)

	instance, err := f.instanceRepo.GetByPublicID(publicID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusRunning, instance.Status)
	assert.Contains(t, instance.Variables, `"source":"bank"`)
	assert.Contains(t, instance.Variables, `"amount":1200`)
}

func TestStartFromWebhookUnknownPath(t *testing.T) {
	f := newEngineFixture(t)

	ev := f.newEvaluator(time.Now())
	_, err := ev.StartFromWebhook(context.Background(), "/nope", nil, "webhook")
	assert.Error(t, err)
}
