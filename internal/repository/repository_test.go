package repository

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// A single connection keeps the in-memory database alive across queries
	db.SetMaxOpenConns(1)

	schema, err := os.ReadFile("../../migrations/001_initial_schema.sql")
	require.NoError(t, err)

	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func seedDefinition(t *testing.T, db *sql.DB) *models.WorkflowDefinition {
	t.Helper()

	repo := NewDefinitionRepository(db, zap.NewNop())
	def := &models.WorkflowDefinition{
		Name:        "monthly-vat-filing",
		Category:    models.CategoryCompliance,
		TriggerType: models.TriggerTypeSchedule,
		Actions:     `[{"type":"notify"}]`,
		ParamSchema: `{}`,
		IsActive:    true,
	}
	require.NoError(t, repo.Create(nil, def))
	return def
}

func TestTriggerWatermarkRoundTrip(t *testing.T) {
	db := newTestDB(t)
	def := seedDefinition(t, db)
	repo := NewTriggerRepository(db, zap.NewNop())

	trigger := &models.WorkflowTrigger{
		WorkflowID: def.ID,
		Type:       models.TriggerTypeSchedule,
		IsActive:   true,
		Config:     `{"schedule":"daily:09:00"}`,
	}
	require.NoError(t, repo.Create(nil, trigger))

	loaded, err := repo.GetByID(trigger.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Nil(t, loaded.LastFiredAt)

	firedAt := time.Date(2026, 3, 2, 9, 2, 0, 0, time.UTC)
	require.NoError(t, repo.MarkFired(nil, trigger.ID, firedAt))
	require.NoError(t, repo.MarkEvaluated(trigger.ID, firedAt))

	loaded, err = repo.GetByID(trigger.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.LastFiredAt)
	assert.True(t, loaded.LastFiredAt.Equal(firedAt))
	require.NotNil(t, loaded.LastEvaluatedAt)
}

func TestListActiveSkipsInactiveTriggers(t *testing.T) {
	db := newTestDB(t)
	def := seedDefinition(t, db)
	repo := NewTriggerRepository(db, zap.NewNop())

	active := &models.WorkflowTrigger{WorkflowID: def.ID, Type: models.TriggerTypeSchedule, IsActive: true, Config: `{"schedule":"daily:09:00"}`}
	inactive := &models.WorkflowTrigger{WorkflowID: def.ID, Type: models.TriggerTypeSchedule, IsActive: false, Config: `{"schedule":"daily:10:00"}`}
	require.NoError(t, repo.Create(nil, active))
	require.NoError(t, repo.Create(nil, inactive))

	triggers, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, active.ID, triggers[0].ID)
}

func TestInstanceTerminalListingHonorsCutoff(t *testing.T) {
	db := newTestDB(t)
	def := seedDefinition(t, db)
	repo := NewInstanceRepository(db, zap.NewNop())
	now := time.Now().UTC()

	mk := func(publicID, status string, completedAt *time.Time) *models.WorkflowInstance {
		inst := &models.WorkflowInstance{
			PublicID:   publicID,
			WorkflowID: def.ID,
			Status:     models.InstanceStatusPending,
			StartedBy:  models.SystemActor,
			Variables:  `{}`,
			StartedAt:  now.Add(-100 * 24 * time.Hour),
		}
		require.NoError(t, repo.Create(nil, inst))
		if status != models.InstanceStatusPending {
			require.NoError(t, repo.UpdateStatus(nil, inst.ID, status, completedAt))
		}
		return inst
	}

	old := now.Add(-91 * 24 * time.Hour)
	recent := now.Add(-89 * 24 * time.Hour)

	archivable := mk("wf-old", models.InstanceStatusCompleted, &old)
	mk("wf-recent", models.InstanceStatusCompleted, &recent)
	mk("wf-running", models.InstanceStatusRunning, nil)

	cutoff := now.Add(-90 * 24 * time.Hour)
	instances, err := repo.ListTerminalCompletedBefore(cutoff)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, archivable.ID, instances[0].ID)

	// Archival sets archived_at only; completed_at is preserved for audit
	require.NoError(t, repo.Archive(archivable.ID, now))
	loaded, err := repo.GetByID(archivable.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.ArchivedAt)
	require.NotNil(t, loaded.CompletedAt)
	assert.True(t, loaded.CompletedAt.Equal(old))

	instances, err = repo.ListTerminalCompletedBefore(cutoff)
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestAlertLedgerDeduplicates(t *testing.T) {
	db := newTestDB(t)
	filingRepo := NewFilingRepository(db, zap.NewNop())
	alertRepo := NewAlertRepository(db, zap.NewNop())

	filing := &models.ComplianceFiling{
		FilingRef:  "VAT-2026-02",
		ClientID:   7,
		FilingType: "VAT",
		Amount:     1_000_000,
		DueDate:    time.Now().Add(30 * 24 * time.Hour),
		Status:     models.FilingStatusPending,
	}
	require.NoError(t, filingRepo.Create(nil, filing))

	alert := &models.ComplianceAlert{FilingID: filing.ID, ThresholdDays: 30, SentAt: time.Now()}
	inserted, err := alertRepo.Record(nil, alert)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Second record of the same threshold is ignored
	dup := &models.ComplianceAlert{FilingID: filing.ID, ThresholdDays: 30, SentAt: time.Now()}
	inserted, err = alertRepo.Record(nil, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	exists, err := alertRepo.Exists(filing.ID, 30)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = alertRepo.Exists(filing.ID, 14)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFilingMarkOverdueOnlyFromPending(t *testing.T) {
	db := newTestDB(t)
	repo := NewFilingRepository(db, zap.NewNop())

	filing := &models.ComplianceFiling{
		FilingRef:  "CIT-2025-12",
		ClientID:   3,
		FilingType: "CIT",
		Amount:     2_500_000,
		DueDate:    time.Now().Add(-48 * time.Hour),
		Status:     models.FilingStatusPending,
	}
	require.NoError(t, repo.Create(nil, filing))

	require.NoError(t, repo.MarkOverdue(nil, filing.ID, 125_000))

	loaded, err := repo.GetByID(filing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FilingStatusOverdue, loaded.Status)
	assert.InDelta(t, 125_000, loaded.PenaltyAmount, 0.001)

	// A second overdue mark must not overwrite the recorded penalty
	require.NoError(t, repo.MarkOverdue(nil, filing.ID, 250_000))
	loaded, err = repo.GetByID(filing.ID)
	require.NoError(t, err)
	assert.InDelta(t, 125_000, loaded.PenaltyAmount, 0.001)
}

func TestConversationReassignAndHistory(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())
	now := time.Now().UTC()

	conv := &models.Conversation{
		ClientID:     12,
		Subject:      "Missing withholding certificate",
		Priority:     models.PriorityHigh,
		Status:       models.ConversationStatusOpen,
		AssignedTo:   "associate-pool",
		AssignedRole: models.RoleAssociate,
		AssignedAt:   now.Add(-6 * time.Hour),
	}
	require.NoError(t, repo.Create(nil, conv))

	require.NoError(t, repo.Reassign(nil, conv.ID, models.RoleManager, "manager-pool", now))
	require.NoError(t, repo.RecordEscalation(nil, &models.EscalationRecord{
		ConversationID: conv.ID,
		FromRole:       models.RoleAssociate,
		ToRole:         models.RoleManager,
		FromAssignee:   "associate-pool",
		ToAssignee:     "manager-pool",
		Reason:         "response time exceeded",
		OccurredAt:     now,
	}))

	loaded, err := repo.GetByID(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, loaded.AssignedRole)
	assert.Equal(t, "manager-pool", loaded.AssignedTo)

	history, err := repo.ListEscalations(conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.RoleAssociate, history[0].FromRole)
	assert.Equal(t, models.RoleManager, history[0].ToRole)
}
