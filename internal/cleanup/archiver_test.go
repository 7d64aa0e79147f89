package cleanup

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"github.com/aozorakai/taxflow/internal/repository"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type archiverFixture struct {
	db               *sql.DB
	archiver         *Archiver
	instanceRepo     *repository.InstanceRepository
	approvalRepo     *repository.ApprovalRepository
	conversationRepo *repository.ConversationRepository
	filingRepo       *repository.FilingRepository
	now              time.Time
}

func newArchiverFixture(t *testing.T) *archiverFixture {
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

	logger := zap.NewNop()
	instanceRepo := repository.NewInstanceRepository(db, logger)
	approvalRepo := repository.NewApprovalRepository(db, logger)
	conversationRepo := repository.NewConversationRepository(db, logger)
	filingRepo := repository.NewFilingRepository(db, logger)

	now := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)
	archiver := NewArchiver(instanceRepo, approvalRepo, conversationRepo, filingRepo,
		90*24*time.Hour, logger)
	archiver.now = func() time.Time { return now }

	return &archiverFixture{
		db:               db,
		archiver:         archiver,
		instanceRepo:     instanceRepo,
		approvalRepo:     approvalRepo,
		conversationRepo: conversationRepo,
		filingRepo:       filingRepo,
		now:              now,
	}
}

func (f *archiverFixture) seedInstance(t *testing.T, status string, settledDaysAgo int) int64 {
	t.Helper()

	def := &models.WorkflowDefinition{
		Name:        "archival-seed",
		Category:    models.CategoryCompliance,
		TriggerType: models.TriggerTypeManual,
		Actions:     `[]`,
		ParamSchema: `{}`,
		IsActive:    true,
	}
	require.NoError(t, repository.NewDefinitionRepository(f.db, zap.NewNop()).Create(nil, def))

	instance := &models.WorkflowInstance{
		PublicID:   "inst-" + status + "-" + time.Now().Format("150405.000000000"),
		WorkflowID: def.ID,
		Status:     models.InstanceStatusPending,
		StartedBy:  "alice",
		Variables:  "{}",
		StartedAt:  f.now.AddDate(0, 0, -settledDaysAgo-1),
	}
	require.NoError(t, f.instanceRepo.Create(nil, instance))

	if status != models.InstanceStatusPending {
		settled := f.now.AddDate(0, 0, -settledDaysAgo)
		var completedAt *time.Time
		if status == models.InstanceStatusCompleted || status == models.InstanceStatusCancelled {
			completedAt = &settled
		}
		require.NoError(t, f.instanceRepo.UpdateStatus(nil, instance.ID, status, completedAt))
	}
	return instance.ID
}

func (f *archiverFixture) seedApproval(t *testing.T, status string, settledDaysAgo int) int64 {
	t.Helper()

	req := &models.PaymentApprovalRequest{
		PublicID:    "pay-" + status + "-" + time.Now().Format("150405.000000000"),
		PaymentRef:  "INV-1001",
		Amount:      5000,
		RequestedBy: "alice",
		Chain:       `["ASSOCIATE"]`,
		Status:      models.ApprovalStatusPending,
		Comments:    "[]",
	}
	require.NoError(t, f.approvalRepo.Create(nil, req))

	if status != models.ApprovalStatusPending {
		settled := f.now.AddDate(0, 0, -settledDaysAgo)
		require.NoError(t, f.approvalRepo.UpdateProgress(nil, req.ID, 1, status, "[]", &settled))
	}
	return req.ID
}

func (f *archiverFixture) seedConversation(t *testing.T, status string, settledDaysAgo int) int64 {
	t.Helper()

	conv := &models.Conversation{
		ClientID:     7,
		Subject:      "VAT question",
		Priority:     models.PriorityMedium,
		Status:       models.ConversationStatusOpen,
		AssignedTo:   "associate-pool",
		AssignedRole: models.RoleAssociate,
		AssignedAt:   f.now.AddDate(0, 0, -settledDaysAgo-1),
	}
	require.NoError(t, f.conversationRepo.Create(nil, conv))

	if status != models.ConversationStatusOpen {
		settled := f.now.AddDate(0, 0, -settledDaysAgo)
		_, err := f.db.Exec(
			"UPDATE conversations SET status = ?, resolved_at = ? WHERE id = ?",
			status, settled, conv.ID)
		require.NoError(t, err)
	}
	return conv.ID
}

func (f *archiverFixture) seedFiling(t *testing.T, status string, settledDaysAgo int) int64 {
	t.Helper()

	filing := &models.ComplianceFiling{
		FilingRef:  "VAT-2026-Q1-" + status,
		ClientID:   7,
		FilingType: "VAT",
		Amount:     120000,
		DueDate:    f.now.AddDate(0, 0, -settledDaysAgo-10),
		Status:     models.FilingStatusPending,
	}
	require.NoError(t, f.filingRepo.Create(nil, filing))

	if status != models.FilingStatusPending {
		settled := f.now.AddDate(0, 0, -settledDaysAgo)
		_, err := f.db.Exec(
			"UPDATE compliance_filings SET status = ?, filed_at = ? WHERE id = ?",
			status, settled, filing.ID)
		require.NoError(t, err)
	}
	return filing.ID
}

func (f *archiverFixture) archivedAt(t *testing.T, table string, id int64) *time.Time {
	t.Helper()

	var archivedAt *time.Time
	err := f.db.QueryRow(
		"SELECT archived_at FROM "+table+" WHERE id = ?", id).Scan(&archivedAt)
	require.NoError(t, err)
	return archivedAt
}

func TestArchiverArchivesSettledRecords(t *testing.T) {
	f := newArchiverFixture(t)

	instanceID := f.seedInstance(t, models.InstanceStatusCompleted, 91)
	approvalID := f.seedApproval(t, models.ApprovalStatusRejected, 91)
	conversationID := f.seedConversation(t, models.ConversationStatusResolved, 91)
	filingID := f.seedFiling(t, models.FilingStatusFiled, 91)

	require.NoError(t, f.archiver.Execute(context.Background()))

	assert.NotNil(t, f.archivedAt(t, "workflow_instances", instanceID))
	assert.NotNil(t, f.archivedAt(t, "payment_approval_requests", approvalID))
	assert.NotNil(t, f.archivedAt(t, "conversations", conversationID))
	assert.NotNil(t, f.archivedAt(t, "compliance_filings", filingID))
}

func TestArchiverRespectsRetentionBoundary(t *testing.T) {
	f := newArchiverFixture(t)

	recentID := f.seedInstance(t, models.InstanceStatusCompleted, 89)
	oldID := f.seedInstance(t, models.InstanceStatusCancelled, 91)

	require.NoError(t, f.archiver.Execute(context.Background()))

	assert.Nil(t, f.archivedAt(t, "workflow_instances", recentID))
	assert.NotNil(t, f.archivedAt(t, "workflow_instances", oldID))
}

func TestArchiverNeverTouchesActiveRecords(t *testing.T) {
	f := newArchiverFixture(t)

	instanceID := f.seedInstance(t, models.InstanceStatusRunning, 120)
	approvalID := f.seedApproval(t, models.ApprovalStatusPending, 120)
	conversationID := f.seedConversation(t, models.ConversationStatusOpen, 120)
	filingID := f.seedFiling(t, models.FilingStatusPending, 120)

	require.NoError(t, f.archiver.Execute(context.Background()))

	assert.Nil(t, f.archivedAt(t, "workflow_instances", instanceID))
	assert.Nil(t, f.archivedAt(t, "payment_approval_requests", approvalID))
	assert.Nil(t, f.archivedAt(t, "conversations", conversationID))
	assert.Nil(t, f.archivedAt(t, "compliance_filings", filingID))
}

func TestArchiverPreservesCompletionTimestamp(t *testing.T) {
	f := newArchiverFixture(t)
	instanceID := f.seedInstance(t, models.InstanceStatusCompleted, 100)

	var before *time.Time
	require.NoError(t, f.db.QueryRow(
		"SELECT completed_at FROM workflow_instances WHERE id = ?", instanceID).Scan(&before))
	require.NotNil(t, before)

	require.NoError(t, f.archiver.Execute(context.Background()))

	var after *time.Time
	require.NoError(t, f.db.QueryRow(
		"SELECT completed_at FROM workflow_instances WHERE id = ?", instanceID).Scan(&after))
	require.NotNil(t, after)
	assert.True(t, before.Equal(*after))
}

func TestArchiverIsIdempotent(t *testing.T) {
	f := newArchiverFixture(t)
	instanceID := f.seedInstance(t, models.InstanceStatusCompleted, 100)

	require.NoError(t, f.archiver.Execute(context.Background()))
	first := f.archivedAt(t, "workflow_instances", instanceID)
	require.NotNil(t, first)

	require.NoError(t, f.archiver.Execute(context.Background()))
	second := f.archivedAt(t, "workflow_instances", instanceID)
	require.NotNil(t, second)
	assert.True(t, first.Equal(*second))
}
