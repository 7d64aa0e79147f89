package approval

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	domwf "github.com/aozorakai/taxflow/internal/domain/workflow"
	"github.com/aozorakai/taxflow/internal/models"
	"github.com/aozorakai/taxflow/internal/repository"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedNotification struct {
	Recipient string
	Title     string
	Severity  models.Severity
}

type fakeNotifier struct {
	sent []recordedNotification
}

func (f *fakeNotifier) Notify(_ context.Context, recipient, title, _ string, severity models.Severity) {
	f.sent = append(f.sent, recordedNotification{Recipient: recipient, Title: title, Severity: severity})
}

func newTestService(t *testing.T) (*Service, *fakeNotifier) {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	schema, err := os.ReadFile("../../migrations/001_initial_schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	repo := repository.NewApprovalRepository(db, zap.NewNop())
	notifier := &fakeNotifier{}
	svc := NewService(repo, NewChainResolver(1_000_000, 10_000_000), notifier, zap.NewNop())
	return svc, notifier
}

func TestRequestPaymentApprovalNotifiesFirstRole(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()

	req, err := svc.RequestPaymentApproval(ctx, "PAY-001", 500_000, "alice")
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusPending, req.Status)
	assert.Equal(t, 0, req.CurrentStep)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "associate-pool", notifier.sent[0].Recipient)
}

func TestApproveThroughFullChain(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()

	req, err := svc.RequestPaymentApproval(ctx, "PAY-002", 12_000_000, "bob")
	require.NoError(t, err)

	// Associate, then manager: request stays pending and the next role is notified
	require.NoError(t, svc.Approve(ctx, req.PublicID, "assoc-1", "ok"))
	require.NoError(t, svc.Approve(ctx, req.PublicID, "mgr-1", "ok"))

	loaded, err := svc.repo.GetByPublicID(req.PublicID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, loaded.Status)
	assert.Equal(t, 2, loaded.CurrentStep)

	// Director finalizes
	require.NoError(t, svc.Approve(ctx, req.PublicID, "dir-1", "ok"))

	loaded, err = svc.repo.GetByPublicID(req.PublicID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, loaded.Status)
	require.NotNil(t, loaded.CompletedAt)

	// request + 2 step notifications + final approval notification
	require.Len(t, notifier.sent, 4)
	assert.Equal(t, "manager-pool", notifier.sent[1].Recipient)
	assert.Equal(t, "director-pool", notifier.sent[2].Recipient)
	assert.Equal(t, "bob", notifier.sent[3].Recipient)

	// Re-approving a terminal request must fail loudly
	err = svc.Approve(ctx, req.PublicID, "dir-1", "again")
	assert.ErrorIs(t, err, domwf.ErrInvalidState)
}

func TestRejectShortCircuitsChain(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()

	req, err := svc.RequestPaymentApproval(ctx, "PAY-003", 5_000_000, "carol")
	require.NoError(t, err)

	require.NoError(t, svc.Approve(ctx, req.PublicID, "assoc-1", "ok"))

	// Manager rejects at step 1; the chain terminates immediately
	require.NoError(t, svc.Reject(ctx, req.PublicID, "mgr-1", "unsupported invoice"))

	loaded, err := svc.repo.GetByPublicID(req.PublicID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusRejected, loaded.Status)
	require.NotNil(t, loaded.CompletedAt)

	last := notifier.sent[len(notifier.sent)-1]
	assert.Equal(t, "carol", last.Recipient)
	assert.Equal(t, models.SeverityWarning, last.Severity)

	// Neither approval nor rejection is possible afterwards
	assert.ErrorIs(t, svc.Approve(ctx, req.PublicID, "dir-1", ""), domwf.ErrInvalidState)
	assert.ErrorIs(t, svc.Reject(ctx, req.PublicID, "dir-1", ""), domwf.ErrInvalidState)
}

func TestApproveUnknownRequest(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Approve(context.Background(), "missing-id", "assoc-1", "")
	assert.True(t, errors.Is(err, ErrNotFound))
}
