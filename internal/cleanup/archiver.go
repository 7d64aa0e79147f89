package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/aozorakai/taxflow/internal/repository"
	"go.uber.org/zap"
)

// Archiver is the periodic job that marks long-settled records as
// archived. Archiving is a soft flag: rows stay in place, completion
// timestamps are never touched, and active records are never considered.
type Archiver struct {
	instanceRepo     *repository.InstanceRepository
	approvalRepo     *repository.ApprovalRepository
	conversationRepo *repository.ConversationRepository
	filingRepo       *repository.FilingRepository
	retention        time.Duration
	logger           *zap.Logger
	now              func() time.Time
}

// NewArchiver creates a cleanup job. retention is how long a record stays
// unarchived after it settles.
func NewArchiver(
	instanceRepo *repository.InstanceRepository,
	approvalRepo *repository.ApprovalRepository,
	conversationRepo *repository.ConversationRepository,
	filingRepo *repository.FilingRepository,
	retention time.Duration,
	logger *zap.Logger,
) *Archiver {
	return &Archiver{
		instanceRepo:     instanceRepo,
		approvalRepo:     approvalRepo,
		conversationRepo: conversationRepo,
		filingRepo:       filingRepo,
		retention:        retention,
		logger:           logger,
		now:              time.Now,
	}
}

// Name returns the job name
func (a *Archiver) Name() string {
	return "cleanup-archival"
}

// Execute runs one archival pass across all record kinds
func (a *Archiver) Execute(ctx context.Context) error {
	now := a.now()
	cutoff := now.Add(-a.retention)

	instances, err := a.archiveInstances(ctx, cutoff, now)
	if err != nil {
		return err
	}
	approvals, err := a.archiveApprovals(ctx, cutoff, now)
	if err != nil {
		return err
	}
	conversations, err := a.archiveConversations(ctx, cutoff, now)
	if err != nil {
		return err
	}
	filings, err := a.archiveFilings(ctx, cutoff, now)
	if err != nil {
		return err
	}

	a.logger.Info("Archival pass completed",
		zap.Time("cutoff", cutoff),
		zap.Int("instances", instances),
		zap.Int("approvals", approvals),
		zap.Int("conversations", conversations),
		zap.Int("filings", filings))

	return nil
}

func (a *Archiver) archiveInstances(ctx context.Context, cutoff, now time.Time) (int, error) {
	instances, err := a.instanceRepo.ListTerminalCompletedBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list archivable instances: %w", err)
	}

	archived := 0
	for _, instance := range instances {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		if err := a.instanceRepo.Archive(instance.ID, now); err != nil {
			a.logger.Warn("Failed to archive workflow instance",
				zap.Int64("instance_id", instance.ID), zap.Error(err))
			continue
		}
		archived++
	}
	return archived, nil
}

func (a *Archiver) archiveApprovals(ctx context.Context, cutoff, now time.Time) (int, error) {
	requests, err := a.approvalRepo.ListTerminalCompletedBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list archivable approval requests: %w", err)
	}

	archived := 0
	for _, request := range requests {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		if err := a.approvalRepo.Archive(request.ID, now); err != nil {
			a.logger.Warn("Failed to archive approval request",
				zap.Int64("request_id", request.ID), zap.Error(err))
			continue
		}
		archived++
	}
	return archived, nil
}

func (a *Archiver) archiveConversations(ctx context.Context, cutoff, now time.Time) (int, error) {
	conversations, err := a.conversationRepo.ListTerminalResolvedBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list archivable conversations: %w", err)
	}

	archived := 0
	for _, conversation := range conversations {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		if err := a.conversationRepo.Archive(conversation.ID, now); err != nil {
			a.logger.Warn("Failed to archive conversation",
				zap.Int64("conversation_id", conversation.ID), zap.Error(err))
			continue
		}
		archived++
	}
	return archived, nil
}

func (a *Archiver) archiveFilings(ctx context.Context, cutoff, now time.Time) (int, error) {
	filings, err := a.filingRepo.ListSettledFiledBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list archivable filings: %w", err)
	}

	archived := 0
	for _, filing := range filings {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		if err := a.filingRepo.Archive(filing.ID, now); err != nil {
			a.logger.Warn("Failed to archive compliance filing",
				zap.Int64("filing_id", filing.ID), zap.Error(err))
			continue
		}
		archived++
	}
	return archived, nil
}
