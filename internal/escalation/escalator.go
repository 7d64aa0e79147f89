package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"github.com/aozorakai/taxflow/internal/repository"
	"go.uber.org/zap"
)

// Thresholds holds the per-priority response time after which an open
// conversation is escalated
type Thresholds struct {
	Urgent time.Duration
	High   time.Duration
	Medium time.Duration
	Low    time.Duration
}

// For returns the threshold for a priority
func (t Thresholds) For(priority models.Priority) time.Duration {
	switch priority {
	case models.PriorityUrgent:
		return t.Urgent
	case models.PriorityHigh:
		return t.High
	case models.PriorityMedium:
		return t.Medium
	default:
		return t.Low
	}
}

// Notifier is the slice of the notification dispatcher the escalator needs
type Notifier interface {
	Notify(ctx context.Context, recipient, title, message string, severity models.Severity)
}

// Escalator reassigns stalled open conversations to higher-authority
// handlers based on elapsed time and priority. Every step is recorded for
// audit.
type Escalator struct {
	repo       *repository.ConversationRepository
	router     *Router
	thresholds Thresholds
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewEscalator creates a conversation escalator
func NewEscalator(
	repo *repository.ConversationRepository,
	router *Router,
	thresholds Thresholds,
	notifier Notifier,
	logger *zap.Logger,
) *Escalator {
	return &Escalator{
		repo:       repo,
		router:     router,
		thresholds: thresholds,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Name returns the job name
func (e *Escalator) Name() string {
	return "communication-escalation"
}

// Execute applies the escalation rules to all open conversations. Failures
// are isolated per conversation.
func (e *Escalator) Execute(ctx context.Context) error {
	conversations, err := e.repo.ListOpen()
	if err != nil {
		return fmt.Errorf("failed to load open conversations: %w", err)
	}

	now := e.now()
	escalated := 0
	failed := 0

	for _, conv := range conversations {
		if err := ctx.Err(); err != nil {
			return err
		}

		moved, err := e.checkConversation(ctx, conv, now)
		if err != nil {
			e.logger.Warn("Failed to evaluate conversation",
				zap.Int64("conversation_id", conv.ID),
				zap.Error(err))
			failed++
			continue
		}
		if moved {
			escalated++
		}
	}

	e.logger.Info("Escalation pass completed",
		zap.Int("conversations", len(conversations)),
		zap.Int("escalated", escalated),
		zap.Int("failed", failed))

	return nil
}

func (e *Escalator) checkConversation(ctx context.Context, conv *models.Conversation, now time.Time) (bool, error) {
	threshold := e.thresholds.For(conv.Priority)
	age := now.Sub(conv.AssignedAt)
	if age < threshold {
		return false, nil
	}

	nextRole, ok := e.router.NextRole(conv.AssignedRole)
	if !ok {
		// Director is the ceiling; nothing above to escalate to
		return false, nil
	}

	nextAssignee := e.router.Assignee(nextRole)

	if err := e.repo.Reassign(nil, conv.ID, nextRole, nextAssignee, now); err != nil {
		return false, err
	}

	record := &models.EscalationRecord{
		ConversationID: conv.ID,
		FromRole:       conv.AssignedRole,
		ToRole:         nextRole,
		FromAssignee:   conv.AssignedTo,
		ToAssignee:     nextAssignee,
		Reason:         fmt.Sprintf("no resolution after %s at %s priority", age.Truncate(time.Minute), conv.Priority),
		OccurredAt:     now,
	}
	if err := e.repo.RecordEscalation(nil, record); err != nil {
		return false, err
	}

	e.logger.Info("Conversation escalated",
		zap.Int64("conversation_id", conv.ID),
		zap.String("from_role", conv.AssignedRole.String()),
		zap.String("to_role", nextRole.String()),
		zap.String("priority", conv.Priority.String()))

	e.notifier.Notify(ctx, nextAssignee,
		"Conversation escalated to you",
		fmt.Sprintf("Conversation %d (%s, %s priority) has waited %s without resolution",
			conv.ID, conv.Subject, conv.Priority, age.Truncate(time.Minute)),
		models.SeverityWarning)

	return true, nil
}

// RouteNew assigns a brand-new conversation to its initial handler by
// priority and persists it
func (e *Escalator) RouteNew(ctx context.Context, conv *models.Conversation) error {
	if !conv.Priority.IsValid() {
		conv.Priority = models.PriorityMedium
	}

	role := e.router.InitialRole(conv.Priority)
	conv.Status = models.ConversationStatusOpen
	conv.AssignedRole = role
	conv.AssignedTo = e.router.Assignee(role)
	conv.AssignedAt = e.now()

	if err := e.repo.Create(nil, conv); err != nil {
		return err
	}

	e.notifier.Notify(ctx, conv.AssignedTo,
		"New conversation assigned",
		fmt.Sprintf("Conversation %d (%s) assigned at %s priority", conv.ID, conv.Subject, conv.Priority),
		models.SeverityInfo)

	return nil
}
