package notification

import (
	"context"
	"database/sql"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Channel delivers a notification to the external email/SMS/push gateway.
// Implementations live outside this core.
type Channel interface {
	Send(ctx context.Context, n *models.Notification) error
}

// OutboxRepo is the slice of the notification repository the dispatcher needs
type OutboxRepo interface {
	Create(tx *sql.Tx, n *models.Notification) error
	MarkSent(id int64, sentAt time.Time) error
	MarkFailed(id int64, errMsg string) error
}

// Dispatcher hands fully-formed notifications to the delivery channel.
// From the jobs' perspective Notify is fire-and-forget: delivery failures
// are recorded and logged, never returned to the caller.
type Dispatcher struct {
	repo    OutboxRepo
	channel Channel
	logger  *zap.Logger
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(repo OutboxRepo, channel Channel, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		repo:    repo,
		channel: channel,
		logger:  logger,
	}
}

// Notify records and delivers one notification. The outbox write is retried
// with backoff on transient store errors (sqlite busy under concurrent
// jobs); delivery itself is attempted once.
func (d *Dispatcher) Notify(ctx context.Context, recipient, title, message string, severity models.Severity) {
	n := &models.Notification{
		Recipient: recipient,
		Title:     title,
		Message:   message,
		Severity:  severity,
		Status:    models.NotificationStatusPending,
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := d.repo.Create(nil, n); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("Failed to record notification",
			zap.String("recipient", recipient),
			zap.String("title", title),
			zap.Error(err))
		return
	}

	if err := d.channel.Send(ctx, n); err != nil {
		d.logger.Warn("Notification delivery failed",
			zap.Int64("id", n.ID),
			zap.String("recipient", recipient),
			zap.Error(err))
		if markErr := d.repo.MarkFailed(n.ID, err.Error()); markErr != nil {
			d.logger.Error("Failed to record delivery failure", zap.Int64("id", n.ID), zap.Error(markErr))
		}
		return
	}

	if err := d.repo.MarkSent(n.ID, time.Now()); err != nil {
		d.logger.Error("Failed to record delivery", zap.Int64("id", n.ID), zap.Error(err))
	}
}

// LogChannel is the default channel: it writes notifications to the log.
// Deployments wire a real gateway-backed channel in its place.
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel creates a log-backed delivery channel
func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

// Send logs the notification
func (c *LogChannel) Send(_ context.Context, n *models.Notification) error {
	c.logger.Info("Notification",
		zap.String("recipient", n.Recipient),
		zap.String("title", n.Title),
		zap.String("severity", string(n.Severity)),
		zap.String("message", n.Message))
	return nil
}
