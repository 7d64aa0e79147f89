package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"go.uber.org/zap"
)

// NotificationRepository handles the notification outbox
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new outbox row
func (r *NotificationRepository) Create(tx *sql.Tx, n *models.Notification) error {
	query := `
		INSERT INTO notifications (recipient, title, message, severity, status)
		VALUES (?, ?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.Exec(query, n.Recipient, n.Title, n.Message, n.Severity, n.Status)
	} else {
		result, err = r.db.Exec(query, n.Recipient, n.Title, n.Message, n.Severity, n.Status)
	}

	if err != nil {
		r.logger.Error("Failed to create notification", zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	n.ID = id
	return nil
}

// MarkSent records a successful hand-off to the delivery channel
func (r *NotificationRepository) MarkSent(id int64, sentAt time.Time) error {
	query := `UPDATE notifications SET status = ?, sent_at = ? WHERE id = ?`

	if _, err := r.db.Exec(query, models.NotificationStatusSent, sentAt, id); err != nil {
		r.logger.Error("Failed to mark notification sent", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed hand-off with the channel error
func (r *NotificationRepository) MarkFailed(id int64, errMsg string) error {
	query := `UPDATE notifications SET status = ?, error_message = ? WHERE id = ?`

	if _, err := r.db.Exec(query, models.NotificationStatusFailed, errMsg, id); err != nil {
		r.logger.Error("Failed to mark notification failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// ListByStatus returns notifications in the given status, oldest first
func (r *NotificationRepository) ListByStatus(status string, limit int) ([]*models.Notification, error) {
	query := `SELECT id, recipient, title, message, severity, status, error_message, sent_at, created_at
		FROM notifications WHERE status = ? ORDER BY id LIMIT ?`

	rows, err := r.db.Query(query, status, limit)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.String("status", status), zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		var errMsg sql.NullString
		var sentAt sql.NullTime

		if err := rows.Scan(&n.ID, &n.Recipient, &n.Title, &n.Message, &n.Severity,
			&n.Status, &errMsg, &sentAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if errMsg.Valid {
			n.ErrorMessage = errMsg.String
		}
		if sentAt.Valid {
			n.SentAt = &sentAt.Time
		}

		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}
