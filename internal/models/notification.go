package models

import "time"

// Severity classifies a notification for downstream channel selection.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Notification is an outbox row handed to the delivery channel. The jobs
// in this core treat delivery as fire-and-forget; the row records what
// was requested and whether the hand-off succeeded.
type Notification struct {
	ID           int64      `json:"id"`
	Recipient    string     `json:"recipient"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	Severity     Severity   `json:"severity"`
	Status       string     `json:"status"` // PENDING, SENT, FAILED
	ErrorMessage string     `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)
