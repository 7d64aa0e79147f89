package models

import "time"

// Priority classifies how urgently a client conversation needs attention.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// IsValid returns true if the priority is one of the defined levels.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Conversation is an open client communication thread. A conversation has
// exactly one current assignee at any time.
type Conversation struct {
	ID           int64      `json:"id"`
	ClientID     int64      `json:"client_id"`
	Subject      string     `json:"subject"`
	Priority     Priority   `json:"priority"`
	Status       string     `json:"status"` // OPEN, RESOLVED, CLOSED
	AssignedTo   string     `json:"assigned_to"`
	AssignedRole Role       `json:"assigned_role"`
	AssignedAt   time.Time  `json:"assigned_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// EscalationRecord is the audit trail entry written for every escalation
// step applied to a conversation.
type EscalationRecord struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	FromRole       Role      `json:"from_role"`
	ToRole         Role      `json:"to_role"`
	FromAssignee   string    `json:"from_assignee"`
	ToAssignee     string    `json:"to_assignee"`
	Reason         string    `json:"reason"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Conversation status constants
const (
	ConversationStatusOpen     = "OPEN"
	ConversationStatusResolved = "RESOLVED"
	ConversationStatusClosed   = "CLOSED"
)
