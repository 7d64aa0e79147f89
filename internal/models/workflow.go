package models

import "time"

// WorkflowDefinition describes a workflow that can be instantiated.
// Definitions are immutable once referenced by a running instance; edits
// create a new version and never affect in-flight instances.
type WorkflowDefinition struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"` // APPROVAL, COMPLIANCE, DOCUMENT, COMMUNICATION
	TriggerType string    `json:"trigger_type"`
	Actions     string    `json:"actions"`    // JSON blob: ordered action list
	ParamSchema string    `json:"parameters"` // JSON blob: parameter schema
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkflowTrigger is a stored rule that starts a workflow when its
// condition holds. The evaluator only writes bookkeeping fields
// (last_evaluated_at, last_fired_at); operators own everything else.
type WorkflowTrigger struct {
	ID              int64      `json:"id"`
	WorkflowID      int64      `json:"workflow_id"`
	Type            string     `json:"type"` // SCHEDULE, EVENT, MANUAL, WEBHOOK, FILE_WATCH
	IsActive        bool       `json:"is_active"`
	Config          string     `json:"config"` // JSON blob, shape keyed by Type
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty"`
	LastFiredAt     *time.Time `json:"last_fired_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// WorkflowInstance is one execution of a workflow definition.
type WorkflowInstance struct {
	ID          int64      `json:"id"`
	PublicID    string     `json:"public_id"`
	WorkflowID  int64      `json:"workflow_id"`
	Status      string     `json:"status"` // PENDING, RUNNING, COMPLETED, CANCELLED
	StartedBy   string     `json:"started_by"`
	Variables   string     `json:"variables"` // JSON blob
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Trigger type constants
const (
	TriggerTypeSchedule  = "SCHEDULE"
	TriggerTypeEvent     = "EVENT"
	TriggerTypeManual    = "MANUAL"
	TriggerTypeWebhook   = "WEBHOOK"
	TriggerTypeFileWatch = "FILE_WATCH"
)

// Workflow category constants
const (
	CategoryApproval      = "APPROVAL"
	CategoryCompliance    = "COMPLIANCE"
	CategoryDocument      = "DOCUMENT"
	CategoryCommunication = "COMMUNICATION"
)

// Workflow instance status constants
const (
	InstanceStatusPending   = "PENDING"
	InstanceStatusRunning   = "RUNNING"
	InstanceStatusCompleted = "COMPLETED"
	InstanceStatusCancelled = "CANCELLED"
)

// SystemActor is the actor recorded for workflow instances started by
// background jobs rather than a user.
const SystemActor = "System"
