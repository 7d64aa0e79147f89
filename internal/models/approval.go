package models

import "time"

// Role identifies an approver authority level. Order matters: higher
// roles sit later in an approval chain and higher in the escalation
// ladder.
type Role string

const (
	RoleAssociate Role = "ASSOCIATE"
	RoleManager   Role = "MANAGER"
	RoleDirector  Role = "DIRECTOR"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// PaymentApprovalRequest tracks a payment through its ordered approval
// chain. Status becomes APPROVED only after every role in the chain has
// approved in order; a single rejection at any step is final.
type PaymentApprovalRequest struct {
	ID          int64      `json:"id"`
	PublicID    string     `json:"public_id"`
	PaymentRef  string     `json:"payment_ref"`
	Amount      float64    `json:"amount"`
	RequestedBy string     `json:"requested_by"`
	Chain       string     `json:"chain"` // JSON array of roles, in approval order
	CurrentStep int        `json:"current_step"`
	Status      string     `json:"status"` // PENDING, APPROVED, REJECTED
	Comments    string     `json:"comments"` // JSON array of ApprovalComment
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ApprovalComment is one entry in a request's comment audit list.
type ApprovalComment struct {
	ApproverID string    `json:"approver_id"`
	Role       Role      `json:"role"`
	Action     string    `json:"action"` // APPROVED, REJECTED
	Comment    string    `json:"comment,omitempty"`
	At         time.Time `json:"at"`
}

// Approval status constants
const (
	ApprovalStatusPending  = "PENDING"
	ApprovalStatusApproved = "APPROVED"
	ApprovalStatusRejected = "REJECTED"
)
