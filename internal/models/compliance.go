package models

import "time"

// ComplianceFiling is a tax filing with a statutory deadline. The only
// automatic transition is PENDING to OVERDUE; FILED and APPROVED are set
// by human action through the portal.
type ComplianceFiling struct {
	ID            int64      `json:"id"`
	FilingRef     string     `json:"filing_ref"`
	ClientID      int64      `json:"client_id"`
	FilingType    string     `json:"filing_type"`
	Amount        float64    `json:"amount"`
	DueDate       time.Time  `json:"due_date"`
	Status        string     `json:"status"` // PENDING, FILED, APPROVED, OVERDUE
	PenaltyAmount float64    `json:"penalty_amount"`
	FiledAt       *time.Time `json:"filed_at,omitempty"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ComplianceAlert is the ledger of deadline alerts already sent. One row
// per (filing, threshold) keeps a threshold from firing twice across runs.
type ComplianceAlert struct {
	ID            int64     `json:"id"`
	FilingID      int64     `json:"filing_id"`
	ThresholdDays int       `json:"threshold_days"` // 30, 14, 7, 1; 0 marks the overdue alert
	PenaltyAmount float64   `json:"penalty_amount"`
	SentAt        time.Time `json:"sent_at"`
}

// Filing status constants
const (
	FilingStatusPending  = "PENDING"
	FilingStatusFiled    = "FILED"
	FilingStatusApproved = "APPROVED"
	FilingStatusOverdue  = "OVERDUE"
)

// OverdueThreshold marks the overdue alert in the compliance alert ledger.
const OverdueThreshold = 0
