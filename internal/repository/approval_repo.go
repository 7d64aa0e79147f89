package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"go.uber.org/zap"
)

// ApprovalRepository handles payment approval request database operations
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) *ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

const approvalColumns = `id, public_id, payment_ref, amount, requested_by, chain, current_step, status, comments, completed_at, archived_at, created_at, updated_at`

func scanApproval(scanner interface{ Scan(...interface{}) error }) (*models.PaymentApprovalRequest, error) {
	var req models.PaymentApprovalRequest
	var completedAt, archivedAt sql.NullTime

	err := scanner.Scan(
		&req.ID,
		&req.PublicID,
		&req.PaymentRef,
		&req.Amount,
		&req.RequestedBy,
		&req.Chain,
		&req.CurrentStep,
		&req.Status,
		&req.Comments,
		&completedAt,
		&archivedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		req.CompletedAt = &completedAt.Time
	}
	if archivedAt.Valid {
		req.ArchivedAt = &archivedAt.Time
	}

	return &req, nil
}

// Create creates a new payment approval request
func (r *ApprovalRepository) Create(tx *sql.Tx, req *models.PaymentApprovalRequest) error {
	query := `
		INSERT INTO payment_approval_requests
			(public_id, payment_ref, amount, requested_by, chain, current_step, status, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.Exec(query, req.PublicID, req.PaymentRef, req.Amount, req.RequestedBy,
			req.Chain, req.CurrentStep, req.Status, req.Comments)
	} else {
		result, err = r.db.Exec(query, req.PublicID, req.PaymentRef, req.Amount, req.RequestedBy,
			req.Chain, req.CurrentStep, req.Status, req.Comments)
	}

	if err != nil {
		r.logger.Error("Failed to create approval request", zap.Error(err))
		return fmt.Errorf("failed to create approval request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// GetByPublicID retrieves an approval request by public ID. Returns nil if not found.
func (r *ApprovalRepository) GetByPublicID(publicID string) (*models.PaymentApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM payment_approval_requests WHERE public_id = ?`

	req, err := scanApproval(r.db.QueryRow(query, publicID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval request", zap.String("public_id", publicID), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}

	return req, nil
}

// UpdateProgress persists step advancement, status and the comment audit list
func (r *ApprovalRepository) UpdateProgress(tx *sql.Tx, id int64, currentStep int, status, comments string, completedAt *time.Time) error {
	query := `UPDATE payment_approval_requests
		SET current_step = ?, status = ?, comments = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, currentStep, status, comments, completedAt, id)
	} else {
		_, err = r.db.Exec(query, currentStep, status, comments, completedAt, id)
	}

	if err != nil {
		r.logger.Error("Failed to update approval request",
			zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update approval request: %w", err)
	}
	return nil
}

// ListTerminalCompletedBefore returns unarchived terminal requests completed
// before cutoff
func (r *ApprovalRepository) ListTerminalCompletedBefore(cutoff time.Time) ([]*models.PaymentApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM payment_approval_requests
		WHERE status IN (?, ?)
		AND archived_at IS NULL
		AND completed_at IS NOT NULL AND completed_at < ?
		ORDER BY id`

	rows, err := r.db.Query(query, models.ApprovalStatusApproved, models.ApprovalStatusRejected, cutoff)
	if err != nil {
		r.logger.Error("Failed to list terminal approval requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list terminal approval requests: %w", err)
	}
	defer rows.Close()

	var reqs []*models.PaymentApprovalRequest
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

// Archive sets the archival timestamp without touching completion time
func (r *ApprovalRepository) Archive(id int64, archivedAt time.Time) error {
	query := `UPDATE payment_approval_requests SET archived_at = ? WHERE id = ? AND archived_at IS NULL`

	if _, err := r.db.Exec(query, archivedAt, id); err != nil {
		r.logger.Error("Failed to archive approval request", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to archive approval request: %w", err)
	}
	return nil
}
