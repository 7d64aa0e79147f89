package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"go.uber.org/zap"
)

// FilingRepository handles compliance filing database operations
type FilingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFilingRepository creates a new filing repository
func NewFilingRepository(db *sql.DB, logger *zap.Logger) *FilingRepository {
	return &FilingRepository{
		db:     db,
		logger: logger,
	}
}

const filingColumns = `id, filing_ref, client_id, filing_type, amount, due_date, status, penalty_amount, filed_at, archived_at, created_at, updated_at`

func scanFiling(scanner interface{ Scan(...interface{}) error }) (*models.ComplianceFiling, error) {
	var filing models.ComplianceFiling
	var filedAt, archivedAt sql.NullTime

	err := scanner.Scan(
		&filing.ID,
		&filing.FilingRef,
		&filing.ClientID,
		&filing.FilingType,
		&filing.Amount,
		&filing.DueDate,
		&filing.Status,
		&filing.PenaltyAmount,
		&filedAt,
		&archivedAt,
		&filing.CreatedAt,
		&filing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if filedAt.Valid {
		filing.FiledAt = &filedAt.Time
	}
	if archivedAt.Valid {
		filing.ArchivedAt = &archivedAt.Time
	}

	return &filing, nil
}

// Create creates a new compliance filing
func (r *FilingRepository) Create(tx *sql.Tx, filing *models.ComplianceFiling) error {
	query := `
		INSERT INTO compliance_filings (filing_ref, client_id, filing_type, amount, due_date, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.Exec(query, filing.FilingRef, filing.ClientID, filing.FilingType,
			filing.Amount, filing.DueDate, filing.Status)
	} else {
		result, err = r.db.Exec(query, filing.FilingRef, filing.ClientID, filing.FilingType,
			filing.Amount, filing.DueDate, filing.Status)
	}

	if err != nil {
		r.logger.Error("Failed to create filing", zap.Error(err))
		return fmt.Errorf("failed to create filing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	filing.ID = id
	return nil
}

// GetByID retrieves a filing by ID. Returns nil if not found.
func (r *FilingRepository) GetByID(id int64) (*models.ComplianceFiling, error) {
	query := `SELECT ` + filingColumns + ` FROM compliance_filings WHERE id = ?`

	filing, err := scanFiling(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get filing", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get filing: %w", err)
	}

	return filing, nil
}

// ListPending retrieves all filings still awaiting submission, in load order
func (r *FilingRepository) ListPending() ([]*models.ComplianceFiling, error) {
	query := `SELECT ` + filingColumns + ` FROM compliance_filings WHERE status = ? ORDER BY id`

	rows, err := r.db.Query(query, models.FilingStatusPending)
	if err != nil {
		r.logger.Error("Failed to list pending filings", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending filings: %w", err)
	}
	defer rows.Close()

	var filings []*models.ComplianceFiling
	for rows.Next() {
		filing, err := scanFiling(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan filing: %w", err)
		}
		filings = append(filings, filing)
	}

	return filings, rows.Err()
}

// MarkOverdue transitions a filing to OVERDUE and records the computed penalty
func (r *FilingRepository) MarkOverdue(tx *sql.Tx, id int64, penalty float64) error {
	query := `UPDATE compliance_filings
		SET status = ?, penalty_amount = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, models.FilingStatusOverdue, penalty, id, models.FilingStatusPending)
	} else {
		_, err = r.db.Exec(query, models.FilingStatusOverdue, penalty, id, models.FilingStatusPending)
	}

	if err != nil {
		r.logger.Error("Failed to mark filing overdue", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark filing overdue: %w", err)
	}
	return nil
}

// MarkFiled transitions a filing to FILED. Only PENDING and OVERDUE
// filings can be filed; a settled filing is left untouched.
func (r *FilingRepository) MarkFiled(tx *sql.Tx, id int64, filedAt time.Time) error {
	query := `UPDATE compliance_filings
		SET status = ?, filed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (?, ?)`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, models.FilingStatusFiled, filedAt, id, models.FilingStatusPending, models.FilingStatusOverdue)
	} else {
		_, err = r.db.Exec(query, models.FilingStatusFiled, filedAt, id, models.FilingStatusPending, models.FilingStatusOverdue)
	}

	if err != nil {
		r.logger.Error("Failed to mark filing filed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark filing filed: %w", err)
	}
	return nil
}

// ListSettledFiledBefore returns unarchived FILED/APPROVED filings whose
// filing time is older than cutoff
func (r *FilingRepository) ListSettledFiledBefore(cutoff time.Time) ([]*models.ComplianceFiling, error) {
	query := `SELECT ` + filingColumns + ` FROM compliance_filings
		WHERE status IN (?, ?)
		AND archived_at IS NULL
		AND filed_at IS NOT NULL AND filed_at < ?
		ORDER BY id`

	rows, err := r.db.Query(query, models.FilingStatusFiled, models.FilingStatusApproved, cutoff)
	if err != nil {
		r.logger.Error("Failed to list settled filings", zap.Error(err))
		return nil, fmt.Errorf("failed to list settled filings: %w", err)
	}
	defer rows.Close()

	var filings []*models.ComplianceFiling
	for rows.Next() {
		filing, err := scanFiling(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan filing: %w", err)
		}
		filings = append(filings, filing)
	}

	return filings, rows.Err()
}

// Archive sets the archival timestamp without touching domain timestamps
func (r *FilingRepository) Archive(id int64, archivedAt time.Time) error {
	query := `UPDATE compliance_filings SET archived_at = ? WHERE id = ? AND archived_at IS NULL`

	if _, err := r.db.Exec(query, archivedAt, id); err != nil {
		r.logger.Error("Failed to archive filing", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to archive filing: %w", err)
	}
	return nil
}
