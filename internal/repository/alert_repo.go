package repository

import (
	"database/sql"
	"fmt"

	"github.com/aozorakai/taxflow/internal/models"
	"go.uber.org/zap"
)

// AlertRepository is the ledger of compliance deadline alerts already sent.
// The UNIQUE(filing_id, threshold_days) constraint is the de-duplication
// guard: a threshold fires at most once per filing across monitor runs.
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// Record inserts a ledger row for the (filing, threshold) pair. Returns
// false without error when the pair was already recorded.
func (r *AlertRepository) Record(tx *sql.Tx, alert *models.ComplianceAlert) (bool, error) {
	query := `
		INSERT OR IGNORE INTO compliance_alerts (filing_id, threshold_days, penalty_amount, sent_at)
		VALUES (?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.Exec(query, alert.FilingID, alert.ThresholdDays, alert.PenaltyAmount, alert.SentAt)
	} else {
		result, err = r.db.Exec(query, alert.FilingID, alert.ThresholdDays, alert.PenaltyAmount, alert.SentAt)
	}

	if err != nil {
		r.logger.Error("Failed to record compliance alert",
			zap.Int64("filing_id", alert.FilingID),
			zap.Int("threshold_days", alert.ThresholdDays),
			zap.Error(err))
		return false, fmt.Errorf("failed to record compliance alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected > 0 {
		id, err := result.LastInsertId()
		if err == nil {
			alert.ID = id
		}
	}

	return affected > 0, nil
}

// Exists reports whether the (filing, threshold) pair has already fired
func (r *AlertRepository) Exists(filingID int64, thresholdDays int) (bool, error) {
	query := `SELECT COUNT(1) FROM compliance_alerts WHERE filing_id = ? AND threshold_days = ?`

	var count int
	if err := r.db.QueryRow(query, filingID, thresholdDays).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check compliance alert: %w", err)
	}
	return count > 0, nil
}

// ListByFiling returns all alerts recorded for a filing
func (r *AlertRepository) ListByFiling(filingID int64) ([]*models.ComplianceAlert, error) {
	query := `SELECT id, filing_id, threshold_days, penalty_amount, sent_at
		FROM compliance_alerts WHERE filing_id = ? ORDER BY id`

	rows, err := r.db.Query(query, filingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list compliance alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.ComplianceAlert
	for rows.Next() {
		var alert models.ComplianceAlert
		if err := rows.Scan(&alert.ID, &alert.FilingID, &alert.ThresholdDays, &alert.PenaltyAmount, &alert.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan compliance alert: %w", err)
		}
		alerts = append(alerts, &alert)
	}

	return alerts, rows.Err()
}
