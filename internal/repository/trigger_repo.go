package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"go.uber.org/zap"
)

// TriggerRepository handles workflow trigger database operations
type TriggerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTriggerRepository creates a new trigger repository
func NewTriggerRepository(db *sql.DB, logger *zap.Logger) *TriggerRepository {
	return &TriggerRepository{
		db:     db,
		logger: logger,
	}
}

const triggerColumns = `id, workflow_id, type, is_active, config, last_evaluated_at, last_fired_at, created_at, updated_at`

func scanTrigger(scanner interface{ Scan(...interface{}) error }) (*models.WorkflowTrigger, error) {
	var trigger models.WorkflowTrigger
	var lastEvaluated, lastFired sql.NullTime

	err := scanner.Scan(
		&trigger.ID,
		&trigger.WorkflowID,
		&trigger.Type,
		&trigger.IsActive,
		&trigger.Config,
		&lastEvaluated,
		&lastFired,
		&trigger.CreatedAt,
		&trigger.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastEvaluated.Valid {
		trigger.LastEvaluatedAt = &lastEvaluated.Time
	}
	if lastFired.Valid {
		trigger.LastFiredAt = &lastFired.Time
	}

	return &trigger, nil
}

// Create creates a new workflow trigger
func (r *TriggerRepository) Create(tx *sql.Tx, trigger *models.WorkflowTrigger) error {
	query := `
		INSERT INTO workflow_triggers (workflow_id, type, is_active, config)
		VALUES (?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.Exec(query, trigger.WorkflowID, trigger.Type, trigger.IsActive, trigger.Config)
	} else {
		result, err = r.db.Exec(query, trigger.WorkflowID, trigger.Type, trigger.IsActive, trigger.Config)
	}

	if err != nil {
		r.logger.Error("Failed to create trigger", zap.Error(err))
		return fmt.Errorf("failed to create trigger: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	trigger.ID = id
	return nil
}

// GetByID retrieves a trigger by ID. Returns nil if not found.
func (r *TriggerRepository) GetByID(id int64) (*models.WorkflowTrigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM workflow_triggers WHERE id = ?`

	trigger, err := scanTrigger(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get trigger", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get trigger: %w", err)
	}

	return trigger, nil
}

// ListActive retrieves all active triggers in load order
func (r *TriggerRepository) ListActive() ([]*models.WorkflowTrigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM workflow_triggers WHERE is_active = 1 ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list active triggers", zap.Error(err))
		return nil, fmt.Errorf("failed to list active triggers: %w", err)
	}
	defer rows.Close()

	var triggers []*models.WorkflowTrigger
	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger: %w", err)
		}
		triggers = append(triggers, trigger)
	}

	return triggers, rows.Err()
}

// GetActiveByWebhookPath finds the active webhook trigger whose configured
// path matches. Returns nil if none matches.
func (r *TriggerRepository) GetActiveByWebhookPath(path string) (*models.WorkflowTrigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM workflow_triggers
		WHERE is_active = 1 AND type = ? AND json_extract(config, '$.path') = ?`

	trigger, err := scanTrigger(r.db.QueryRow(query, models.TriggerTypeWebhook, path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get webhook trigger", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to get webhook trigger: %w", err)
	}

	return trigger, nil
}

// MarkEvaluated records that the evaluator inspected the trigger
func (r *TriggerRepository) MarkEvaluated(id int64, at time.Time) error {
	query := `UPDATE workflow_triggers SET last_evaluated_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	if _, err := r.db.Exec(query, at, id); err != nil {
		r.logger.Error("Failed to mark trigger evaluated", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark trigger evaluated: %w", err)
	}
	return nil
}

// MarkFired records the watermark for a fired scheduled trigger
func (r *TriggerRepository) MarkFired(tx *sql.Tx, id int64, at time.Time) error {
	query := `UPDATE workflow_triggers SET last_fired_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, at, id)
	} else {
		_, err = r.db.Exec(query, at, id)
	}

	if err != nil {
		r.logger.Error("Failed to mark trigger fired", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark trigger fired: %w", err)
	}
	return nil
}
