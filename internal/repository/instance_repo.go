package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"go.uber.org/zap"
)

// InstanceRepository handles workflow instance database operations
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) *InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `id, public_id, workflow_id, status, started_by, variables, started_at, completed_at, archived_at, created_at, updated_at`

func scanInstance(scanner interface{ Scan(...interface{}) error }) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance
	var completedAt, archivedAt sql.NullTime

	err := scanner.Scan(
		&instance.ID,
		&instance.PublicID,
		&instance.WorkflowID,
		&instance.Status,
		&instance.StartedBy,
		&instance.Variables,
		&instance.StartedAt,
		&completedAt,
		&archivedAt,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}
	if archivedAt.Valid {
		instance.ArchivedAt = &archivedAt.Time
	}

	return &instance, nil
}

// Create creates a new workflow instance
func (r *InstanceRepository) Create(tx *sql.Tx, instance *models.WorkflowInstance) error {
	query := `
		INSERT INTO workflow_instances (public_id, workflow_id, status, started_by, variables, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.Exec(query, instance.PublicID, instance.WorkflowID, instance.Status,
			instance.StartedBy, instance.Variables, instance.StartedAt)
	} else {
		result, err = r.db.Exec(query, instance.PublicID, instance.WorkflowID, instance.Status,
			instance.StartedBy, instance.Variables, instance.StartedAt)
	}

	if err != nil {
		r.logger.Error("Failed to create instance", zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	instance.ID = id
	return nil
}

// GetByID retrieves a workflow instance by ID. Returns nil if not found.
func (r *InstanceRepository) GetByID(id int64) (*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = ?`

	instance, err := scanInstance(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// GetByPublicID retrieves a workflow instance by public ID. Returns nil if not found.
func (r *InstanceRepository) GetByPublicID(publicID string) (*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE public_id = ?`

	instance, err := scanInstance(r.db.QueryRow(query, publicID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance", zap.String("public_id", publicID), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// UpdateStatus updates an instance's status, recording completion time for
// terminal statuses
func (r *InstanceRepository) UpdateStatus(tx *sql.Tx, id int64, status string, completedAt *time.Time) error {
	query := `UPDATE workflow_instances SET status = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, status, completedAt, id)
	} else {
		_, err = r.db.Exec(query, status, completedAt, id)
	}

	if err != nil {
		r.logger.Error("Failed to update instance status",
			zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update instance status: %w", err)
	}
	return nil
}

// ListTerminalCompletedBefore returns unarchived instances in a terminal
// status whose completion time is older than cutoff
func (r *InstanceRepository) ListTerminalCompletedBefore(cutoff time.Time) ([]*models.WorkflowInstance, error) {
	statuses := []string{models.InstanceStatusCompleted, models.InstanceStatusCancelled}
	placeholders := strings.Repeat("?,", len(statuses)-1) + "?"

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE status IN (` + placeholders + `)
		AND archived_at IS NULL
		AND completed_at IS NOT NULL AND completed_at < ?
		ORDER BY id`

	args := make([]interface{}, 0, len(statuses)+1)
	for _, s := range statuses {
		args = append(args, s)
	}
	args = append(args, cutoff)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list terminal instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list terminal instances: %w", err)
	}
	defer rows.Close()

	var instances []*models.WorkflowInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}

	return instances, rows.Err()
}

// Archive sets the archival timestamp without touching domain timestamps
func (r *InstanceRepository) Archive(id int64, archivedAt time.Time) error {
	query := `UPDATE workflow_instances SET archived_at = ? WHERE id = ? AND archived_at IS NULL`

	if _, err := r.db.Exec(query, archivedAt, id); err != nil {
		r.logger.Error("Failed to archive instance", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to archive instance: %w", err)
	}
	return nil
}
