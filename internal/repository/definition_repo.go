package repository

import (
	"database/sql"
	"fmt"

	"github.com/aozorakai/taxflow/internal/models"
	"go.uber.org/zap"
)

// DefinitionRepository handles workflow definition database operations
type DefinitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sql.DB, logger *zap.Logger) *DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new workflow definition
func (r *DefinitionRepository) Create(tx *sql.Tx, def *models.WorkflowDefinition) error {
	query := `
		INSERT INTO workflow_definitions (name, category, trigger_type, actions, parameters, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.Exec(query, def.Name, def.Category, def.TriggerType, def.Actions, def.ParamSchema, def.IsActive)
	} else {
		result, err = r.db.Exec(query, def.Name, def.Category, def.TriggerType, def.Actions, def.ParamSchema, def.IsActive)
	}

	if err != nil {
		r.logger.Error("Failed to create workflow definition", zap.Error(err))
		return fmt.Errorf("failed to create workflow definition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	def.ID = id
	return nil
}

// GetByID retrieves a workflow definition by ID. Returns nil if not found.
func (r *DefinitionRepository) GetByID(id int64) (*models.WorkflowDefinition, error) {
	query := `
		SELECT id, name, category, trigger_type, actions, parameters, is_active, created_at, updated_at
		FROM workflow_definitions
		WHERE id = ?
	`

	var def models.WorkflowDefinition
	err := r.db.QueryRow(query, id).Scan(
		&def.ID,
		&def.Name,
		&def.Category,
		&def.TriggerType,
		&def.Actions,
		&def.ParamSchema,
		&def.IsActive,
		&def.CreatedAt,
		&def.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow definition", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow definition: %w", err)
	}

	return &def, nil
}

// ListActive retrieves all active workflow definitions
func (r *DefinitionRepository) ListActive() ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT id, name, category, trigger_type, actions, parameters, is_active, created_at, updated_at
		FROM workflow_definitions
		WHERE is_active = 1
		ORDER BY id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list workflow definitions", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow definitions: %w", err)
	}
	defer rows.Close()

	var defs []*models.WorkflowDefinition
	for rows.Next() {
		var def models.WorkflowDefinition
		if err := rows.Scan(
			&def.ID,
			&def.Name,
			&def.Category,
			&def.TriggerType,
			&def.Actions,
			&def.ParamSchema,
			&def.IsActive,
			&def.CreatedAt,
			&def.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}
		defs = append(defs, &def)
	}

	return defs, rows.Err()
}
