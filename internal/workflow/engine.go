package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domwf "github.com/aozorakai/taxflow/internal/domain/workflow"
	"github.com/aozorakai/taxflow/internal/models"
	"github.com/aozorakai/taxflow/internal/repository"
	"github.com/aozorakai/taxflow/pkg/database"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrWorkflowNotFound is returned when no definition matches the given ID
	ErrWorkflowNotFound = errors.New("workflow definition not found")

	// ErrWorkflowInactive is returned when starting an instance of a
	// deactivated definition
	ErrWorkflowInactive = errors.New("workflow definition is inactive")

	// ErrInstanceNotFound is returned when no instance matches the given ID
	ErrInstanceNotFound = errors.New("workflow instance not found")
)

// Engine creates and transitions workflow instances. Terminal states are
// final: no instance leaves COMPLETED or CANCELLED.
type Engine struct {
	db             *database.DB
	definitionRepo *repository.DefinitionRepository
	instanceRepo   *repository.InstanceRepository
	logger         *zap.Logger
}

// NewEngine creates a new workflow instance engine
func NewEngine(
	db *database.DB,
	definitionRepo *repository.DefinitionRepository,
	instanceRepo *repository.InstanceRepository,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:             db,
		definitionRepo: definitionRepo,
		instanceRepo:   instanceRepo,
		logger:         logger,
	}
}

// StartInstance creates exactly one instance of the given workflow and
// moves it to RUNNING. Returns the instance's public ID.
func (e *Engine) StartInstance(ctx context.Context, workflowID int64, variables map[string]interface{}, startedBy string) (string, error) {
	def, err := e.definitionRepo.GetByID(workflowID)
	if err != nil {
		return "", err
	}
	if def == nil {
		return "", fmt.Errorf("%w: %d", ErrWorkflowNotFound, workflowID)
	}
	if !def.IsActive {
		return "", fmt.Errorf("%w: %d", ErrWorkflowInactive, workflowID)
	}

	if variables == nil {
		variables = map[string]interface{}{}
	}
	varsJSON, err := json.Marshal(variables)
	if err != nil {
		return "", fmt.Errorf("failed to encode variables: %w", err)
	}

	instance := &models.WorkflowInstance{
		PublicID:   uuid.NewString(),
		WorkflowID: workflowID,
		Status:     models.InstanceStatusPending,
		StartedBy:  startedBy,
		Variables:  string(varsJSON),
		StartedAt:  time.Now(),
	}

	machine := newInstanceMachine(instance.Status)
	if err := machine.Fire(ctx, domwf.TriggerStart); err != nil {
		return "", err
	}

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		if err := e.instanceRepo.Create(tx, instance); err != nil {
			return err
		}
		return e.instanceRepo.UpdateStatus(tx, instance.ID, string(machine.State()), nil)
	})
	if err != nil {
		return "", err
	}

	e.logger.Info("Workflow instance started",
		zap.String("public_id", instance.PublicID),
		zap.Int64("workflow_id", workflowID),
		zap.String("workflow", def.Name),
		zap.String("started_by", startedBy))

	return instance.PublicID, nil
}

// CompleteInstance moves a running instance to COMPLETED
func (e *Engine) CompleteInstance(ctx context.Context, publicID string) error {
	return e.transition(ctx, publicID, domwf.TriggerComplete)
}

// CancelInstance moves a pending or running instance to CANCELLED
func (e *Engine) CancelInstance(ctx context.Context, publicID string) error {
	return e.transition(ctx, publicID, domwf.TriggerCancel)
}

func (e *Engine) transition(ctx context.Context, publicID string, trigger domwf.Trigger) error {
	instance, err := e.instanceRepo.GetByPublicID(publicID)
	if err != nil {
		return err
	}
	if instance == nil {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, publicID)
	}

	machine := newInstanceMachine(instance.Status)
	if err := machine.Fire(ctx, trigger); err != nil {
		return fmt.Errorf("cannot %s instance %s: %w", trigger, publicID, err)
	}

	newState := domwf.State(string(machine.State()))
	var completedAt *time.Time
	if newState.IsTerminal() {
		now := time.Now()
		completedAt = &now
	}

	if err := e.instanceRepo.UpdateStatus(nil, instance.ID, string(newState), completedAt); err != nil {
		return err
	}

	e.logger.Info("Workflow instance transitioned",
		zap.String("public_id", publicID),
		zap.String("from", instance.Status),
		zap.String("to", string(newState)))

	return nil
}

// newInstanceMachine builds the lifecycle machine for an instance in the
// given status
func newInstanceMachine(status string) domwf.StateMachine {
	b := domwf.NewBuilder()
	b.Configure(domwf.StatePending).
		Permit(domwf.TriggerStart, domwf.StateRunning).
		Permit(domwf.TriggerCancel, domwf.StateCancelled)
	b.Configure(domwf.StateRunning).
		Permit(domwf.TriggerComplete, domwf.StateCompleted).
		Permit(domwf.TriggerCancel, domwf.StateCancelled)
	return b.Build(domwf.State(status))
}
