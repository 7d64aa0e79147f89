package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"github.com/aozorakai/taxflow/internal/repository"
	"go.uber.org/zap"
)

// Evaluator is the periodic job that scans active triggers and starts
// workflow instances for those that are due. Each trigger is evaluated
// independently: one bad trigger never aborts the rest of the pass.
type Evaluator struct {
	triggerRepo *repository.TriggerRepository
	engine      *Engine
	window      time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewEvaluator creates a trigger evaluator. window is how long after its
// configured time a scheduled trigger remains due (the firing window).
func NewEvaluator(triggerRepo *repository.TriggerRepository, engine *Engine, window time.Duration, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		triggerRepo: triggerRepo,
		engine:      engine,
		window:      window,
		logger:      logger,
		now:         time.Now,
	}
}

// Name returns the job name
func (e *Evaluator) Name() string {
	return "trigger-evaluator"
}

// Execute runs one evaluation pass over all active triggers
func (e *Evaluator) Execute(ctx context.Context) error {
	triggers, err := e.triggerRepo.ListActive()
	if err != nil {
		return fmt.Errorf("failed to load active triggers: %w", err)
	}

	now := e.now()
	evaluated := 0
	started := 0
	failed := 0

	for _, trigger := range triggers {
		if err := ctx.Err(); err != nil {
			return err
		}

		evaluated++
		fired, err := e.evaluateTrigger(ctx, trigger, now)
		if err != nil {
			e.logger.Warn("Trigger evaluation failed",
				zap.Int64("trigger_id", trigger.ID),
				zap.String("type", trigger.Type),
				zap.Error(err))
			failed++
			continue
		}
		if fired {
			started++
		}

		if err := e.triggerRepo.MarkEvaluated(trigger.ID, now); err != nil {
			e.logger.Warn("Failed to record trigger evaluation",
				zap.Int64("trigger_id", trigger.ID),
				zap.Error(err))
		}
	}

	e.logger.Info("Trigger evaluation completed",
		zap.Int("evaluated", evaluated),
		zap.Int("started", started),
		zap.Int("failed", failed))

	return nil
}

// evaluateTrigger decides one trigger. Only SCHEDULE triggers are polled:
// EVENT triggers belong to the event-ingestion boundary and MANUAL,
// WEBHOOK and FILE_WATCH triggers are started by other entry points.
func (e *Evaluator) evaluateTrigger(ctx context.Context, trigger *models.WorkflowTrigger, now time.Time) (bool, error) {
	switch trigger.Type {
	case models.TriggerTypeSchedule:
		return e.evaluateSchedule(ctx, trigger, now)
	case models.TriggerTypeEvent,
		models.TriggerTypeManual,
		models.TriggerTypeWebhook,
		models.TriggerTypeFileWatch:
		return false, nil
	default:
		return false, fmt.Errorf("unknown trigger type %q", trigger.Type)
	}
}

func (e *Evaluator) evaluateSchedule(ctx context.Context, trigger *models.WorkflowTrigger, now time.Time) (bool, error) {
	cfg, err := DecodeTriggerConfig(trigger.Type, trigger.Config)
	if err != nil {
		return false, err
	}

	windowStart, due := cfg.Spec().DueAt(now, e.window, trigger.LastFiredAt)
	if !due {
		return false, nil
	}

	// Advance the watermark before starting the instance so a crash
	// mid-start cannot double-fire the same window on the next tick
	if err := e.triggerRepo.MarkFired(nil, trigger.ID, windowStart); err != nil {
		return false, err
	}

	publicID, err := e.engine.StartInstance(ctx, trigger.WorkflowID, cfg.Variables, models.SystemActor)
	if err != nil {
		return false, fmt.Errorf("failed to start workflow %d: %w", trigger.WorkflowID, err)
	}

	e.logger.Info("Scheduled trigger fired",
		zap.Int64("trigger_id", trigger.ID),
		zap.Int64("workflow_id", trigger.WorkflowID),
		zap.String("instance_id", publicID),
		zap.Time("window_start", windowStart))

	return true, nil
}

// StartFromWebhook starts the workflow behind the active webhook trigger
// registered at path. Returns the new instance's public ID.
func (e *Evaluator) StartFromWebhook(ctx context.Context, path string, variables map[string]interface{}, startedBy string) (string, error) {
	trigger, err := e.triggerRepo.GetActiveByWebhookPath(path)
	if err != nil {
		return "", err
	}
	if trigger == nil {
		return "", fmt.Errorf("no active webhook trigger registered at %q", path)
	}

	cfg, err := DecodeTriggerConfig(trigger.Type, trigger.Config)
	if err != nil {
		return "", err
	}

	merged := make(map[string]interface{}, len(cfg.Variables)+len(variables))
	for k, v := range cfg.Variables {
		merged[k] = v
	}
	for k, v := range variables {
		merged[k] = v
	}

	return e.engine.StartInstance(ctx, trigger.WorkflowID, merged, startedBy)
}
