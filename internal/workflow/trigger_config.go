package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/aozorakai/taxflow/internal/models"
)

// TriggerConfig is the decoded form of a trigger's configuration blob.
// The shape is keyed by the trigger type and validated when the trigger
// is loaded, not when it is evaluated.
type TriggerConfig struct {
	// Schedule expression, required for SCHEDULE triggers
	Schedule string `json:"schedule,omitempty"`
	// Event name, required for EVENT triggers
	Event string `json:"event,omitempty"`
	// Webhook path, required for WEBHOOK triggers
	Path string `json:"path,omitempty"`
	// Watched file pattern, required for FILE_WATCH triggers
	Pattern string `json:"pattern,omitempty"`
	// Variables passed to the started workflow instance
	Variables map[string]interface{} `json:"variables,omitempty"`

	// parsed schedule, populated for SCHEDULE triggers
	spec ScheduleSpec
}

// Spec returns the parsed schedule for a SCHEDULE trigger
func (c *TriggerConfig) Spec() ScheduleSpec {
	return c.spec
}

// DecodeTriggerConfig decodes and validates a trigger configuration blob
// against its trigger type.
func DecodeTriggerConfig(triggerType, raw string) (*TriggerConfig, error) {
	var cfg TriggerConfig
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode trigger config: %w", err)
		}
	}

	switch triggerType {
	case models.TriggerTypeSchedule:
		if cfg.Schedule == "" {
			return nil, fmt.Errorf("schedule trigger requires a schedule expression")
		}
		spec, err := ParseSchedule(cfg.Schedule)
		if err != nil {
			return nil, err
		}
		cfg.spec = spec

	case models.TriggerTypeEvent:
		if cfg.Event == "" {
			return nil, fmt.Errorf("event trigger requires an event name")
		}

	case models.TriggerTypeWebhook:
		if cfg.Path == "" {
			return nil, fmt.Errorf("webhook trigger requires a path")
		}

	case models.TriggerTypeFileWatch:
		if cfg.Pattern == "" {
			return nil, fmt.Errorf("file watch trigger requires a pattern")
		}

	case models.TriggerTypeManual:
		// no configuration required

	default:
		return nil, fmt.Errorf("unknown trigger type %q", triggerType)
	}

	return &cfg, nil
}
