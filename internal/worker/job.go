package worker

import "context"

// Job is one unit of periodic background work. Execute runs a single pass
// and must honor ctx cancellation between items.
type Job interface {
	Execute(ctx context.Context) error
	Name() string
}
