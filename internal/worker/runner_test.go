package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingJob struct {
	name  string
	count atomic.Int64
	err   error
	block chan struct{} // when set, Execute waits until closed
}

func (j *countingJob) Execute(ctx context.Context) error {
	j.count.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func (j *countingJob) Name() string {
	if j.name != "" {
		return j.name
	}
	return "counting-job"
}

func TestRunnerExecutesOnInterval(t *testing.T) {
	job := &countingJob{}
	r := NewRunner(job, 10*time.Millisecond, zap.NewNop())

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	assert.Eventually(t, func() bool {
		return job.count.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRunnerRejectsDoubleStart(t *testing.T) {
	r := NewRunner(&countingJob{}, time.Hour, zap.NewNop())

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	assert.Error(t, r.Start(context.Background()))
}

func TestRunnerRejectsInvalidInterval(t *testing.T) {
	r := NewRunner(&countingJob{}, 0, zap.NewNop())
	assert.Error(t, r.Start(context.Background()))
}

func TestRunnerStopIsIdempotent(t *testing.T) {
	r := NewRunner(&countingJob{}, time.Hour, zap.NewNop())
	require.NoError(t, r.Start(context.Background()))

	r.Stop()
	r.Stop()
}

func TestRunNowCoalescesConcurrentPasses(t *testing.T) {
	job := &countingJob{block: make(chan struct{})}
	r := NewRunner(job, time.Hour, zap.NewNop())

	var started, wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		started.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			_ = r.RunNow(context.Background())
		}()
	}

	// Let every caller pile onto the in-flight pass before releasing it
	started.Wait()
	assert.Eventually(t, func() bool {
		return job.count.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	close(job.block)
	wg.Wait()

	assert.Equal(t, int64(1), job.count.Load())
}

func TestRunnerCountsFailures(t *testing.T) {
	job := &countingJob{err: errors.New("boom")}
	r := NewRunner(job, time.Hour, zap.NewNop())

	assert.Error(t, r.RunNow(context.Background()))
	assert.Error(t, r.RunNow(context.Background()))

	runs, failures := r.Stats()
	assert.Equal(t, uint64(2), runs)
	assert.Equal(t, uint64(2), failures)
}

func TestManagerStartsAndStopsInOrder(t *testing.T) {
	logger := zap.NewNop()
	m := NewManager(logger)

	first := NewRunner(&countingJob{name: "first"}, time.Hour, logger)
	second := NewRunner(&countingJob{name: "second"}, time.Hour, logger)
	m.Register(first)
	m.Register(second)

	require.Equal(t, 2, m.Count())
	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()

	// After StopAll both runners accept a fresh Start
	require.NoError(t, first.Start(context.Background()))
	first.Stop()
}
