package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Runner drives a Job on a fixed interval. RunNow allows an out-of-band
// pass (e.g. from an admin endpoint); concurrent passes of the same job
// are coalesced so a job never overlaps itself.
type Runner struct {
	job      Job
	interval time.Duration
	logger   *zap.Logger

	sf singleflight.Group

	// State
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	runs      uint64
	failures  uint64
}

// NewRunner creates a runner for the given job
func NewRunner(job Job, interval time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		job:      job,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the run loop
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("runner %s is already running", r.job.Name())
	}
	if r.interval <= 0 {
		return fmt.Errorf("runner %s has invalid interval %v", r.job.Name(), r.interval)
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.isRunning = true

	r.logger.Info("Job runner started",
		zap.String("job", r.job.Name()),
		zap.Duration("interval", r.interval))

	go r.runLoop()

	return nil
}

// Stop cancels the run loop and waits for an in-flight pass to finish
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = false
	r.cancel()
	done := r.done
	r.mu.Unlock()

	<-done
	r.logger.Info("Job runner stopped", zap.String("job", r.job.Name()))
}

// Name returns the wrapped job's name
func (r *Runner) Name() string {
	return r.job.Name()
}

// RunNow executes one pass immediately. If a pass is already in flight,
// the call joins it instead of starting a second one.
func (r *Runner) RunNow(ctx context.Context) error {
	_, err, _ := r.sf.Do(r.job.Name(), func() (interface{}, error) {
		return nil, r.runOnce(ctx)
	})
	return err
}

// Stats returns how many passes have run and how many of them failed
func (r *Runner) Stats() (runs, failures uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runs, r.failures
}

func (r *Runner) runLoop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			_, _, _ = r.sf.Do(r.job.Name(), func() (interface{}, error) {
				return nil, r.runOnce(r.ctx)
			})
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) error {
	start := time.Now()
	err := r.job.Execute(ctx)
	elapsed := time.Since(start)

	r.mu.Lock()
	r.runs++
	if err != nil {
		r.failures++
	}
	r.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		r.logger.Error("Job pass failed",
			zap.String("job", r.job.Name()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return err
	}

	r.logger.Debug("Job pass completed",
		zap.String("job", r.job.Name()),
		zap.Duration("elapsed", elapsed))
	return nil
}
