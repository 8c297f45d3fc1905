// Package scheduler runs periodic background jobs such as recurring chore
// generation, backups and assignment expiry.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one periodic task. A zero or negative Interval disables it.
type Job struct {
	Name       string
	Interval   time.Duration
	RunAtStart bool
	Run        func(ctx context.Context) error
}

// Runner drives a fixed set of jobs, each on its own ticker.
type Runner struct {
	jobs   []Job
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(logger *slog.Logger, jobs ...Job) *Runner {
	return &Runner{jobs: jobs, logger: logger.With("component", "scheduler")}
}

// Start launches every enabled job. Calling Start twice without Stop is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)

	for _, job := range r.jobs {
		if job.Interval <= 0 || job.Run == nil {
			r.logger.Info("job disabled", "job", job.Name)
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()
	r.logger.Info("job scheduled", "job", job.Name, "interval", job.Interval)

	if job.RunAtStart {
		r.runOnce(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx, job)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("job panicked", "job", job.Name, "panic", rec)
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("job failed", "job", job.Name, "error", err, "duration", time.Since(start))
		return
	}
	r.logger.Debug("job finished", "job", job.Name, "duration", time.Since(start))
}

// Stop cancels all jobs and waits for in-flight runs to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}
