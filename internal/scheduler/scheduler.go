// Package scheduler runs periodic jobs, each on its own ticker.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrLockHeld is returned by a Locker when another instance owns the job lock.
var ErrLockHeld = errors.New("job lock held by another instance")

type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Locker guards a job cycle across service instances. Release must be safe to call after the
// lock expired.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
	// TTL is how long an acquired lock stays valid without being released.
	TTL() time.Duration
}

type Runner struct {
	jobs   []Job
	locker Locker

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner returns a Runner for jobs. locker may be nil.
func NewRunner(locker Locker, jobs ...Job) *Runner {
	return &Runner{jobs: jobs, locker: locker}
}

// Start launches one worker per job. Each job runs immediately and then every Interval.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.worker(ctx, job)
	}
	log.WithField("jobs", len(r.jobs)).Info("Scheduler started")
}

// Stop cancels in-flight cycles and waits for every worker to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	r.cancel()
	r.wg.Wait()
	r.running = false
	log.Info("Scheduler stopped")
}

func (r *Runner) worker(ctx context.Context, job Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	r.runCycle(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runCycle(ctx, job)
		}
	}
}

// cycleTimeout bounds a cycle by its interval and, with a locker, by the lock TTL so no other
// instance can take the lock while the cycle still runs.
func (r *Runner) cycleTimeout(job Job) time.Duration {
	timeout := job.Interval
	if r.locker != nil {
		if ttl := r.locker.TTL(); ttl > 0 && ttl < timeout {
			timeout = ttl
		}
	}
	return timeout
}

// runCycle runs job once. Cycles of the same job never overlap.
func (r *Runner) runCycle(ctx context.Context, job Job) {
	cycleCtx, cancel := context.WithTimeout(ctx, r.cycleTimeout(job))
	defer cancel()

	logCtx := log.WithField("job", job.Name)

	if r.locker != nil {
		release, err := r.locker.Acquire(cycleCtx, job.Name)
		if errors.Is(err, ErrLockHeld) {
			logCtx.Debug("Skipping cycle, lock held elsewhere")
			return
		}
		if err != nil {
			logCtx.WithError(err).Warn("Failed to acquire job lock, skipping cycle")
			return
		}
		defer release()
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logCtx.WithField("panic", p).Error("Job cycle panicked")
		}
	}()

	if err := job.Run(cycleCtx); err != nil {
		logCtx.WithError(err).WithField("duration", time.Since(start)).Error("Job cycle failed")
		return
	}
	logCtx.WithField("duration", time.Since(start)).Debug("Job cycle finished")
}
