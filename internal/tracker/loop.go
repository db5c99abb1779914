package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// refreshLoop wraps a gocron scheduler around the recurring background
// refresh. The loop is cooperative: every tick checks the active flag first,
// so a stop takes effect within one period and a tick queued during shutdown
// becomes a no-op.
type refreshLoop struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	jobID     uuid.UUID
	active    atomic.Bool
	tick      func()
}

func newRefreshLoop(tick func()) *refreshLoop {
	return &refreshLoop{tick: tick}
}

// start begins ticking at interval. Idempotent while running.
func (l *refreshLoop) start(interval time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active.Load() {
		return nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create refresh scheduler: %w", err)
	}

	job, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(l.safeTick),
		gocron.WithName("step-refresh"),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to create refresh job: %w", err)
	}

	l.scheduler = s
	l.jobID = job.ID()
	l.active.Store(true)
	s.Start()
	return nil
}

// reschedule changes the tick interval in place; a no-op when stopped.
func (l *refreshLoop) reschedule(interval time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active.Load() || l.scheduler == nil {
		return nil
	}

	job, err := l.scheduler.Update(
		l.jobID,
		gocron.DurationJob(interval),
		gocron.NewTask(l.safeTick),
		gocron.WithName("step-refresh"),
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule refresh job: %w", err)
	}
	l.jobID = job.ID()
	return nil
}

// stop shuts the scheduler down. Idempotent.
func (l *refreshLoop) stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active.Load() {
		return nil
	}
	l.active.Store(false)

	err := l.scheduler.Shutdown()
	l.scheduler = nil
	if err != nil {
		return fmt.Errorf("failed to shut down refresh scheduler: %w", err)
	}
	return nil
}

func (l *refreshLoop) isRunning() bool {
	return l.active.Load()
}

// safeTick guards each tick: liveness flag first, then panic isolation so a
// failing tick never terminates the loop.
func (l *refreshLoop) safeTick() {
	if !l.active.Load() {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Refresh tick panicked", slog.Any("panic", rec))
		}
	}()
	l.tick()
}
