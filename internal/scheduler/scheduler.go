// Package scheduler runs named tasks at fixed intervals or at specific
// times on a dedicated background goroutine. Task errors are logged and
// never stop the loop; the stop signal is observed within one check
// interval because the loop waits with a timeout instead of sleeping.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const defaultCheckInterval = time.Second

// Func is a task callback. Errors are logged by the scheduler and
// otherwise swallowed.
type Func func(ctx context.Context) error

// task is one scheduled unit of work. Interval-based tasks run first
// immediately, then every interval; time-based tasks run at each future
// timestamp in order.
type task struct {
	name     string
	fn       Func
	interval time.Duration
	runAt    []time.Time
	runOnce  bool

	lastRun time.Time
	nextRun time.Time
	hasNext bool
}

func (t *task) scheduleNext(now time.Time) {
	switch {
	case t.interval > 0:
		if t.lastRun.IsZero() {
			t.nextRun = now
		} else {
			t.nextRun = t.lastRun.Add(t.interval)
		}
		t.hasNext = true
	case len(t.runAt) > 0:
		t.hasNext = false
		for _, at := range t.runAt {
			if at.After(now) && (!t.hasNext || at.Before(t.nextRun)) {
				t.nextRun = at
				t.hasNext = true
			}
		}
	default:
		t.hasNext = false
	}
}

func (t *task) due(now time.Time) bool {
	return t.hasNext && !now.Before(t.nextRun)
}

// Option configures a task at Add time.
type Option func(*task)

// Every schedules the task at a fixed interval.
func Every(interval time.Duration) Option {
	return func(t *task) { t.interval = interval }
}

// At schedules the task at specific timestamps.
func At(times ...time.Time) Option {
	return func(t *task) { t.runAt = append(t.runAt, times...) }
}

// Once removes the task after its first execution.
func Once() Option {
	return func(t *task) { t.runOnce = true }
}

// Scheduler checks registered tasks on a background goroutine and runs
// those that are due.
type Scheduler struct {
	mu            sync.Mutex
	tasks         map[string]*task
	checkInterval time.Duration
	running       bool
	stopCh        chan struct{}
	doneCh        chan struct{}
	logger        *slog.Logger

	now func() time.Time // injectable for tests
}

// New creates a stopped Scheduler. A non-positive check interval falls
// back to one second.
func New(checkInterval time.Duration, logger *slog.Logger) *Scheduler {
	if checkInterval <= 0 {
		checkInterval = defaultCheckInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tasks:         make(map[string]*task),
		checkInterval: checkInterval,
		logger:        logger,
		now:           time.Now,
	}
}

// Add registers a task. At least one of Every or At must be supplied, and
// task names must be unique.
func (s *Scheduler) Add(name string, fn Func, opts ...Option) error {
	t := &task{name: name, fn: fn}
	for _, opt := range opts {
		opt(t)
	}
	if t.interval <= 0 && len(t.runAt) == 0 {
		return fmt.Errorf("task %q: either an interval or run times must be specified", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %q already exists", name)
	}
	t.scheduleNext(s.now())
	s.tasks[name] = t
	s.logger.Info("Added task", "task", name)
	return nil
}

// Remove unregisters a task. Reports whether it existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[name]; !exists {
		return false
	}
	delete(s.tasks, name)
	s.logger.Info("Removed task", "task", name)
	return true
}

// Tasks returns the registered task names, sorted.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches the check loop on a background goroutine. Starting an
// already-running scheduler is a no-op with a warning. The loop exits when
// Stop is called or ctx is cancelled; in-flight tasks finish first.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Scheduler is already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.run(ctx, stopCh, doneCh)
	s.logger.Info("Scheduler started", "check_interval", s.checkInterval)
}

// Stop signals the loop and waits briefly for it to exit. Stopping a
// stopped scheduler is a no-op with a warning.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Warn("Scheduler is not running")
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(5 * time.Second):
		s.logger.Warn("Scheduler did not stop within timeout")
	}
	s.logger.Info("Scheduler stopped")
}

// IsRunning reports whether the check loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	timer := time.NewTimer(s.checkInterval)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			s.checkTasks(ctx)
			timer.Reset(s.checkInterval)
		}
	}
}

// checkTasks runs every due task synchronously, then removes executed
// run-once tasks.
func (s *Scheduler) checkTasks(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*task
	for _, t := range s.tasks {
		if t.due(now) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		s.logger.Debug("Executing task", "task", t.name)
		if err := t.fn(ctx); err != nil {
			s.logger.Error("Task failed", "task", t.name, "error", err)
		}

		s.mu.Lock()
		t.lastRun = s.now()
		t.scheduleNext(t.lastRun)
		if t.runOnce {
			delete(s.tasks, t.name)
			s.logger.Info("Removed task", "task", t.name)
		}
		s.mu.Unlock()
	}
}
