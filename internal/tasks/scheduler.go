package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Runner executes a due task. *Executor is the production implementation.
type Runner interface {
	Execute(ctx context.Context, taskID string)
}

// Scheduler drives durable tasks off a wall-clock ticker. Fire times are
// persisted so a restart resumes where the previous process stopped.
type Scheduler struct {
	store  Store
	runner Runner
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
	tick   time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
	loaded  bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNow injects the clock.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTickInterval overrides the 1 s tick.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithLocation sets the timezone for bare run_at values and cron evaluation.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

func NewScheduler(store Store, runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:   store,
		runner:  runner,
		logger:  slog.Default(),
		loc:     time.Local,
		now:     time.Now,
		tick:    time.Second,
		pending: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Start runs the tick loop until ctx is cancelled, loading active tasks
// first if Load has not already run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if !loaded {
		if err := s.Load(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Load reads active tasks and reconciles their fire times. One-shots whose
// run time already passed get their fire time cleared; the recovery scan,
// not the tick loop, decides what happens to them.
func (s *Scheduler) Load(ctx context.Context) error {
	tasks, err := s.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load active tasks: %w", err)
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range tasks {
		next, ok, err := NextRun(task, now, s.loc)
		if err != nil {
			s.logger.Warn("task has unschedulable trigger", "task_id", task.ID, "error", err)
			continue
		}
		if !ok {
			// A one-shot whose time already passed. Clear the fire time;
			// the recovery scan decides what happens to it.
			if task.NextRunAt != nil {
				if err := s.store.UpdateNextRun(ctx, task.ID, nil); err != nil {
					s.logger.Warn("clearing stale fire time failed", "task_id", task.ID, "error", err)
				}
			}
			continue
		}
		s.pending[task.ID] = next
		if task.NextRunAt == nil || !task.NextRunAt.Equal(next) {
			if err := s.store.UpdateNextRun(ctx, task.ID, &next); err != nil {
				s.logger.Warn("persisting fire time failed", "task_id", task.ID, "error", err)
			}
		}
	}
	s.loaded = true
	s.logger.Info("scheduler loaded", "tasks", len(s.pending))
	return nil
}

// RunOnce fires every task due at the current clock reading. Dispatch is
// sequential so task output never interleaves.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []string
	for id, at := range s.pending {
		if !at.After(now) {
			due = append(due, id)
		}
	}
	sort.Strings(due)
	s.mu.Unlock()

	for _, id := range due {
		s.fire(ctx, id, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, id string, now time.Time) {
	task, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Warn("due task vanished", "task_id", id, "error", err)
		s.forget(id)
		return
	}
	if !task.Active {
		s.forget(id)
		return
	}

	s.logger.Info("firing task", "task_id", id, "name", task.Name, "type", task.Type)
	s.runner.Execute(ctx, id)

	switch task.Type {
	case TypeOneOff:
		if _, err := s.store.Deactivate(ctx, id); err != nil {
			s.logger.Error("deactivating one-shot failed", "task_id", id, "error", err)
		}
		if err := s.store.UpdateNextRun(ctx, id, nil); err != nil {
			s.logger.Error("clearing fire time failed", "task_id", id, "error", err)
		}
		s.forget(id)

	case TypeRecurring:
		next, ok, err := NextRun(task, now, s.loc)
		if err != nil || !ok {
			s.logger.Error("recurring task lost its schedule", "task_id", id, "error", err)
			s.forget(id)
			return
		}
		if err := s.store.UpdateNextRun(ctx, id, &next); err != nil {
			s.logger.Error("persisting fire time failed", "task_id", id, "error", err)
		}
		s.mu.Lock()
		s.pending[id] = next
		s.mu.Unlock()
	}
}

func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// ScheduleTask validates and persists a new task and computes its first fire
// time. A one-shot whose run time already passed is rejected.
func (s *Scheduler) ScheduleTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = NewTaskID()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.now()
	}
	task.Active = true

	next, ok, err := NextRun(task, s.now(), s.loc)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run time %q is in the past", task.Schedule.RunAt)
	}
	task.NextRunAt = &next

	if err := s.store.Add(ctx, task); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending[task.ID] = next
	s.mu.Unlock()

	s.logger.Info("task scheduled", "task_id", task.ID, "name", task.Name, "next_run", next)
	return nil
}

// CancelTask deactivates a task. Unknown or already-inactive ids log and
// return false.
func (s *Scheduler) CancelTask(ctx context.Context, id string) bool {
	ok, err := s.store.Deactivate(ctx, id)
	if err != nil {
		s.logger.Error("cancel failed", "task_id", id, "error", err)
		return false
	}
	if !ok {
		s.logger.Info("cancel had no effect", "task_id", id)
		return false
	}
	if err := s.store.UpdateNextRun(ctx, id, nil); err != nil {
		s.logger.Warn("clearing fire time failed", "task_id", id, "error", err)
	}
	s.forget(id)
	s.logger.Info("task cancelled", "task_id", id)
	return true
}
