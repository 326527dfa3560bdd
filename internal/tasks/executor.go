package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/steward/pkg/models"
)

// Notifier is the slice of the notification router the task machinery needs.
type Notifier interface {
	Send(ctx context.Context, user, text, channel string) bool
	SendRich(ctx context.Context, user, text string, buttons []models.ButtonRow, channel string) bool
}

// GenerateFunc runs an agent turn for an ai_task: a one-shot history seeded
// with the prompt, optionally on an overridden model, returning the final
// assistant text.
type GenerateFunc func(ctx context.Context, prompt, model string) (string, error)

// Executor performs a task's action when the scheduler fires it.
type Executor struct {
	store    Store
	notifier Notifier
	generate GenerateFunc
	owner    string
	logger   *slog.Logger
	now      func() time.Time
}

// ExecutorConfig wires an Executor. Owner is the user id that receives task
// output and failure notices.
type ExecutorConfig struct {
	Store    Store
	Notifier Notifier
	Generate GenerateFunc
	Owner    string
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		generate: cfg.Generate,
		owner:    cfg.Owner,
		logger:   logger.With("component", "tasks"),
		now:      now,
	}
}

// Execute runs the task's action and records a successful run. Failures are
// reported to the owner as a best-effort notification and never re-raised;
// last_run_at stays untouched so the run does not count as done.
func (e *Executor) Execute(ctx context.Context, taskID string) {
	task, err := e.store.Get(ctx, taskID)
	if err != nil {
		e.logger.Warn("task lookup failed", "task_id", taskID, "error", err)
		return
	}
	if !task.Active {
		e.logger.Info("skipping inactive task", "task_id", taskID, "name", task.Name)
		return
	}

	if err := e.run(ctx, task); err != nil {
		e.logger.Error("task execution failed", "task_id", taskID, "name", task.Name, "error", err)
		e.notifyFailure(ctx, task, err)
		return
	}

	if err := e.store.UpdateLastRun(ctx, taskID, e.now()); err != nil {
		e.logger.Error("recording task run failed", "task_id", taskID, "error", err)
	}
}

func (e *Executor) run(ctx context.Context, task *Task) error {
	switch task.Action.Type {
	case ActionSimpleMessage:
		if !e.notifier.Send(ctx, e.owner, task.Action.Message, task.NotificationChannel) {
			return fmt.Errorf("message delivery failed")
		}
		return nil

	case ActionAITask:
		if e.generate == nil {
			return fmt.Errorf("no generator configured for ai_task")
		}
		text, err := e.generate(ctx, task.Action.Prompt, task.Model)
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		if !e.notifier.Send(ctx, e.owner, text, task.NotificationChannel) {
			return fmt.Errorf("result delivery failed")
		}
		return nil

	default:
		return fmt.Errorf("unknown action type %q", task.Action.Type)
	}
}

func (e *Executor) notifyFailure(ctx context.Context, task *Task, cause error) {
	text := fmt.Sprintf("Scheduled task %q (%s) failed: %v", task.Name, task.ID, cause)
	if !e.notifier.Send(ctx, e.owner, text, task.NotificationChannel) {
		e.logger.Warn("failure notice undeliverable", "task_id", task.ID)
	}
}
