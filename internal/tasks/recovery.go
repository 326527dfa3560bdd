package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/steward/pkg/models"
)

const missedPrefix = "mst"

// Recovery flags one-shot tasks whose run time passed while the process was
// down. Instead of firing them blindly it asks the owner, per task, whether
// to run or delete.
type Recovery struct {
	store    Store
	runner   Runner
	notifier Notifier
	owner    string
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]string // callback key -> task id
}

type RecoveryConfig struct {
	Store    Store
	Runner   Runner
	Notifier Notifier
	Owner    string
	Logger   *slog.Logger
}

func NewRecovery(cfg RecoveryConfig) *Recovery {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recovery{
		store:    cfg.Store,
		runner:   cfg.Runner,
		notifier: cfg.Notifier,
		owner:    cfg.Owner,
		logger:   logger.With("component", "recovery"),
		pending:  make(map[string]string),
	}
}

// Scan enumerates missed one-shots and prompts the owner for each. A task is
// missed when it is active, has never run, and its run time is in the past.
// Recurring tasks simply pick up their next occurrence and are never flagged.
func (r *Recovery) Scan(ctx context.Context) int {
	tasks, err := r.store.ListActive(ctx)
	if err != nil {
		r.logger.Error("recovery scan failed", "error", err)
		return 0
	}

	flagged := 0
	for _, task := range tasks {
		if !r.missed(task) {
			continue
		}
		key := newRecoveryKey()
		r.mu.Lock()
		r.pending[key] = task.ID
		r.mu.Unlock()

		text := fmt.Sprintf("Missed task %q was due at %s while I was offline.",
			task.Name, task.Schedule.RunAt)
		buttons := []models.ButtonRow{{
			{Text: "Run Now", CallbackData: CallbackData(key, "run")},
			{Text: "Delete", CallbackData: CallbackData(key, "del")},
		}}
		if !r.notifier.SendRich(ctx, r.owner, text, buttons, task.NotificationChannel) {
			r.logger.Warn("missed-task prompt undeliverable", "task_id", task.ID)
			r.mu.Lock()
			delete(r.pending, key)
			r.mu.Unlock()
			continue
		}
		flagged++
		r.logger.Info("flagged missed task", "task_id", task.ID, "name", task.Name, "key", key)
	}
	return flagged
}

func (r *Recovery) missed(task *Task) bool {
	if task.Type != TypeOneOff || task.LastRunAt != nil {
		return false
	}
	// The scheduler clears next_run_at for past one-shots at load; a missed
	// task is therefore one with no future fire time.
	return task.NextRunAt == nil
}

// HandleCallback resolves an owner's decision. The returned text replaces
// the prompt message on the transport.
func (r *Recovery) HandleCallback(ctx context.Context, key, verb string) string {
	r.mu.Lock()
	taskID, ok := r.pending[key]
	if ok {
		delete(r.pending, key)
	}
	r.mu.Unlock()

	if !ok {
		return "This recovery prompt has expired."
	}

	switch verb {
	case "run":
		r.runner.Execute(ctx, taskID)
		if _, err := r.store.Deactivate(ctx, taskID); err != nil {
			r.logger.Error("deactivating recovered task failed", "task_id", taskID, "error", err)
		}
		return "→ Executed"
	case "del":
		if _, err := r.store.Deactivate(ctx, taskID); err != nil {
			r.logger.Error("deleting missed task failed", "task_id", taskID, "error", err)
		}
		return "→ Deleted"
	default:
		r.logger.Warn("unknown recovery verb", "verb", verb)
		return "This recovery prompt has expired."
	}
}

// CallbackData renders a missed-task button payload.
func CallbackData(key, verb string) string {
	return fmt.Sprintf("%s:%s:%s", missedPrefix, key, verb)
}

// ParseCallback splits a missed-task callback payload. ok is false for
// payloads belonging to other flows.
func ParseCallback(data string) (key, verb string, ok bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != missedPrefix {
		return "", "", false
	}
	if parts[2] != "run" && parts[2] != "del" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func newRecoveryKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
