package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store is the persistence interface for scheduled tasks.
type Store interface {
	// Add persists a new task.
	Add(ctx context.Context, task *Task) error

	// Get returns a task by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Task, error)

	// ListActive returns all active tasks.
	ListActive(ctx context.Context) ([]*Task, error)

	// Deactivate clears the active flag. Returns false when the task was
	// already inactive or unknown.
	Deactivate(ctx context.Context, id string) (bool, error)

	// UpdateLastRun records a successful execution time.
	UpdateLastRun(ctx context.Context, id string, at time.Time) error

	// UpdateNextRun writes the next fire time; nil clears it.
	UpdateNextRun(ctx context.Context, id string, at *time.Time) error

	// UpdateModel changes a task's model override.
	UpdateModel(ctx context.Context, id string, model string) error

	// SearchActive returns active tasks whose name or description contains
	// the query, case-insensitively.
	SearchActive(ctx context.Context, query string) ([]*Task, error)

	Close() error
}

// timeFormat is the ISO-8601 rendering used in task rows.
const timeFormat = time.RFC3339

// taskColumns is the select list shared by both SQL stores. Order matters;
// scanTask expects exactly this shape.
const taskColumns = `id, name, task_type, schedule, action, description,
	notification_channel, model, active, created_at, last_run_at, next_run_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask maps one scheduled_tasks row back into a Task.
func scanTask(row rowScanner) (*Task, error) {
	var (
		t                  Task
		scheduleJSON       string
		actionJSON         string
		channel, model     sql.NullString
		active             int
		createdAt          string
		lastRunAt, nextRun sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &t.Type, &scheduleJSON, &actionJSON, &t.Description,
		&channel, &model, &active, &createdAt, &lastRunAt, &nextRun)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(scheduleJSON), &t.Schedule); err != nil {
		return nil, fmt.Errorf("task %s: invalid schedule record: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(actionJSON), &t.Action); err != nil {
		return nil, fmt.Errorf("task %s: invalid action record: %w", t.ID, err)
	}

	t.NotificationChannel = channel.String
	t.Model = model.String
	t.Active = active != 0

	if t.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("task %s: invalid created_at: %w", t.ID, err)
	}
	if t.LastRunAt, err = parseNullTime(lastRunAt); err != nil {
		return nil, fmt.Errorf("task %s: invalid last_run_at: %w", t.ID, err)
	}
	if t.NextRunAt, err = parseNullTime(nextRun); err != nil {
		return nil, fmt.Errorf("task %s: invalid next_run_at: %w", t.ID, err)
	}
	return &t, nil
}

// taskRow renders a Task into the column values Add binds.
func taskRow(t *Task) (scheduleJSON, actionJSON string, channel, model sql.NullString, active int, createdAt string, lastRun, nextRun sql.NullString, err error) {
	sb, err := json.Marshal(t.Schedule)
	if err != nil {
		return
	}
	ab, err := json.Marshal(t.Action)
	if err != nil {
		return
	}
	scheduleJSON = string(sb)
	actionJSON = string(ab)
	channel = nullString(t.NotificationChannel)
	model = nullString(t.Model)
	if t.Active {
		active = 1
	}
	createdAt = t.CreatedAt.Format(timeFormat)
	lastRun = formatNullTime(t.LastRunAt)
	nextRun = formatNullTime(t.NextRunAt)
	return
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(timeFormat), Valid: true}
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeFormat, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
