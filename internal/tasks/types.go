// Package tasks implements durable scheduled tasks: the store, the tick
// driven scheduler, the executor that performs a task's action, and the
// missed-task recovery flow that runs after a restart.
package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task types.
const (
	TypeOneOff    = "one_off"
	TypeRecurring = "recurring"
)

// Action types.
const (
	ActionSimpleMessage = "simple_message"
	ActionAITask        = "ai_task"
)

// ErrNotFound is returned by stores for unknown task ids.
var ErrNotFound = errors.New("task not found")

// Schedule is the persisted schedule record. One-shot tasks carry RunAt;
// recurring tasks carry either a full cron expression or individual fields.
type Schedule struct {
	RunAt string `json:"run_at,omitempty"`
	Cron  string `json:"cron,omitempty"`

	Minute     string `json:"minute,omitempty"`
	Hour       string `json:"hour,omitempty"`
	DayOfMonth string `json:"day_of_month,omitempty"`
	Month      string `json:"month,omitempty"`
	DayOfWeek  string `json:"day_of_week,omitempty"`
}

// CronExpression returns the 5-field expression, composing it from the
// individual fields when no full expression is set.
func (s Schedule) CronExpression() string {
	if s.Cron != "" {
		return s.Cron
	}
	fields := []string{s.Minute, s.Hour, s.DayOfMonth, s.Month, s.DayOfWeek}
	allEmpty := true
	for i, v := range fields {
		v = strings.TrimSpace(v)
		if v == "" {
			v = "*"
		} else {
			allEmpty = false
		}
		fields[i] = v
	}
	if allEmpty {
		return ""
	}
	return strings.Join(fields, " ")
}

// Action is the persisted action record.
type Action struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Prompt  string `json:"prompt,omitempty"`
}

// Task is one durable scheduled task.
type Task struct {
	ID                  string
	Name                string
	Type                string
	Schedule            Schedule
	Action              Action
	Description         string
	NotificationChannel string
	Model               string
	Active              bool
	CreatedAt           time.Time
	LastRunAt           *time.Time
	NextRunAt           *time.Time
}

// NewTaskID returns a fresh 32-hex task id.
func NewTaskID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Validate checks the structural invariants before persistence.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.Name == "" {
		return errors.New("task name is required")
	}
	switch t.Type {
	case TypeOneOff:
		if t.Schedule.RunAt == "" {
			return errors.New("one-off task requires run_at")
		}
	case TypeRecurring:
		if t.Schedule.CronExpression() == "" {
			return errors.New("recurring task requires a cron schedule")
		}
	default:
		return fmt.Errorf("unknown task type %q", t.Type)
	}
	switch t.Action.Type {
	case ActionSimpleMessage:
		if t.Action.Message == "" {
			return errors.New("simple_message action requires message")
		}
	case ActionAITask:
		if t.Action.Prompt == "" {
			return errors.New("ai_task action requires prompt")
		}
	default:
		return fmt.Errorf("unknown action type %q", t.Action.Type)
	}
	return nil
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	if t.LastRunAt != nil {
		v := *t.LastRunAt
		out.LastRunAt = &v
	}
	if t.NextRunAt != nil {
		v := *t.NextRunAt
		out.NextRunAt = &v
	}
	return &out
}
