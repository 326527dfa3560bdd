// Package scheduler exposes the durable task engine to the model as tools.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/steward/internal/agent"
	"github.com/haasonsaas/steward/internal/tasks"
)

// Engine is the slice of the task scheduler the tools call.
type Engine interface {
	ScheduleTask(ctx context.Context, task *tasks.Task) error
	CancelTask(ctx context.Context, id string) bool
}

// ScheduleTool creates one-shot and recurring tasks.
type ScheduleTool struct {
	engine Engine
}

func NewScheduleTool(engine Engine) *ScheduleTool {
	return &ScheduleTool{engine: engine}
}

type scheduleArgs struct {
	Name        string `json:"name" jsonschema:"description=Short name for the task"`
	RunAt       string `json:"run_at,omitempty" jsonschema:"description=One-shot run time as ISO-8601 or 'YYYY-MM-DD HH:MM'. Mutually exclusive with cron."`
	Cron        string `json:"cron,omitempty" jsonschema:"description=5-field cron expression for recurring tasks"`
	Minute      string `json:"minute,omitempty" jsonschema:"description=Cron minute field; alternative to cron"`
	Hour        string `json:"hour,omitempty" jsonschema:"description=Cron hour field"`
	DayOfMonth  string `json:"day_of_month,omitempty" jsonschema:"description=Cron day-of-month field"`
	Month       string `json:"month,omitempty" jsonschema:"description=Cron month field"`
	DayOfWeek   string `json:"day_of_week,omitempty" jsonschema:"description=Cron day-of-week field (0=Sunday)"`
	Message     string `json:"message,omitempty" jsonschema:"description=Literal text to deliver when the task fires. Mutually exclusive with prompt."`
	Prompt      string `json:"prompt,omitempty" jsonschema:"description=Prompt to run through the assistant when the task fires"`
	Channel     string `json:"channel,omitempty" jsonschema:"description=Notification channel name; omit for the default"`
	Model       string `json:"model,omitempty" jsonschema:"description=Model override for ai tasks"`
	Description string `json:"description,omitempty" jsonschema:"description=Longer description of what the task is for"`
}

func (t *ScheduleTool) Name() string     { return "schedule_task" }
func (t *ScheduleTool) Category() string { return "scheduling" }

func (t *ScheduleTool) Description() string {
	return "Schedule a reminder or recurring job. Give run_at for a one-time task " +
		"or a cron schedule for a recurring one, and either a literal message " +
		"or a prompt for the assistant to act on."
}

func (t *ScheduleTool) Schema() json.RawMessage {
	return agent.MustSchemaFor(&scheduleArgs{})
}

func (t *ScheduleTool) Execute(ctx context.Context, args map[string]any) *agent.ToolResult {
	var in scheduleArgs
	if err := decodeArgs(args, &in); err != nil {
		return agent.ErrorResult("invalid arguments: %v", err)
	}
	if in.Name == "" {
		return agent.ErrorResult("name is required")
	}

	task := &tasks.Task{
		ID:   tasks.NewTaskID(),
		Name: in.Name,
		Schedule: tasks.Schedule{
			RunAt:      in.RunAt,
			Cron:       in.Cron,
			Minute:     in.Minute,
			Hour:       in.Hour,
			DayOfMonth: in.DayOfMonth,
			Month:      in.Month,
			DayOfWeek:  in.DayOfWeek,
		},
		Description:         in.Description,
		NotificationChannel: in.Channel,
		Model:               in.Model,
	}

	switch {
	case in.RunAt != "" && task.Schedule.CronExpression() != "":
		return agent.ErrorResult("give either run_at or a cron schedule, not both")
	case in.RunAt != "":
		task.Type = tasks.TypeOneOff
	case task.Schedule.CronExpression() != "":
		task.Type = tasks.TypeRecurring
	default:
		return agent.ErrorResult("a run_at time or a cron schedule is required")
	}

	switch {
	case in.Message != "" && in.Prompt != "":
		return agent.ErrorResult("give either message or prompt, not both")
	case in.Message != "":
		task.Action = tasks.Action{Type: tasks.ActionSimpleMessage, Message: in.Message}
	case in.Prompt != "":
		task.Action = tasks.Action{Type: tasks.ActionAITask, Prompt: in.Prompt}
	default:
		return agent.ErrorResult("a message or a prompt is required")
	}

	if err := t.engine.ScheduleTask(ctx, task); err != nil {
		return agent.ErrorResult("could not schedule task: %v", err)
	}

	data := map[string]any{
		"task_id": task.ID,
		"name":    task.Name,
		"type":    task.Type,
	}
	if task.NextRunAt != nil {
		data["next_run_at"] = task.NextRunAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return agent.DataResult(data)
}

// ListTool enumerates active tasks. It never needs confirmation.
type ListTool struct {
	store tasks.Store
}

func NewListTool(store tasks.Store) *ListTool {
	return &ListTool{store: store}
}

type listArgs struct {
	Query string `json:"query,omitempty" jsonschema:"description=Filter tasks by name or description; omit for all"`
}

func (t *ListTool) Name() string        { return "list_scheduled_tasks" }
func (t *ListTool) Category() string    { return "scheduling" }
func (t *ListTool) Description() string { return "List the user's active scheduled tasks." }

func (t *ListTool) Schema() json.RawMessage {
	return agent.MustSchemaFor(&listArgs{})
}

func (t *ListTool) Execute(ctx context.Context, args map[string]any) *agent.ToolResult {
	var in listArgs
	if err := decodeArgs(args, &in); err != nil {
		return agent.ErrorResult("invalid arguments: %v", err)
	}

	var (
		list []*tasks.Task
		err  error
	)
	if in.Query != "" {
		list, err = t.store.SearchActive(ctx, in.Query)
	} else {
		list, err = t.store.ListActive(ctx)
	}
	if err != nil {
		return agent.ErrorResult("could not list tasks: %v", err)
	}

	out := make([]map[string]any, 0, len(list))
	for _, task := range list {
		entry := map[string]any{
			"task_id": task.ID,
			"name":    task.Name,
			"type":    task.Type,
		}
		if task.Type == tasks.TypeOneOff {
			entry["run_at"] = task.Schedule.RunAt
		} else {
			entry["cron"] = task.Schedule.CronExpression()
		}
		if task.Description != "" {
			entry["description"] = task.Description
		}
		if task.NextRunAt != nil {
			entry["next_run_at"] = task.NextRunAt.Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, entry)
	}
	return agent.DataResult(map[string]any{"tasks": out, "count": len(out)})
}

// CancelTool deactivates a task. Cancellation is destructive, so its
// confirmation prompt names the task rather than showing a bare id.
type CancelTool struct {
	engine Engine
	store  tasks.Store
}

func NewCancelTool(engine Engine, store tasks.Store) *CancelTool {
	return &CancelTool{engine: engine, store: store}
}

type cancelArgs struct {
	TaskID string `json:"task_id" jsonschema:"description=Id of the task to cancel"`
}

func (t *CancelTool) Name() string        { return "cancel_scheduled_task" }
func (t *CancelTool) Category() string    { return "scheduling" }
func (t *CancelTool) Description() string { return "Cancel an active scheduled task by id." }

func (t *CancelTool) Schema() json.RawMessage {
	return agent.MustSchemaFor(&cancelArgs{})
}

func (t *CancelTool) Execute(ctx context.Context, args map[string]any) *agent.ToolResult {
	var in cancelArgs
	if err := decodeArgs(args, &in); err != nil {
		return agent.ErrorResult("invalid arguments: %v", err)
	}
	if in.TaskID == "" {
		return agent.ErrorResult("task_id is required")
	}
	if !t.engine.CancelTask(ctx, in.TaskID) {
		return agent.ErrorResult("task %s is not active", in.TaskID)
	}
	return agent.DataResult(map[string]any{"cancelled": in.TaskID})
}

// EnrichConfirmation swaps the raw id in the prompt for the task's name.
func (t *CancelTool) EnrichConfirmation(ctx context.Context, call *agent.PendingToolCall) {
	id, _ := call.Args["task_id"].(string)
	if id == "" {
		return
	}
	task, err := t.store.Get(ctx, id)
	if err != nil {
		return
	}
	call.Description = fmt.Sprintf("Cancel scheduled task %q", task.Name)
	if task.Type == tasks.TypeRecurring {
		call.Description += fmt.Sprintf(" (%s)", task.Schedule.CronExpression())
	} else if task.Schedule.RunAt != "" {
		call.Description += fmt.Sprintf(" (due %s)", task.Schedule.RunAt)
	}
}

func decodeArgs(args map[string]any, out any) error {
	b, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
