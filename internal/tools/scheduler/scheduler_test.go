package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/steward/internal/agent"
	"github.com/haasonsaas/steward/internal/tasks"
)

type fakeEngine struct {
	scheduled []*tasks.Task
	cancelled []string
	cancelOK  bool
	fail      error
}

func (f *fakeEngine) ScheduleTask(ctx context.Context, task *tasks.Task) error {
	if f.fail != nil {
		return f.fail
	}
	next := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	task.NextRunAt = &next
	f.scheduled = append(f.scheduled, task)
	return nil
}

func (f *fakeEngine) CancelTask(ctx context.Context, id string) bool {
	f.cancelled = append(f.cancelled, id)
	return f.cancelOK
}

func TestScheduleOneOff(t *testing.T) {
	engine := &fakeEngine{}
	tool := NewScheduleTool(engine)

	res := tool.Execute(context.Background(), map[string]any{
		"name":    "water",
		"run_at":  "2026-09-01T10:00:00Z",
		"message": "drink water",
		"channel": "telegram",
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Err)
	}
	if len(engine.scheduled) != 1 {
		t.Fatal("nothing scheduled")
	}
	task := engine.scheduled[0]
	if task.Type != tasks.TypeOneOff || task.Action.Type != tasks.ActionSimpleMessage {
		t.Errorf("task = %+v", task)
	}
	if task.NotificationChannel != "telegram" {
		t.Errorf("channel = %q", task.NotificationChannel)
	}
	if res.Data["task_id"] != task.ID || res.Data["next_run_at"] == nil {
		t.Errorf("data = %+v", res.Data)
	}
}

func TestScheduleRecurringFromFields(t *testing.T) {
	engine := &fakeEngine{}
	tool := NewScheduleTool(engine)

	res := tool.Execute(context.Background(), map[string]any{
		"name":   "standup",
		"minute": "0",
		"hour":   "9",
		"prompt": "summarize my calendar",
		"model":  "claude-opus-4-1",
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Err)
	}
	task := engine.scheduled[0]
	if task.Type != tasks.TypeRecurring {
		t.Errorf("type = %q", task.Type)
	}
	if got := task.Schedule.CronExpression(); got != "0 9 * * *" {
		t.Errorf("cron = %q", got)
	}
	if task.Action.Type != tasks.ActionAITask || task.Model != "claude-opus-4-1" {
		t.Errorf("task = %+v", task)
	}
}

func TestScheduleRejectsBadArguments(t *testing.T) {
	tool := NewScheduleTool(&fakeEngine{})
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"no name", map[string]any{"run_at": "2026-09-01T10:00:00Z", "message": "x"}},
		{"no trigger", map[string]any{"name": "t", "message": "x"}},
		{"both triggers", map[string]any{"name": "t", "run_at": "2026-09-01T10:00:00Z", "cron": "0 9 * * *", "message": "x"}},
		{"no action", map[string]any{"name": "t", "run_at": "2026-09-01T10:00:00Z"}},
		{"both actions", map[string]any{"name": "t", "run_at": "2026-09-01T10:00:00Z", "message": "x", "prompt": "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := tool.Execute(ctx, tt.args); res.OK() {
				t.Errorf("accepted: %+v", res.Data)
			}
		})
	}
}

func TestListTasks(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()

	oneOff := &tasks.Task{
		ID: "aa", Name: "water", Type: tasks.TypeOneOff,
		Schedule:  tasks.Schedule{RunAt: "2026-09-01T10:00:00Z"},
		Action:    tasks.Action{Type: tasks.ActionSimpleMessage, Message: "drink"},
		Active:    true,
		CreatedAt: time.Now(),
	}
	recurring := &tasks.Task{
		ID: "bb", Name: "standup", Type: tasks.TypeRecurring,
		Schedule:  tasks.Schedule{Cron: "0 9 * * 1"},
		Action:    tasks.Action{Type: tasks.ActionAITask, Prompt: "brief me"},
		Active:    true,
		CreatedAt: time.Now().Add(time.Second),
	}
	for _, task := range []*tasks.Task{oneOff, recurring} {
		if err := store.Add(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	tool := NewListTool(store)
	res := tool.Execute(ctx, map[string]any{})
	if !res.OK() {
		t.Fatalf("error: %s", res.Err)
	}
	if res.Data["count"] != 2 {
		t.Errorf("count = %v", res.Data["count"])
	}

	res = tool.Execute(ctx, map[string]any{"query": "standup"})
	if !res.OK() || res.Data["count"] != 1 {
		t.Errorf("filtered: %+v err=%s", res.Data, res.Err)
	}
}

func TestCancelTask(t *testing.T) {
	engine := &fakeEngine{cancelOK: true}
	tool := NewCancelTool(engine, newMemStore(t))

	res := tool.Execute(context.Background(), map[string]any{"task_id": "aa"})
	if !res.OK() || res.Data["cancelled"] != "aa" {
		t.Errorf("result = %+v err=%s", res.Data, res.Err)
	}

	engine.cancelOK = false
	if res := tool.Execute(context.Background(), map[string]any{"task_id": "bb"}); res.OK() {
		t.Error("cancel of inactive task reported success")
	}
	if res := tool.Execute(context.Background(), map[string]any{}); res.OK() {
		t.Error("missing task_id accepted")
	}
}

func TestCancelEnrichesConfirmation(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	task := &tasks.Task{
		ID: "cc", Name: "water plants", Type: tasks.TypeRecurring,
		Schedule:  tasks.Schedule{Cron: "0 18 * * 5"},
		Action:    tasks.Action{Type: tasks.ActionSimpleMessage, Message: "water"},
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := store.Add(ctx, task); err != nil {
		t.Fatal(err)
	}

	tool := NewCancelTool(&fakeEngine{cancelOK: true}, store)
	call := &agent.PendingToolCall{Name: "cancel_scheduled_task", Args: map[string]any{"task_id": "cc"}}
	tool.EnrichConfirmation(ctx, call)

	if !strings.Contains(call.Description, "water plants") || !strings.Contains(call.Description, "0 18 * * 5") {
		t.Errorf("description = %q", call.Description)
	}

	// Unknown ids leave the description alone.
	unknown := &agent.PendingToolCall{Args: map[string]any{"task_id": "zz"}, Description: "original"}
	tool.EnrichConfirmation(ctx, unknown)
	if unknown.Description != "original" {
		t.Errorf("description = %q", unknown.Description)
	}
}

func newMemStore(t *testing.T) tasks.Store {
	t.Helper()
	store, err := tasks.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
