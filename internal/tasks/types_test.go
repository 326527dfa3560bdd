package tasks

import (
	"testing"
	"time"
)

func TestCronExpression(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		want     string
	}{
		{"full expression wins", Schedule{Cron: "0 9 * * *", Minute: "30"}, "0 9 * * *"},
		{"composed from fields", Schedule{Minute: "0", Hour: "9"}, "0 9 * * *"},
		{"single field", Schedule{DayOfWeek: "5"}, "* * * * 5"},
		{"all fields", Schedule{Minute: "15", Hour: "8", DayOfMonth: "1", Month: "6", DayOfWeek: "2"}, "15 8 1 6 2"},
		{"empty", Schedule{}, ""},
		{"one-shot only", Schedule{RunAt: "2026-09-01T10:00:00Z"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.schedule.CronExpression(); got != tt.want {
				t.Errorf("CronExpression() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTaskValidate(t *testing.T) {
	valid := func() *Task {
		return &Task{
			ID:       NewTaskID(),
			Name:     "water",
			Type:     TypeOneOff,
			Schedule: Schedule{RunAt: "2026-09-01T10:00:00Z"},
			Action:   Action{Type: ActionSimpleMessage, Message: "drink water"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
	}{
		{"valid one-off", func(*Task) {}, false},
		{"valid recurring", func(task *Task) {
			task.Type = TypeRecurring
			task.Schedule = Schedule{Cron: "0 9 * * *"}
		}, false},
		{"recurring from fields", func(task *Task) {
			task.Type = TypeRecurring
			task.Schedule = Schedule{Minute: "0", Hour: "9"}
		}, false},
		{"missing id", func(task *Task) { task.ID = "" }, true},
		{"missing name", func(task *Task) { task.Name = "" }, true},
		{"one-off without run_at", func(task *Task) { task.Schedule.RunAt = "" }, true},
		{"recurring without schedule", func(task *Task) {
			task.Type = TypeRecurring
			task.Schedule = Schedule{}
		}, true},
		{"unknown type", func(task *Task) { task.Type = "hourly" }, true},
		{"message action without text", func(task *Task) { task.Action.Message = "" }, true},
		{"ai action without prompt", func(task *Task) {
			task.Action = Action{Type: ActionAITask}
		}, true},
		{"unknown action", func(task *Task) { task.Action.Type = "webhook" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid()
			tt.mutate(task)
			if err := task.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewTaskID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id := NewTaskID()
		if len(id) != 32 {
			t.Fatalf("id %q has length %d", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestTaskClone(t *testing.T) {
	last := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	task := &Task{ID: "t1", Name: "n", LastRunAt: &last}

	clone := task.Clone()
	*clone.LastRunAt = clone.LastRunAt.Add(time.Hour)
	clone.Name = "changed"

	if !task.LastRunAt.Equal(last) {
		t.Error("clone shares LastRunAt pointer")
	}
	if task.Name != "n" {
		t.Error("clone shares fields")
	}
	if (*Task)(nil).Clone() != nil {
		t.Error("nil clone should be nil")
	}
}
