package tasks

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleTask(id string) *Task {
	return &Task{
		ID:          id,
		Name:        "water reminder",
		Type:        TypeOneOff,
		Schedule:    Schedule{RunAt: "2026-09-01T10:00:00Z"},
		Action:      Action{Type: ActionSimpleMessage, Message: "drink water"},
		Description: "hydration nudges",
		Model:       "claude-sonnet-4-20250514",
		Active:      true,
		CreatedAt:   time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	next := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	task := sampleTask("t1")
	task.NextRunAt = &next
	if err := store.Add(ctx, task); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != task.Name || got.Type != task.Type || got.Model != task.Model {
		t.Errorf("got %+v", got)
	}
	if got.Schedule.RunAt != task.Schedule.RunAt {
		t.Errorf("schedule = %+v", got.Schedule)
	}
	if got.Action.Message != "drink water" {
		t.Errorf("action = %+v", got.Action)
	}
	if !got.Active || got.LastRunAt != nil {
		t.Errorf("flags wrong: active=%v last=%v", got.Active, got.LastRunAt)
	}
	if got.NextRunAt == nil || !got.NextRunAt.Equal(next) {
		t.Errorf("next_run_at = %v", got.NextRunAt)
	}
	if !got.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("created_at = %v", got.CreatedAt)
	}
}

func TestSQLiteGetUnknown(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteAddRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	task := sampleTask("t1")
	task.Name = ""
	if err := store.Add(context.Background(), task); err == nil {
		t.Error("invalid task accepted")
	}
}

func TestSQLiteDeactivate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Add(ctx, sampleTask("t1")); err != nil {
		t.Fatal(err)
	}

	if ok, err := store.Deactivate(ctx, "t1"); err != nil || !ok {
		t.Fatalf("first deactivate: ok=%v err=%v", ok, err)
	}
	// Second deactivate and unknown id are both no-ops.
	if ok, _ := store.Deactivate(ctx, "t1"); ok {
		t.Error("second deactivate reported a change")
	}
	if ok, _ := store.Deactivate(ctx, "ghost"); ok {
		t.Error("unknown id reported a change")
	}

	got, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Active {
		t.Error("task still active")
	}
}

func TestSQLiteListActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := sampleTask("a1")
	b := sampleTask("b2")
	b.CreatedAt = a.CreatedAt.Add(time.Minute)
	inactive := sampleTask("c3")
	inactive.Active = false
	for _, task := range []*Task{a, b, inactive} {
		if err := store.Add(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	tasks, err := store.ListActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("active = %d, want 2", len(tasks))
	}
	if tasks[0].ID != "a1" || tasks[1].ID != "b2" {
		t.Errorf("order = %s, %s", tasks[0].ID, tasks[1].ID)
	}
}

func TestSQLiteRunUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Add(ctx, sampleTask("t1")); err != nil {
		t.Fatal(err)
	}

	ran := time.Date(2026, 9, 1, 10, 0, 1, 0, time.UTC)
	if err := store.UpdateLastRun(ctx, "t1", ran); err != nil {
		t.Fatal(err)
	}
	next := ran.Add(24 * time.Hour)
	if err := store.UpdateNextRun(ctx, "t1", &next); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Get(ctx, "t1")
	if got.LastRunAt == nil || !got.LastRunAt.Equal(ran) {
		t.Errorf("last_run_at = %v", got.LastRunAt)
	}
	if got.NextRunAt == nil || !got.NextRunAt.Equal(next) {
		t.Errorf("next_run_at = %v", got.NextRunAt)
	}

	if err := store.UpdateNextRun(ctx, "t1", nil); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Get(ctx, "t1")
	if got.NextRunAt != nil {
		t.Errorf("next_run_at not cleared: %v", got.NextRunAt)
	}
}

func TestSQLiteUpdateModel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Add(ctx, sampleTask("t1")); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateModel(ctx, "t1", "claude-opus-4-1"); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get(ctx, "t1")
	if got.Model != "claude-opus-4-1" {
		t.Errorf("model = %q", got.Model)
	}

	if err := store.UpdateModel(ctx, "t1", ""); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Get(ctx, "t1")
	if got.Model != "" {
		t.Errorf("model not cleared: %q", got.Model)
	}
}

func TestSQLiteSearchActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	water := sampleTask("w1")
	standup := sampleTask("s1")
	standup.Name = "daily standup"
	standup.Description = "post the agenda"
	gone := sampleTask("g1")
	gone.Name = "water plants"
	gone.Active = false
	for _, task := range []*Task{water, standup, gone} {
		if err := store.Add(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"WATER", []string{"w1"}},
		{"agenda", []string{"s1"}},
		{"nothing matches", nil},
	}
	for _, tt := range tests {
		tasks, err := store.SearchActive(ctx, tt.query)
		if err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, task := range tasks {
			ids = append(ids, task.ID)
		}
		if len(ids) != len(tt.want) {
			t.Errorf("query %q: got %v, want %v", tt.query, ids, tt.want)
			continue
		}
		for i := range ids {
			if ids[i] != tt.want[i] {
				t.Errorf("query %q: got %v, want %v", tt.query, ids, tt.want)
			}
		}
	}
}

// Databases written before the model column existed must open cleanly and
// accept the full row shape afterwards.
func TestSQLiteModelColumnMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")

	legacy, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = legacy.Exec(`
		CREATE TABLE scheduled_tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			task_type TEXT NOT NULL,
			schedule TEXT NOT NULL,
			action TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			notification_channel TEXT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			last_run_at TEXT NULL,
			next_run_at TEXT NULL
		)`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = legacy.Exec(`
		INSERT INTO scheduled_tasks (id, name, task_type, schedule, action, created_at)
		VALUES ('old1', 'legacy task', 'recurring', '{"cron":"0 9 * * *"}',
			'{"type":"simple_message","message":"hi"}', '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatal(err)
	}
	if err := legacy.Close(); err != nil {
		t.Fatal(err)
	}

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	got, err := store.Get(ctx, "old1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != "" {
		t.Errorf("legacy row model = %q", got.Model)
	}

	fresh := sampleTask("new1")
	if err := store.Add(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	got, err = store.Get(ctx, "new1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != fresh.Model {
		t.Errorf("model = %q, want %q", got.Model, fresh.Model)
	}
}
