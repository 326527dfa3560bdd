package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	task_type TEXT NOT NULL,
	schedule TEXT NOT NULL,
	action TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	notification_channel TEXT NULL,
	model TEXT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	last_run_at TEXT NULL,
	next_run_at TEXT NULL
)`

// SQLiteStore persists tasks in a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the task database at path and runs
// migrations. Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	// The sqlite driver serializes writes; one connection keeps an
	// in-memory database from vanishing between pool checkouts.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create scheduled_tasks: %w", err)
	}
	// Databases created before the model override existed lack the column.
	hasModel, err := s.hasColumn(ctx, "model")
	if err != nil {
		return err
	}
	if !hasModel {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE scheduled_tasks ADD COLUMN model TEXT NULL`); err != nil {
			return fmt.Errorf("add model column: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) hasColumn(ctx context.Context, name string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(scheduled_tasks)`)
	if err != nil {
		return false, fmt.Errorf("inspect scheduled_tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if colName == name {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s *SQLiteStore) Add(ctx context.Context, task *Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	scheduleJSON, actionJSON, channel, model, active, createdAt, lastRun, nextRun, err := taskRow(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Name, task.Type, scheduleJSON, actionJSON, task.Description,
		channel, model, active, createdAt, lastRun, nextRun)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return task, err
}

func (s *SQLiteStore) ListActive(ctx context.Context) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM scheduled_tasks WHERE active = 1 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *SQLiteStore) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET active = 0 WHERE id = ? AND active = 1`, id)
	if err != nil {
		return false, fmt.Errorf("deactivate task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) UpdateLastRun(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET last_run_at = ? WHERE id = ?`,
		at.Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("update last run for %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateNextRun(ctx context.Context, id string, at *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET next_run_at = ? WHERE id = ?`,
		formatNullTime(at), id)
	if err != nil {
		return fmt.Errorf("update next run for %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateModel(ctx context.Context, id string, model string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET model = ? WHERE id = ?`,
		nullString(model), id)
	if err != nil {
		return fmt.Errorf("update model for %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SearchActive(ctx context.Context, query string) ([]*Task, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM scheduled_tasks
		WHERE active = 1
		AND (LOWER(name) LIKE ? OR LOWER(description) LIKE ?)
		ORDER BY created_at`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
