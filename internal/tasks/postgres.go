package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
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

// PostgresStore persists tasks in Postgres. The row shape matches the
// sqlite store so the two remain interchangeable behind Store.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with the given DSN and runs migrations.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing connection without migrating.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create scheduled_tasks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		ALTER TABLE scheduled_tasks ADD COLUMN IF NOT EXISTS model TEXT NULL`); err != nil {
		return fmt.Errorf("add model column: %w", err)
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, task *Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	scheduleJSON, actionJSON, channel, model, active, createdAt, lastRun, nextRun, err := taskRow(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		task.ID, task.Name, task.Type, scheduleJSON, actionJSON, task.Description,
		channel, model, active, createdAt, lastRun, nextRun)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return task, err
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM scheduled_tasks WHERE active = 1 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *PostgresStore) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET active = 0 WHERE id = $1 AND active = 1`, id)
	if err != nil {
		return false, fmt.Errorf("deactivate task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) UpdateLastRun(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET last_run_at = $1 WHERE id = $2`,
		at.Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("update last run for %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateNextRun(ctx context.Context, id string, at *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET next_run_at = $1 WHERE id = $2`,
		formatNullTime(at), id)
	if err != nil {
		return fmt.Errorf("update next run for %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateModel(ctx context.Context, id string, model string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET model = $1 WHERE id = $2`,
		nullString(model), id)
	if err != nil {
		return fmt.Errorf("update model for %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) SearchActive(ctx context.Context, query string) ([]*Task, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM scheduled_tasks
		WHERE active = 1
		AND (LOWER(name) LIKE $1 OR LOWER(description) LIKE $2)
		ORDER BY created_at`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
