package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresAdd(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewPostgresStore(db)

	task := sampleTask("t1")
	mock.ExpectExec("INSERT INTO scheduled_tasks").
		WithArgs(task.ID, task.Name, task.Type, sqlmock.AnyArg(), sqlmock.AnyArg(),
			task.Description, sqlmock.AnyArg(), sqlmock.AnyArg(), 1,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Add(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresGetUnknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT .+ FROM scheduled_tasks WHERE id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresDeactivate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectExec("UPDATE scheduled_tasks SET active = 0").
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE scheduled_tasks SET active = 0").
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if ok, err := store.Deactivate(ctx, "t1"); err != nil || !ok {
		t.Errorf("first deactivate: ok=%v err=%v", ok, err)
	}
	if ok, err := store.Deactivate(ctx, "t1"); err != nil || ok {
		t.Errorf("second deactivate: ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
