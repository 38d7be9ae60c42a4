package migrations

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestApplyExecutesAllMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS offerings").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversations").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := Apply(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(".*").WillReturnError(errors.New("boom"))

	err = Apply(context.Background(), db)
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNamesHaveMatchingDownScripts(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("expected 3 migrations, got %v", names)
	}
	for _, name := range names {
		down := name[:len(name)-len(".up.sql")] + ".down.sql"
		if _, err := files.ReadFile("sql/" + down); err != nil {
			t.Errorf("missing down script for %s", name)
		}
	}
}

func TestUpAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	if err := Up(dsn); err != nil {
		t.Fatalf("up: %v", err)
	}
	version, dirty, err := Version(dsn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if version != 3 || dirty {
		t.Fatalf("version = %d dirty = %v", version, dirty)
	}
}
