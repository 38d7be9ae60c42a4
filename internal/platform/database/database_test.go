package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestConfigureAppliesPoolLimits(t *testing.T) {
	raw, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	db := sqlx.NewDb(raw, "sqlmock")
	defer db.Close()

	Configure(db, Options{MaxOpenConns: 7, MaxIdleConns: 3, ConnMaxLifetime: time.Minute})
	if got := db.Stats().MaxOpenConnections; got != 7 {
		t.Fatalf("max open = %d, want 7", got)
	}
}
