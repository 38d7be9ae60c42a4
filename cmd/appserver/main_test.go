package main

import (
	"testing"

	"github.com/letsbefriends/platform/pkg/logger"
)

func TestRunMigrationsRequiresDSN(t *testing.T) {
	if err := runMigrations("", false, logger.NewDefault("test")); err == nil {
		t.Fatal("expected an error without a DSN")
	}
}
