// Command appserver runs the HTTP API and background services.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/letsbefriends/platform/internal/app/runtime"
	"github.com/letsbefriends/platform/internal/config"
	"github.com/letsbefriends/platform/internal/platform/migrations"
	"github.com/letsbefriends/platform/pkg/logger"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "Apply database migrations and exit")
	migrateDown := flag.Bool("migrate-down", false, "Roll back all migrations and exit")
	flag.Parse()

	if err := run(*migrateOnly, *migrateDown); err != nil {
		fmt.Fprintf(os.Stderr, "appserver: %v\n", err)
		os.Exit(1)
	}
}

func run(migrateOnly, migrateDown bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Logging.Logger()).Named("appserver")

	if migrateOnly || migrateDown {
		return runMigrations(cfg.Database.DSN, migrateDown, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication(ctx, cfg)
	if err != nil {
		return err
	}
	log.WithField("services", application.Services()).Info("starting")
	return application.Run(ctx)
}

func runMigrations(dsn string, down bool, log *logger.Logger) error {
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}
	if down {
		if err := migrations.Down(dsn); err != nil {
			return err
		}
		log.Info("migrations rolled back")
		return nil
	}
	if err := migrations.Up(dsn); err != nil {
		return err
	}
	version, dirty, err := migrations.Version(dsn)
	if err != nil {
		return err
	}
	log.WithField("version", version).WithField("dirty", dirty).Info("migrations applied")
	return nil
}
