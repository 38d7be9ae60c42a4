// Command psgc-import loads Philippine Standard Geographic Code records into
// the locations table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/letsbefriends/platform/internal/app/domain/location"
	"github.com/letsbefriends/platform/internal/app/services/locations"
	"github.com/letsbefriends/platform/internal/app/storage/postgres"
	"github.com/letsbefriends/platform/internal/cli"
	"github.com/letsbefriends/platform/internal/config"
	"github.com/letsbefriends/platform/internal/platform/database"
	"github.com/letsbefriends/platform/internal/platform/migrations"
	"github.com/letsbefriends/platform/pkg/logger"
)

func main() {
	file := flag.String("file", "", "Path to a PSGC JSON array")
	level := flag.String("level", "", "Level for records without one (region, province, city, municipality, barangay)")
	batch := flag.Int("batch", locations.DefaultBatchSize, "Rows per upsert batch")
	migrate := flag.Bool("migrate", false, "Apply database migrations before importing")
	dryRun := flag.Bool("dry-run", false, "Parse and validate without writing")
	flag.Parse()

	if err := run(*file, location.Level(*level), *batch, *migrate, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "psgc-import: %v\n", err)
		os.Exit(1)
	}
}

func run(file string, level location.Level, batch int, migrate, dryRun bool) error {
	if file == "" {
		return fmt.Errorf("-file is required")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	locs, err := parseRecords(data, level)
	if err != nil {
		return err
	}
	for i, loc := range locs {
		if err := locations.Validate(loc); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging.Logger()).Named("psgc-import")
	if dryRun {
		log.WithField("count", len(locs)).Info("dry run; records are valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		if err := migrations.Apply(ctx, db); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	svc := locations.New(postgres.New(db), log)
	n, err := importAll(ctx, svc, locs, batch, cli.NewProgressBar(os.Stderr, len(locs), "locations"))
	if err != nil {
		return err
	}
	log.WithField("file", file).WithField("count", n).Info("import finished")
	return nil
}

type importer interface {
	Import(ctx context.Context, locs []location.Location, batchSize int) (int, error)
}

// importAll feeds the importer one batch at a time so progress can be
// reported between batches.
func importAll(ctx context.Context, imp importer, locs []location.Location, batch int, bar *cli.ProgressBar) (int, error) {
	if batch <= 0 {
		batch = locations.DefaultBatchSize
	}
	written := 0
	for start := 0; start < len(locs); start += batch {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		end := min(start+batch, len(locs))
		n, err := imp.Import(ctx, locs[start:end], batch)
		written += n
		if err != nil {
			return written, err
		}
		bar.Add(end - start)
	}
	bar.Finish()
	return written, nil
}
