package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/larek/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		workers     int
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz catalog dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 8, "concurrent database writes")
	flag.BoolVar(&dryRun, "dry-run", false, "validate and deduplicate without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("LAREK_DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	files := flag.Args()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
		if err != nil {
			slog.Error("list dumps", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slices.Sort(matches)
		files = matches
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL, workers, dryRun); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string, workers int, dryRun bool) error {
	if len(files) == 0 {
		return errors.New("no catalog dumps found")
	}

	slog.Info("reading dumps", slog.Int("files", len(files)))

	batches, err := readDumps(ctx, files)
	if err != nil {
		return errors.Wrap(err, "read dumps")
	}

	items, st := dedupe(batches)
	slog.Info("catalog prepared",
		slog.Int("valid", st.valid),
		slog.Int("rejected", st.rejected),
		slog.Int("duplicates", st.duplicates),
		slog.Int("confirmed", st.confirmed),
	)

	if len(items) == 0 {
		slog.Info("no products to write")
		return nil
	}
	if dryRun {
		slog.Info("dry run, nothing written")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := writeProducts(ctx, postgres.NewProductRepository(pool), items, workers); err != nil {
		return errors.Wrap(err, "write products to database")
	}

	return nil
}
