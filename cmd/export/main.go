package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/annotask/internal/config"
	"github.com/rpggio/annotask/internal/domain/assignment"
	"github.com/rpggio/annotask/internal/domain/catalog"
	"github.com/rpggio/annotask/internal/export"
	"github.com/rpggio/annotask/internal/memstore"
	"github.com/rpggio/annotask/internal/sqlite"
)

func main() {
	var (
		output   = flag.String("o", "annotated.jsonl", "output file")
		all      = flag.Bool("all", false, "include unannotated records")
		metadata = flag.Bool("metadata", false, "add _annotation metadata to annotated records")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), logger, cfg, *output, export.Options{
		IncludeAll:      *all,
		IncludeMetadata: *metadata,
	}); err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg config.Config, output string, opts export.Options) error {
	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	store, settings, closeFn, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	engine := assignment.NewService(store, settings, logger)

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("preparing output path: %w", err)
		}
	}
	res, err := writeFile(ctx, output, cat, engine, opts)
	if err != nil {
		return err
	}

	logger.Info("export complete",
		"output", output,
		"exported", res.Exported,
		"annotated", res.Annotated,
		"skipped", res.Skipped,
	)
	return nil
}

// writeFile exports into path. The file is only reported written once it has
// been flushed and closed without error.
func writeFile(ctx context.Context, path string, records export.RecordSource, source export.AnnotationSource, opts export.Options) (export.Result, error) {
	f, err := os.Create(path)
	if err != nil {
		return export.Result{}, fmt.Errorf("creating output: %w", err)
	}

	w := bufio.NewWriter(f)
	res, err := export.Write(ctx, w, records, source, opts)
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return res, fmt.Errorf("writing output: %w", err)
	}
	return res, nil
}

// openStore opens the configured store read-mostly. The memory driver needs a
// journal path since a fresh in-memory store has nothing to export.
func openStore(cfg config.Config) (assignment.Store, assignment.Settings, func() error, error) {
	if cfg.DB.Driver == "memory" {
		if cfg.DB.Path == "" {
			return nil, nil, nil, fmt.Errorf("memory driver requires a journal path")
		}
		mem, err := memstore.Open(cfg.DB.Path, cfg.Assignment.BatchSize)
		if err != nil {
			return nil, nil, nil, err
		}
		return mem, mem, mem.Close, nil
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return sqlite.NewStore(db), sqlite.NewSettingsRepository(db), db.Close, nil
}
