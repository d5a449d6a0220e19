package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rpggio/annotask/internal/config"
	"github.com/rpggio/annotask/internal/domain/activity"
	"github.com/rpggio/annotask/internal/domain/assignment"
	"github.com/rpggio/annotask/internal/domain/catalog"
	"github.com/rpggio/annotask/internal/mcp"
	"github.com/rpggio/annotask/internal/memstore"
	"github.com/rpggio/annotask/internal/metrics"
	"github.com/rpggio/annotask/internal/sqlite"
	"github.com/rpggio/annotask/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if logPath := os.Getenv("ANNOTASK_LOG_PATH"); logPath != "" {
		lf, err := openLogFile(logPath, maxLogSize, keepLogSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer lf.Close()
			logWriter = lf
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		logger.Error("failed to load catalog", "path", cfg.Catalog.Path, "error", err)
		os.Exit(1)
	}
	logger.Info("catalog loaded", "path", cfg.Catalog.Path, "records", cat.Len())

	ctx := context.Background()
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.DB.Driver, "error", err)
		os.Exit(1)
	}
	defer backend.close()

	var collector metrics.Collector = metrics.NewNop()
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		collector = metrics.NewPrometheus(reg, cfg.Metrics.Namespace)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	opts := []assignment.Option{
		assignment.WithLockTimeout(cfg.Assignment.LockTimeout),
		assignment.WithMetrics(collector),
		assignment.WithRecordLookup(cat),
	}
	var activitySvc *activity.Service
	if backend.activity != nil {
		activitySvc = activity.NewService(backend.activity, logger)
		opts = append(opts, assignment.WithActivityLog(activitySvc))
	}
	engine := assignment.NewService(backend.store, backend.settings, logger, opts...)

	mcpServer := mcp.NewServer(mcp.Config{
		Engine:  engine,
		Catalog: cat,
		Logger:  logger,
	})

	if cfg.Transport.Mode == "stdio" {
		runStdioMode(logger, mcpServer)
		return
	}

	api := transport.Config{
		Engine:  engine,
		Catalog: cat,
		Logger:  logger,
	}
	if activitySvc != nil {
		api.Activity = activitySvc
	}
	runHTTPMode(logger, mcpServer, api, metricsHandler, cfg.Server.Host, cfg.Server.Port)
}

// backend bundles the engine's persistence for the configured driver.
type backend struct {
	store    assignment.Store
	settings assignment.Settings
	activity activity.Repository
	close    func() error
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.DB.Driver {
	case "memory":
		if cfg.DB.Path == "" {
			mem := memstore.New(cfg.Assignment.BatchSize)
			return &backend{store: mem, settings: mem, close: mem.Close}, nil
		}
		if err := ensureDBDir(cfg.DB.Path); err != nil {
			return nil, fmt.Errorf("preparing journal path: %w", err)
		}
		mem, err := memstore.Open(cfg.DB.Path, cfg.Assignment.BatchSize)
		if err != nil {
			return nil, err
		}
		return &backend{store: mem, settings: mem, close: mem.Close}, nil
	default:
		if err := ensureDBDir(cfg.DB.Path); err != nil {
			return nil, fmt.Errorf("preparing database path: %w", err)
		}
		db, err := sqlite.New(cfg.DB.Path)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(); err != nil {
			db.Close()
			return nil, err
		}
		settings := sqlite.NewSettingsRepository(db)
		if _, err := settings.EnsureBatchSize(ctx, cfg.Assignment.BatchSize); err != nil {
			db.Close()
			return nil, err
		}
		return &backend{
			store:    sqlite.NewStore(db),
			settings: settings,
			activity: sqlite.NewActivityRepository(db),
			close:    db.Close,
		}, nil
	}
}

func runStdioMode(logger *slog.Logger, mcpServer *sdkmcp.Server) {
	logger.Info("starting stdio transport")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

func runHTTPMode(logger *slog.Logger, mcpServer *sdkmcp.Server, api transport.Config, metricsHandler http.Handler, host string, port int) {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := transport.NewServer(api)
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/*", mcpHandler)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
