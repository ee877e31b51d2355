// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notenest/internal/api"
	"github.com/starford/notenest/internal/index"
	"github.com/starford/notenest/internal/mcpserver"
	"github.com/starford/notenest/internal/plugin"
	"github.com/starford/notenest/internal/repository"
	"github.com/starford/notenest/internal/sse"
	"github.com/starford/notenest/internal/storage"
	"github.com/starford/notenest/internal/watcher"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	db     *index.DB
	repo   *repository.Repository
}

// bootstrap opens the workspace and the index and builds the repository.
// The caller owns rt.db.
func bootstrap(app *application, repoOpts ...repository.Option) (*runtime, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("sqlite_path", cfg.IndexPath()),
		slog.Bool("prune_orphans", cfg.Workspace.PruneOrphans),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure workspace directories exist.
	if err := os.MkdirAll(cfg.Workspace.PagesDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create pages dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.IndexPath()), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Workspace.PagesDir())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.IndexPath())
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	registry, err := plugin.NewDefaultRegistry()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init plugins: %w", err)
	}

	opts := append([]repository.Option{
		repository.WithRegistry(registry),
		repository.WithLogger(logger),
		repository.WithPrune(cfg.Workspace.PruneOrphans),
	}, repoOpts...)

	return &runtime{
		cfg:    cfg,
		logger: logger,
		db:     db,
		repo:   repository.New(store, db, opts...),
	}, nil
}

// reconcileOnStart runs the startup pass. Failures are logged; the index is
// still usable and the watcher or POST /api/reconcile can repair it later.
func (rt *runtime) reconcileOnStart(ctx context.Context) {
	if !rt.cfg.Workspace.ReconcileOnStart {
		return
	}
	if _, err := rt.repo.Reconcile(ctx); err != nil {
		rt.logger.Warn("initial reconcile failed", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP server, the SSE broker and the workspace watcher.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(os.Stdout, opts)

	// SSE broker receives every repository mutation.
	broker := sse.NewBroker(sse.WithGraphThrottle(2 * time.Second))
	defer broker.Close()

	rt, err := bootstrap(app, repository.WithEventCallback(broker.PublishPageEvent))
	if err != nil {
		return err
	}
	defer rt.db.Close()

	cfg, logger := rt.cfg, rt.logger
	rt.reconcileOnStart(ctx)

	apiRouter := api.NewRouter(rt.repo, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reconcile after out-of-band edits.
	if cfg.Workspace.Watch {
		g.Go(func() error {
			err := watcher.Watch(gCtx, rt.repo, cfg.Workspace.PagesDir(), watcher.DefaultDebounce, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// ReconcileOnce runs a single reconciliation pass and writes the report as
// JSON to out.
func ReconcileOnce(ctx context.Context, out io.Writer, opts ...Option) (*repository.Report, error) {
	app := newApplication(os.Stderr, opts)
	rt, err := bootstrap(app)
	if err != nil {
		return nil, err
	}
	defer rt.db.Close()

	rep, err := rt.repo.Reconcile(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	if out != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return rep, fmt.Errorf("write report: %w", err)
		}
	}
	return rep, nil
}

// ServeMCP serves the MCP tools on stdin/stdout until the client disconnects.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(os.Stderr, opts)
	rt, err := bootstrap(app)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	rt.reconcileOnStart(ctx)
	rt.logger.Info("Serving MCP on stdio")
	return mcpserver.New(rt.repo).ServeStdio()
}
