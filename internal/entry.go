// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/metrics"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/tracker"
	"github.com/starford/raido/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Stdout carries the MCP protocol in stdio mode.
	var out io.Writer = os.Stdout
	if cfg.MCP.Stdio() {
		out = os.Stderr
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("backend", cfg.Backend.Kind),
		slog.String("mcp_transport", cfg.MCP.Transport),
		slog.Duration("checkpoint_interval", time.Duration(cfg.Tracker.CheckpointInterval)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	loc, err := cfg.Tracker.Loc()
	if err != nil {
		return fmt.Errorf("tracker location: %w", err)
	}

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			logger.Error("backend close failed", slog.String("error", err.Error()))
		}
	}()

	m := metrics.New()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	trOpts := []tracker.Option{
		tracker.WithLocation(loc),
		tracker.WithLogger(logger),
		tracker.WithMetrics(m),
		tracker.WithEvents(broker.PublishSessionEvent),
	}
	if app.clock != nil {
		trOpts = append(trOpts, tracker.WithClock(app.clock))
	}
	tr := tracker.New(be.docs, be.log, trOpts...)

	sweeper := tracker.NewSweeper(tr, time.Duration(cfg.Tracker.CheckpointInterval))
	mcpSrv := mcpserver.New(tr, app.version)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  log.New(out, "", log.LstdFlags),
		NoColor: true,
	}))
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

	r.Handle("/metrics", m.Handler())

	// Mount API routes under /api, SSE stream at /api/events.
	r.Mount("/api", api.NewRouter(tr, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, m))

	// Streamable HTTP MCP transport behind the same bearer token.
	r.Handle("/mcp", api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)(mcpSrv.HTTPHandler()))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)
	gCtx, cancel := context.WithCancel(gCtx)
	defer cancel()

	// Auto-checkpoint sweeper.
	g.Go(func() error {
		return sweeper.Run(gCtx)
	})

	// Vault watcher reports sessions orphaned by external edits.
	if be.vault != nil && cfg.Vault.Watch {
		g.Go(func() error {
			return watch.Watch(gCtx, be.vault, tr, watch.Config{Include: cfg.Vault.Include}, logger,
				func(kind, key string) {
					logger.Debug("vault document event", slog.String("kind", kind), slog.String("key", key))
					broker.Publish(sse.Event{Type: "document." + kind, Data: map[string]string{"issue_key": key}})
				})
		})
	}

	// MCP over stdio; the process ends when the client closes stdin.
	if cfg.MCP.Stdio() {
		g.Go(func() error {
			logger.Info("Starting MCP stdio server")
			err := mcpSrv.ServeStdio(gCtx)
			logger.Info("MCP stdio server stopped")
			cancel()
			return err
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
			cancel()
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		if n := tr.Registry().Len(); n > 0 {
			logger.Warn("exiting with unlogged work sessions", slog.Int("active_sessions", n))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
