package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yoyaba/gtm-docgen/config"
	httpx "github.com/yoyaba/gtm-docgen/internal/http"
)

// shutdownGrace bounds how long in-flight requests get on shutdown.
const shutdownGrace = 15 * time.Second

// OrchestrationConfig groups dependencies for RunServicesWithShutdown.
type OrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// RunServicesWithShutdown runs the enabled services until a termination
// signal arrives, then shuts them down gracefully. The HTTP server and the
// sweeper run as peers under one errgroup; the first fatal error stops both.
func RunServicesWithShutdown(cfg *OrchestrationConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Config.IsHTTPServerEnabled() {
		server := buildHTTPServer(cfg, logger)
		g.Go(func() error {
			logger.InfoContext(ctx, "starting HTTP server", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
			logger.Info("HTTP server stopped")
			return nil
		})
	}

	if cfg.Config.IsSweeperEnabled() {
		g.Go(func() error {
			return cfg.Services.Sweeper.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("all services stopped")
	return nil
}

func buildHTTPServer(cfg *OrchestrationConfig, logger *slog.Logger) *http.Server {
	handler := httpx.NewRouter(httpx.RouterServices{
		Submission: cfg.Services.Submission,
		Ingest:     cfg.Services.Ingest,
		DB:         cfg.DB,
		Replay:     cfg.Services.Replay,
		Registry:   cfg.Services.Registry,
		Logger:     logger,
	})

	addr := cfg.Config.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
