package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"qrpass/internal/platform/config"
	"qrpass/internal/platform/logger"
)

// main loads configuration, wires the infrastructure and runs the HTTP
// server alongside the background workers until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close(log)

	app, err := buildApp(cfg, infra, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.router,
		ReadHeaderTimeout: cfg.Server.RequestTimeout,
	}

	log.Info("starting qrpass",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"postgres", infra.db != nil,
		"redis", infra.redis != nil,
		"kafka", infra.producer != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if app.reconcileWorker != nil {
		g.Go(func() error {
			if err := app.reconcileWorker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("reconcile worker: %w", err)
			}
			return nil
		})
	}
	if infra.redis != nil {
		g.Go(func() error {
			return infra.redis.RunPoolStats(gctx, redisStatsInterval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
