// Package main drains the audit topic into the audit_events table.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"qrpass/internal/audit"
	"qrpass/internal/platform/config"
	"qrpass/internal/platform/database"
	"qrpass/internal/platform/kafka/consumer"
	"qrpass/internal/platform/logger"
	"qrpass/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level)
	if err := run(cfg, log); err != nil {
		log.Error("audit consumer exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	if pool == nil {
		return errors.New("database.url is required")
	}
	defer pool.Close() //nolint:errcheck // process exit
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	sink := audit.NewSink(audit.NewPostgresStore(pool.DB()), log)
	c, err := consumer.New(consumer.Config{
		Brokers:  cfg.Kafka.Brokers,
		GroupID:  cfg.Kafka.ConsumerGroup,
		Topics:   []string{cfg.Kafka.AuditTopic},
		Earliest: true,
	}, sink, log)
	if err != nil {
		return err
	}

	log.Info("consuming audit events",
		"topic", cfg.Kafka.AuditTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		c.Close()
		return nil
	})
	return g.Wait()
}
