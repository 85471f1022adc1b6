package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/logging"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.Log.Format, cfg.Log.Level).With(slog.String("component", "worker"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("worker shut down")
}

// run records every booking and flight event into the event log until ctx is
// cancelled.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if !cfg.Kafka.Enabled() {
		return errors.New("kafka.brokers (or KAFKA_BROKERS) is required for the worker")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := migrations.Apply(ctx, pool); err != nil {
		return err
	}

	handle := kafka.AuditHandler(repository.NewEventLogRepository(pool), log)

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range []string{cfg.Kafka.BookingTopic, cfg.Kafka.FlightTopic} {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, topic, log)
		defer consumer.Close()

		g.Go(func() error {
			return consumer.Consume(gctx, handle)
		})
	}
	return g.Wait()
}
