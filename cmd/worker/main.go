// Package main is the entry point for the clinic ledger background worker.
// It relays outbox events to a Redis stream and sweeps system tables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"clinicledger/internal/app"
	"clinicledger/internal/config"
	"clinicledger/internal/infrastructure/eventbus"
	"clinicledger/internal/infrastructure/storage/postgres"
	"clinicledger/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("CLINIC_CONFIG"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatalw("worker requires the postgres driver", "driver", cfg.Database.Driver)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting clinicledger worker")

	st, err := app.NewPostgresStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer st.Close()

	rdb, err := eventbus.NewRedis(ctx, cfg.Redis.URL)
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer func() { _ = rdb.Close() }()

	publisher := eventbus.NewRedisPublisher(rdb, cfg.Redis.EventsStream, cfg.Redis.StreamMaxLen)
	relay := postgres.NewOutboxRelay(st.PgTx, cfg.Outbox.BatchSize, publisher)

	worker := NewWorker(relay, st.Idempotency, cfg.Outbox, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}
