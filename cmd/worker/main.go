// Package main is the entry point for the restopos background worker.
// It relays outbox events: queued orders are applied to stock and stock
// events are published to Kafka when enabled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"restopos/internal/app"
	"restopos/internal/config"
	"restopos/internal/core/events"
	"restopos/internal/infrastructure/cache"
	"restopos/internal/infrastructure/messaging"
	"restopos/internal/infrastructure/notify"
	"restopos/internal/infrastructure/storage/postgres"
	"restopos/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting restopos worker", "env", cfg.App.Env)

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database, cfg.App.Name+"-worker"))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer client.Close()
		rdb = client
	}

	services, err := app.Build(cfg, pool, rdb, events.Notifiers{notify.NewPGNotifier(pool.Pool)})
	if err != nil {
		log.Fatalw("failed to build services", "error", err)
	}
	defer services.Close()

	router := postgres.NewOutboxRouter().
		Route(newUsageHandler(services.Pipeline), events.TypeOrderCreated)

	if cfg.Kafka.Enabled {
		sink := messaging.NewKafkaSink(cfg.Kafka)
		defer func() {
			if err := sink.Close(); err != nil {
				log.Warnw("failed to close kafka writer", "error", err)
			}
		}()
		router.Route(sink, events.TypeStockChanged, events.TypeLowStock)
		log.Infow("publishing stock events to kafka", "topic", cfg.Kafka.Topic)
	}

	w := &Worker{
		relay: postgres.NewOutboxRelay(services.TxManager, router, postgres.RelayOptions{
			BatchSize:  cfg.Worker.BatchSize,
			MaxRetries: cfg.Worker.MaxRetries,
		}),
		idempotency: postgres.NewIdempotencyStore(services.TxManager, 0),
		histories:   services.Suppliers,
		cfg:         cfg.Worker,
		log:         log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	<-ctx.Done()
	log.Info("shutting down worker...")
	wg.Wait()
	log.Info("worker stopped")
}
