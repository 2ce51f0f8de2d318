// Package main is the entry point for the restopos inventory API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"restopos/internal/app"
	"restopos/internal/config"
	"restopos/internal/core/events"
	"restopos/internal/domain/auth"
	"restopos/internal/infrastructure/cache"
	v1 "restopos/internal/infrastructure/http/v1"
	"restopos/internal/infrastructure/http/v1/middleware"
	"restopos/internal/infrastructure/notify"
	"restopos/internal/infrastructure/storage/postgres"
	"restopos/internal/infrastructure/storage/postgres/migrations"
	"restopos/internal/infrastructure/ws"
	"restopos/pkg/logger"
)

const idempotencyTTL = 24 * time.Hour

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

	log.Infow("starting restopos server", "env", cfg.App.Env)

	if cfg.Database.MigrateOnStart {
		if err := migrate(cfg.Database.DSN, log); err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database, cfg.App.Name))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer client.Close()
		rdb = client
	}

	// Stock events are fanned out through pg_notify so that changes made by
	// the worker reach websocket clients of every server instance.
	hub := ws.NewHub(cfg.HTTP.AllowedOrigins)
	go hub.Run(ctx)

	listener := notify.NewListener(pool.Pool)
	listener.OnNotification(hub.BroadcastMessage)
	listener.Start(ctx)
	defer listener.Stop()

	services, err := app.Build(cfg, pool, rdb, events.Notifiers{notify.NewPGNotifier(pool.Pool)})
	if err != nil {
		log.Fatalw("failed to build services", "error", err)
	}
	defer services.Close()

	if _, err := services.Warehouses.EnsureDefault(ctx); err != nil {
		log.Warnw("failed to ensure default warehouse", "error", err)
	}

	var validator middleware.JWTValidator
	if cfg.JWT.Secret != "" {
		jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
		if err != nil {
			log.Fatalw("failed to configure jwt", "error", err)
		}
		validator = jwtService
	} else {
		log.Warn("jwt secret not set; trusting X-Actor-ID from the gateway")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: validator,
		Idempotency:  postgres.NewIdempotencyStore(services.TxManager, idempotencyTTL),
		DB:           pool,
		TxManager:    services.TxManager,
		Warehouses:   services.Warehouses,
		Items:        services.Items,
		Stock:        services.Stock,
		Recipes:      services.Recipes,
		Suppliers:    services.Suppliers,
		Reports:      services.Reports,
		ActionLog:    services.ActionLog,
		Orders:       services.Enqueuer,
		Realtime:     hub,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func migrate(dsn string, log *logger.Logger) error {
	m, err := migrations.New(dsn, log)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}
