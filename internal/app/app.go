// Package app assembles repositories and services shared by the server and the worker.
package app

import (
	"github.com/redis/go-redis/v9"

	"restopos/internal/config"
	"restopos/internal/core/events"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/domain/catalogs/recipe"
	"restopos/internal/domain/catalogs/supplier"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/internal/domain/registers/stock"
	"restopos/internal/domain/reports"
	"restopos/internal/domain/usage"
	"restopos/internal/infrastructure/cache"
	"restopos/internal/infrastructure/lock"
	"restopos/internal/infrastructure/numerator"
	"restopos/internal/infrastructure/storage/postgres"
	"restopos/internal/infrastructure/storage/postgres/catalog_repo"
	"restopos/internal/infrastructure/storage/postgres/register_repo"
	"restopos/internal/infrastructure/storage/postgres/report_repo"
)

// Services is the wired inventory core.
type Services struct {
	TxManager *postgres.TxManager
	Publisher *postgres.OutboxPublisher
	ActionLog *postgres.ActionLogStore

	Warehouses *warehouse.Service
	Items      *item.Service
	Recipes    *recipe.Service
	Suppliers  *supplier.Service
	Stock      *stock.Service
	Reports    *reports.Service

	Enqueuer *usage.Enqueuer
	Pipeline *usage.Pipeline
}

// Build wires the services on top of pool. rdb may be nil, in which case
// caches are kept in process and order locks are skipped. notifier receives
// realtime stock events after commit.
func Build(cfg *config.Config, pool *postgres.Pool, rdb redis.UniversalClient, notifier events.Notifier) (*Services, error) {
	txManager := postgres.NewTxManager(pool, cfg.Database.StatementTimeout)

	actionLog, err := postgres.NewActionLogStore(txManager)
	if err != nil {
		return nil, err
	}

	var (
		defaults  warehouse.DefaultCache
		summaries reports.SummaryCache
		locker    usage.Locker
	)
	if rdb != nil {
		c := cache.NewRedisCache(rdb, cfg.Redis.CacheTTL)
		defaults, summaries = c, c
		locker = lock.NewRedisLocker(rdb, cfg.Redis.LockTTL)
	} else {
		c := cache.NewLocal(cfg.Redis.CacheTTL)
		defaults, summaries = c, c
	}

	publisher := postgres.NewOutboxPublisher(txManager)
	stockRepo := register_repo.NewStockRepo(txManager)
	ledger := stock.NewLedger(stockRepo, publisher, notifier)

	warehouses := warehouse.NewService(catalog_repo.NewWarehouseRepo(txManager), txManager, defaults)
	items := item.NewService(catalog_repo.NewItemRepo(txManager), txManager, warehouses)
	recipes := recipe.NewService(catalog_repo.NewRecipeRepo(txManager), txManager, items, warehouses)
	numbers := numerator.New(txManager)
	stockService := stock.NewService(stockRepo, ledger, txManager, items, warehouses, actionLog).WithNumbering(numbers)
	suppliers := supplier.NewService(catalog_repo.NewSupplierRepo(txManager), txManager, items, warehouses, ledger, actionLog).
		WithNumbering(numbers)

	reportService := reports.NewService(report_repo.NewReportRepo(txManager), summaries, reports.Options{
		WindowDays:        cfg.Analytics.FastMovingWindowDays,
		AnomalyFactor:     cfg.Analytics.AnomalyFactor,
		ExpiryHorizonDays: cfg.Analytics.ExpiryHorizonDays,
	})

	pipeline := usage.NewPipeline(recipes, items, warehouses, ledger, stockRepo, txManager, actionLog, locker)

	return &Services{
		TxManager:  txManager,
		Publisher:  publisher,
		ActionLog:  actionLog,
		Warehouses: warehouses,
		Items:      items,
		Recipes:    recipes,
		Suppliers:  suppliers,
		Stock:      stockService,
		Reports:    reportService,
		Enqueuer:   usage.NewEnqueuer(publisher),
		Pipeline:   pipeline,
	}, nil
}

// Close releases resources held by the services.
func (s *Services) Close() {
	s.ActionLog.Close()
}
