// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"restopos/internal/core/tx"
	"restopos/internal/domain/audit"
	"restopos/internal/infrastructure/http/v1/handlers"
	"restopos/internal/infrastructure/http/v1/middleware"
	"restopos/pkg/logger"
)

// RouterConfig holds the router's dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	// JWTValidator authenticates requests. When nil, requests are attributed
	// to the X-Actor-ID header set by a trusted gateway.
	JWTValidator middleware.JWTValidator

	// Idempotency enables X-Idempotency-Key handling when set.
	Idempotency middleware.IdempotencyStore

	DB        handlers.Pinger
	TxManager tx.Manager

	Warehouses handlers.WarehouseService
	Items      handlers.ItemService
	Stock      interface {
		handlers.StockService
		handlers.ItemStockReader
	}
	Recipes   handlers.RecipeService
	Suppliers handlers.SupplierService
	Reports   handlers.ReportService
	ActionLog audit.Reader
	Orders    handlers.UsageEnqueuer

	// Realtime serves /ws/inventory; nil disables it.
	Realtime Realtime
}

// Realtime is the websocket hub.
type Realtime interface {
	ServeWS(c *gin.Context)
	ClientsCount() int
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	var clients func() int
	if cfg.Realtime != nil {
		clients = cfg.Realtime.ClientsCount
	}
	healthHandler := handlers.NewHealthHandler(cfg.DB, clients)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Realtime != nil {
		wsGroup := router.Group("/ws")
		if cfg.JWTValidator != nil {
			wsGroup.Use(middleware.WebsocketAuth(cfg.JWTValidator))
		}
		wsGroup.GET("/inventory", cfg.Realtime.ServeWS)
	}

	api := router.Group("/api/v1")
	if cfg.JWTValidator != nil {
		api.Use(middleware.Auth(cfg.JWTValidator))
	} else {
		api.Use(middleware.TrustedActor())
	}
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerCatalogRoutes(api, base, cfg)
	registerStockRoutes(api, base, cfg)
	registerSupplierRoutes(api, base, cfg)
	registerReportRoutes(api, base, cfg)

	return router
}

func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	// --- WAREHOUSES ---
	{
		handler := handlers.NewWarehouseHandler(base, cfg.Warehouses)
		group := rg.Group("/warehouses")
		group.GET("/default", handler.Default)
		RegisterCatalogRoutes(group, handler)
		group.POST("/:id/default", handler.SetDefault)
	}

	// --- ITEMS ---
	{
		handler := handlers.NewItemHandler(base, cfg.Items, cfg.Stock)
		group := RegisterCatalogRoutes(rg.Group("/items"), handler)
		group.GET("/by-sku/:sku", handler.GetBySKU)
		group.GET("/:id/stock", handler.Stock)
	}

	// --- RECIPES ---
	{
		handler := handlers.NewRecipeHandler(base, cfg.Recipes)
		group := RegisterCatalogRoutes(rg.Group("/recipes"), handler)
		group.GET("/by-menu-item/:menuItemId", handler.ByMenuItem)
		group.GET("/:id/cost", handler.Cost)
		group.POST("/:id/versions", handler.AddVersion)
		group.POST("/:id/versions/:versionId/default", handler.SetDefaultVersion)
	}
}

func registerStockRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	stockHandler := handlers.NewStockHandler(base, cfg.Stock)
	group := rg.Group("/stock")
	{
		group.GET("", stockHandler.List)
		group.GET("/movements", stockHandler.Movements)
		group.GET("/export", stockHandler.Export)
		group.POST("/adjust", stockHandler.Adjust)
		group.POST("/transfer", stockHandler.Transfer)
		group.POST("/count", stockHandler.Count)
		group.POST("/import", stockHandler.Import)
	}

	orderHandler := handlers.NewOrderHandler(base, cfg.TxManager, cfg.Orders)
	rg.POST("/orders/usage", orderHandler.Created)
}

func registerSupplierRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	handler := handlers.NewSupplierHandler(base, cfg.Suppliers)
	group := RegisterCatalogRoutes(rg.Group("/suppliers"), handler)
	{
		group.POST("/:id/purchases", handler.Purchase)
		group.POST("/:id/returns", handler.Return)
		group.POST("/:id/payments", handler.Payment)
		group.GET("/:id/payments", handler.Payments)
		group.GET("/:id/invoices", handler.Invoices)
		group.GET("/:id/price-history", handler.PriceHistory)
	}
}

func registerReportRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	reportHandler := handlers.NewReportsHandler(base, cfg.Reports)
	reports := rg.Group("/reports")
	{
		reports.GET("/low-stock", reportHandler.LowStock)
		reports.GET("/expiring", reportHandler.Expiring)
		reports.GET("/fast-moving", reportHandler.FastMoving)
		reports.GET("/food-cost", reportHandler.FoodCost)
		reports.GET("/anomalies", reportHandler.Anomalies)
		reports.GET("/summary", reportHandler.Summary)
	}

	actionLog := handlers.NewActionLogHandler(base, cfg.ActionLog)
	rg.GET("/action-log", actionLog.List)
}
