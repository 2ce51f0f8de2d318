package v1

import (
	"github.com/gin-gonic/gin"
)

// CatalogRouteHandler defines the interface for catalog handlers.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Archive(c *gin.Context)
}

// RegisterCatalogRoutes registers the standard CRUD routes for a catalog.
// DELETE archives; catalog rows are never removed.
//
// Usage:
//
//	handler := handlers.NewSupplierHandler(base, cfg.Suppliers)
//	suppliers := RegisterCatalogRoutes(api.Group("/suppliers"), handler)
//	suppliers.POST("/:id/payments", handler.Payment)
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) *gin.RouterGroup {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Archive)
	return group
}
