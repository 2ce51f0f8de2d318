package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"restopos/internal/core/id"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/internal/infrastructure/http/v1/dto"
)

// WarehouseService is the warehouse catalog as seen by HTTP.
type WarehouseService interface {
	Create(ctx context.Context, cmd warehouse.CreateCommand) (*warehouse.Warehouse, error)
	Update(ctx context.Context, warehouseID id.ID, cmd warehouse.UpdateCommand) (*warehouse.Warehouse, error)
	Archive(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error)
	SetDefault(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error)
	Default(ctx context.Context) (*warehouse.Warehouse, error)
	Get(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error)
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*warehouse.Warehouse], error)
}

// WarehouseHandler handles /warehouses.
type WarehouseHandler struct {
	*BaseHandler
	service WarehouseService
}

func NewWarehouseHandler(base *BaseHandler, service WarehouseService) *WarehouseHandler {
	return &WarehouseHandler{BaseHandler: base, service: service}
}

// List handles GET /warehouses
func (h *WarehouseHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), h.ListFilter(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}

// Get handles GET /warehouses/:id
func (h *WarehouseHandler) Get(c *gin.Context) {
	warehouseID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	w, err := h.service.Get(c.Request.Context(), warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, w)
}

// Default handles GET /warehouses/default. The main warehouse is created on first use.
func (h *WarehouseHandler) Default(c *gin.Context) {
	w, err := h.service.Default(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, w)
}

// Create handles POST /warehouses
func (h *WarehouseHandler) Create(c *gin.Context) {
	var req dto.CreateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	w, err := h.service.Create(c.Request.Context(), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, w)
}

// Update handles PUT /warehouses/:id
func (h *WarehouseHandler) Update(c *gin.Context) {
	warehouseID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	w, err := h.service.Update(c.Request.Context(), warehouseID, req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, w)
}

// SetDefault handles POST /warehouses/:id/default
func (h *WarehouseHandler) SetDefault(c *gin.Context) {
	warehouseID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	w, err := h.service.SetDefault(c.Request.Context(), warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, w)
}

// Archive handles DELETE /warehouses/:id
func (h *WarehouseHandler) Archive(c *gin.Context) {
	warehouseID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	w, err := h.service.Archive(c.Request.Context(), warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, w)
}
