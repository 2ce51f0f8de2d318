package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"restopos/internal/core/id"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/domain/registers/stock"
	"restopos/internal/infrastructure/http/v1/dto"
)

// ItemService is the item catalog as seen by HTTP.
type ItemService interface {
	Create(ctx context.Context, cmd item.CreateCommand) (*item.Item, error)
	Update(ctx context.Context, itemID id.ID, cmd item.UpdateCommand) (*item.Item, error)
	Archive(ctx context.Context, itemID id.ID) (*item.Item, error)
	Get(ctx context.Context, itemID id.ID) (*item.Item, error)
	GetBySKU(ctx context.Context, sku string) (*item.Item, error)
	List(ctx context.Context, filter item.Filter) (domain.ListResult[*item.Item], error)
}

// ItemStockReader lists the per-warehouse rows of one item.
type ItemStockReader interface {
	ItemStock(ctx context.Context, itemID id.ID) ([]*stock.StockLine, error)
}

// ItemHandler handles /items.
type ItemHandler struct {
	*BaseHandler
	service ItemService
	stock   ItemStockReader
}

func NewItemHandler(base *BaseHandler, service ItemService, stockReader ItemStockReader) *ItemHandler {
	return &ItemHandler{BaseHandler: base, service: service, stock: stockReader}
}

// List handles GET /items
func (h *ItemHandler) List(c *gin.Context) {
	filter := item.Filter{ListFilter: h.ListFilter(c), Category: c.Query("category")}
	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}

// Get handles GET /items/:id
func (h *ItemHandler) Get(c *gin.Context) {
	itemID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	it, err := h.service.Get(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, it)
}

// GetBySKU handles GET /items/by-sku/:sku
func (h *ItemHandler) GetBySKU(c *gin.Context) {
	it, err := h.service.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, it)
}

// Stock handles GET /items/:id/stock
func (h *ItemHandler) Stock(c *gin.Context) {
	itemID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	lines, err := h.stock.ItemStock(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	out := make([]dto.StockLineResponse, len(lines))
	for i, l := range lines {
		out[i] = dto.FromStockLine(l)
	}
	h.OK(c, dto.ItemsResponse{Items: out})
}

// Create handles POST /items
func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	it, err := h.service.Create(c.Request.Context(), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, it)
}

// Update handles PUT /items/:id
func (h *ItemHandler) Update(c *gin.Context) {
	itemID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	it, err := h.service.Update(c.Request.Context(), itemID, req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, it)
}

// Archive handles DELETE /items/:id. Items holding stock are refused.
func (h *ItemHandler) Archive(c *gin.Context) {
	itemID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	it, err := h.service.Archive(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, it)
}
