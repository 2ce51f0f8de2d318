package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/domain"
	"restopos/internal/domain/registers/stock"
	"restopos/internal/infrastructure/exchange"
	"restopos/internal/infrastructure/http/v1/dto"
)

const maxImportBytes = 10 << 20

// StockService is the stock ledger as seen by HTTP.
type StockService interface {
	Adjust(ctx context.Context, cmd stock.AdjustCommand) (*stock.Applied, error)
	Transfer(ctx context.Context, cmd stock.TransferCommand) (*stock.TransferResult, error)
	CycleCount(ctx context.Context, cmd stock.CountCommand) (*stock.CountResult, error)
	Import(ctx context.Context, cmd stock.ImportCommand) (*stock.ImportResult, error)
	Export(ctx context.Context, warehouseID *id.ID) ([]stock.Row, error)
	ListStock(ctx context.Context, filter stock.StockFilter) (domain.ListResult[*stock.StockLine], error)
	ListMovements(ctx context.Context, filter stock.MovementFilter) (domain.ListResult[*stock.Movement], error)
}

// StockHandler handles /stock.
type StockHandler struct {
	*BaseHandler
	service StockService
}

func NewStockHandler(base *BaseHandler, service StockService) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// List handles GET /stock
func (h *StockHandler) List(c *gin.Context) {
	itemID, ok := h.QueryID(c, "itemId")
	if !ok {
		return
	}
	warehouseID, ok := h.QueryID(c, "warehouseId")
	if !ok {
		return
	}

	filter := stock.StockFilter{
		ItemID:      itemID,
		WarehouseID: warehouseID,
		Search:      c.Query("search"),
		ExcludeZero: c.Query("excludeZero") == "true",
		Page:        h.Page(c),
	}
	result, err := h.service.ListStock(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	lines := make([]dto.StockLineResponse, len(result.Items))
	for i, l := range result.Items {
		lines[i] = dto.FromStockLine(l)
	}
	List(c, domain.ListResult[dto.StockLineResponse]{
		Items:      lines,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Movements handles GET /stock/movements
func (h *StockHandler) Movements(c *gin.Context) {
	var filter stock.MovementFilter
	var ok bool
	if filter.ItemID, ok = h.QueryID(c, "itemId"); !ok {
		return
	}
	if filter.WarehouseID, ok = h.QueryID(c, "warehouseId"); !ok {
		return
	}
	if filter.SupplierID, ok = h.QueryID(c, "supplierId"); !ok {
		return
	}
	if filter.From, ok = h.QueryTime(c, "from"); !ok {
		return
	}
	if filter.To, ok = h.QueryTime(c, "to"); !ok {
		return
	}
	for _, raw := range strings.Split(c.Query("type"), ",") {
		t := stock.MovementType(strings.TrimSpace(raw))
		if t == "" {
			continue
		}
		if !t.IsValid() {
			h.Error(c, apperror.NewInvalidInput("type", "unknown movement type").WithDetail("value", string(t)))
			return
		}
		filter.Types = append(filter.Types, t)
	}
	filter.Reference = c.Query("reference")
	filter.Page = h.Page(c)

	result, err := h.service.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}

// Adjust handles POST /stock/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	applied, err := h.service.Adjust(c.Request.Context(), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromApplied(applied))
}

// Transfer handles POST /stock/transfer
func (h *StockHandler) Transfer(c *gin.Context) {
	var req dto.TransferStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.service.Transfer(c.Request.Context(), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromTransfer(result))
}

// Count handles POST /stock/count
func (h *StockHandler) Count(c *gin.Context) {
	var req dto.CycleCountRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.service.CycleCount(c.Request.Context(), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCount(result))
}

// Import handles POST /stock/import. A multipart upload in field "file" is
// read as xlsx; anything else is read as JSON.
func (h *StockHandler) Import(c *gin.Context) {
	var cmd stock.ImportCommand

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		warehouseID, err := id.ParseOptional(c.PostForm("warehouseId"))
		if err != nil {
			h.Error(c, apperror.NewInvalidInput("warehouseId", "invalid id format"))
			return
		}
		rows, ok := h.readUpload(c)
		if !ok {
			return
		}
		cmd = stock.ImportCommand{WarehouseID: warehouseID, Rows: rows, Reason: c.PostForm("reason")}
	} else {
		var req dto.ImportStockRequest
		if !h.BindJSON(c, &req) {
			return
		}
		cmd = req.ToCommand()
	}

	result, err := h.service.Import(c.Request.Context(), cmd)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

func (h *StockHandler) readUpload(c *gin.Context) ([]stock.Row, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("file", "xlsx file is required"))
		return nil, false
	}
	if header.Size > maxImportBytes {
		h.Error(c, apperror.NewInvalidInput("file", "file is too large").WithDetail("max_bytes", maxImportBytes))
		return nil, false
	}
	f, err := header.Open()
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return nil, false
	}
	defer f.Close()

	rows, err := exchange.ReadXLSX(f)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	return rows, true
}

// Export handles GET /stock/export. format=xlsx returns a workbook.
func (h *StockHandler) Export(c *gin.Context) {
	warehouseID, ok := h.QueryID(c, "warehouseId")
	if !ok {
		return
	}
	rows, err := h.service.Export(c.Request.Context(), warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if c.Query("format") != "xlsx" {
		if rows == nil {
			rows = []stock.Row{}
		}
		c.JSON(http.StatusOK, dto.ItemsResponse{Items: rows})
		return
	}

	var buf bytes.Buffer
	if err := exchange.WriteXLSX(&buf, rows); err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	filename := fmt.Sprintf("stock-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, exchange.ContentType, buf.Bytes())
}
