package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"restopos/internal/domain"
	"restopos/internal/domain/reports"
	"restopos/internal/infrastructure/http/v1/dto"
)

// ReportService provides the read-only inventory reports.
type ReportService interface {
	LowStock(ctx context.Context, page domain.Page) ([]reports.LowStockRow, error)
	ExpiringSoon(ctx context.Context, days int) ([]reports.ExpiringRow, error)
	FastMoving(ctx context.Context, limit int) ([]reports.FastMovingRow, error)
	FoodCost(ctx context.Context, page domain.Page) ([]reports.FoodCostRow, error)
	Anomalies(ctx context.Context) ([]reports.AnomalyRow, error)
	Summary(ctx context.Context) (*reports.Summary, error)
}

// ReportsHandler handles /reports.
type ReportsHandler struct {
	*BaseHandler
	service ReportService
}

func NewReportsHandler(base *BaseHandler, service ReportService) *ReportsHandler {
	return &ReportsHandler{BaseHandler: base, service: service}
}

// LowStock handles GET /reports/low-stock
func (h *ReportsHandler) LowStock(c *gin.Context) {
	rows, err := h.service.LowStock(c.Request.Context(), h.Page(c))
	respondRows(h.BaseHandler, c, rows, err)
}

// Expiring handles GET /reports/expiring?days=
func (h *ReportsHandler) Expiring(c *gin.Context) {
	rows, err := h.service.ExpiringSoon(c.Request.Context(), h.ParseIntQuery(c, "days", 0))
	respondRows(h.BaseHandler, c, rows, err)
}

// FastMoving handles GET /reports/fast-moving?limit=
func (h *ReportsHandler) FastMoving(c *gin.Context) {
	rows, err := h.service.FastMoving(c.Request.Context(), h.ParseIntQuery(c, "limit", 0))
	respondRows(h.BaseHandler, c, rows, err)
}

// FoodCost handles GET /reports/food-cost
func (h *ReportsHandler) FoodCost(c *gin.Context) {
	rows, err := h.service.FoodCost(c.Request.Context(), h.Page(c))
	respondRows(h.BaseHandler, c, rows, err)
}

// Anomalies handles GET /reports/anomalies
func (h *ReportsHandler) Anomalies(c *gin.Context) {
	rows, err := h.service.Anomalies(c.Request.Context())
	respondRows(h.BaseHandler, c, rows, err)
}

// Summary handles GET /reports/summary
func (h *ReportsHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}

func respondRows[T any](h *BaseHandler, c *gin.Context, rows []T, err error) {
	if err != nil {
		h.Error(c, err)
		return
	}
	if rows == nil {
		rows = []T{}
	}
	h.OK(c, dto.ItemsResponse{Items: rows})
}
