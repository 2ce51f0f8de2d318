package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/supplier"
	"restopos/internal/infrastructure/http/v1/dto"
)

// SupplierService is the supplier catalog and ledger as seen by HTTP.
type SupplierService interface {
	Create(ctx context.Context, cmd supplier.CreateCommand) (*supplier.Supplier, error)
	Update(ctx context.Context, supplierID id.ID, cmd supplier.UpdateCommand) (*supplier.Supplier, error)
	Archive(ctx context.Context, supplierID id.ID) (*supplier.Supplier, error)
	Get(ctx context.Context, supplierID id.ID) (*supplier.Supplier, error)
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*supplier.Supplier], error)

	RecordPurchase(ctx context.Context, cmd supplier.PurchaseCommand) (*supplier.PurchaseResult, error)
	RecordReturn(ctx context.Context, cmd supplier.ReturnCommand) (*supplier.ReturnResult, error)
	RecordPayment(ctx context.Context, cmd supplier.PaymentCommand) (*supplier.Payment, error)

	ListPriceHistory(ctx context.Context, supplierID id.ID, filter supplier.PriceFilter) (domain.ListResult[*supplier.PriceEntry], error)
	ListPayments(ctx context.Context, supplierID id.ID, page domain.Page) (domain.ListResult[*supplier.Payment], error)
	ListInvoices(ctx context.Context, supplierID id.ID, page domain.Page) (domain.ListResult[*supplier.Invoice], error)
}

// SupplierHandler handles /suppliers.
type SupplierHandler struct {
	*BaseHandler
	service SupplierService
}

func NewSupplierHandler(base *BaseHandler, service SupplierService) *SupplierHandler {
	return &SupplierHandler{BaseHandler: base, service: service}
}

// List handles GET /suppliers
func (h *SupplierHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), h.ListFilter(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}

// Get handles GET /suppliers/:id
func (h *SupplierHandler) Get(c *gin.Context) {
	supplierID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	s, err := h.service.Get(c.Request.Context(), supplierID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// Create handles POST /suppliers
func (h *SupplierHandler) Create(c *gin.Context) {
	var req dto.CreateSupplierRequest
	if !h.BindJSON(c, &req) {
		return
	}
	s, err := h.service.Create(c.Request.Context(), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, s)
}

// Update handles PUT /suppliers/:id
func (h *SupplierHandler) Update(c *gin.Context) {
	supplierID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateSupplierRequest
	if !h.BindJSON(c, &req) {
		return
	}
	s, err := h.service.Update(c.Request.Context(), supplierID, req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// Archive handles DELETE /suppliers/:id
func (h *SupplierHandler) Archive(c *gin.Context) {
	supplierID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	s, err := h.service.Archive(c.Request.Context(), supplierID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// Purchase handles POST /suppliers/:id/purchases
func (h *SupplierHandler) Purchase(c *gin.Context) {
	supplierID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.PurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.service.RecordPurchase(c.Request.Context(), req.ToCommand(supplierID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.PurchaseResponse{PurchaseResult: result, Stock: dto.FromApplied(result.Stock)})
}

// Return handles POST /suppliers/:id/returns
func (h *SupplierHandler) Return(c *gin.Context) {
	supplierID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.service.RecordReturn(c.Request.Context(), req.ToCommand(supplierID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.ReturnResponse{ReturnResult: result, Stock: dto.FromApplied(result.Stock)})
}

// Payment handles POST /suppliers/:id/payments
func (h *SupplierHandler) Payment(c *gin.Context) {
	supplierID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	payment, err := h.service.RecordPayment(c.Request.Context(), req.ToCommand(supplierID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, payment)
}

// PriceHistory handles GET /suppliers/:id/price-history?itemId=&kind=
func (h *SupplierHandler) PriceHistory(c *gin.Context) {
	supplierID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.QueryID(c, "itemId")
	if !ok {
		return
	}
	kind := supplier.EntryKind(c.Query("kind"))
	if kind != "" && kind != supplier.KindPurchase && kind != supplier.KindReturn {
		h.Error(c, apperror.NewInvalidInput("kind", "expected purchase or return"))
		return
	}
	filter := supplier.PriceFilter{ItemID: itemID, Kind: kind, Page: h.Page(c)}
	result, err := h.service.ListPriceHistory(c.Request.Context(), supplierID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}

// Payments handles GET /suppliers/:id/payments
func (h *SupplierHandler) Payments(c *gin.Context) {
	supplierID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	result, err := h.service.ListPayments(c.Request.Context(), supplierID, h.Page(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}

// Invoices handles GET /suppliers/:id/invoices
func (h *SupplierHandler) Invoices(c *gin.Context) {
	supplierID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	result, err := h.service.ListInvoices(c.Request.Context(), supplierID, h.Page(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}
