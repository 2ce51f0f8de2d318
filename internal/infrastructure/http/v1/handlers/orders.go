package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	appctx "restopos/internal/core/context"
	"restopos/internal/core/tx"
	"restopos/internal/domain/usage"
	"restopos/internal/infrastructure/http/v1/dto"
)

// UsageEnqueuer records the deduction intent of a created order.
type UsageEnqueuer interface {
	Enqueue(ctx context.Context, order usage.OrderCreated) error
}

// OrderHandler accepts order-created notifications from the POS.
type OrderHandler struct {
	*BaseHandler
	txManager tx.Manager
	enqueuer  UsageEnqueuer
}

func NewOrderHandler(base *BaseHandler, txManager tx.Manager, enqueuer UsageEnqueuer) *OrderHandler {
	return &OrderHandler{BaseHandler: base, txManager: txManager, enqueuer: enqueuer}
}

// Created handles POST /orders/usage. The deduction runs asynchronously in
// the worker; the order itself is never blocked by inventory.
func (h *OrderHandler) Created(c *gin.Context) {
	var req dto.OrderCreatedRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	event := req.ToEvent(appctx.ActorID(ctx))
	err := h.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return h.enqueuer.Enqueue(ctx, event)
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Accepted(c, dto.OrderAcceptedResponse{OrderID: req.OrderID, Lines: len(req.Lines), Status: "queued"})
}
