package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"restopos/internal/core/id"
	"restopos/internal/domain/usage"
)

// OrderLineRequest is one line of a created order.
type OrderLineRequest struct {
	MenuItemID   id.ID           `json:"menuItemId" binding:"required"`
	MenuItemName string          `json:"menuItemName"`
	Qty          decimal.Decimal `json:"qty"`
	PortionKey   string          `json:"portionKey"`
}

// OrderCreatedRequest notifies the inventory core that an order was persisted.
type OrderCreatedRequest struct {
	OrderID   string             `json:"orderId" binding:"required"`
	Lines     []OrderLineRequest `json:"lines" binding:"dive"`
	CreatedAt *time.Time         `json:"createdAt"`
}

func (r *OrderCreatedRequest) ToEvent(actorID string) usage.OrderCreated {
	lines := make([]usage.OrderLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = usage.OrderLine{
			MenuItemID:   l.MenuItemID,
			MenuItemName: l.MenuItemName,
			Qty:          l.Qty,
			PortionKey:   l.PortionKey,
		}
	}
	out := usage.OrderCreated{OrderID: r.OrderID, ActorID: actorID, Lines: lines}
	if r.CreatedAt != nil {
		out.CreatedAt = r.CreatedAt.UTC()
	}
	return out
}

// OrderAcceptedResponse confirms the usage deduction was queued.
type OrderAcceptedResponse struct {
	OrderID string `json:"orderId"`
	Lines   int    `json:"lines"`
	Status  string `json:"status"`
}
