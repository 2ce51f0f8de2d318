package dto

import (
	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain/registers/stock"
)

// AdjustStockRequest is a manual stock movement.
type AdjustStockRequest struct {
	ItemID      id.ID              `json:"itemId" binding:"required"`
	WarehouseID *id.ID             `json:"warehouseId"`
	Type        stock.MovementType `json:"type" binding:"required"`
	Quantity    types.Quantity     `json:"quantity"`
	UnitCost    *types.Money       `json:"unitCost"`
	Reason      string             `json:"reason"`
	Reference   string             `json:"reference"`
}

func (r *AdjustStockRequest) ToCommand() stock.AdjustCommand {
	return stock.AdjustCommand{
		ItemID:      r.ItemID,
		WarehouseID: r.WarehouseID,
		Type:        r.Type,
		Quantity:    r.Quantity,
		UnitCost:    r.UnitCost,
		Reason:      r.Reason,
		Reference:   r.Reference,
	}
}

// TransferStockRequest moves stock between warehouses.
type TransferStockRequest struct {
	ItemID          id.ID          `json:"itemId" binding:"required"`
	FromWarehouseID *id.ID         `json:"fromWarehouseId"`
	ToWarehouseID   *id.ID         `json:"toWarehouseId" binding:"required"`
	Quantity        types.Quantity `json:"quantity"`
	Reason          string         `json:"reason"`
	Reference       string         `json:"reference"`
}

func (r *TransferStockRequest) ToCommand() stock.TransferCommand {
	return stock.TransferCommand{
		ItemID:          r.ItemID,
		FromWarehouseID: r.FromWarehouseID,
		ToWarehouseID:   r.ToWarehouseID,
		Quantity:        r.Quantity,
		Reason:          r.Reason,
		Reference:       r.Reference,
	}
}

// CountLineRequest is one counted item.
type CountLineRequest struct {
	ItemID  id.ID          `json:"itemId" binding:"required"`
	Counted types.Quantity `json:"counted"`
}

// CycleCountRequest reconciles a warehouse against a physical count.
type CycleCountRequest struct {
	WarehouseID *id.ID             `json:"warehouseId"`
	Lines       []CountLineRequest `json:"lines" binding:"required,min=1,dive"`
	Reason      string             `json:"reason"`
	Reference   string             `json:"reference"`
}

func (r *CycleCountRequest) ToCommand() stock.CountCommand {
	lines := make([]stock.CountLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = stock.CountLine{ItemID: l.ItemID, Counted: l.Counted}
	}
	return stock.CountCommand{
		WarehouseID: r.WarehouseID,
		Lines:       lines,
		Reason:      r.Reason,
		Reference:   r.Reference,
	}
}

// ImportStockRequest is the JSON form of a stock import.
type ImportStockRequest struct {
	WarehouseID *id.ID      `json:"warehouseId"`
	Rows        []stock.Row `json:"rows" binding:"required,min=1"`
	Reason      string      `json:"reason"`
}

func (r *ImportStockRequest) ToCommand() stock.ImportCommand {
	return stock.ImportCommand{WarehouseID: r.WarehouseID, Rows: r.Rows, Reason: r.Reason}
}

// --- Response DTOs ---

// AppliedResponse reports one stock mutation.
type AppliedResponse struct {
	ItemID      id.ID           `json:"itemId"`
	WarehouseID id.ID           `json:"warehouseId"`
	Before      types.Quantity  `json:"before"`
	After       types.Quantity  `json:"after"`
	Requested   types.Quantity  `json:"requested"`
	Applied     types.Quantity  `json:"applied"`
	Shortage    types.Quantity  `json:"shortage,omitempty"`
	ItemTotal   types.Quantity  `json:"itemTotal"`
	Movement    *stock.Movement `json:"movement,omitempty"`
}

func FromApplied(a *stock.Applied) *AppliedResponse {
	if a == nil {
		return nil
	}
	return &AppliedResponse{
		ItemID:      a.ItemID,
		WarehouseID: a.WarehouseID,
		Before:      a.Before,
		After:       a.After,
		Requested:   a.Requested,
		Applied:     a.Deducted,
		Shortage:    a.Shortage,
		ItemTotal:   a.ItemTotal,
		Movement:    a.Movement,
	}
}

// TransferResponse holds both legs of a transfer.
type TransferResponse struct {
	Out *AppliedResponse `json:"out"`
	In  *AppliedResponse `json:"in"`
}

func FromTransfer(r *stock.TransferResult) TransferResponse {
	return TransferResponse{Out: FromApplied(r.Out), In: FromApplied(r.In)}
}

// CountResponse lists every counted line; unchanged lines carry no movement.
type CountResponse struct {
	WarehouseID id.ID              `json:"warehouseId"`
	Reference   string             `json:"reference,omitempty"`
	Adjusted    int                `json:"adjusted"`
	Lines       []*AppliedResponse `json:"lines"`
}

func FromCount(r *stock.CountResult) CountResponse {
	out := CountResponse{WarehouseID: r.WarehouseID, Reference: r.Reference, Lines: make([]*AppliedResponse, len(r.Lines))}
	for i, l := range r.Lines {
		out.Lines[i] = FromApplied(l)
		if l.Movement != nil {
			out.Adjusted++
		}
	}
	return out
}

// StockLineResponse is one stock row with its effective par level.
type StockLineResponse struct {
	*stock.StockLine
	EffectiveParLevel types.Quantity `json:"effectiveParLevel"`
	LowStock          bool           `json:"lowStock"`
}

func FromStockLine(l *stock.StockLine) StockLineResponse {
	par := l.EffectiveParLevel()
	return StockLineResponse{
		StockLine:         l,
		EffectiveParLevel: par,
		LowStock:          par.IsPositive() && l.Quantity <= par,
	}
}
