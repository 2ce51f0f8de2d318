package supplier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"restopos/internal/core/apperror"
	appctx "restopos/internal/core/context"
	"restopos/internal/core/entity"
	"restopos/internal/core/id"
	"restopos/internal/core/numerator"
	"restopos/internal/core/types"
	"restopos/internal/domain/audit"
	"restopos/internal/domain/registers/stock"
	"restopos/pkg/logger"
)

// PurchaseCommand records goods received from a supplier.
type PurchaseCommand struct {
	SupplierID  id.ID
	ItemID      id.ID
	WarehouseID *id.ID
	Quantity    types.Quantity
	UnitCost    types.Money

	// InvoiceNumber attaches an open invoice for the purchase total when set.
	InvoiceNumber  string
	InvoiceDueDate *time.Time

	Reference string
	Note      string
}

type PurchaseResult struct {
	Supplier   *Supplier      `json:"supplier"`
	Stock      *stock.Applied `json:"-"`
	PriceEntry *PriceEntry    `json:"priceEntry"`
	Invoice    *Invoice       `json:"invoice,omitempty"`
	Reference  string         `json:"reference,omitempty"`
	// ItemCost is the item's weighted-average cost after the purchase.
	ItemCost types.Money `json:"itemCost"`
}

// ReturnCommand sends goods back to a supplier.
type ReturnCommand struct {
	SupplierID  id.ID
	ItemID      id.ID
	WarehouseID *id.ID
	Quantity    types.Quantity
	// UnitCost defaults to the item's current cost.
	UnitCost  *types.Money
	Reason    string
	Reference string
}

type ReturnResult struct {
	Supplier   *Supplier      `json:"supplier"`
	Stock      *stock.Applied `json:"-"`
	PriceEntry *PriceEntry    `json:"priceEntry"`
	Reference  string         `json:"reference,omitempty"`
	// Returned is the quantity actually taken out of stock.
	Returned types.Quantity `json:"returned"`
	Value    types.Money    `json:"value"`
}

// PaymentCommand records money paid to a supplier.
type PaymentCommand struct {
	SupplierID id.ID
	Amount     types.Money
	Method     PaymentMethod
	Reference  *string
	Note       *string
	PaidAt     *time.Time
	// InvoiceID marks an invoice paid.
	InvoiceID *id.ID
}

// RecordPurchase adds stock, reprices the item with a weighted average and
// increases the amount owed.
func (s *Service) RecordPurchase(ctx context.Context, cmd PurchaseCommand) (*PurchaseResult, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, apperror.NewInvalidInput("quantity", "quantity must be positive")
	}
	if !cmd.UnitCost.IsPositive() {
		return nil, apperror.NewInvalidInput("unitCost", "unit cost must be positive")
	}
	unitCost := cmd.UnitCost.Round(types.CostPrecision)
	invoiceNumber := strings.TrimSpace(cmd.InvoiceNumber)

	result := &PurchaseResult{}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sup, err := s.getActiveForUpdate(ctx, cmd.SupplierID)
		if err != nil {
			return err
		}
		it, err := s.items.GetActiveForUpdate(ctx, cmd.ItemID)
		if err != nil {
			return err
		}
		wh, err := stock.ResolveWarehouse(ctx, s.warehouses, cmd.WarehouseID, it)
		if err != nil {
			return err
		}

		// The item row lock makes CurrentStock the quantity valued at the old cost.
		newCost := types.WeightedAverageCost(it.CurrentStock, it.Cost, cmd.Quantity, unitCost)

		result.Reference, err = s.reference(ctx, cmd.Reference, numerator.PrefixPurchase)
		if err != nil {
			return err
		}

		metadata := entity.Metadata{"supplierId": sup.ID.String(), "supplierCode": sup.Code}
		if invoiceNumber != "" {
			metadata.Set("invoiceNumber", invoiceNumber)
		}
		applied, err := s.ledger.Apply(ctx, stock.Mutation{
			Item:        it,
			WarehouseID: wh.ID,
			Type:        stock.MovementIncoming,
			Policy:      stock.PolicyReject,
			Delta:       cmd.Quantity,
			Seed:        stock.SeedFor(it),
			UnitCost:    &unitCost,
			Reason:      reasonOr(cmd.Note, "supplier purchase"),
			Reference:   result.Reference,
			Metadata:    metadata,
			SupplierID:  &sup.ID,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.items.UpdateCost(ctx, it.ID, newCost, now); err != nil {
			return err
		}

		total := types.LineTotal(cmd.Quantity, unitCost)
		entry := &PriceEntry{
			ID:          id.New(),
			SupplierID:  sup.ID,
			ItemID:      it.ID,
			Kind:        KindPurchase,
			Quantity:    cmd.Quantity,
			UnitCost:    unitCost,
			TotalCost:   total,
			MovementID:  &applied.Movement.ID,
			WarehouseID: wh.ID,
			CreatedBy:   appctx.ActorID(ctx),
			CreatedAt:   now,
		}
		if err := s.repo.AddPriceEntry(ctx, entry); err != nil {
			return err
		}

		if invoiceNumber != "" {
			inv := &Invoice{
				ID:         id.New(),
				SupplierID: sup.ID,
				Number:     invoiceNumber,
				Amount:     total,
				DueDate:    cmd.InvoiceDueDate,
				Status:     InvoiceOpen,
				MovementID: &applied.Movement.ID,
				CreatedAt:  now,
			}
			if err := s.repo.AddInvoice(ctx, inv); err != nil {
				return err
			}
			result.Invoice = inv
		}

		sup.addPurchase(total)
		if err := s.repo.SaveBalances(ctx, sup); err != nil {
			return err
		}

		result.Supplier = sup
		result.Stock = applied
		result.PriceEntry = entry
		result.ItemCost = newCost

		return s.actions.Record(ctx, audit.Entry{
			Action:     audit.ActionSupplierPurchase,
			EntityType: "supplier",
			EntityID:   sup.ID.String(),
			ActorID:    appctx.ActorID(ctx),
			Summary:    fmt.Sprintf("purchased %s %s of %s for %s", cmd.Quantity, it.Unit, it.Code, total.StringFixed(2)),
			Details: map[string]any{
				"itemId":      it.ID.String(),
				"warehouseId": wh.ID.String(),
				"movementId":  applied.Movement.ID.String(),
				"quantity":    cmd.Quantity.String(),
				"unitCost":    unitCost.String(),
				"itemCost":    newCost.String(),
				"balance":     sup.Balance.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Notify(ctx, result.Stock)
	logger.Info(ctx, "supplier purchase recorded",
		"supplier_id", cmd.SupplierID,
		"item_id", cmd.ItemID,
		"quantity", cmd.Quantity,
		"unit_cost", unitCost,
		"item_cost", result.ItemCost,
	)
	return result, nil
}

// RecordReturn takes up to the requested quantity out of stock. Only the quantity
// actually available is returned and credited.
func (s *Service) RecordReturn(ctx context.Context, cmd ReturnCommand) (*ReturnResult, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, apperror.NewInvalidInput("quantity", "quantity must be positive")
	}
	if cmd.UnitCost != nil && !cmd.UnitCost.IsPositive() {
		return nil, apperror.NewInvalidInput("unitCost", "unit cost must be positive")
	}

	result := &ReturnResult{}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sup, err := s.getActiveForUpdate(ctx, cmd.SupplierID)
		if err != nil {
			return err
		}
		it, err := s.items.GetActiveForUpdate(ctx, cmd.ItemID)
		if err != nil {
			return err
		}
		wh, err := stock.ResolveWarehouse(ctx, s.warehouses, cmd.WarehouseID, it)
		if err != nil {
			return err
		}

		unitCost := it.Cost
		if cmd.UnitCost != nil {
			unitCost = cmd.UnitCost.Round(types.CostPrecision)
		}

		result.Reference, err = s.reference(ctx, cmd.Reference, numerator.PrefixReturn)
		if err != nil {
			return err
		}

		applied, err := s.ledger.Apply(ctx, stock.Mutation{
			Item:        it,
			WarehouseID: wh.ID,
			Type:        stock.MovementReturn,
			Policy:      stock.PolicyClamp,
			Delta:       -cmd.Quantity,
			Seed:        stock.SeedFor(it),
			UnitCost:    &unitCost,
			Reason:      reasonOr(cmd.Reason, "supplier return"),
			Reference:   result.Reference,
			Metadata:    entity.Metadata{"supplierId": sup.ID.String(), "supplierCode": sup.Code},
			SupplierID:  &sup.ID,
		})
		if err != nil {
			return err
		}
		if applied.Deducted.IsZero() {
			return apperror.NewBusinessRule(apperror.CodeNothingToReturn, "No stock available to return").
				WithDetail("item_id", it.ID.String()).
				WithDetail("warehouse_id", wh.ID.String())
		}

		value := types.LineTotal(applied.Deducted, unitCost)
		entry := &PriceEntry{
			ID:          id.New(),
			SupplierID:  sup.ID,
			ItemID:      it.ID,
			Kind:        KindReturn,
			Quantity:    applied.Deducted,
			UnitCost:    unitCost,
			TotalCost:   value.Neg(),
			MovementID:  &applied.Movement.ID,
			WarehouseID: wh.ID,
			CreatedBy:   appctx.ActorID(ctx),
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.repo.AddPriceEntry(ctx, entry); err != nil {
			return err
		}

		sup.removePurchase(value)
		if err := s.repo.SaveBalances(ctx, sup); err != nil {
			return err
		}

		result.Supplier = sup
		result.Stock = applied
		result.PriceEntry = entry
		result.Returned = applied.Deducted
		result.Value = value

		return s.actions.Record(ctx, audit.Entry{
			Action:     audit.ActionSupplierReturn,
			EntityType: "supplier",
			EntityID:   sup.ID.String(),
			ActorID:    appctx.ActorID(ctx),
			Summary:    fmt.Sprintf("returned %s %s of %s for %s", applied.Deducted, it.Unit, it.Code, value.StringFixed(2)),
			Details: map[string]any{
				"itemId":      it.ID.String(),
				"warehouseId": wh.ID.String(),
				"movementId":  applied.Movement.ID.String(),
				"requested":   applied.Requested.String(),
				"returned":    applied.Deducted.String(),
				"balance":     sup.Balance.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Notify(ctx, result.Stock)
	if result.Returned < cmd.Quantity {
		logger.Warn(ctx, "supplier return capped at available stock",
			"supplier_id", cmd.SupplierID,
			"item_id", cmd.ItemID,
			"requested", cmd.Quantity,
			"returned", result.Returned,
		)
	}
	return result, nil
}

// RecordPayment lowers the amount owed. Stock is not touched.
func (s *Service) RecordPayment(ctx context.Context, cmd PaymentCommand) (*Payment, error) {
	if !cmd.Amount.IsPositive() {
		return nil, apperror.NewInvalidInput("amount", "amount must be positive")
	}
	if cmd.Method == "" {
		cmd.Method = MethodTransfer
	}
	if !cmd.Method.IsValid() {
		return nil, apperror.NewInvalidInput("method", "unknown payment method")
	}

	var payment *Payment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sup, err := s.getActiveForUpdate(ctx, cmd.SupplierID)
		if err != nil {
			return err
		}

		if cmd.InvoiceID != nil {
			if err := s.repo.SetInvoiceStatus(ctx, sup.ID, *cmd.InvoiceID, InvoicePaid); err != nil {
				return err
			}
		}

		amount := cmd.Amount.Round(2)
		sup.addPayment(amount)
		if err := s.repo.SaveBalances(ctx, sup); err != nil {
			return err
		}

		paidAt := time.Now().UTC()
		if cmd.PaidAt != nil {
			paidAt = cmd.PaidAt.UTC()
		}
		payment = &Payment{
			ID:           id.New(),
			SupplierID:   sup.ID,
			Amount:       amount,
			Method:       cmd.Method,
			Reference:    trimmed(cmd.Reference),
			Note:         trimmed(cmd.Note),
			BalanceAfter: sup.Balance,
			PaidAt:       paidAt,
			CreatedBy:    appctx.ActorID(ctx),
		}
		if err := s.repo.AddPayment(ctx, payment); err != nil {
			return err
		}

		return s.actions.Record(ctx, audit.Entry{
			Action:     audit.ActionSupplierPayment,
			EntityType: "supplier",
			EntityID:   sup.ID.String(),
			ActorID:    appctx.ActorID(ctx),
			Summary:    fmt.Sprintf("paid %s by %s", amount.StringFixed(2), cmd.Method),
			Details: map[string]any{
				"paymentId": payment.ID.String(),
				"balance":   sup.Balance.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "supplier payment recorded",
		"supplier_id", cmd.SupplierID,
		"amount", payment.Amount,
		"balance_after", payment.BalanceAfter,
	)
	return payment, nil
}

func reasonOr(reason, fallback string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return fallback
}

// reference keeps the caller's reference or draws the next number for prefix.
func (s *Service) reference(ctx context.Context, given, prefix string) (string, error) {
	if ref := strings.TrimSpace(given); ref != "" || s.numbers == nil {
		return ref, nil
	}
	return s.numbers.Next(ctx, numerator.DefaultConfig(prefix), time.Now().UTC())
}
