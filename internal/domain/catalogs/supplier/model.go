// Package supplier provides the supplier catalog and its purchase, return and payment ledger.
package supplier

import (
	"strings"
	"time"

	"restopos/internal/core/apperror"
	"restopos/internal/core/entity"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
)

// HistoryRetention is the number of newest rows kept per supplier in each history.
const HistoryRetention = 200

// Supplier is a vendor the restaurant buys inventory from.
type Supplier struct {
	entity.Catalog

	ContactName  *string `db:"contact_name" json:"contactName,omitempty"`
	Phone        *string `db:"phone" json:"phone,omitempty"`
	Email        *string `db:"email" json:"email,omitempty"`
	PaymentTerms *string `db:"payment_terms" json:"paymentTerms,omitempty"`

	// Balance is the amount owed to the supplier. It never goes below zero.
	Balance        types.Money `db:"balance" json:"balance"`
	TotalPurchases types.Money `db:"total_purchases" json:"totalPurchases"`
	TotalPayments  types.Money `db:"total_payments" json:"totalPayments"`
}

// NewSupplier creates an active supplier with zero balances.
func NewSupplier(code, name string) *Supplier {
	s := &Supplier{
		Catalog:        entity.NewCatalog(code, name),
		Balance:        types.Zero(),
		TotalPurchases: types.Zero(),
		TotalPayments:  types.Zero(),
	}
	s.Code = entity.NormalizeCode(s.Code)
	return s
}

func (s *Supplier) Validate() error {
	if err := s.Catalog.Validate(); err != nil {
		return err
	}
	if s.Email != nil && *s.Email != "" && !strings.Contains(*s.Email, "@") {
		return apperror.NewValidation("email is invalid").WithDetail("field", "email")
	}
	return nil
}

// addPurchase books a delivery worth value.
func (s *Supplier) addPurchase(value types.Money) {
	s.Balance = s.Balance.Add(value)
	s.TotalPurchases = s.TotalPurchases.Add(value)
}

// removePurchase books a return worth value. Both totals are floored at zero.
func (s *Supplier) removePurchase(value types.Money) {
	s.Balance = floorZero(s.Balance.Sub(value))
	s.TotalPurchases = floorZero(s.TotalPurchases.Sub(value))
}

// addPayment books a payment. Overpayment does not create credit.
func (s *Supplier) addPayment(amount types.Money) {
	s.Balance = floorZero(s.Balance.Sub(amount))
	s.TotalPayments = s.TotalPayments.Add(amount)
}

func floorZero(m types.Money) types.Money {
	if m.IsNegative() {
		return types.Zero()
	}
	return m
}

// EntryKind tells purchases and returns apart in the price history.
type EntryKind string

const (
	KindPurchase EntryKind = "purchase"
	KindReturn   EntryKind = "return"
)

// PriceEntry records the price paid (or refunded) for an item delivery.
// Return entries carry a negative total.
type PriceEntry struct {
	ID          id.ID          `db:"id" json:"id"`
	SupplierID  id.ID          `db:"supplier_id" json:"supplierId"`
	ItemID      id.ID          `db:"item_id" json:"itemId"`
	Kind        EntryKind      `db:"kind" json:"kind"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	UnitCost    types.Money    `db:"unit_cost" json:"unitCost"`
	TotalCost   types.Money    `db:"total_cost" json:"totalCost"`
	MovementID  *id.ID         `db:"movement_id" json:"movementId,omitempty"`
	WarehouseID id.ID          `db:"warehouse_id" json:"warehouseId"`
	CreatedBy   string         `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// PaymentMethod is how a supplier was paid.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodTransfer PaymentMethod = "bank_transfer"
	MethodCard     PaymentMethod = "card"
	MethodOther    PaymentMethod = "other"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCard, MethodOther:
		return true
	}
	return false
}

// Payment is money paid to a supplier.
type Payment struct {
	ID         id.ID         `db:"id" json:"id"`
	SupplierID id.ID         `db:"supplier_id" json:"supplierId"`
	Amount     types.Money   `db:"amount" json:"amount"`
	Method     PaymentMethod `db:"method" json:"method"`
	Reference  *string       `db:"reference" json:"reference,omitempty"`
	Note       *string       `db:"note" json:"note,omitempty"`
	// BalanceAfter is the supplier balance right after the payment.
	BalanceAfter types.Money `db:"balance_after" json:"balanceAfter"`
	PaidAt       time.Time   `db:"paid_at" json:"paidAt"`
	CreatedBy    string      `db:"created_by" json:"createdBy,omitempty"`
}

// InvoiceStatus tracks an invoice through payment.
type InvoiceStatus string

const (
	InvoiceOpen InvoiceStatus = "open"
	InvoicePaid InvoiceStatus = "paid"
)

// Invoice is a supplier bill attached to a purchase.
type Invoice struct {
	ID         id.ID         `db:"id" json:"id"`
	SupplierID id.ID         `db:"supplier_id" json:"supplierId"`
	Number     string        `db:"number" json:"number"`
	Amount     types.Money   `db:"amount" json:"amount"`
	DueDate    *time.Time    `db:"due_date" json:"dueDate,omitempty"`
	Status     InvoiceStatus `db:"status" json:"status"`
	MovementID *id.ID        `db:"movement_id" json:"movementId,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
}
