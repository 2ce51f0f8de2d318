package supplier

import (
	"context"

	"restopos/internal/core/id"
	"restopos/internal/domain"
)

// PriceFilter narrows price history reads.
type PriceFilter struct {
	ItemID *id.ID
	Kind   EntryKind
	domain.Page
}

// Repository defines the interface for Supplier persistence.
type Repository interface {
	Create(ctx context.Context, s *Supplier) error

	// Update modifies contact fields with optimistic locking. Balances are untouched.
	Update(ctx context.Context, s *Supplier) error

	GetByID(ctx context.Context, supplierID id.ID) (*Supplier, error)

	// GetForUpdate retrieves the supplier with a row lock.
	GetForUpdate(ctx context.Context, supplierID id.ID) (*Supplier, error)

	ExistsByCode(ctx context.Context, code string) (bool, error)

	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Supplier], error)

	// SaveBalances writes balance, total_purchases and total_payments.
	SaveBalances(ctx context.Context, s *Supplier) error

	AddPriceEntry(ctx context.Context, e *PriceEntry) error
	AddPayment(ctx context.Context, p *Payment) error
	AddInvoice(ctx context.Context, inv *Invoice) error

	// SetInvoiceStatus returns NotFound when the invoice does not belong to the supplier.
	SetInvoiceStatus(ctx context.Context, supplierID, invoiceID id.ID, status InvoiceStatus) error

	// Histories are returned newest first.
	ListPriceHistory(ctx context.Context, supplierID id.ID, filter PriceFilter) (domain.ListResult[*PriceEntry], error)
	ListPayments(ctx context.Context, supplierID id.ID, page domain.Page) (domain.ListResult[*Payment], error)
	ListInvoices(ctx context.Context, supplierID id.ID, page domain.Page) (domain.ListResult[*Invoice], error)

	// TrimHistories deletes all but the newest keep rows per supplier in every history.
	TrimHistories(ctx context.Context, keep int) (int64, error)
}
