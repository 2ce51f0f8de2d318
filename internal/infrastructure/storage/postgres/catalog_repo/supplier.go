package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/supplier"
	"restopos/internal/infrastructure/storage/postgres"
)

const (
	supplierTable     = "suppliers"
	priceHistoryTable = "supplier_price_history"
	paymentTable      = "supplier_payments"
	invoiceTable      = "supplier_invoices"
)

var balanceCols = []string{"balance", "total_purchases", "total_payments"}

var _ supplier.Repository = (*SupplierRepo)(nil)

// SupplierRepo implements supplier.Repository together with its three histories.
type SupplierRepo struct {
	*BaseCatalogRepo[*supplier.Supplier]
	priceCols   []string
	paymentCols []string
	invoiceCols []string
}

// NewSupplierRepo creates a new supplier repository.
func NewSupplierRepo(txManager *postgres.TxManager) *SupplierRepo {
	return &SupplierRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			supplierTable,
			"supplier",
			postgres.ExtractDBColumns[supplier.Supplier](),
			func() *supplier.Supplier { return &supplier.Supplier{} },
		),
		priceCols:   postgres.ExtractDBColumns[supplier.PriceEntry](),
		paymentCols: postgres.ExtractDBColumns[supplier.Payment](),
		invoiceCols: postgres.ExtractDBColumns[supplier.Invoice](),
	}
}

// Update writes contact fields only; balances change through SaveBalances.
func (r *SupplierRepo) Update(ctx context.Context, s *supplier.Supplier) error {
	return r.BaseCatalogRepo.Update(ctx, s, balanceCols...)
}

func (r *SupplierRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*supplier.Supplier], error) {
	return r.BaseCatalogRepo.List(ctx, r.ListQuery(filter), filter)
}

func (r *SupplierRepo) SaveBalances(ctx context.Context, s *supplier.Supplier) error {
	sql, args, err := r.Builder().
		Update(supplierTable).
		Set("balance", s.Balance).
		Set("total_purchases", s.TotalPurchases).
		Set("total_payments", s.TotalPayments).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save balances: %w", err)
	}
	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("save supplier balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("supplier", s.ID.String())
	}
	return nil
}

func (r *SupplierRepo) insert(ctx context.Context, table string, cols []string, row any) error {
	sql, args, err := r.Builder().
		Insert(table).
		SetMap(postgres.PickColumns(postgres.StructToMap(row), cols)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert %s: %w", table, err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (r *SupplierRepo) AddPriceEntry(ctx context.Context, e *supplier.PriceEntry) error {
	return r.insert(ctx, priceHistoryTable, r.priceCols, e)
}

func (r *SupplierRepo) AddPayment(ctx context.Context, p *supplier.Payment) error {
	return r.insert(ctx, paymentTable, r.paymentCols, p)
}

func (r *SupplierRepo) AddInvoice(ctx context.Context, inv *supplier.Invoice) error {
	return r.insert(ctx, invoiceTable, r.invoiceCols, inv)
}

func (r *SupplierRepo) SetInvoiceStatus(ctx context.Context, supplierID, invoiceID id.ID, status supplier.InvoiceStatus) error {
	sql, args, err := r.Builder().
		Update(invoiceTable).
		Set("status", status).
		Where(squirrel.Eq{"id": invoiceID, "supplier_id": supplierID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build invoice status: %w", err)
	}
	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("invoice", invoiceID.String())
	}
	return nil
}

func (r *SupplierRepo) ListPriceHistory(ctx context.Context, supplierID id.ID, filter supplier.PriceFilter) (domain.ListResult[*supplier.PriceEntry], error) {
	where := squirrel.Eq{"supplier_id": supplierID}
	if filter.ItemID != nil {
		where["item_id"] = *filter.ItemID
	}
	if filter.Kind != "" {
		where["kind"] = filter.Kind
	}
	return listHistory[*supplier.PriceEntry](ctx, r, priceHistoryTable, r.priceCols, where, "created_at", filter.Page)
}

func (r *SupplierRepo) ListPayments(ctx context.Context, supplierID id.ID, page domain.Page) (domain.ListResult[*supplier.Payment], error) {
	return listHistory[*supplier.Payment](ctx, r, paymentTable, r.paymentCols, squirrel.Eq{"supplier_id": supplierID}, "paid_at", page)
}

func (r *SupplierRepo) ListInvoices(ctx context.Context, supplierID id.ID, page domain.Page) (domain.ListResult[*supplier.Invoice], error) {
	return listHistory[*supplier.Invoice](ctx, r, invoiceTable, r.invoiceCols, squirrel.Eq{"supplier_id": supplierID}, "created_at", page)
}

// listHistory pages through a history table newest first.
func listHistory[T any](ctx context.Context, r *SupplierRepo, table string, cols []string, where squirrel.Eq, orderCol string, page domain.Page) (domain.ListResult[T], error) {
	page = page.Normalize()
	result := domain.ListResult[T]{Limit: page.Limit, Offset: page.Offset, Items: []T{}}
	querier := r.querier(ctx)

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").From(table).Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", table, err)
	}

	sql, args, err := r.Builder().
		Select(cols...).
		From(table).
		Where(where).
		OrderBy(orderCol+" DESC", "id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list %s: %w", table, err)
	}
	return result, nil
}

// trimHistorySQL keeps the newest rows per supplier.
func trimHistorySQL(table, orderCol string) string {
	return fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY supplier_id ORDER BY %[2]s DESC, id DESC) AS rn
				FROM %[1]s
			) ranked
			WHERE ranked.rn > $1
		)`, table, orderCol)
}

func (r *SupplierRepo) TrimHistories(ctx context.Context, keep int) (int64, error) {
	var total int64
	for _, h := range []struct{ table, orderCol string }{
		{priceHistoryTable, "created_at"},
		{paymentTable, "paid_at"},
		{invoiceTable, "created_at"},
	} {
		tag, err := r.querier(ctx).Exec(ctx, trimHistorySQL(h.table, h.orderCol), keep)
		if err != nil {
			return total, fmt.Errorf("trim %s: %w", h.table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
