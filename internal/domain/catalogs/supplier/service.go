package supplier

import (
	"context"
	"strings"
	"time"

	"restopos/internal/core/apperror"
	appctx "restopos/internal/core/context"
	"restopos/internal/core/id"
	"restopos/internal/core/numerator"
	"restopos/internal/core/tx"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/audit"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/domain/registers/stock"
	"restopos/pkg/logger"
)

// ItemCosts is the part of the item catalog purchases need.
type ItemCosts interface {
	GetActiveForUpdate(ctx context.Context, itemID id.ID) (*item.Item, error)
	UpdateCost(ctx context.Context, itemID id.ID, cost types.Money, restockedAt time.Time) error
}

type CreateCommand struct {
	Code         string
	Name         string
	ContactName  *string
	Phone        *string
	Email        *string
	PaymentTerms *string
}

// UpdateCommand carries optional contact changes; nil fields are left untouched.
type UpdateCommand struct {
	Version      int
	Name         *string
	ContactName  *string
	Phone        *string
	Email        *string
	PaymentTerms *string
}

// Service provides the supplier catalog and ledger.
type Service struct {
	repo       Repository
	txManager  tx.Manager
	items      ItemCosts
	warehouses stock.WarehouseResolver
	ledger     *stock.Ledger
	actions    audit.Recorder
	numbers    numerator.Generator
}

// NewService creates a new supplier service. actions may be nil.
func NewService(
	repo Repository,
	txManager tx.Manager,
	items ItemCosts,
	warehouses stock.WarehouseResolver,
	ledger *stock.Ledger,
	actions audit.Recorder,
) *Service {
	if actions == nil {
		actions = audit.NopRecorder{}
	}
	return &Service{
		repo:       repo,
		txManager:  txManager,
		items:      items,
		warehouses: warehouses,
		ledger:     ledger,
		actions:    actions,
	}
}

// WithNumbering makes purchases and returns without a reference draw one from g.
func (s *Service) WithNumbering(g numerator.Generator) *Service {
	s.numbers = g
	return s
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Supplier, error) {
	sup := NewSupplier(cmd.Code, cmd.Name)
	sup.ContactName = trimmed(cmd.ContactName)
	sup.Phone = trimmed(cmd.Phone)
	sup.Email = trimmed(cmd.Email)
	sup.PaymentTerms = trimmed(cmd.PaymentTerms)
	sup.CreatedBy = appctx.ActorID(ctx)

	if err := sup.Validate(); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsByCode(ctx, sup.Code)
		if err != nil {
			return err
		}
		if exists {
			return apperror.NewDuplicate("supplier", "code", sup.Code)
		}
		return s.repo.Create(ctx, sup)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "supplier created", "supplier_id", sup.ID, "code", sup.Code)
	return sup, nil
}

func (s *Service) Update(ctx context.Context, supplierID id.ID, cmd UpdateCommand) (*Supplier, error) {
	var result *Supplier
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sup, err := s.repo.GetByID(ctx, supplierID)
		if err != nil {
			return err
		}
		if cmd.Version > 0 && cmd.Version != sup.Version {
			return apperror.NewConcurrentModification("supplier", supplierID.String())
		}

		if cmd.Name != nil {
			sup.Name = strings.TrimSpace(*cmd.Name)
		}
		if cmd.ContactName != nil {
			sup.ContactName = trimmed(cmd.ContactName)
		}
		if cmd.Phone != nil {
			sup.Phone = trimmed(cmd.Phone)
		}
		if cmd.Email != nil {
			sup.Email = trimmed(cmd.Email)
		}
		if cmd.PaymentTerms != nil {
			sup.PaymentTerms = trimmed(cmd.PaymentTerms)
		}
		if err := sup.Validate(); err != nil {
			return err
		}

		sup.Touch()
		if err := s.repo.Update(ctx, sup); err != nil {
			return err
		}
		result = sup
		return nil
	})
	return result, err
}

func (s *Service) Archive(ctx context.Context, supplierID id.ID) (*Supplier, error) {
	var result *Supplier
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sup, err := s.repo.GetByID(ctx, supplierID)
		if err != nil {
			return err
		}
		if !sup.IsActive {
			result = sup
			return nil
		}
		sup.Archive()
		if err := s.repo.Update(ctx, sup); err != nil {
			return err
		}
		result = sup
		return nil
	})
	if err == nil {
		logger.Info(ctx, "supplier archived", "supplier_id", supplierID)
	}
	return result, err
}

func (s *Service) Get(ctx context.Context, supplierID id.ID) (*Supplier, error) {
	return s.repo.GetByID(ctx, supplierID)
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Supplier], error) {
	return s.repo.List(ctx, filter.Normalize())
}

func (s *Service) ListPriceHistory(ctx context.Context, supplierID id.ID, filter PriceFilter) (domain.ListResult[*PriceEntry], error) {
	if _, err := s.repo.GetByID(ctx, supplierID); err != nil {
		return domain.ListResult[*PriceEntry]{}, err
	}
	if filter.Kind != "" && filter.Kind != KindPurchase && filter.Kind != KindReturn {
		return domain.ListResult[*PriceEntry]{}, apperror.NewInvalidInput("kind", "unknown price entry kind")
	}
	filter.Page = filter.Page.Normalize()
	return s.repo.ListPriceHistory(ctx, supplierID, filter)
}

func (s *Service) ListPayments(ctx context.Context, supplierID id.ID, page domain.Page) (domain.ListResult[*Payment], error) {
	if _, err := s.repo.GetByID(ctx, supplierID); err != nil {
		return domain.ListResult[*Payment]{}, err
	}
	return s.repo.ListPayments(ctx, supplierID, page.Normalize())
}

func (s *Service) ListInvoices(ctx context.Context, supplierID id.ID, page domain.Page) (domain.ListResult[*Invoice], error) {
	if _, err := s.repo.GetByID(ctx, supplierID); err != nil {
		return domain.ListResult[*Invoice]{}, err
	}
	return s.repo.ListInvoices(ctx, supplierID, page.Normalize())
}

// TrimHistories applies history retention. The worker runs it periodically.
func (s *Service) TrimHistories(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		keep = HistoryRetention
	}
	n, err := s.repo.TrimHistories(ctx, keep)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Info(ctx, "supplier histories trimmed", "rows", n, "keep", keep)
	}
	return n, nil
}

// getActiveForUpdate locks the supplier row for a ledger entry.
func (s *Service) getActiveForUpdate(ctx context.Context, supplierID id.ID) (*Supplier, error) {
	sup, err := s.repo.GetForUpdate(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	if !sup.IsActive {
		return nil, apperror.NewNotFound("supplier", supplierID.String()).WithDetail("reason", "inactive")
	}
	return sup, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
