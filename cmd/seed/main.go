// Package main seeds a restopos database with demo warehouses, items, a supplier
// delivery and a recipe.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"restopos/internal/app"
	"restopos/internal/config"
	appctx "restopos/internal/core/context"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/domain/catalogs/recipe"
	"restopos/internal/domain/catalogs/supplier"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/internal/infrastructure/storage/postgres"
	"restopos/pkg/logger"
)

const seedActor = "seed"

type demoItem struct {
	sku      string
	name     string
	unit     string
	category string
	par      int64
	cost     string
	shelf    int
	bar      bool
	delivery int64
}

var demoItems = []demoItem{
	{sku: "FLOUR-00", name: "Flour type 00", unit: "kg", category: "dry", par: 20, cost: "1.20", delivery: 50},
	{sku: "MOZZ-01", name: "Mozzarella", unit: "kg", category: "dairy", par: 8, cost: "7.80", shelf: 7, delivery: 12},
	{sku: "TOMATO-SAUCE", name: "Tomato sauce", unit: "l", category: "sauces", par: 10, cost: "2.40", shelf: 5, delivery: 15},
	{sku: "BASIL", name: "Fresh basil", unit: "kg", category: "herbs", par: 1, cost: "18.00", shelf: 3, delivery: 2},
	{sku: "LEMON", name: "Lemons", unit: "pcs", category: "produce", par: 40, cost: "0.25", shelf: 14, bar: true, delivery: 60},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: seedActor})

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database, cfg.App.Name+"-seed"))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	services, err := app.Build(cfg, pool, nil, nil)
	if err != nil {
		log.Fatalw("failed to build services", "error", err)
	}
	defer services.Close()

	if _, err := services.Items.GetBySKU(ctx, demoItems[0].sku); err == nil {
		log.Info("demo data already present, skipping")
		return
	}

	if err := seed(ctx, services, log); err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}
	log.Info("seed completed")
}

func seed(ctx context.Context, s *app.Services, log *logger.Logger) error {
	store, err := s.Warehouses.EnsureDefault(ctx)
	if err != nil {
		return fmt.Errorf("ensure default warehouse: %w", err)
	}
	kitchen, err := s.Warehouses.Create(ctx, warehouse.CreateCommand{Code: "KITCHEN", Name: "Kitchen line", Type: warehouse.TypeKitchen})
	if err != nil {
		return fmt.Errorf("create kitchen: %w", err)
	}
	bar, err := s.Warehouses.Create(ctx, warehouse.CreateCommand{Code: "BAR", Name: "Bar", Type: warehouse.TypeBar})
	if err != nil {
		return fmt.Errorf("create bar: %w", err)
	}
	log.Infow("warehouses created", "main", store.ID, "kitchen", kitchen.ID, "bar", bar.ID)

	vendor, err := s.Suppliers.Create(ctx, supplier.CreateCommand{
		Code:         "FRESHCO",
		Name:         "FreshCo Wholesale",
		PaymentTerms: ptr("net 14"),
	})
	if err != nil {
		return fmt.Errorf("create supplier: %w", err)
	}

	items := make(map[string]*item.Item, len(demoItems))
	for _, d := range demoItems {
		warehouseID := kitchen.ID
		if d.bar {
			warehouseID = bar.ID
		}
		cost := decimal.RequireFromString(d.cost)
		it, err := s.Items.Create(ctx, item.CreateCommand{
			SKU:                d.sku,
			Name:               d.name,
			Unit:               d.unit,
			Category:           ptr(d.category),
			ParLevel:           types.NewQuantity(d.par),
			ReorderPoint:       types.NewQuantity(d.par / 2),
			Cost:               cost,
			DefaultWarehouseID: &warehouseID,
			TrackingMethod:     item.TrackingFIFO,
			TrackExpiry:        d.shelf > 0,
			ShelfLifeDays:      d.shelf,
		})
		if err != nil {
			return fmt.Errorf("create item %s: %w", d.sku, err)
		}
		items[d.sku] = it

		if _, err := s.Suppliers.RecordPurchase(ctx, supplier.PurchaseCommand{
			SupplierID: vendor.ID,
			ItemID:     it.ID,
			Quantity:   types.NewQuantity(d.delivery),
			UnitCost:   cost,
			Reference:  "SEED-DELIVERY",
		}); err != nil {
			return fmt.Errorf("record purchase %s: %w", d.sku, err)
		}
	}

	price := decimal.RequireFromString("11.50")
	menuItemID := id.New()
	margherita, err := s.Recipes.Create(ctx, recipe.CreateCommand{
		Code:          "PIZZA-MARGHERITA",
		Name:          "Pizza Margherita",
		MenuItemID:    &menuItemID,
		MenuItemName:  "Margherita",
		MenuItemPrice: &price,
		Category:      ptr("pizza"),
		Version: recipe.VersionPayload{
			Label: "v1",
			Ingredients: []recipe.IngredientInput{
				{ItemID: items["FLOUR-00"].ID, Quantity: types.NewQuantityFromFloat64(0.25), Unit: "kg"},
				{ItemID: items["MOZZ-01"].ID, Quantity: types.NewQuantityFromFloat64(0.125), Unit: "kg", WastePercent: decimal.NewFromInt(5)},
				{ItemID: items["TOMATO-SAUCE"].ID, Quantity: types.NewQuantityFromFloat64(0.08), Unit: "l"},
				{ItemID: items["BASIL"].ID, Quantity: types.NewQuantityFromFloat64(0.005), Unit: "kg", WastePercent: decimal.NewFromInt(10)},
			},
			Portions: []recipe.Portion{
				{Key: recipe.StandardPortion, Label: "Regular", Multiplier: decimal.NewFromInt(1)},
				{Key: "large", Label: "Large", Multiplier: decimal.RequireFromString("1.5")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create recipe: %w", err)
	}
	log.Infow("recipe created", "recipe_id", margherita.ID, "menu_item_id", menuItemID)
	return nil
}

func ptr[T any](v T) *T { return &v }
