package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the full service stack onto an in-memory sqlite database.
// A single connection keeps sqlite's writer serialization deterministic.
type testEnv struct {
	db *gorm.DB

	productRepo   repository.ProductRepository
	variantRepo   repository.VariantRepository
	movementRepo  repository.MovementRepository
	referenceRepo repository.ReferenceRepository
	saleRepo      repository.SaleRepository
	poRepo        repository.PurchaseOrderRepository
	txManager     repository.TransactionManager
	locker        *VariantLocker

	catalog CatalogService
	ledger  LedgerService
	carts   CartService
	sales   SaleService
	orders  PurchaseOrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Category{},
		&model.Brand{},
		&model.Supplier{},
		&model.Product{},
		&model.ProductVariant{},
		&model.StockMovement{},
		&model.Sale{},
		&model.SaleItem{},
		&model.PurchaseOrder{},
		&model.PurchaseOrderItem{},
	))

	env := &testEnv{
		db:            db,
		productRepo:   repository.NewProductRepository(db),
		variantRepo:   repository.NewVariantRepository(db),
		movementRepo:  repository.NewMovementRepository(db),
		referenceRepo: repository.NewReferenceRepository(db),
		saleRepo:      repository.NewSaleRepository(db),
		poRepo:        repository.NewPurchaseOrderRepository(db),
		txManager:     repository.NewTransactionManager(db),
		locker:        NewVariantLocker(),
	}

	env.catalog = NewCatalogService(env.productRepo, env.variantRepo, env.movementRepo, env.referenceRepo, env.poRepo, env.txManager, env.locker, nil)
	env.ledger = NewLedgerService(env.variantRepo, env.productRepo, env.movementRepo, env.txManager, env.locker, nil)
	env.carts = NewCartService(env.variantRepo, env.productRepo, DefaultTaxRate, nil)
	env.sales = NewSaleService(env.carts, env.ledger, env.variantRepo, env.saleRepo, env.txManager, env.locker, nil)
	env.orders = NewPurchaseOrderService(env.poRepo, env.variantRepo, env.referenceRepo, env.ledger, env.txManager, env.locker, nil)

	return env
}

// seedProduct creates a product with a single variant and returns both.
func (e *testEnv) seedProduct(t *testing.T, sku string, quantity int, costPrice, sellingPrice string) (*model.Product, *model.ProductVariant) {
	t.Helper()

	product, err := e.catalog.CreateProduct(context.Background(), "tester", CreateProductRequest{
		Name: "Product " + sku,
		Variants: []VariantInput{{
			SKU:          sku,
			Name:         "Variant " + sku,
			CostPrice:    costPrice,
			SellingPrice: sellingPrice,
			Quantity:     quantity,
		}},
	})
	require.NoError(t, err)
	require.Len(t, product.Variants, 1)

	return product, &product.Variants[0]
}

func (e *testEnv) seedSupplier(t *testing.T) *model.Supplier {
	t.Helper()
	supplier, err := e.catalog.CreateSupplier(context.Background(), "Acme Parts", "0700000000", "parts@acme.test")
	require.NoError(t, err)
	return supplier
}

func (e *testEnv) variantQuantity(t *testing.T, id uuid.UUID) int {
	t.Helper()
	variant, err := e.variantRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return variant.Quantity
}

func (e *testEnv) movementsFor(t *testing.T, variantID uuid.UUID) []model.StockMovement {
	t.Helper()
	movements, _, err := e.ledger.Movements(context.Background(), &variantID, 1, 100)
	require.NoError(t, err)
	return movements
}
