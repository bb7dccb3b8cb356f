package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"backend/internal/apperr"
	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateProductWithVariants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category, err := env.catalog.CreateCategory(ctx, "Phones", "Smartphones and feature phones")
	require.NoError(t, err)

	product, err := env.catalog.CreateProduct(ctx, "tester", CreateProductRequest{
		Name:       "Galaxy A15",
		CategoryID: category.ID.String(),
		Variants: []VariantInput{
			{SKU: "A15-BLK-128", Name: "Black 128GB", CostPrice: "150", SellingPrice: "220", Quantity: 8, Attributes: map[string]string{"color": "black", "storage": "128GB"}},
			{SKU: "A15-BLU-128", Name: "Blue 128GB", CostPrice: "150", SellingPrice: "220", Quantity: 4},
		},
	})
	require.NoError(t, err)

	assert.True(t, product.IsActive)
	require.Len(t, product.Variants, 2)
	assert.Equal(t, 12, product.TotalQuantity)
	assert.True(t, product.TotalValue.Equal(decimal.NewFromInt(1800)), "want 1800, got %s", product.TotalValue)
	require.NotNil(t, product.CategoryID)
	assert.Equal(t, category.ID, *product.CategoryID)

	// Opening stock went through the ledger.
	for _, v := range product.Variants {
		movements := env.movementsFor(t, v.ID)
		require.Len(t, movements, 1)
		assert.Equal(t, model.MovementIn, movements[0].Type)
		assert.Equal(t, v.Quantity, movements[0].Quantity)
		assert.Equal(t, 0, movements[0].PreviousQuantity)
		assert.Equal(t, "initial-stock", movements[0].Reference)
	}
}

func TestCreateProductRejectsInBatchDuplicateSKUs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.catalog.CreateProduct(ctx, "tester", CreateProductRequest{
		Name: "Charger",
		Variants: []VariantInput{
			{SKU: "X-1", Name: "White", CostPrice: "5", SellingPrice: "12"},
			{SKU: "X-1", Name: "Black", CostPrice: "5", SellingPrice: "12"},
		},
	})

	var dup *apperr.DuplicateSKUError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []string{"X-1"}, dup.SKUs)

	// The batch is atomic: no product row survives the rejection.
	products, total, listErr := env.catalog.ListProducts(ctx, ProductListFilter{})
	require.NoError(t, listErr)
	assert.Zero(t, total)
	assert.Empty(t, products)
}

func TestCreateProductRejectsStoredSKUConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, "TAKEN-1", 1, "10", "20")

	_, err := env.catalog.CreateProduct(ctx, "tester", CreateProductRequest{
		Name: "Other product",
		Variants: []VariantInput{
			{SKU: "TAKEN-1", Name: "Clash", CostPrice: "10", SellingPrice: "20"},
			{SKU: "FREE-1", Name: "Fine", CostPrice: "10", SellingPrice: "20"},
		},
	})

	var dup *apperr.DuplicateSKUError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []string{"TAKEN-1"}, dup.SKUs)

	// The non-conflicting variant was not created either.
	variants, findErr := env.variantRepo.FindBySKUs(ctx, []string{"FREE-1"})
	require.NoError(t, findErr)
	assert.Empty(t, variants)
}

func TestCreateProductUnknownCategory(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.catalog.CreateProduct(context.Background(), "tester", CreateProductRequest{
		Name:       "Orphan",
		CategoryID: "5f0e7b7e-0000-4000-8000-000000000009",
		Variants:   []VariantInput{{SKU: "O-1", Name: "One", CostPrice: "1", SellingPrice: "2"}},
	})

	var notFound *apperr.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "category", notFound.Entity)
}

func TestUpdateVariantKeepsQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, variant := env.seedProduct(t, "UPD-1", 9, "50", "80")

	updated, err := env.catalog.UpdateVariant(ctx, "tester", variant.ID.String(), UpdateVariantRequest{
		SKU:          "UPD-1",
		Name:         "Renamed",
		CostPrice:    "60",
		SellingPrice: "95",
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 9, updated.Quantity)

	// The cost change flows into the cached product value.
	reloaded, err := env.catalog.GetProduct(ctx, product.ID.String())
	require.NoError(t, err)
	assert.True(t, reloaded.TotalValue.Equal(decimal.NewFromInt(540)), "want 540, got %s", reloaded.TotalValue)
}

func TestUpdateVariantRejectsSKUOfOtherVariant(t *testing.T) {
	env := newTestEnv(t)

	env.seedProduct(t, "SKU-A", 1, "10", "20")
	_, variantB := env.seedProduct(t, "SKU-B", 1, "10", "20")

	_, err := env.catalog.UpdateVariant(context.Background(), "tester", variantB.ID.String(), UpdateVariantRequest{
		SKU:          "SKU-A",
		Name:         "Clash",
		CostPrice:    "10",
		SellingPrice: "20",
	})

	var dup *apperr.DuplicateSKUError
	assert.ErrorAs(t, err, &dup)
}

func TestUpdateVariantKeepsOwnSKU(t *testing.T) {
	env := newTestEnv(t)

	_, variant := env.seedProduct(t, "SELF-1", 1, "10", "20")

	_, err := env.catalog.UpdateVariant(context.Background(), "tester", variant.ID.String(), UpdateVariantRequest{
		SKU:          "SELF-1",
		Name:         "Same SKU",
		CostPrice:    "10",
		SellingPrice: "20",
	})
	assert.NoError(t, err)
}

func TestCreateVariantOnExistingProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, _ := env.seedProduct(t, "BASE-1", 5, "10", "20")

	variant, err := env.catalog.CreateVariant(ctx, "tester", product.ID.String(), VariantInput{
		SKU:          "BASE-2",
		Name:         "Second",
		CostPrice:    "10",
		SellingPrice: "20",
		Quantity:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, product.ID, variant.ProductID)

	reloaded, err := env.catalog.GetProduct(ctx, product.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 8, reloaded.TotalQuantity)
	assert.Len(t, reloaded.Variants, 2)
}

func TestDeleteProductBlockedByOpenPurchaseOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	supplier := env.seedSupplier(t)
	product, variant := env.seedProduct(t, "DEL-1", 5, "10", "20")

	_, err := env.orders.Create(ctx, "tester", CreatePurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items: []PurchaseOrderItemInput{{
			ProductID: product.ID.String(),
			VariantID: variant.ID.String(),
			Quantity:  10,
			CostPrice: "9",
		}},
	})
	require.NoError(t, err)

	err = env.catalog.DeleteProduct(ctx, "tester", product.ID.String())
	var validation *apperr.ValidationError
	assert.ErrorAs(t, err, &validation)

	// Still listed.
	_, total, listErr := env.catalog.ListProducts(ctx, ProductListFilter{})
	require.NoError(t, listErr)
	assert.EqualValues(t, 1, total)
}

func TestDeleteProductRemovesVariants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, variant := env.seedProduct(t, "DEL-2", 5, "10", "20")

	require.NoError(t, env.catalog.DeleteProduct(ctx, "tester", product.ID.String()))

	_, err := env.catalog.GetProduct(ctx, product.ID.String())
	var notFound *apperr.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = env.variantRepo.FindByID(ctx, variant.ID)
	assert.Error(t, err)
}

func TestListProductsFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	brand, err := env.catalog.CreateBrand(ctx, "Samsung")
	require.NoError(t, err)

	_, err = env.catalog.CreateProduct(ctx, "tester", CreateProductRequest{
		Name:    "Galaxy S24",
		BrandID: brand.ID.String(),
		Variants: []VariantInput{
			{SKU: "S24-1", Name: "Base", CostPrice: "500", SellingPrice: "800", Quantity: 2},
		},
	})
	require.NoError(t, err)

	inactive := false
	_, err = env.catalog.CreateProduct(ctx, "tester", CreateProductRequest{
		Name:     "Discontinued Phone",
		IsActive: &inactive,
		Variants: []VariantInput{
			{SKU: "OLD-1", Name: "Base", CostPrice: "100", SellingPrice: "150"},
		},
	})
	require.NoError(t, err)

	_, total, err := env.catalog.ListProducts(ctx, ProductListFilter{BrandID: brand.ID.String()})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	active := true
	products, total, err := env.catalog.ListProducts(ctx, ProductListFilter{Active: &active})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, products, 1)
	assert.Equal(t, "Galaxy S24", products[0].Name)

	_, total, err = env.catalog.ListProducts(ctx, ProductListFilter{Search: "galaxy"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestCreateProductStoresInactiveFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inactive := false
	product, err := env.catalog.CreateProduct(ctx, "tester", CreateProductRequest{
		Name:     "Shelved Model",
		IsActive: &inactive,
		Variants: []VariantInput{
			{SKU: "SHELF-1", Name: "Base", CostPrice: "10", SellingPrice: "20"},
		},
	})
	require.NoError(t, err)
	assert.False(t, product.IsActive)

	reloaded, err := env.catalog.GetProduct(ctx, product.ID.String())
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
}

func TestUpdateVariantDoesNotRestoreMovedStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, variant := env.seedProduct(t, "RACE-QTY-1", 50, "50", "80")

	const workers = 20
	errs := make(chan error, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.Adjust(ctx, "tester", AdjustStockRequest{
				VariantID: variant.ID.String(), Delta: -1, Reason: model.ReasonManualAdjustment,
			})
			errs <- err
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.catalog.UpdateVariant(ctx, "tester", variant.ID.String(), UpdateVariantRequest{
				SKU:          "RACE-QTY-1",
				Name:         "Repriced",
				CostPrice:    "55",
				SellingPrice: "95",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Every adjustment survives the interleaved edits, and the ledger still
	// replays to the live quantity.
	live := env.variantQuantity(t, variant.ID)
	assert.Equal(t, 50-workers, live)

	replayed := 0
	for _, m := range env.movementsFor(t, variant.ID) {
		if m.Type == model.MovementIn {
			replayed += m.Quantity
		} else {
			replayed -= m.Quantity
		}
	}
	assert.Equal(t, live, replayed)

	updated, err := env.catalog.GetVariant(ctx, variant.ID.String())
	require.NoError(t, err)
	assert.True(t, updated.SellingPrice.Equal(decimal.NewFromInt(95)))
}

func TestProductMetadataUpdateKeepsLedgerAggregates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, variant := env.seedProduct(t, "AGG-1", 10, "50", "80")

	stale, err := env.catalog.GetProduct(ctx, product.ID.String())
	require.NoError(t, err)

	_, err = env.ledger.Adjust(ctx, "tester", AdjustStockRequest{
		VariantID: variant.ID.String(), Delta: -4, Reason: model.ReasonManualAdjustment,
	})
	require.NoError(t, err)

	// A metadata edit saved from a row loaded before the adjustment must not
	// drag the cached sums back.
	stale.Name = "Renamed After Adjustment"
	require.NoError(t, env.productRepo.Update(ctx, stale))

	reloaded, err := env.catalog.GetProduct(ctx, product.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Renamed After Adjustment", reloaded.Name)
	assert.Equal(t, 6, reloaded.TotalQuantity)
	assert.True(t, reloaded.TotalValue.Equal(decimal.NewFromInt(300)), "want 300, got %s", reloaded.TotalValue)
}

func TestDuplicateSKUIndexViolationSurfacesAsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, _ := env.seedProduct(t, "IDX-1", 1, "10", "20")

	// Bypass the service's stored-SKU pre-check, the way the second of two
	// concurrent creates effectively does, and hit the unique index directly.
	err := env.variantRepo.Create(ctx, &model.ProductVariant{
		ID:           uuid.New(),
		ProductID:    product.ID,
		SKU:          "IDX-1",
		Name:         "Clash",
		CostPrice:    decimal.NewFromInt(10),
		SellingPrice: decimal.NewFromInt(20),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "want translated duplicate-key error, got %v", err)

	var dup *apperr.DuplicateSKUError
	mapped := duplicateSKUOr(err, []string{"IDX-1"}, "failed to create variant")
	require.ErrorAs(t, mapped, &dup)
	assert.Equal(t, []string{"IDX-1"}, dup.SKUs)

	// Anything else keeps its wrapping and stays an infrastructure fault.
	other := duplicateSKUOr(errors.New("connection reset"), []string{"IDX-1"}, "failed to create variant")
	assert.NotErrorIs(t, other, gorm.ErrDuplicatedKey)
	assert.NotNil(t, other)
	assert.False(t, errors.As(other, &dup))
}
