package service

import (
	"context"
	"testing"

	"backend/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItemSnapshotsPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, variant := env.seedProduct(t, "CART-1", 10, "50", "80")

	cart, err := env.carts.AddItem(ctx, "till-1", AddToCartRequest{
		ProductID: product.ID.String(),
		VariantID: variant.ID.String(),
		Quantity:  2,
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, cart.Items[0].UnitPrice.Equal(decimal.NewFromInt(80)))

	// A price change after the add does not touch the open cart.
	_, err = env.catalog.UpdateVariant(ctx, "tester", variant.ID.String(), UpdateVariantRequest{
		SKU:          "CART-1",
		Name:         variant.Name,
		CostPrice:    "50",
		SellingPrice: "99",
	})
	require.NoError(t, err)

	cart, err = env.carts.Get(ctx, "till-1")
	require.NoError(t, err)
	assert.True(t, cart.Items[0].UnitPrice.Equal(decimal.NewFromInt(80)))
	assert.True(t, cart.Items[0].TotalPrice.Equal(decimal.NewFromInt(160)))
}

func TestAddItemMergesSameVariantLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, variant := env.seedProduct(t, "CART-2", 10, "50", "80")
	req := AddToCartRequest{ProductID: product.ID.String(), VariantID: variant.ID.String(), Quantity: 2}

	_, err := env.carts.AddItem(ctx, "till-1", req)
	require.NoError(t, err)
	cart, err := env.carts.AddItem(ctx, "till-1", req)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.Equal(t, 4, cart.ItemCount)
}

func TestAddItemChecksLiveStockAgainstMergedQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, variant := env.seedProduct(t, "CART-3", 5, "50", "80")
	req := AddToCartRequest{ProductID: product.ID.String(), VariantID: variant.ID.String(), Quantity: 3}

	_, err := env.carts.AddItem(ctx, "till-1", req)
	require.NoError(t, err)

	// 3 already in the cart, 3 more exceeds the 5 on hand.
	_, err = env.carts.AddItem(ctx, "till-1", req)
	var insufficient *apperr.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, insufficient.Shortages, 1)
	assert.Equal(t, 6, insufficient.Shortages[0].Requested)
	assert.Equal(t, 5, insufficient.Shortages[0].Available)

	// The failed add left the cart untouched.
	cart, err := env.carts.Get(ctx, "till-1")
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestCartTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, variant := env.seedProduct(t, "CART-4", 10, "50", "80")

	cart, err := env.carts.AddItem(ctx, "till-1", AddToCartRequest{
		ProductID: product.ID.String(),
		VariantID: variant.ID.String(),
		Quantity:  3,
	})
	require.NoError(t, err)

	// subtotal 240, tax 38.40 at 16%, total 278.40
	assert.True(t, cart.Subtotal.Equal(decimal.NewFromInt(240)), "subtotal %s", cart.Subtotal)
	assert.True(t, cart.Tax.Equal(decimal.RequireFromString("38.40")), "tax %s", cart.Tax)
	assert.True(t, cart.Total.Equal(decimal.RequireFromString("278.40")), "total %s", cart.Total)

	cart, err = env.carts.SetDiscount(ctx, "till-1", decimal.NewFromInt(20))
	require.NoError(t, err)
	assert.True(t, cart.Total.Equal(decimal.RequireFromString("258.40")), "total %s", cart.Total)
}

func TestUpdateItemQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, variant := env.seedProduct(t, "CART-5", 10, "50", "80")

	cart, err := env.carts.AddItem(ctx, "till-1", AddToCartRequest{
		ProductID: product.ID.String(),
		VariantID: variant.ID.String(),
		Quantity:  2,
	})
	require.NoError(t, err)
	itemID := cart.Items[0].ID.String()

	cart, err = env.carts.UpdateItem(ctx, "till-1", itemID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].TotalPrice.Equal(decimal.NewFromInt(400)))

	// Beyond live stock is rejected.
	_, err = env.carts.UpdateItem(ctx, "till-1", itemID, 11)
	var insufficient *apperr.InsufficientStockError
	assert.ErrorAs(t, err, &insufficient)

	// Zero removes the line.
	cart, err = env.carts.UpdateItem(ctx, "till-1", itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestRemoveItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, variant := env.seedProduct(t, "CART-6", 10, "50", "80")

	cart, err := env.carts.AddItem(ctx, "till-1", AddToCartRequest{
		ProductID: product.ID.String(),
		VariantID: variant.ID.String(),
		Quantity:  2,
	})
	require.NoError(t, err)

	cart, err = env.carts.RemoveItem(ctx, "till-1", cart.Items[0].ID.String())
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Subtotal.IsZero())

	_, err = env.carts.RemoveItem(ctx, "till-1", cart.ID.String())
	var notFound *apperr.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestCartsAreSessionScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, variant := env.seedProduct(t, "CART-7", 10, "50", "80")

	_, err := env.carts.AddItem(ctx, "till-1", AddToCartRequest{
		ProductID: product.ID.String(),
		VariantID: variant.ID.String(),
		Quantity:  2,
	})
	require.NoError(t, err)

	other, err := env.carts.Get(ctx, "till-2")
	require.NoError(t, err)
	assert.Empty(t, other.Items)
}

func TestClearCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, variant := env.seedProduct(t, "CART-8", 10, "50", "80")

	_, err := env.carts.AddItem(ctx, "till-1", AddToCartRequest{
		ProductID: product.ID.String(),
		VariantID: variant.ID.String(),
		Quantity:  2,
	})
	require.NoError(t, err)

	cart, err := env.carts.Clear(ctx, "till-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total.IsZero())

	// Clearing does not touch stock; the cart never reserved any.
	assert.Equal(t, 10, env.variantQuantity(t, variant.ID))
}

func TestAddItemRejectsMismatchedProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	productA, _ := env.seedProduct(t, "CART-9A", 10, "50", "80")
	_, variantB := env.seedProduct(t, "CART-9B", 10, "50", "80")

	_, err := env.carts.AddItem(ctx, "till-1", AddToCartRequest{
		ProductID: productA.ID.String(),
		VariantID: variantB.ID.String(),
		Quantity:  1,
	})

	var validation *apperr.ValidationError
	assert.ErrorAs(t, err, &validation)
}
