package service

import (
	"context"
	"strings"
	"testing"

	"backend/internal/apperr"
	"backend/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) seedSubmittedOrder(t *testing.T, qty int) (*model.PurchaseOrder, *model.ProductVariant) {
	t.Helper()
	ctx := context.Background()

	supplier := e.seedSupplier(t)
	product, variant := e.seedProduct(t, "PO-"+t.Name(), 0, "40", "70")

	order, err := e.orders.Create(ctx, "buyer", CreatePurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items: []PurchaseOrderItemInput{{
			ProductID: product.ID.String(),
			VariantID: variant.ID.String(),
			Quantity:  qty,
			CostPrice: "40",
		}},
	})
	require.NoError(t, err)

	order, err = e.orders.Submit(ctx, "buyer", order.ID.String())
	require.NoError(t, err)

	return order, variant
}

func TestCreatePurchaseOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	supplier := env.seedSupplier(t)
	product, variant := env.seedProduct(t, "PO-C1", 0, "40", "70")

	order, err := env.orders.Create(ctx, "buyer", CreatePurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Notes:      "restock screens",
		Items: []PurchaseOrderItemInput{{
			ProductID: product.ID.String(),
			VariantID: variant.ID.String(),
			Quantity:  20,
			CostPrice: "40",
		}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(order.OrderNumber, "PO-"))
	assert.Equal(t, model.PurchaseOrderDraft, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(800)), "total %s", order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 0, order.Items[0].ReceivedQuantity)

	// Creating the order does not touch stock.
	assert.Equal(t, 0, env.variantQuantity(t, variant.ID))
}

func TestCreatePurchaseOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	supplier := env.seedSupplier(t)
	productA, _ := env.seedProduct(t, "PO-V1", 0, "40", "70")
	_, variantB := env.seedProduct(t, "PO-V2", 0, "40", "70")

	// Variant from another product.
	_, err := env.orders.Create(ctx, "buyer", CreatePurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items: []PurchaseOrderItemInput{{
			ProductID: productA.ID.String(),
			VariantID: variantB.ID.String(),
			Quantity:  1,
			CostPrice: "40",
		}},
	})
	var validation *apperr.ValidationError
	assert.ErrorAs(t, err, &validation)

	// Unknown supplier.
	_, err = env.orders.Create(ctx, "buyer", CreatePurchaseOrderRequest{
		SupplierID: "11111111-2222-4333-8444-555555555555",
		Items: []PurchaseOrderItemInput{{
			ProductID: productA.ID.String(),
			VariantID: variantB.ID.String(),
			Quantity:  1,
			CostPrice: "40",
		}},
	})
	var notFound *apperr.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestUpdatePurchaseOrderDraftOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order, variant := env.seedSubmittedOrder(t, 5)

	_, err := env.orders.Update(ctx, "buyer", order.ID.String(), UpdatePurchaseOrderRequest{
		SupplierID: order.SupplierID.String(),
		Items: []PurchaseOrderItemInput{{
			ProductID: order.Items[0].ProductID.String(),
			VariantID: variant.ID.String(),
			Quantity:  99,
			CostPrice: "40",
		}},
	})

	var transition *apperr.InvalidStateTransitionError
	assert.ErrorAs(t, err, &transition)
}

func TestUpdateDraftReplacesLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	supplier := env.seedSupplier(t)
	product, variant := env.seedProduct(t, "PO-U1", 0, "40", "70")

	order, err := env.orders.Create(ctx, "buyer", CreatePurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items: []PurchaseOrderItemInput{{
			ProductID: product.ID.String(),
			VariantID: variant.ID.String(),
			Quantity:  5,
			CostPrice: "40",
		}},
	})
	require.NoError(t, err)

	updated, err := env.orders.Update(ctx, "buyer", order.ID.String(), UpdatePurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items: []PurchaseOrderItemInput{{
			ProductID: product.ID.String(),
			VariantID: variant.ID.String(),
			Quantity:  12,
			CostPrice: "38",
		}},
	})
	require.NoError(t, err)

	require.Len(t, updated.Items, 1)
	assert.Equal(t, 12, updated.Items[0].Quantity)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(456)), "total %s", updated.TotalAmount)
}

func TestSubmitTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order, _ := env.seedSubmittedOrder(t, 5)
	assert.Equal(t, model.PurchaseOrderSubmitted, order.Status)

	// Submitting twice is rejected.
	_, err := env.orders.Submit(ctx, "buyer", order.ID.String())
	var transition *apperr.InvalidStateTransitionError
	assert.ErrorAs(t, err, &transition)
}

func TestReceiveDraftRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	supplier := env.seedSupplier(t)
	product, variant := env.seedProduct(t, "PO-R0", 0, "40", "70")

	order, err := env.orders.Create(ctx, "buyer", CreatePurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items: []PurchaseOrderItemInput{{
			ProductID: product.ID.String(),
			VariantID: variant.ID.String(),
			Quantity:  5,
			CostPrice: "40",
		}},
	})
	require.NoError(t, err)

	_, err = env.orders.Receive(ctx, "buyer", order.ID.String(), nil)
	var transition *apperr.InvalidStateTransitionError
	assert.ErrorAs(t, err, &transition)
	assert.Equal(t, 0, env.variantQuantity(t, variant.ID))
}

func TestReceiveFullOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order, variant := env.seedSubmittedOrder(t, 20)

	received, err := env.orders.Receive(ctx, "buyer", order.ID.String(), nil)
	require.NoError(t, err)

	assert.Equal(t, model.PurchaseOrderReceived, received.Status)
	assert.Equal(t, 20, received.Items[0].ReceivedQuantity)
	assert.Equal(t, 20, env.variantQuantity(t, variant.ID))

	// One "in" movement referencing the order.
	movements := env.movementsFor(t, variant.ID)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementIn, movements[0].Type)
	assert.Equal(t, model.ReasonPurchaseReceipt, movements[0].Reason)
	assert.Equal(t, order.OrderNumber, movements[0].Reference)
	assert.Equal(t, 20, movements[0].Quantity)
}

func TestPartialReceiveStaysSubmitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order, variant := env.seedSubmittedOrder(t, 20)
	itemID := order.Items[0].ID.String()

	partial, err := env.orders.Receive(ctx, "buyer", order.ID.String(), []ReceiveLine{{ItemID: itemID, Quantity: 5}})
	require.NoError(t, err)

	assert.Equal(t, model.PurchaseOrderSubmitted, partial.Status)
	assert.Equal(t, 5, partial.Items[0].ReceivedQuantity)
	assert.Equal(t, 5, env.variantQuantity(t, variant.ID))

	// Receiving the remainder completes the order.
	complete, err := env.orders.Receive(ctx, "buyer", order.ID.String(), nil)
	require.NoError(t, err)

	assert.Equal(t, model.PurchaseOrderReceived, complete.Status)
	assert.Equal(t, 20, complete.Items[0].ReceivedQuantity)
	assert.Equal(t, 20, env.variantQuantity(t, variant.ID))

	// The second receipt credited only the outstanding 15.
	movements := env.movementsFor(t, variant.ID)
	require.Len(t, movements, 2)
	quantities := []int{movements[0].Quantity, movements[1].Quantity}
	assert.ElementsMatch(t, []int{5, 15}, quantities)
}

func TestReceiveRejectsOverdelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order, variant := env.seedSubmittedOrder(t, 10)
	itemID := order.Items[0].ID.String()

	_, err := env.orders.Receive(ctx, "buyer", order.ID.String(), []ReceiveLine{{ItemID: itemID, Quantity: 11}})

	var validation *apperr.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, 0, env.variantQuantity(t, variant.ID))

	// A partial receipt, then another exceeding the remainder, also fails and
	// leaves the first receipt intact.
	_, err = env.orders.Receive(ctx, "buyer", order.ID.String(), []ReceiveLine{{ItemID: itemID, Quantity: 6}})
	require.NoError(t, err)
	_, err = env.orders.Receive(ctx, "buyer", order.ID.String(), []ReceiveLine{{ItemID: itemID, Quantity: 5}})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, 6, env.variantQuantity(t, variant.ID))
}

func TestReceiveCompletedOrderRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order, variant := env.seedSubmittedOrder(t, 10)

	_, err := env.orders.Receive(ctx, "buyer", order.ID.String(), nil)
	require.NoError(t, err)

	// Fully received orders reject further receives; no double credit.
	_, err = env.orders.Receive(ctx, "buyer", order.ID.String(), nil)
	var transition *apperr.InvalidStateTransitionError
	assert.ErrorAs(t, err, &transition)
	assert.Equal(t, 10, env.variantQuantity(t, variant.ID))
}

func TestReceiveUnknownLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order, variant := env.seedSubmittedOrder(t, 10)

	_, err := env.orders.Receive(ctx, "buyer", order.ID.String(), []ReceiveLine{{
		ItemID:   variant.ID.String(), // a valid uuid, but not an order line
		Quantity: 1,
	}})

	var notFound *apperr.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, 0, env.variantQuantity(t, variant.ID))
}

func TestListPurchaseOrdersByStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedSubmittedOrder(t, 5)

	orders, total, err := env.orders.List(ctx, model.PurchaseOrderSubmitted, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, orders, 1)

	_, total, err = env.orders.List(ctx, model.PurchaseOrderDraft, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}
