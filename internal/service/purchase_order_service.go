package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/apperr"
	"backend/internal/events"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type PurchaseOrderItemInput struct {
	ProductID string `json:"product_id" binding:"required"`
	VariantID string `json:"variant_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	CostPrice string `json:"cost_price" binding:"required"`
}

type CreatePurchaseOrderRequest struct {
	SupplierID       string                   `json:"supplier_id" binding:"required"`
	Items            []PurchaseOrderItemInput `json:"items" binding:"required,min=1,dive"`
	ExpectedDelivery *time.Time               `json:"expected_delivery"`
	Notes            string                   `json:"notes"`
}

type UpdatePurchaseOrderRequest struct {
	SupplierID       string                   `json:"supplier_id" binding:"required"`
	Items            []PurchaseOrderItemInput `json:"items" binding:"required,min=1,dive"`
	ExpectedDelivery *time.Time               `json:"expected_delivery"`
	Notes            string                   `json:"notes"`
}

// ReceiveLine receives a specific quantity against one order line.
type ReceiveLine struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// --- Interface ---

// PurchaseOrderService drives the draft -> submitted -> received state
// machine. Receiving is tracked per line and idempotent: re-receiving a
// complete line is a no-op, never a double credit.
type PurchaseOrderService interface {
	Create(ctx context.Context, actor string, req CreatePurchaseOrderRequest) (*model.PurchaseOrder, error)
	Update(ctx context.Context, actor string, id string, req UpdatePurchaseOrderRequest) (*model.PurchaseOrder, error)
	Submit(ctx context.Context, actor string, id string) (*model.PurchaseOrder, error)
	Receive(ctx context.Context, actor string, id string, lines []ReceiveLine) (*model.PurchaseOrder, error)
	Get(ctx context.Context, id string) (*model.PurchaseOrder, error)
	List(ctx context.Context, status string, page, limit int) ([]model.PurchaseOrder, int64, error)
}

type purchaseOrderService struct {
	poRepo        repository.PurchaseOrderRepository
	variantRepo   repository.VariantRepository
	referenceRepo repository.ReferenceRepository
	ledger        LedgerService
	txManager     repository.TransactionManager
	locker        *VariantLocker
	events        *events.Publisher
}

func NewPurchaseOrderService(
	poRepo repository.PurchaseOrderRepository,
	variantRepo repository.VariantRepository,
	referenceRepo repository.ReferenceRepository,
	ledger LedgerService,
	txManager repository.TransactionManager,
	locker *VariantLocker,
	publisher *events.Publisher,
) PurchaseOrderService {
	return &purchaseOrderService{
		poRepo:        poRepo,
		variantRepo:   variantRepo,
		referenceRepo: referenceRepo,
		ledger:        ledger,
		txManager:     txManager,
		locker:        locker,
		events:        publisher,
	}
}

// --- Implementation ---

func (s *purchaseOrderService) Create(ctx context.Context, actor string, req CreatePurchaseOrderRequest) (*model.PurchaseOrder, error) {
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return nil, apperr.Validation("invalid supplier_id: %s", req.SupplierID)
	}
	exists, err := s.referenceRepo.SupplierExists(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to check supplier: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("supplier", req.SupplierID)
	}

	items, total, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order := &model.PurchaseOrder{
		OrderNumber:      fmt.Sprintf("PO-%d", time.Now().UnixMilli()),
		SupplierID:       supplierID,
		Status:           model.PurchaseOrderDraft,
		Items:            items,
		TotalAmount:      total,
		ExpectedDelivery: req.ExpectedDelivery,
		Notes:            req.Notes,
		CreatedBy:        actor,
	}

	if err := s.poRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create purchase order: %w", err)
	}

	s.events.Publish(events.PurchaseOrderCreated, order)
	return order, nil
}

// Update replaces a draft's supplier, lines and notes. Anything past draft is
// frozen.
func (s *purchaseOrderService) Update(ctx context.Context, actor string, id string, req UpdatePurchaseOrderRequest) (*model.PurchaseOrder, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != model.PurchaseOrderDraft {
		return nil, &apperr.InvalidStateTransitionError{Entity: "purchase order", From: order.Status, To: model.PurchaseOrderDraft}
	}

	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return nil, apperr.Validation("invalid supplier_id: %s", req.SupplierID)
	}
	exists, err := s.referenceRepo.SupplierExists(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to check supplier: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("supplier", req.SupplierID)
	}

	items, total, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order.SupplierID = supplierID
		order.TotalAmount = total
		order.ExpectedDelivery = req.ExpectedDelivery
		order.Notes = req.Notes
		if err := s.poRepo.Update(txCtx, order); err != nil {
			return fmt.Errorf("failed to update purchase order: %w", err)
		}
		if err := s.poRepo.ReplaceItems(txCtx, order.ID, items); err != nil {
			return fmt.Errorf("failed to replace purchase order items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Publish(events.PurchaseOrderUpdated, updated)
	return updated, nil
}

func (s *purchaseOrderService) Submit(ctx context.Context, actor string, id string) (*model.PurchaseOrder, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != model.PurchaseOrderDraft {
		return nil, &apperr.InvalidStateTransitionError{Entity: "purchase order", From: order.Status, To: model.PurchaseOrderSubmitted}
	}

	order.Status = model.PurchaseOrderSubmitted
	if err := s.poRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to submit purchase order: %w", err)
	}

	s.events.Publish(events.PurchaseOrderUpdated, order)
	return order, nil
}

// Receive applies a delivery. With no lines it receives every line's
// outstanding remainder; with explicit lines it receives the given quantities,
// each capped by what is still outstanding. Stock increments go through the
// ledger inside one transaction, and the order only becomes "received" once
// every line is complete. A partial receipt stays "submitted" so Receive can
// run again later without double-crediting.
func (s *purchaseOrderService) Receive(ctx context.Context, actor string, id string, lines []ReceiveLine) (*model.PurchaseOrder, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != model.PurchaseOrderSubmitted {
		return nil, &apperr.InvalidStateTransitionError{Entity: "purchase order", From: order.Status, To: model.PurchaseOrderReceived}
	}

	// Items are frozen after submit, so the variant set is stable; lock it
	// before opening the transaction.
	variantIDs := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		variantIDs = append(variantIDs, item.VariantID)
	}
	unlock := s.locker.Lock(variantIDs...)
	defer unlock()

	var movements []*model.StockMovement

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Re-read under the row lock: a concurrent receive may have
		// advanced received quantities since the check above.
		current, findErr := s.poRepo.FindByIDForUpdate(txCtx, order.ID)
		if findErr != nil {
			return fmt.Errorf("failed to reload purchase order: %w", findErr)
		}
		if current.Status != model.PurchaseOrderSubmitted {
			return &apperr.InvalidStateTransitionError{Entity: "purchase order", From: current.Status, To: model.PurchaseOrderReceived}
		}

		plan, planErr := buildReceivePlan(current, lines)
		if planErr != nil {
			return planErr
		}

		for i := range current.Items {
			item := &current.Items[i]
			qty, ok := plan[item.ID]
			if !ok || qty == 0 {
				continue
			}
			movement, adjErr := s.ledger.ApplyAdjustment(txCtx, actor, item.VariantID, qty, model.ReasonPurchaseReceipt, current.OrderNumber)
			if adjErr != nil {
				return adjErr
			}
			movements = append(movements, movement)

			item.ReceivedQuantity += qty
			if updErr := s.poRepo.UpdateItem(txCtx, item); updErr != nil {
				return fmt.Errorf("failed to update received quantity: %w", updErr)
			}
		}

		if current.Received() {
			current.Status = model.PurchaseOrderReceived
		}
		if updErr := s.poRepo.Update(txCtx, current); updErr != nil {
			return fmt.Errorf("failed to update purchase order: %w", updErr)
		}
		*order = *current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if order.Status == model.PurchaseOrderReceived {
		s.events.Publish(events.PurchaseOrderReceived, order)
	} else {
		s.events.Publish(events.PurchaseOrderUpdated, order)
	}
	for _, m := range movements {
		s.events.Publish(events.StockUpdated, map[string]interface{}{
			"product_id": m.ProductID,
			"variant_id": m.VariantID,
			"quantity":   m.NewQuantity,
		})
	}

	return order, nil
}

func (s *purchaseOrderService) Get(ctx context.Context, id string) (*model.PurchaseOrder, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid purchase order id: %s", id)
	}
	order, err := s.poRepo.FindByIDWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("purchase order", id)
		}
		return nil, fmt.Errorf("failed to load purchase order: %w", err)
	}
	return order, nil
}

func (s *purchaseOrderService) List(ctx context.Context, status string, page, limit int) ([]model.PurchaseOrder, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.poRepo.List(ctx, status, page, limit)
}

// --- helpers ---

func (s *purchaseOrderService) buildItems(ctx context.Context, inputs []PurchaseOrderItemInput) ([]model.PurchaseOrderItem, decimal.Decimal, error) {
	items := make([]model.PurchaseOrderItem, 0, len(inputs))
	total := decimal.Zero

	for _, in := range inputs {
		productID, err := uuid.Parse(in.ProductID)
		if err != nil {
			return nil, decimal.Zero, apperr.Validation("invalid product_id: %s", in.ProductID)
		}
		variantID, err := uuid.Parse(in.VariantID)
		if err != nil {
			return nil, decimal.Zero, apperr.Validation("invalid variant_id: %s", in.VariantID)
		}
		costPrice, err := decimal.NewFromString(in.CostPrice)
		if err != nil {
			return nil, decimal.Zero, apperr.Validation("invalid cost_price: %s", in.CostPrice)
		}
		if in.Quantity <= 0 {
			return nil, decimal.Zero, apperr.Validation("quantity must be positive")
		}

		variant, err := s.variantRepo.FindByID(ctx, variantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, decimal.Zero, apperr.NotFound("variant", in.VariantID)
			}
			return nil, decimal.Zero, fmt.Errorf("failed to load variant: %w", err)
		}
		if variant.ProductID != productID {
			return nil, decimal.Zero, apperr.Validation("variant %s does not belong to product %s", in.VariantID, in.ProductID)
		}

		items = append(items, model.PurchaseOrderItem{
			ProductID: productID,
			VariantID: variantID,
			Quantity:  in.Quantity,
			CostPrice: costPrice,
		})
		total = total.Add(costPrice.Mul(decimal.NewFromInt(int64(in.Quantity))))
	}

	return items, total, nil
}

// buildReceivePlan maps item id -> quantity to credit now. Without explicit
// lines, every line's outstanding remainder is received; fully received lines
// contribute zero, which is what makes a blanket re-receive a no-op.
func buildReceivePlan(order *model.PurchaseOrder, lines []ReceiveLine) (map[uuid.UUID]int, error) {
	byID := make(map[uuid.UUID]*model.PurchaseOrderItem, len(order.Items))
	for i := range order.Items {
		byID[order.Items[i].ID] = &order.Items[i]
	}

	plan := make(map[uuid.UUID]int, len(order.Items))
	if len(lines) == 0 {
		for id, item := range byID {
			plan[id] = item.Quantity - item.ReceivedQuantity
		}
		return plan, nil
	}

	for _, line := range lines {
		itemID, err := uuid.Parse(line.ItemID)
		if err != nil {
			return nil, apperr.Validation("invalid item_id: %s", line.ItemID)
		}
		item, ok := byID[itemID]
		if !ok {
			return nil, apperr.NotFound("purchase order item", line.ItemID)
		}
		if line.Quantity <= 0 {
			return nil, apperr.Validation("receive quantity must be positive")
		}
		remaining := item.Quantity - item.ReceivedQuantity
		if line.Quantity > remaining {
			return nil, apperr.Validation("line %s: receiving %d exceeds outstanding %d", line.ItemID, line.Quantity, remaining)
		}
		plan[itemID] += line.Quantity
		if plan[itemID] > remaining {
			return nil, apperr.Validation("line %s: receiving %d exceeds outstanding %d", line.ItemID, plan[itemID], remaining)
		}
	}

	return plan, nil
}
