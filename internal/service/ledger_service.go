package service

import (
	"context"
	"errors"
	"fmt"

	"backend/internal/apperr"
	"backend/internal/events"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdjustStockRequest is a manual ledger adjustment (damage, recount, ...).
// Delta is signed: positive stocks in, negative stocks out.
type AdjustStockRequest struct {
	VariantID string `json:"variant_id" binding:"required"`
	Delta     int    `json:"delta" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
	Reference string `json:"reference"`
}

// LedgerService owns every change to variant quantities. The variant's
// quantity field stays the source of truth; movements are the append-only
// explanation of how it got there, never replayed to reconstruct it.
type LedgerService interface {
	Adjust(ctx context.Context, actor string, req AdjustStockRequest) (*model.StockMovement, error)

	// ApplyAdjustment performs one ledger step inside an already-open
	// transaction. The caller must hold the variant's lock (see
	// VariantLocker) and run inside TransactionManager.RunInTx; sale
	// commits and purchase-order receipts use this to fold several ledger
	// steps into one atomic unit.
	ApplyAdjustment(txCtx context.Context, actor string, variantID uuid.UUID, delta int, reason, reference string) (*model.StockMovement, error)

	Movements(ctx context.Context, variantID *uuid.UUID, page, limit int) ([]model.StockMovement, int64, error)
}

type ledgerService struct {
	variantRepo  repository.VariantRepository
	productRepo  repository.ProductRepository
	movementRepo repository.MovementRepository
	txManager    repository.TransactionManager
	locker       *VariantLocker
	events       *events.Publisher
}

func NewLedgerService(
	variantRepo repository.VariantRepository,
	productRepo repository.ProductRepository,
	movementRepo repository.MovementRepository,
	txManager repository.TransactionManager,
	locker *VariantLocker,
	publisher *events.Publisher,
) LedgerService {
	return &ledgerService{
		variantRepo:  variantRepo,
		productRepo:  productRepo,
		movementRepo: movementRepo,
		txManager:    txManager,
		locker:       locker,
		events:       publisher,
	}
}

func (s *ledgerService) Adjust(ctx context.Context, actor string, req AdjustStockRequest) (*model.StockMovement, error) {
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		return nil, apperr.Validation("invalid variant_id: %s", req.VariantID)
	}
	if req.Delta == 0 {
		return nil, apperr.Validation("delta must be non-zero")
	}
	if req.Reason == "" {
		return nil, apperr.Validation("reason is required")
	}

	unlock := s.locker.Lock(variantID)
	defer unlock()

	var movement *model.StockMovement
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var applyErr error
		movement, applyErr = s.ApplyAdjustment(txCtx, actor, variantID, req.Delta, req.Reason, req.Reference)
		return applyErr
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(events.StockUpdated, map[string]interface{}{
		"product_id": movement.ProductID,
		"variant_id": movement.VariantID,
		"quantity":   movement.NewQuantity,
	})

	return movement, nil
}

func (s *ledgerService) ApplyAdjustment(txCtx context.Context, actor string, variantID uuid.UUID, delta int, reason, reference string) (*model.StockMovement, error) {
	variant, err := s.variantRepo.FindByIDForUpdate(txCtx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("variant", variantID.String())
		}
		return nil, fmt.Errorf("failed to read variant: %w", err)
	}

	newQuantity := variant.Quantity + delta
	if newQuantity < 0 {
		return nil, &apperr.InsufficientStockError{Shortages: []apperr.StockShortage{{
			ProductID:   variant.ProductID,
			VariantID:   variant.ID,
			VariantName: variant.Name,
			SKU:         variant.SKU,
			Requested:   -delta,
			Available:   variant.Quantity,
		}}}
	}

	if err := s.variantRepo.UpdateQuantity(txCtx, variant.ID, newQuantity); err != nil {
		return nil, fmt.Errorf("failed to update variant quantity: %w", err)
	}

	movementType := model.MovementIn
	magnitude := delta
	if delta < 0 {
		movementType = model.MovementOut
		magnitude = -delta
	}

	movement := &model.StockMovement{
		ProductID:        variant.ProductID,
		VariantID:        variant.ID,
		Type:             movementType,
		Quantity:         magnitude,
		PreviousQuantity: variant.Quantity,
		NewQuantity:      newQuantity,
		Reason:           reason,
		Reference:        reference,
		CreatedBy:        actor,
	}
	if err := s.movementRepo.Create(txCtx, movement); err != nil {
		return nil, fmt.Errorf("failed to append stock movement: %w", err)
	}

	if err := recomputeProductAggregates(txCtx, s.variantRepo, s.productRepo, variant.ProductID); err != nil {
		return nil, err
	}

	return movement, nil
}

func (s *ledgerService) Movements(ctx context.Context, variantID *uuid.UUID, page, limit int) ([]model.StockMovement, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.movementRepo.List(ctx, variantID, page, limit)
}

// recomputeProductAggregates rebuilds a product's cached TotalQuantity and
// TotalValue from its variants, inside the caller's transaction. The
// aggregates are never updated independently of their source variants.
func recomputeProductAggregates(txCtx context.Context, variants repository.VariantRepository, products repository.ProductRepository, productID uuid.UUID) error {
	all, err := variants.ListByProduct(txCtx, productID)
	if err != nil {
		return fmt.Errorf("failed to list variants for aggregates: %w", err)
	}

	totalQuantity := 0
	totalValue := decimal.Zero
	for _, v := range all {
		totalQuantity += v.Quantity
		totalValue = totalValue.Add(v.CostPrice.Mul(decimal.NewFromInt(int64(v.Quantity))))
	}

	if err := products.UpdateAggregates(txCtx, productID, totalQuantity, totalValue); err != nil {
		return fmt.Errorf("failed to update product aggregates: %w", err)
	}
	return nil
}
