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

type PaymentInfo struct {
	Method        string `json:"payment_method" binding:"required"`
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Notes         string `json:"notes"`
}

// SaleService turns a cart into an immutable sale. Commit is the only code
// path that writes "out" movements with reason "sale".
type SaleService interface {
	Commit(ctx context.Context, sessionID, actor string, payment PaymentInfo) (*model.Sale, error)
	Get(ctx context.Context, id string) (*model.Sale, error)
	List(ctx context.Context, page, limit int) ([]model.Sale, int64, error)
}

type saleService struct {
	carts       CartService
	ledger      LedgerService
	variantRepo repository.VariantRepository
	saleRepo    repository.SaleRepository
	txManager   repository.TransactionManager
	locker      *VariantLocker
	events      *events.Publisher
}

func NewSaleService(
	carts CartService,
	ledger LedgerService,
	variantRepo repository.VariantRepository,
	saleRepo repository.SaleRepository,
	txManager repository.TransactionManager,
	locker *VariantLocker,
	publisher *events.Publisher,
) SaleService {
	return &saleService{
		carts:       carts,
		ledger:      ledger,
		variantRepo: variantRepo,
		saleRepo:    saleRepo,
		txManager:   txManager,
		locker:      locker,
		events:      publisher,
	}
}

// Commit validates every cart line against live stock and applies the sale
// plus its ledger decrements as one all-or-nothing unit. The cart's add-time
// checks were only a convenience; this re-check is the invariant guard,
// because time has passed since items were added.
func (s *saleService) Commit(ctx context.Context, sessionID, actor string, payment PaymentInfo) (*model.Sale, error) {
	cart, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	var customerID *uuid.UUID
	if payment.CustomerID != "" {
		parsed, parseErr := uuid.Parse(payment.CustomerID)
		if parseErr != nil {
			return nil, apperr.Validation("invalid customer_id: %s", payment.CustomerID)
		}
		customerID = &parsed
	}

	variantIDs := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		variantIDs = append(variantIDs, item.VariantID)
	}

	// Hold every line's variant lock before writing anything, so a
	// concurrent commit on overlapping variants cannot leave a partial
	// decrement behind.
	unlock := s.locker.Lock(variantIDs...)
	defer unlock()

	saleNumber := fmt.Sprintf("SALE-%d", time.Now().UnixMilli())
	var sale *model.Sale
	var movements []*model.StockMovement

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var shortages []apperr.StockShortage
		live := make(map[uuid.UUID]*model.ProductVariant, len(cart.Items))

		for _, item := range cart.Items {
			variant, findErr := s.variantRepo.FindByIDForUpdate(txCtx, item.VariantID)
			if findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					shortages = append(shortages, apperr.StockShortage{
						ProductID:   item.ProductID,
						VariantID:   item.VariantID,
						ProductName: item.ProductName,
						VariantName: item.VariantName,
						SKU:         item.SKU,
						Requested:   item.Quantity,
						Available:   0,
					})
					continue
				}
				return fmt.Errorf("failed to read variant: %w", findErr)
			}
			live[item.VariantID] = variant
			if item.Quantity > variant.Quantity {
				shortages = append(shortages, apperr.StockShortage{
					ProductID:   item.ProductID,
					VariantID:   item.VariantID,
					ProductName: item.ProductName,
					VariantName: item.VariantName,
					SKU:         item.SKU,
					Requested:   item.Quantity,
					Available:   variant.Quantity,
				})
			}
		}

		// Every failing line is reported at once, and nothing is written.
		if len(shortages) > 0 {
			return &apperr.InsufficientStockError{Shortages: shortages}
		}

		saleItems := make([]model.SaleItem, 0, len(cart.Items))
		for _, item := range cart.Items {
			costPrice := live[item.VariantID].CostPrice
			qty := decimal.NewFromInt(int64(item.Quantity))
			saleItems = append(saleItems, model.SaleItem{
				ProductID:   item.ProductID,
				VariantID:   item.VariantID,
				ProductName: item.ProductName,
				VariantName: item.VariantName,
				SKU:         item.SKU,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				TotalPrice:  item.TotalPrice,
				CostPrice:   costPrice,
				Profit:      item.UnitPrice.Sub(costPrice).Mul(qty),
			})
		}

		sale = &model.Sale{
			SaleNumber:    saleNumber,
			Items:         saleItems,
			Subtotal:      cart.Subtotal,
			Tax:           cart.Tax,
			Discount:      cart.Discount,
			Total:         cart.Total,
			PaymentMethod: payment.Method,
			PaymentStatus: model.PaymentCompleted,
			CustomerID:    customerID,
			CustomerName:  payment.CustomerName,
			CustomerPhone: payment.CustomerPhone,
			Notes:         payment.Notes,
			SoldBy:        actor,
		}
		if createErr := s.saleRepo.Create(txCtx, sale); createErr != nil {
			return fmt.Errorf("failed to persist sale: %w", createErr)
		}

		for _, item := range cart.Items {
			movement, adjErr := s.ledger.ApplyAdjustment(txCtx, actor, item.VariantID, -item.Quantity, model.ReasonSale, saleNumber)
			if adjErr != nil {
				return adjErr
			}
			movements = append(movements, movement)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, clearErr := s.carts.Clear(ctx, sessionID); clearErr != nil {
		return nil, clearErr
	}

	s.events.Publish(events.SaleCompleted, sale)
	for _, m := range movements {
		s.events.Publish(events.StockUpdated, map[string]interface{}{
			"product_id": m.ProductID,
			"variant_id": m.VariantID,
			"quantity":   m.NewQuantity,
		})
	}

	return sale, nil
}

func (s *saleService) Get(ctx context.Context, id string) (*model.Sale, error) {
	saleID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid sale id: %s", id)
	}
	sale, err := s.saleRepo.FindByIDWithItems(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("sale", id)
		}
		return nil, fmt.Errorf("failed to load sale: %w", err)
	}
	return sale, nil
}

func (s *saleService) List(ctx context.Context, page, limit int) ([]model.Sale, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.saleRepo.List(ctx, page, limit)
}
