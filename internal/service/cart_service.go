package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"backend/internal/apperr"
	"backend/internal/events"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultTaxRate matches the POS default (16% VAT).
var DefaultTaxRate = decimal.NewFromFloat(0.16)

type AddToCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	VariantID string `json:"variant_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// CartService keeps one active cart per operator session, in memory only.
// Prices are snapshotted at add-time; stock availability is always re-checked
// live, because other sessions can drain stock while a cart sits open. Failed
// operations leave the cart exactly as it was.
type CartService interface {
	Get(ctx context.Context, sessionID string) (*model.Cart, error)
	AddItem(ctx context.Context, sessionID string, req AddToCartRequest) (*model.Cart, error)
	UpdateItem(ctx context.Context, sessionID, itemID string, quantity int) (*model.Cart, error)
	RemoveItem(ctx context.Context, sessionID, itemID string) (*model.Cart, error)
	SetDiscount(ctx context.Context, sessionID string, discount decimal.Decimal) (*model.Cart, error)
	Clear(ctx context.Context, sessionID string) (*model.Cart, error)
}

type cartService struct {
	variantRepo repository.VariantRepository
	productRepo repository.ProductRepository
	taxRate     decimal.Decimal
	events      *events.Publisher

	mu    sync.Mutex
	carts map[string]*model.Cart
}

func NewCartService(
	variantRepo repository.VariantRepository,
	productRepo repository.ProductRepository,
	taxRate decimal.Decimal,
	publisher *events.Publisher,
) CartService {
	return &cartService{
		variantRepo: variantRepo,
		productRepo: productRepo,
		taxRate:     taxRate,
		events:      publisher,
		carts:       make(map[string]*model.Cart),
	}
}

func (s *cartService) Get(ctx context.Context, sessionID string) (*model.Cart, error) {
	if sessionID == "" {
		return nil, apperr.Validation("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotCart(s.cart(sessionID)), nil
}

func (s *cartService) AddItem(ctx context.Context, sessionID string, req AddToCartRequest) (*model.Cart, error) {
	if sessionID == "" {
		return nil, apperr.Validation("session id is required")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, apperr.Validation("invalid product_id: %s", req.ProductID)
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		return nil, apperr.Validation("invalid variant_id: %s", req.VariantID)
	}
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}

	variant, err := s.loadVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if variant.ProductID != productID {
		return nil, apperr.Validation("variant %s does not belong to product %s", req.VariantID, req.ProductID)
	}
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product", req.ProductID)
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.cart(sessionID)

	requested := req.Quantity
	var existing *model.CartItem
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID && cart.Items[i].VariantID == variantID {
			existing = &cart.Items[i]
			requested += existing.Quantity
			break
		}
	}

	if requested > variant.Quantity {
		return nil, &apperr.InsufficientStockError{Shortages: []apperr.StockShortage{{
			ProductID:   productID,
			VariantID:   variantID,
			ProductName: product.Name,
			VariantName: variant.Name,
			SKU:         variant.SKU,
			Requested:   requested,
			Available:   variant.Quantity,
		}}}
	}

	if existing != nil {
		existing.Quantity = requested
		existing.TotalPrice = existing.UnitPrice.Mul(decimal.NewFromInt(int64(requested)))
		existing.AvailableQuantity = variant.Quantity
	} else {
		cart.Items = append(cart.Items, model.CartItem{
			ID:                uuid.New(),
			ProductID:         productID,
			VariantID:         variantID,
			ProductName:       product.Name,
			VariantName:       variant.Name,
			SKU:               variant.SKU,
			Quantity:          req.Quantity,
			UnitPrice:         variant.SellingPrice,
			TotalPrice:        variant.SellingPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
			AvailableQuantity: variant.Quantity,
		})
	}

	s.recomputeTotals(cart)
	snapshot := snapshotCart(cart)
	s.events.Publish(events.CartUpdated, snapshot)
	return snapshot, nil
}

func (s *cartService) UpdateItem(ctx context.Context, sessionID, itemID string, quantity int) (*model.Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, sessionID, itemID)
	}
	id, err := uuid.Parse(itemID)
	if err != nil {
		return nil, apperr.Validation("invalid cart item id: %s", itemID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.cart(sessionID)

	item := findCartItem(cart, id)
	if item == nil {
		return nil, apperr.NotFound("cart item", itemID)
	}

	// Stock can have moved since the item was added; check live, not the
	// stale add-time snapshot.
	variant, err := s.loadVariant(ctx, item.VariantID)
	if err != nil {
		return nil, err
	}
	if quantity > variant.Quantity {
		return nil, &apperr.InsufficientStockError{Shortages: []apperr.StockShortage{{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			SKU:         item.SKU,
			Requested:   quantity,
			Available:   variant.Quantity,
		}}}
	}

	item.Quantity = quantity
	item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	item.AvailableQuantity = variant.Quantity

	s.recomputeTotals(cart)
	snapshot := snapshotCart(cart)
	s.events.Publish(events.CartUpdated, snapshot)
	return snapshot, nil
}

func (s *cartService) RemoveItem(ctx context.Context, sessionID, itemID string) (*model.Cart, error) {
	id, err := uuid.Parse(itemID)
	if err != nil {
		return nil, apperr.Validation("invalid cart item id: %s", itemID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.cart(sessionID)

	for i := range cart.Items {
		if cart.Items[i].ID == id {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			s.recomputeTotals(cart)
			snapshot := snapshotCart(cart)
			s.events.Publish(events.CartUpdated, snapshot)
			return snapshot, nil
		}
	}
	return nil, apperr.NotFound("cart item", itemID)
}

func (s *cartService) SetDiscount(ctx context.Context, sessionID string, discount decimal.Decimal) (*model.Cart, error) {
	if discount.IsNegative() {
		return nil, apperr.Validation("discount cannot be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.cart(sessionID)
	cart.Discount = discount
	s.recomputeTotals(cart)
	snapshot := snapshotCart(cart)
	s.events.Publish(events.CartUpdated, snapshot)
	return snapshot, nil
}

// Clear destroys the session's cart; the next Get starts a fresh one.
func (s *cartService) Clear(ctx context.Context, sessionID string) (*model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	snapshot := snapshotCart(s.cart(sessionID))
	s.events.Publish(events.CartUpdated, snapshot)
	return snapshot, nil
}

// cart returns the session's live cart, creating it lazily. Caller holds s.mu.
func (s *cartService) cart(sessionID string) *model.Cart {
	if c, ok := s.carts[sessionID]; ok {
		return c
	}
	now := time.Now()
	c := &model.Cart{
		ID:        uuid.New(),
		SessionID: sessionID,
		Items:     []model.CartItem{},
		Subtotal:  decimal.Zero,
		Tax:       decimal.Zero,
		Discount:  decimal.Zero,
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.carts[sessionID] = c
	return c
}

func (s *cartService) recomputeTotals(cart *model.Cart) {
	subtotal := decimal.Zero
	count := 0
	for _, item := range cart.Items {
		subtotal = subtotal.Add(item.TotalPrice)
		count += item.Quantity
	}
	cart.Subtotal = subtotal
	cart.Tax = subtotal.Mul(s.taxRate).Round(2)
	cart.Total = subtotal.Add(cart.Tax).Sub(cart.Discount)
	cart.ItemCount = count
	cart.UpdatedAt = time.Now()
}

func (s *cartService) loadVariant(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error) {
	variant, err := s.variantRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("variant", id.String())
		}
		return nil, fmt.Errorf("failed to load variant: %w", err)
	}
	return variant, nil
}

func findCartItem(cart *model.Cart, id uuid.UUID) *model.CartItem {
	for i := range cart.Items {
		if cart.Items[i].ID == id {
			return &cart.Items[i]
		}
	}
	return nil
}

// snapshotCart copies the cart so callers can read it safely after the lock
// is released.
func snapshotCart(cart *model.Cart) *model.Cart {
	copied := *cart
	copied.Items = append([]model.CartItem(nil), cart.Items...)
	return &copied
}
