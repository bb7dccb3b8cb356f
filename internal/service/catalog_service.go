package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"backend/internal/apperr"
	"backend/internal/events"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type VariantInput struct {
	SKU          string            `json:"sku" binding:"required"`
	Name         string            `json:"name" binding:"required"`
	Barcode      string            `json:"barcode"`
	Attributes   map[string]string `json:"attributes"`
	CostPrice    string            `json:"cost_price" binding:"required"`
	SellingPrice string            `json:"selling_price" binding:"required"`
	Quantity     int               `json:"quantity" binding:"gte=0"`
	MinQuantity  int               `json:"min_quantity" binding:"gte=0"`
	MaxQuantity  int               `json:"max_quantity" binding:"gte=0"`
}

type CreateProductRequest struct {
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description"`
	CategoryID  string         `json:"category_id"`
	BrandID     string         `json:"brand_id"`
	SupplierID  string         `json:"supplier_id"`
	IsActive    *bool          `json:"is_active"`
	Variants    []VariantInput `json:"variants" binding:"required,min=1,dive"`
}

type UpdateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id"`
	BrandID     string `json:"brand_id"`
	SupplierID  string `json:"supplier_id"`
	IsActive    *bool  `json:"is_active"`
}

// UpdateVariantRequest deliberately has no quantity field: on-hand counts
// change only through the stock ledger.
type UpdateVariantRequest struct {
	SKU          string            `json:"sku" binding:"required"`
	Name         string            `json:"name" binding:"required"`
	Barcode      string            `json:"barcode"`
	Attributes   map[string]string `json:"attributes"`
	CostPrice    string            `json:"cost_price" binding:"required"`
	SellingPrice string            `json:"selling_price" binding:"required"`
	MinQuantity  int               `json:"min_quantity" binding:"gte=0"`
	MaxQuantity  int               `json:"max_quantity" binding:"gte=0"`
}

// ProductListFilter narrows ListProducts; empty fields are ignored.
type ProductListFilter struct {
	CategoryID string
	BrandID    string
	SupplierID string
	Active     *bool
	Search     string
	Page       int
	Limit      int
}

// --- Interface ---

type CatalogService interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, filter ProductListFilter) ([]model.Product, int64, error)
	CreateProduct(ctx context.Context, actor string, req CreateProductRequest) (*model.Product, error)
	UpdateProduct(ctx context.Context, actor string, id string, req UpdateProductRequest) (*model.Product, error)
	DeleteProduct(ctx context.Context, actor string, id string) error
	GetVariant(ctx context.Context, id string) (*model.ProductVariant, error)
	CreateVariant(ctx context.Context, actor string, productID string, req VariantInput) (*model.ProductVariant, error)
	UpdateVariant(ctx context.Context, actor string, id string, req UpdateVariantRequest) (*model.ProductVariant, error)

	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*model.Category, error)
	ListBrands(ctx context.Context) ([]model.Brand, error)
	CreateBrand(ctx context.Context, name string) (*model.Brand, error)
	ListSuppliers(ctx context.Context) ([]model.Supplier, error)
	CreateSupplier(ctx context.Context, name, phone, email string) (*model.Supplier, error)
}

type catalogService struct {
	productRepo   repository.ProductRepository
	variantRepo   repository.VariantRepository
	movementRepo  repository.MovementRepository
	referenceRepo repository.ReferenceRepository
	poRepo        repository.PurchaseOrderRepository
	txManager     repository.TransactionManager
	locker        *VariantLocker
	events        *events.Publisher
}

func NewCatalogService(
	productRepo repository.ProductRepository,
	variantRepo repository.VariantRepository,
	movementRepo repository.MovementRepository,
	referenceRepo repository.ReferenceRepository,
	poRepo repository.PurchaseOrderRepository,
	txManager repository.TransactionManager,
	locker *VariantLocker,
	publisher *events.Publisher,
) CatalogService {
	return &catalogService{
		productRepo:   productRepo,
		variantRepo:   variantRepo,
		movementRepo:  movementRepo,
		referenceRepo: referenceRepo,
		poRepo:        poRepo,
		txManager:     txManager,
		locker:        locker,
		events:        publisher,
	}
}

// --- Products ---

func (s *catalogService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid product id: %s", id)
	}
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product", id)
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) ([]model.Product, int64, error) {
	repoFilter := repository.ProductFilter{
		Active: filter.Active,
		Search: filter.Search,
	}
	var err error
	if repoFilter.CategoryID, err = parseOptionalID(filter.CategoryID, "category_id"); err != nil {
		return nil, 0, err
	}
	if repoFilter.BrandID, err = parseOptionalID(filter.BrandID, "brand_id"); err != nil {
		return nil, 0, err
	}
	if repoFilter.SupplierID, err = parseOptionalID(filter.SupplierID, "supplier_id"); err != nil {
		return nil, 0, err
	}

	page, limit := filter.Page, filter.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.productRepo.List(ctx, repoFilter, page, limit)
}

func (s *catalogService) CreateProduct(ctx context.Context, actor string, req CreateProductRequest) (*model.Product, error) {
	product := model.Product{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	var err error
	if product.CategoryID, err = s.resolveReference(ctx, req.CategoryID, "category", s.referenceRepo.CategoryExists); err != nil {
		return nil, err
	}
	if product.BrandID, err = s.resolveReference(ctx, req.BrandID, "brand", s.referenceRepo.BrandExists); err != nil {
		return nil, err
	}
	if product.SupplierID, err = s.resolveReference(ctx, req.SupplierID, "supplier", s.referenceRepo.SupplierExists); err != nil {
		return nil, err
	}

	variants, err := buildVariants(req.Variants)
	if err != nil {
		return nil, err
	}

	// In-batch duplicates fail before touching the store at all.
	if dups := duplicateSKUsInBatch(req.Variants); len(dups) > 0 {
		return nil, &apperr.DuplicateSKUError{SKUs: dups}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.checkStoredSKUConflicts(txCtx, skusOf(req.Variants), uuid.Nil); err != nil {
			return err
		}

		if err := s.productRepo.Create(txCtx, &product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}

		for i := range variants {
			variants[i].ProductID = product.ID
		}
		if err := s.variantRepo.CreateBatch(txCtx, variants); err != nil {
			return duplicateSKUOr(err, skusOf(req.Variants), "failed to create variants")
		}

		// Opening stock enters through the ledger too, so replaying the
		// movement history always reproduces the current quantity.
		for _, v := range variants {
			if v.Quantity == 0 {
				continue
			}
			movement := &model.StockMovement{
				ProductID:        product.ID,
				VariantID:        v.ID,
				Type:             model.MovementIn,
				Quantity:         v.Quantity,
				PreviousQuantity: 0,
				NewQuantity:      v.Quantity,
				Reason:           model.ReasonManualAdjustment,
				Reference:        "initial-stock",
				CreatedBy:        actor,
			}
			if err := s.movementRepo.Create(txCtx, movement); err != nil {
				return fmt.Errorf("failed to record opening stock: %w", err)
			}
		}

		return recomputeProductAggregates(txCtx, s.variantRepo, s.productRepo, product.ID)
	})
	if err != nil {
		return nil, err
	}

	created, err := s.productRepo.FindByID(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload product: %w", err)
	}

	s.events.Publish(events.ProductCreated, created)
	return created, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, actor string, id string, req UpdateProductRequest) (*model.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Name = req.Name
	product.Description = req.Description
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if product.CategoryID, err = s.resolveReference(ctx, req.CategoryID, "category", s.referenceRepo.CategoryExists); err != nil {
		return nil, err
	}
	if product.BrandID, err = s.resolveReference(ctx, req.BrandID, "brand", s.referenceRepo.BrandExists); err != nil {
		return nil, err
	}
	if product.SupplierID, err = s.resolveReference(ctx, req.SupplierID, "supplier", s.referenceRepo.SupplierExists); err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.events.Publish(events.ProductUpdated, product)
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, actor string, id string) error {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	openLines, err := s.poRepo.CountOpenLinesByProduct(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("failed to check purchase order references: %w", err)
	}
	if openLines > 0 {
		return apperr.Validation("product %s is referenced by %d open purchase order line(s)", product.Name, openLines)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.variantRepo.DeleteByProduct(txCtx, product.ID); err != nil {
			return fmt.Errorf("failed to delete variants: %w", err)
		}
		if err := s.productRepo.Delete(txCtx, product.ID); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.events.Publish(events.ProductDeleted, map[string]interface{}{"id": product.ID})
	return nil
}

// --- Variants ---

func (s *catalogService) GetVariant(ctx context.Context, id string) (*model.ProductVariant, error) {
	variantID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid variant id: %s", id)
	}
	variant, err := s.variantRepo.FindByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("variant", id)
		}
		return nil, fmt.Errorf("failed to load variant: %w", err)
	}
	return variant, nil
}

func (s *catalogService) CreateVariant(ctx context.Context, actor string, productID string, req VariantInput) (*model.ProductVariant, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	variants, err := buildVariants([]VariantInput{req})
	if err != nil {
		return nil, err
	}
	variant := &variants[0]
	variant.ProductID = product.ID

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.checkStoredSKUConflicts(txCtx, []string{req.SKU}, uuid.Nil); err != nil {
			return err
		}
		if err := s.variantRepo.Create(txCtx, variant); err != nil {
			return duplicateSKUOr(err, []string{req.SKU}, "failed to create variant")
		}
		if variant.Quantity > 0 {
			movement := &model.StockMovement{
				ProductID:        product.ID,
				VariantID:        variant.ID,
				Type:             model.MovementIn,
				Quantity:         variant.Quantity,
				PreviousQuantity: 0,
				NewQuantity:      variant.Quantity,
				Reason:           model.ReasonManualAdjustment,
				Reference:        "initial-stock",
				CreatedBy:        actor,
			}
			if err := s.movementRepo.Create(txCtx, movement); err != nil {
				return fmt.Errorf("failed to record opening stock: %w", err)
			}
		}
		return recomputeProductAggregates(txCtx, s.variantRepo, s.productRepo, product.ID)
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(events.VariantUpdated, variant)
	return variant, nil
}

func (s *catalogService) UpdateVariant(ctx context.Context, actor string, id string, req UpdateVariantRequest) (*model.ProductVariant, error) {
	variantID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid variant id: %s", id)
	}

	costPrice, err := decimal.NewFromString(req.CostPrice)
	if err != nil {
		return nil, apperr.Validation("invalid cost_price: %s", req.CostPrice)
	}
	sellingPrice, err := decimal.NewFromString(req.SellingPrice)
	if err != nil {
		return nil, apperr.Validation("invalid selling_price: %s", req.SellingPrice)
	}

	// The variant row is shared with the ledger, so the edit takes the same
	// lock and re-reads inside the transaction; saving a row read before the
	// lock could restore a quantity the ledger has since moved.
	unlock := s.locker.Lock(variantID)
	defer unlock()

	var variant *model.ProductVariant
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		variant, findErr = s.variantRepo.FindByIDForUpdate(txCtx, variantID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperr.NotFound("variant", id)
			}
			return fmt.Errorf("failed to load variant: %w", findErr)
		}

		if err := s.checkStoredSKUConflicts(txCtx, []string{req.SKU}, variant.ID); err != nil {
			return err
		}

		variant.SKU = req.SKU
		variant.Name = req.Name
		variant.Barcode = req.Barcode
		variant.Attributes = req.Attributes
		variant.CostPrice = costPrice
		variant.SellingPrice = sellingPrice
		variant.MinQuantity = req.MinQuantity
		variant.MaxQuantity = req.MaxQuantity

		if err := s.variantRepo.Update(txCtx, variant); err != nil {
			return duplicateSKUOr(err, []string{req.SKU}, "failed to update variant")
		}
		// Cost price feeds TotalValue, so the cache is stale now.
		return recomputeProductAggregates(txCtx, s.variantRepo, s.productRepo, variant.ProductID)
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(events.VariantUpdated, variant)
	return variant, nil
}

// --- Reference data ---

func (s *catalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.referenceRepo.ListCategories(ctx)
}

func (s *catalogService) CreateCategory(ctx context.Context, name, description string) (*model.Category, error) {
	if name == "" {
		return nil, apperr.Validation("category name is required")
	}
	category := &model.Category{Name: name, Description: description}
	if err := s.referenceRepo.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

func (s *catalogService) ListBrands(ctx context.Context) ([]model.Brand, error) {
	return s.referenceRepo.ListBrands(ctx)
}

func (s *catalogService) CreateBrand(ctx context.Context, name string) (*model.Brand, error) {
	if name == "" {
		return nil, apperr.Validation("brand name is required")
	}
	brand := &model.Brand{Name: name}
	if err := s.referenceRepo.CreateBrand(ctx, brand); err != nil {
		return nil, fmt.Errorf("failed to create brand: %w", err)
	}
	return brand, nil
}

func (s *catalogService) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	return s.referenceRepo.ListSuppliers(ctx)
}

func (s *catalogService) CreateSupplier(ctx context.Context, name, phone, email string) (*model.Supplier, error) {
	if name == "" {
		return nil, apperr.Validation("supplier name is required")
	}
	supplier := &model.Supplier{Name: name, Phone: phone, Email: email}
	if err := s.referenceRepo.CreateSupplier(ctx, supplier); err != nil {
		return nil, fmt.Errorf("failed to create supplier: %w", err)
	}
	return supplier, nil
}

// --- helpers ---

func (s *catalogService) resolveReference(ctx context.Context, raw, entity string, exists func(context.Context, uuid.UUID) (bool, error)) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("invalid %s id: %s", entity, raw)
	}
	ok, err := exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", entity, err)
	}
	if !ok {
		return nil, apperr.NotFound(entity, raw)
	}
	return &id, nil
}

// checkStoredSKUConflicts rejects SKUs already present in the catalog.
// Comparison is a case-sensitive exact match; excludeID skips the variant
// being updated.
func (s *catalogService) checkStoredSKUConflicts(ctx context.Context, skus []string, excludeID uuid.UUID) error {
	existing, err := s.variantRepo.FindBySKUs(ctx, skus)
	if err != nil {
		return fmt.Errorf("failed to check SKU uniqueness: %w", err)
	}
	var conflicts []string
	for _, v := range existing {
		if v.ID == excludeID {
			continue
		}
		conflicts = append(conflicts, v.SKU)
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return &apperr.DuplicateSKUError{SKUs: conflicts}
	}
	return nil
}

// duplicateSKUOr maps a unique-index violation on the SKU column to the
// DuplicateSKU outcome. Two concurrent creates can both pass the stored-SKU
// check; the index catches the loser, which must still surface as a conflict
// rather than an infrastructure fault.
func duplicateSKUOr(err error, skus []string, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &apperr.DuplicateSKUError{SKUs: skus}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func duplicateSKUsInBatch(inputs []VariantInput) []string {
	counts := make(map[string]int, len(inputs))
	for _, in := range inputs {
		counts[in.SKU]++
	}
	var dups []string
	for sku, n := range counts {
		if n > 1 {
			dups = append(dups, sku)
		}
	}
	sort.Strings(dups)
	return dups
}

func skusOf(inputs []VariantInput) []string {
	skus := make([]string, 0, len(inputs))
	for _, in := range inputs {
		skus = append(skus, in.SKU)
	}
	return skus
}

func buildVariants(inputs []VariantInput) ([]model.ProductVariant, error) {
	variants := make([]model.ProductVariant, 0, len(inputs))
	for _, in := range inputs {
		costPrice, err := decimal.NewFromString(in.CostPrice)
		if err != nil {
			return nil, apperr.Validation("invalid cost_price for SKU %s: %s", in.SKU, in.CostPrice)
		}
		sellingPrice, err := decimal.NewFromString(in.SellingPrice)
		if err != nil {
			return nil, apperr.Validation("invalid selling_price for SKU %s: %s", in.SKU, in.SellingPrice)
		}
		if in.Quantity < 0 {
			return nil, apperr.Validation("negative quantity for SKU %s", in.SKU)
		}
		variants = append(variants, model.ProductVariant{
			ID:           uuid.New(),
			SKU:          in.SKU,
			Name:         in.Name,
			Barcode:      in.Barcode,
			Attributes:   in.Attributes,
			CostPrice:    costPrice,
			SellingPrice: sellingPrice,
			Quantity:     in.Quantity,
			MinQuantity:  in.MinQuantity,
			MaxQuantity:  in.MaxQuantity,
		})
	}
	return variants, nil
}

func parseOptionalID(raw, field string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("invalid %s: %s", field, raw)
	}
	return &id, nil
}
