package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductFilter narrows List; nil/empty fields are ignored.
type ProductFilter struct {
	CategoryID *uuid.UUID
	BrandID    *uuid.UUID
	SupplierID *uuid.UUID
	Active     *bool
	Search     string // matches name or description, case-insensitive
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, filter ProductFilter, page, limit int) ([]model.Product, int64, error)
	UpdateAggregates(ctx context.Context, id uuid.UUID, totalQuantity int, totalValue decimal.Decimal) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Create(product).Error
}

// Update writes a product's editable columns. The aggregate columns are
// omitted: they belong to the ledger's recompute (UpdateAggregates) and a
// metadata edit carrying stale sums must not roll them back.
func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).
		Omit("Variants", "total_quantity", "total_value").
		Save(product).Error
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Product{}).Error
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).Preload("Variants").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter, page, limit int) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Product{})
	if filter.CategoryID != nil {
		db = db.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.BrandID != nil {
		db = db.Where("brand_id = ?", *filter.BrandID)
	}
	if filter.SupplierID != nil {
		db = db.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.Active != nil {
		db = db.Where("is_active = ?", *filter.Active)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		db = db.Where("LOWER(name) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?)", pattern, pattern)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Variants").Order("created_at desc").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// UpdateAggregates persists the derived sums over a product's variants. It
// must run in the same transaction as the variant write that invalidated
// them.
func (r *productRepository) UpdateAggregates(ctx context.Context, id uuid.UUID, totalQuantity int, totalValue decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.Product{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_quantity": totalQuantity,
			"total_value":    totalValue,
		}).Error
}
