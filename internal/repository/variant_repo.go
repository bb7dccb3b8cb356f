package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VariantRepository interface {
	Create(ctx context.Context, variant *model.ProductVariant) error
	CreateBatch(ctx context.Context, variants []model.ProductVariant) error
	Update(ctx context.Context, variant *model.ProductVariant) error
	DeleteByProduct(ctx context.Context, productID uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error)
	FindBySKUs(ctx context.Context, skus []string) ([]model.ProductVariant, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.ProductVariant, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error
}

type variantRepository struct {
	db *gorm.DB
}

func NewVariantRepository(db *gorm.DB) VariantRepository {
	return &variantRepository{db: db}
}

func (r *variantRepository) Create(ctx context.Context, variant *model.ProductVariant) error {
	return GetDB(ctx, r.db).Create(variant).Error
}

func (r *variantRepository) CreateBatch(ctx context.Context, variants []model.ProductVariant) error {
	if len(variants) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&variants).Error
}

func (r *variantRepository) Update(ctx context.Context, variant *model.ProductVariant) error {
	return GetDB(ctx, r.db).Save(variant).Error
}

func (r *variantRepository) DeleteByProduct(ctx context.Context, productID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("product_id = ?", productID).Delete(&model.ProductVariant{}).Error
}

func (r *variantRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error) {
	var variant model.ProductVariant
	if err := GetDB(ctx, r.db).First(&variant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindByIDForUpdate reads a variant under a row lock so a concurrent adjust on
// the same variant cannot interleave between read and write. SQLite serializes
// writers on its own and rejects the clause, so it is applied on postgres
// only.
func (r *variantRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error) {
	db := GetDB(ctx, r.db)
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var variant model.ProductVariant
	if err := db.First(&variant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *variantRepository) FindBySKUs(ctx context.Context, skus []string) ([]model.ProductVariant, error) {
	var variants []model.ProductVariant
	if len(skus) == 0 {
		return variants, nil
	}
	if err := GetDB(ctx, r.db).Where("sku IN ?", skus).Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *variantRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.ProductVariant, error) {
	var variants []model.ProductVariant
	if err := GetDB(ctx, r.db).Where("product_id = ?", productID).Order("created_at asc").Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *variantRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	return GetDB(ctx, r.db).Model(&model.ProductVariant{}).Where("id = ?", id).Update("quantity", quantity).Error
}
