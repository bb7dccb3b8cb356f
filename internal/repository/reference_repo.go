package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferenceRepository holds the catalog's lookup entities. Their management
// screens live outside this engine, so only create/list/lookup is needed.
type ReferenceRepository interface {
	CreateCategory(ctx context.Context, category *model.Category) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	CategoryExists(ctx context.Context, id uuid.UUID) (bool, error)

	CreateBrand(ctx context.Context, brand *model.Brand) error
	ListBrands(ctx context.Context) ([]model.Brand, error)
	BrandExists(ctx context.Context, id uuid.UUID) (bool, error)

	CreateSupplier(ctx context.Context, supplier *model.Supplier) error
	ListSuppliers(ctx context.Context) ([]model.Supplier, error)
	SupplierExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type referenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) ReferenceRepository {
	return &referenceRepository{db: db}
}

func (r *referenceRepository) CreateCategory(ctx context.Context, category *model.Category) error {
	return GetDB(ctx, r.db).Create(category).Error
}

func (r *referenceRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := GetDB(ctx, r.db).Order("name asc").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *referenceRepository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, &model.Category{}, id)
}

func (r *referenceRepository) CreateBrand(ctx context.Context, brand *model.Brand) error {
	return GetDB(ctx, r.db).Create(brand).Error
}

func (r *referenceRepository) ListBrands(ctx context.Context) ([]model.Brand, error) {
	var brands []model.Brand
	if err := GetDB(ctx, r.db).Order("name asc").Find(&brands).Error; err != nil {
		return nil, err
	}
	return brands, nil
}

func (r *referenceRepository) BrandExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, &model.Brand{}, id)
}

func (r *referenceRepository) CreateSupplier(ctx context.Context, supplier *model.Supplier) error {
	return GetDB(ctx, r.db).Create(supplier).Error
}

func (r *referenceRepository) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	var suppliers []model.Supplier
	if err := GetDB(ctx, r.db).Order("name asc").Find(&suppliers).Error; err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (r *referenceRepository) SupplierExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, &model.Supplier{}, id)
}

func (r *referenceRepository) exists(ctx context.Context, entity interface{}, id uuid.UUID) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(entity).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
