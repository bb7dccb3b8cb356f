package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementRepository appends and reads ledger rows. There is deliberately no
// update or delete: movements are immutable once written.
type MovementRepository interface {
	Create(ctx context.Context, movement *model.StockMovement) error
	List(ctx context.Context, variantID *uuid.UUID, page, limit int) ([]model.StockMovement, int64, error)
}

type movementRepository struct {
	db *gorm.DB
}

func NewMovementRepository(db *gorm.DB) MovementRepository {
	return &movementRepository{db: db}
}

func (r *movementRepository) Create(ctx context.Context, movement *model.StockMovement) error {
	return GetDB(ctx, r.db).Create(movement).Error
}

func (r *movementRepository) List(ctx context.Context, variantID *uuid.UUID, page, limit int) ([]model.StockMovement, int64, error) {
	var movements []model.StockMovement
	var total int64

	db := GetDB(ctx, r.db).Model(&model.StockMovement{})
	if variantID != nil {
		db = db.Where("variant_id = ?", *variantID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&movements).Error; err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}
