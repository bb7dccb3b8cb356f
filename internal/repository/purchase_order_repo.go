package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseOrderRepository interface {
	Create(ctx context.Context, order *model.PurchaseOrder) error
	Update(ctx context.Context, order *model.PurchaseOrder) error
	UpdateItem(ctx context.Context, item *model.PurchaseOrderItem) error
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []model.PurchaseOrderItem) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	List(ctx context.Context, status string, page, limit int) ([]model.PurchaseOrder, int64, error)
	CountOpenLinesByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

type purchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

func (r *purchaseOrderRepository) Create(ctx context.Context, order *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Create(order).Error
}

func (r *purchaseOrderRepository) Update(ctx context.Context, order *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Omit("Items").Save(order).Error
}

func (r *purchaseOrderRepository) UpdateItem(ctx context.Context, item *model.PurchaseOrderItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}

// ReplaceItems swaps a draft order's lines wholesale. Submitted orders are
// frozen; the service layer guards that.
func (r *purchaseOrderRepository) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []model.PurchaseOrderItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("purchase_order_id = ?", orderID).Delete(&model.PurchaseOrderItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].PurchaseOrderID = orderID
	}
	return db.Create(&items).Error
}

func (r *purchaseOrderRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var order model.PurchaseOrder
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Preload("Supplier").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row so two concurrent receives cannot
// both read the same received quantities. Postgres only, as with variants.
func (r *purchaseOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	db := GetDB(ctx, r.db)
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order model.PurchaseOrder
	if err := db.First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).Where("purchase_order_id = ?", id).Order("id").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *purchaseOrderRepository) List(ctx context.Context, status string, page, limit int) ([]model.PurchaseOrder, int64, error) {
	var orders []model.PurchaseOrder
	var total int64

	db := GetDB(ctx, r.db).Model(&model.PurchaseOrder{})
	if status != "" {
		db = db.Where("status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Preload("Items").
		Preload("Supplier").
		Order("created_at desc").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// CountOpenLinesByProduct counts lines referencing a product on orders that
// have not been fully received. Product deletion is rejected while any exist.
func (r *purchaseOrderRepository) CountOpenLinesByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.PurchaseOrderItem{}).
		Joins("JOIN purchase_orders ON purchase_orders.id = purchase_order_items.purchase_order_id").
		Where("purchase_order_items.product_id = ?", productID).
		Where("purchase_orders.status <> ?", model.PurchaseOrderReceived).
		Count(&count).Error
	return count, err
}
