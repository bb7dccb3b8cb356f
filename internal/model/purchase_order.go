package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Purchase order status constants. Transitions only move forward:
// draft -> submitted -> received.
const (
	PurchaseOrderDraft     = "draft"
	PurchaseOrderSubmitted = "submitted"
	PurchaseOrderReceived  = "received"
)

// PurchaseOrder is a supplier order whose receiving process increases stock
// through the ledger. Items are editable in draft only.
type PurchaseOrder struct {
	ID               uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber      string              `gorm:"type:varchar(100);uniqueIndex;not null" json:"order_number"`
	SupplierID       uuid.UUID           `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Supplier         *Supplier           `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Status           string              `gorm:"type:varchar(50);not null" json:"status"`
	Items            []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID" json:"items"`
	TotalAmount      decimal.Decimal     `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	ExpectedDelivery *time.Time          `json:"expected_delivery"`
	Notes            string              `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy        string              `gorm:"type:varchar(100)" json:"created_by"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// PurchaseOrderItem tracks ReceivedQuantity per line so receiving can be
// retried without double-crediting; ReceivedQuantity never exceeds Quantity.
type PurchaseOrderItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseOrderID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	VariantID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"variant_id"`
	Quantity         int             `gorm:"type:int;not null" json:"quantity"`
	CostPrice        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"cost_price"`
	ReceivedQuantity int             `gorm:"type:int;default:0;not null" json:"received_quantity"`
}

// Received reports whether every line has been fully received.
func (po *PurchaseOrder) Received() bool {
	for _, item := range po.Items {
		if item.ReceivedQuantity < item.Quantity {
			return false
		}
	}
	return len(po.Items) > 0
}

func (po *PurchaseOrder) BeforeCreate(*gorm.DB) error {
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	return nil
}

func (i *PurchaseOrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
