package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Movement type constants
const (
	MovementIn  = "in"
	MovementOut = "out"
)

// Movement reason constants. Sales are the only writers of "out" movements
// with ReasonSale; purchase-order receiving is the only writer of
// ReasonPurchaseReceipt.
const (
	ReasonSale             = "sale"
	ReasonPurchaseReceipt  = "purchase-receipt"
	ReasonManualAdjustment = "manual-adjustment"
)

// StockMovement is one immutable ledger row explaining a quantity change.
// NewQuantity always equals PreviousQuantity + Quantity for "in" rows and
// PreviousQuantity - Quantity for "out" rows, and matches the variant's
// quantity at the instant the row was written. Rows are never updated or
// deleted; the variant's quantity stays the source of truth.
type StockMovement struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID        uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	VariantID        uuid.UUID `gorm:"type:uuid;not null;index" json:"variant_id"`
	Type             string    `gorm:"type:varchar(10);not null" json:"type"` // in, out
	Quantity         int       `gorm:"type:int;not null" json:"quantity"`     // always positive magnitude
	PreviousQuantity int       `gorm:"type:int;not null" json:"previous_quantity"`
	NewQuantity      int       `gorm:"type:int;not null" json:"new_quantity"`
	Reason           string    `gorm:"type:varchar(100);not null" json:"reason"`
	Reference        string    `gorm:"type:varchar(100)" json:"reference,omitempty"` // sale number or PO number
	CreatedBy        string    `gorm:"type:varchar(100)" json:"created_by"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
