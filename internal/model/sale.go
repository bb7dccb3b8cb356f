package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment status constants
const (
	PaymentCompleted = "completed"
)

// Sale is the immutable receipt of a committed cart. It is created exactly
// once per successful commit and never mutated; refunds would be modeled as
// new compensating stock movements, not edits here.
type Sale struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SaleNumber    string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sale_number"`
	Items         []SaleItem      `gorm:"foreignKey:SaleID" json:"items"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	Tax           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"tax"`
	Discount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"discount"`
	Total         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total"`
	PaymentMethod string          `gorm:"type:varchar(50);not null" json:"payment_method"`
	PaymentStatus string          `gorm:"type:varchar(50);not null" json:"payment_status"`
	CustomerID    *uuid.UUID      `gorm:"type:uuid;index" json:"customer_id"`
	CustomerName  string          `gorm:"type:varchar(255)" json:"customer_name,omitempty"`
	CustomerPhone string          `gorm:"type:varchar(50)" json:"customer_phone,omitempty"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
	SoldBy        string          `gorm:"type:varchar(100)" json:"sold_by"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

// SaleItem captures the cost price in force at commit time; Profit is
// (UnitPrice - CostPrice) * Quantity.
type SaleItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	VariantID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"variant_id"`
	ProductName string          `gorm:"type:varchar(255)" json:"product_name"`
	VariantName string          `gorm:"type:varchar(255)" json:"variant_name"`
	SKU         string          `gorm:"type:varchar(100)" json:"sku"`
	Quantity    int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_price"`
	CostPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"cost_price"`
	Profit      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"profit"`
}

func (s *Sale) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (i *SaleItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
