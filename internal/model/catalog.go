package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups products for filtering. CRUD screens live outside this
// engine; only the reference data itself is stored here.
type Category struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Brand struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Supplier struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Phone     string    `gorm:"type:varchar(50)" json:"phone"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is the sellable item definition. Stock is tracked per variant;
// TotalQuantity and TotalValue are caches over the variants, rebuilt inside
// the same transaction as any variant write.
type Product struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string           `gorm:"type:varchar(255);not null" json:"name"`
	Description   string           `gorm:"type:text" json:"description"`
	CategoryID    *uuid.UUID       `gorm:"type:uuid;index" json:"category_id"`
	Category      *Category        `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	BrandID       *uuid.UUID       `gorm:"type:uuid;index" json:"brand_id"`
	Brand         *Brand           `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
	SupplierID    *uuid.UUID       `gorm:"type:uuid;index" json:"supplier_id"`
	Supplier      *Supplier        `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	IsActive      bool             `gorm:"not null" json:"is_active"`
	TotalQuantity int              `gorm:"type:int;default:0;not null" json:"total_quantity"`
	TotalValue    decimal.Decimal  `gorm:"type:decimal(14,2);default:0" json:"total_value"`
	Variants      []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `gorm:"index" json:"-"`
}

// AttributeMap holds free-form variant attributes (color, storage size, ...)
// serialized as a JSON column.
type AttributeMap map[string]string

func (m AttributeMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *AttributeMap) Scan(value interface{}) error {
	if value == nil {
		*m = AttributeMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported attribute map type %T", value)
	}
}

// ProductVariant is the actual stock-keeping unit. Quantity is the
// authoritative on-hand count and is only ever changed through the stock
// ledger; it must never go negative.
type ProductVariant struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	SKU          string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Barcode      string          `gorm:"type:varchar(100)" json:"barcode,omitempty"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	Attributes   AttributeMap    `gorm:"type:jsonb" json:"attributes"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"cost_price"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"selling_price"`
	Quantity     int             `gorm:"type:int;default:0;not null" json:"quantity"`
	MinQuantity  int             `gorm:"type:int;default:0" json:"min_quantity"`
	MaxQuantity  int             `gorm:"type:int;default:0" json:"max_quantity"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (b *Brand) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (s *Supplier) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
