package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the session-scoped staging area for a prospective sale. Carts live
// in memory only, one per operator session; they are destroyed on successful
// commit or explicit clear and are never persisted.
type Cart struct {
	ID        uuid.UUID       `json:"id"`
	SessionID string          `json:"session_id"`
	Items     []CartItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CartItem snapshots the unit price at add-time so later price edits do not
// silently change an in-progress cart. AvailableQuantity is informational; the
// authoritative stock check happens again at commit.
type CartItem struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         uuid.UUID       `json:"product_id"`
	VariantID         uuid.UUID       `json:"variant_id"`
	ProductName       string          `json:"product_name"`
	VariantName       string          `json:"variant_name"`
	SKU               string          `json:"sku"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	AvailableQuantity int             `json:"available_quantity"`
}
