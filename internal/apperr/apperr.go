// Package apperr defines the expected business outcomes of the inventory
// engine. These are returned, not panicked: insufficient stock, duplicate
// SKUs and bad state transitions are first-class results the caller handles.
// Infrastructure faults (store unreachable, corrupt rows) stay plain wrapped
// errors.
package apperr

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NotFoundError reports that an id did not resolve.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func NotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// DuplicateSKUError reports a SKU uniqueness violation. SKUs lists every
// conflicting SKU, whether the conflict is inside the submitted batch or
// against stored variants.
type DuplicateSKUError struct {
	SKUs []string
}

func (e *DuplicateSKUError) Error() string {
	return fmt.Sprintf("duplicate SKU(s): %s", strings.Join(e.SKUs, ", "))
}

// StockShortage describes one under-stocked line.
type StockShortage struct {
	ProductID   uuid.UUID `json:"product_id"`
	VariantID   uuid.UUID `json:"variant_id"`
	ProductName string    `json:"product_name,omitempty"`
	VariantName string    `json:"variant_name,omitempty"`
	SKU         string    `json:"sku,omitempty"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
}

// InsufficientStockError carries every failing line, not just the first, so
// the caller can surface all problems at once.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		name := s.SKU
		if name == "" {
			name = s.VariantID.String()
		}
		parts = append(parts, fmt.Sprintf("%s: requested %d, available %d", name, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// InvalidStateTransitionError reports a forbidden lifecycle move, e.g.
// submitting an already-received purchase order.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// ValidationError reports malformed input, e.g. a non-positive quantity.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Validation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
