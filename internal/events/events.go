// Package events fans engine events out to dashboard/notification consumers
// over the websocket hub. The engine knows nothing about who listens.
package events

import (
	"encoding/json"
	"log"

	ws "backend/internal/websocket"
)

// Event names carried in the broadcast envelope.
const (
	ProductCreated        = "product.created"
	ProductUpdated        = "product.updated"
	ProductDeleted        = "product.deleted"
	VariantUpdated        = "variant.updated"
	StockUpdated          = "stock.updated"
	CartUpdated           = "cart.updated"
	SaleCompleted         = "sale.completed"
	PurchaseOrderCreated  = "purchase-order.created"
	PurchaseOrderUpdated  = "purchase-order.updated"
	PurchaseOrderReceived = "purchase-order.received"
)

// Envelope is the wire shape of every broadcast event.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Publisher broadcasts events to the hub. A nil Publisher is valid and drops
// everything, which keeps services constructible in tests.
type Publisher struct {
	hub *ws.Hub
}

func NewPublisher(hub *ws.Hub) *Publisher {
	return &Publisher{hub: hub}
}

// Publish is fire-and-forget: a mutation already committed by the time its
// event goes out, so a slow or absent hub must never block the caller.
func (p *Publisher) Publish(event string, data interface{}) {
	if p == nil || p.hub == nil {
		return
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		log.Printf("events: failed to marshal %s payload: %v", event, err)
		return
	}
	select {
	case p.hub.Broadcast <- payload:
	default:
	}
}
