// Package events publishes order lifecycle events to downstream consumers.
// Publishing happens after the owning transaction commits; a failed publish
// is logged by the caller and never undoes the committed change.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	OrderCreated      = "order.created"
	OrderCancelled    = "order.cancelled"
	OrderPaid         = "order.paid"
	OrderPreparing    = "order.preparing"
	OrderShipped      = "order.shipped"
	OrderDelivered    = "order.delivered"
	OrderRefunded     = "order.refunded"
	PaymentFailed     = "payment.failed"
	InventoryReleased = "inventory.released"
)

type Event struct {
	ID        uuid.UUID      `json:"event_id"`
	Type      string         `json:"type"`
	OrderID   uuid.UUID      `json:"order_id"`
	UserID    uuid.UUID      `json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func New(eventType string, orderID, userID uuid.UUID, payload map[string]any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		OrderID:   orderID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
