// Package realtime broadcasts order status changes to subscribers.
// Delivery is best-effort; order correctness never depends on it.
package realtime

import (
	"context"
	"time"
)

// StatusEvent is one order status change.
type StatusEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	At          time.Time `json:"at"`
}

// Publisher broadcasts order status events.
type Publisher interface {
	PublishOrderStatus(ctx context.Context, event StatusEvent) error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderStatus(ctx context.Context, event StatusEvent) error {
	return nil
}
