package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher implements Publisher over a NATS connection.
// Events go to orders.{orderID}.status so clients can subscribe per order
// or use a wildcard for a dashboard view.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSPublisher connects to the broker.
func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("zariya-orders"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &NATSPublisher{conn: conn, logger: logger}, nil
}

// PublishOrderStatus broadcasts one status event.
func (p *NATSPublisher) PublishOrderStatus(ctx context.Context, event StatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode status event: %w", err)
	}

	subject := fmt.Sprintf("orders.%s.status", event.OrderID)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("status broadcast failed",
			"subject", subject,
			"error", err,
		)
		return fmt.Errorf("failed to publish status event: %w", err)
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("nats drain failed", "error", err)
	}
}
