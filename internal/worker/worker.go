// Package worker runs the background order-expiry loop.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/zariya-commerce/zariya/internal/order"
)

// StaleOrderLister finds prepaid orders that never completed payment.
type StaleOrderLister interface {
	ListStalePendingOrderIDs(ctx context.Context, before time.Time, limit int32) ([]string, error)
}

// Config holds expiry worker settings.
type Config struct {
	// PollInterval is how often to sweep for stale orders.
	PollInterval time.Duration

	// PendingTTL is how long a prepaid order may stay pending before it is
	// reclaimed. Abandoned gateway sessions leave orders pending forever
	// without this.
	PendingTTL time.Duration

	// BatchSize caps how many orders one sweep processes.
	BatchSize int32
}

// Worker cancels prepaid orders whose payment never arrived. Cancellation
// goes through the order service so the guarded transition loses cleanly to
// a late-arriving payment webhook.
type Worker struct {
	config Config
	store  StaleOrderLister
	orders order.Service
	logger *slog.Logger
}

// New creates an expiry worker.
func New(store StaleOrderLister, orderService order.Service, config Config, logger *slog.Logger) *Worker {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Minute
	}
	if config.PendingTTL == 0 {
		config.PendingTTL = 2 * time.Hour
	}
	if config.BatchSize == 0 {
		config.BatchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		config: config,
		store:  store,
		orders: orderService,
		logger: logger,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("expiry worker starting",
		"poll_interval", w.config.PollInterval,
		"pending_ttl", w.config.PendingTTL,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry worker stopping")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep cancels one batch of stale pending orders.
func (w *Worker) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.config.PendingTTL)
	ids, err := w.store.ListStalePendingOrderIDs(ctx, cutoff, w.config.BatchSize)
	if err != nil {
		w.logger.Error("stale order sweep failed", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	cancelled := 0
	for _, id := range ids {
		if err := w.orders.ExpirePending(ctx, id); err != nil {
			// A payment webhook may have confirmed the order mid-sweep.
			w.logger.Warn("stale order expiry skipped", "order_id", id, "error", err)
			continue
		}
		cancelled++
	}

	w.logger.Info("stale order sweep completed", "found", len(ids), "cancelled", cancelled)
}
