// Package webhook handles payment gateway callbacks.
package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zariya-commerce/zariya/internal/billing"
	"github.com/zariya-commerce/zariya/internal/domain"
	"github.com/zariya-commerce/zariya/internal/order"
	"github.com/zariya-commerce/zariya/internal/telemetry"
)

// maxPayloadBytes bounds the webhook body read.
const maxPayloadBytes = 64 * 1024

// StripeHandler processes Stripe webhook events. Stripe delivers events at
// least once, so every path through here must tolerate redelivery; the order
// service's guarded transitions make repeats collapse into no-ops.
type StripeHandler struct {
	provider billing.Provider
	orders   order.Service
	logger   *slog.Logger
}

// NewStripeHandler creates a new Stripe webhook handler.
func NewStripeHandler(provider billing.Provider, orderService order.Service, logger *slog.Logger) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		provider: provider,
		orders:   orderService,
		logger:   logger,
	}
}

// HandleWebhook handles POST /webhooks/stripe.
//
// Response codes steer Stripe's retry behavior: 2xx acknowledges the event,
// 4xx drops it, 5xx schedules a retry. Business-level no-ops (unknown order,
// already-processed event) are acknowledged so Stripe stops redelivering.
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		h.logger.Error("reading webhook payload failed", "error", err)
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	event, err := h.provider.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	h.logger.Info("webhook event received",
		"event_id", event.ID, "event_type", event.Type)
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(event.Type).Inc()
	}

	switch event.Type {
	case billing.EventCheckoutSessionCompleted:
		err = h.orders.ConfirmFromPayment(r.Context(), event.ObjectID, event.PaymentIntentID, event.AmountPaise)
	case billing.EventPaymentIntentSucceeded:
		err = h.orders.ConfirmFromPayment(r.Context(), event.ObjectID, event.ObjectID, event.AmountPaise)
	case billing.EventPaymentIntentFailed:
		err = h.orders.FailPayment(r.Context(), event.ObjectID, event.OrderID)
	default:
		// Unhandled event types are acknowledged, not errors.
		h.logger.Debug("ignoring webhook event", "event_type", event.Type)
	}

	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			// Likely an event for an object this system did not create.
			h.logger.Info("webhook event matched no order",
				"event_id", event.ID, "object_id", event.ObjectID)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("webhook processing failed",
			"event_id", event.ID, "event_type", event.Type, "error", err)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(event.Type).Inc()
		}
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
