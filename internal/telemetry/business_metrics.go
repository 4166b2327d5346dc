// Package telemetry holds business-level Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
type BusinessMetrics struct {
	// Checkout funnel
	CheckoutStarted  *prometheus.CounterVec
	CheckoutRejected *prometheus.CounterVec
	OrdersCreated    *prometheus.CounterVec
	OrderValue       *prometheus.HistogramVec

	// Shipping
	RateQuoteRequests *prometheus.CounterVec
	ShippingWaived    prometheus.Counter

	// Order lifecycle
	OrdersConfirmed *prometheus.CounterVec
	OrdersShipped   prometheus.Counter
	OrdersCancelled *prometheus.CounterVec

	// Webhooks
	WebhookReceived *prometheus.CounterVec
	WebhookFailed   *prometheus.CounterVec
}

// NewBusinessMetrics creates and registers all business metrics.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "zariya"
	}

	subsystem := "business"

	return &BusinessMetrics{
		CheckoutStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Checkout sessions requested",
			},
			[]string{"payment_method"},
		),
		CheckoutRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_rejected_total",
				Help:      "Checkout attempts rejected before order creation",
			},
			[]string{"code"},
		),
		OrdersCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Orders persisted at checkout",
			},
			[]string{"payment_method"},
		),
		OrderValue: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_rupees",
				Help:      "Order totals in rupees",
				Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000},
			},
			[]string{"payment_method"},
		),
		RateQuoteRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rate_quote_requests_total",
				Help:      "Shipping rate previews by outcome",
			},
			[]string{"outcome"}, // live, fallback
		),
		ShippingWaived: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "shipping_waived_total",
				Help:      "Checkouts where the free shipping threshold applied",
			},
		),
		OrdersConfirmed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_confirmed_total",
				Help:      "Orders confirmed after payment or COD approval",
			},
			[]string{"payment_method"},
		),
		OrdersShipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_shipped_total",
				Help:      "Orders booked with the carrier",
			},
		),
		OrdersCancelled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_cancelled_total",
				Help:      "Orders cancelled by reason class",
			},
			[]string{"cause"}, // payment_failed, admin
		),
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Gateway webhook events received",
			},
			[]string{"event_type"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Gateway webhook events that failed processing",
			},
			[]string{"event_type"},
		),
	}
}

// Business is the global metrics instance. Nil until InitBusinessMetrics is
// called, so callers must nil-check.
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
