// Package routes registers the HTTP route groups.
package routes

import (
	"net/http"

	"github.com/zariya-commerce/zariya/internal/handler"
)

// APIDeps contains dependencies for public storefront API routes.
type APIDeps struct {
	ShippingHandler *handler.ShippingHandler
	CheckoutHandler *handler.CheckoutHandler
	OrderHandler    *handler.OrderHandler
}

// AdminDeps contains dependencies for back-office routes.
type AdminDeps struct {
	OrderHandler *handler.OrderHandler
}

// WebhookDeps contains dependencies for webhook routes.
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}
