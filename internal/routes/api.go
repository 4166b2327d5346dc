package routes

import (
	"github.com/zariya-commerce/zariya/internal/router"
)

// RegisterAPIRoutes registers the public storefront API.
// Order lookup is by opaque order ID or order number; there is no listing
// endpoint, so a customer can only retrieve orders they hold a reference to.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	r.Post("/api/shipping/rates", deps.ShippingHandler.Rates)
	r.Post("/api/checkout/session", deps.CheckoutHandler.CreateSession)
	r.Get("/api/orders/{id}", deps.OrderHandler.Get)
	r.Get("/api/orders/number/{orderNumber}", deps.OrderHandler.GetByNumber)
}
