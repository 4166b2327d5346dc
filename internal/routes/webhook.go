package routes

import (
	"github.com/zariya-commerce/zariya/internal/router"
)

// RegisterWebhookRoutes registers incoming webhook routes.
//
// Webhook routes carry no authentication middleware; each handler verifies
// the request signature itself before trusting the payload.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/stripe", deps.StripeHandler)
}
