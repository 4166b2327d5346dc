package routes

import (
	"github.com/zariya-commerce/zariya/internal/router"
)

// RegisterAdminRoutes registers the back-office order lifecycle routes.
// The caller passes a router group already wrapped with admin-key auth.
func RegisterAdminRoutes(r *router.Router, deps AdminDeps) {
	r.Post("/api/admin/orders/{id}/confirm-cod", deps.OrderHandler.ConfirmCOD)
	r.Post("/api/admin/orders/{id}/ship", deps.OrderHandler.Ship)
	r.Post("/api/admin/orders/{id}/deliver", deps.OrderHandler.Deliver)
	r.Post("/api/admin/orders/{id}/cancel", deps.OrderHandler.Cancel)
	r.Post("/api/admin/orders/{id}/email", deps.OrderHandler.ResendEmail)
	r.Patch("/api/admin/orders/{id}", deps.OrderHandler.Edit)
}
