package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/zariya-commerce/zariya/internal/domain"
	"github.com/zariya-commerce/zariya/internal/order"
)

// Admin identity headers set by the back office.
const (
	AdminUserIDHeader = "X-Admin-User-Id"
	AdminNameHeader   = "X-Admin-Name"
	AdminEmailHeader  = "X-Admin-Email"
)

// OrderHandler exposes order lookup and the admin lifecycle actions.
type OrderHandler struct {
	orders order.Service
	logger *slog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orderService order.Service, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{orders: orderService, logger: logger}
}

type orderLineResponse struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Brand          string `json:"brand,omitempty"`
	UnitPricePaise int64  `json:"unit_price_paise"`
	Quantity       int32  `json:"quantity"`
	LineTotalPaise int64  `json:"line_total_paise"`
}

type addressResponse struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
}

type auditEntryResponse struct {
	ByName  string    `json:"by_name"`
	ByEmail string    `json:"by_email,omitempty"`
	At      time.Time `json:"at"`
	Reason  string    `json:"reason,omitempty"`
	Changes []string  `json:"changes,omitempty"`
}

type orderResponse struct {
	ID             string               `json:"id"`
	OrderNumber    string               `json:"order_number"`
	Items          []orderLineResponse  `json:"items"`
	SubtotalPaise  int64                `json:"subtotal_paise"`
	ShippingPaise  int64                `json:"shipping_paise"`
	DiscountPaise  int64                `json:"discount_paise"`
	TotalPaise     int64                `json:"total_paise"`
	OfferCode      string               `json:"offer_code,omitempty"`
	Status         domain.OrderStatus   `json:"status"`
	PaymentStatus  domain.PaymentStatus `json:"payment_status"`
	PaymentMethod  domain.PaymentMethod `json:"payment_method"`
	Address        addressResponse      `json:"address"`
	TrackingNumber string               `json:"tracking_number,omitempty"`
	Courier        string               `json:"courier,omitempty"`
	ConfirmedAt    *time.Time           `json:"confirmed_at,omitempty"`
	CancelledAt    *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	AuditLog       []auditEntryResponse `json:"audit_log,omitempty"`
}

// Get handles GET /api/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ord, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, toOrderResponse(ord))
}

// GetByNumber handles GET /api/orders/number/{orderNumber}.
func (h *OrderHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	ord, err := h.orders.GetByNumber(r.Context(), r.PathValue("orderNumber"))
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, toOrderResponse(ord))
}

// ConfirmCOD handles POST /api/admin/orders/{id}/confirm-cod.
func (h *OrderHandler) ConfirmCOD(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(id string, actor order.Actor) error {
		return h.orders.ConfirmCOD(r.Context(), id, actor)
	})
}

// Ship handles POST /api/admin/orders/{id}/ship.
func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(id string, actor order.Actor) error {
		return h.orders.MarkShipped(r.Context(), id, actor)
	})
}

// Deliver handles POST /api/admin/orders/{id}/deliver.
func (h *OrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(id string, actor order.Actor) error {
		return h.orders.MarkDelivered(r.Context(), id, actor)
	})
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Cancel handles POST /api/admin/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeAndValidate(r, "order.cancel", &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	h.action(w, r, func(id string, actor order.Actor) error {
		return h.orders.Cancel(r.Context(), id, actor, req.Reason)
	})
}

type editOrderRequest struct {
	Items         []itemRefRequest `json:"items" validate:"omitempty,min=1,dive"`
	Address       *addressRequest  `json:"address" validate:"omitempty"`
	ShippingPaise *int64           `json:"shipping_paise" validate:"omitempty,min=0"`
	DiscountPaise *int64           `json:"discount_paise" validate:"omitempty,min=0"`
	Reason        string           `json:"reason"`
}

// Edit handles PATCH /api/admin/orders/{id}.
func (h *OrderHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req editOrderRequest
	if err := decodeAndValidate(r, "order.edit", &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	params := order.EditParams{
		OrderID:       r.PathValue("id"),
		Items:         toItemRefs(req.Items),
		ShippingPaise: req.ShippingPaise,
		DiscountPaise: req.DiscountPaise,
		Reason:        req.Reason,
		Actor:         adminActor(r),
	}
	if len(req.Items) == 0 {
		params.Items = nil
	}
	if req.Address != nil {
		addr := toAddress(*req.Address)
		params.Address = &addr
	}

	ord, err := h.orders.Edit(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, toOrderResponse(ord))
}

type resendEmailRequest struct {
	Type  string `json:"type" validate:"required,oneof=confirmation shipped"`
	Force bool   `json:"force"`
}

// ResendEmail handles POST /api/admin/orders/{id}/email.
func (h *OrderHandler) ResendEmail(w http.ResponseWriter, r *http.Request) {
	var req resendEmailRequest
	if err := decodeAndValidate(r, "order.resend_email", &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	err := h.orders.ResendEmail(r.Context(), r.PathValue("id"), domain.EmailType(req.Type), req.Force)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondMessage(w, http.StatusAccepted, "Email queued")
}

// action runs a lifecycle transition and responds with the updated order.
func (h *OrderHandler) action(w http.ResponseWriter, r *http.Request, fn func(id string, actor order.Actor) error) {
	id := r.PathValue("id")
	if err := fn(id, adminActor(r)); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	ord, err := h.orders.Get(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, toOrderResponse(ord))
}

func adminActor(r *http.Request) order.Actor {
	return order.Actor{
		UserID: r.Header.Get(AdminUserIDHeader),
		Name:   r.Header.Get(AdminNameHeader),
		Email:  r.Header.Get(AdminEmailHeader),
	}
}

func toOrderResponse(ord *domain.Order) orderResponse {
	lines := make([]orderLineResponse, len(ord.Items))
	for i, l := range ord.Items {
		lines[i] = orderLineResponse{
			ProductID:      l.ProductID,
			Name:           l.Name,
			Brand:          l.Brand,
			UnitPricePaise: l.UnitPricePaise,
			Quantity:       l.Quantity,
			LineTotalPaise: l.LineTotal(),
		}
	}

	audits := make([]auditEntryResponse, len(ord.AuditLog))
	for i, a := range ord.AuditLog {
		audits[i] = auditEntryResponse{
			ByName:  a.ByName,
			ByEmail: a.ByEmail,
			At:      a.At,
			Reason:  a.Reason,
			Changes: a.Changes,
		}
	}

	return orderResponse{
		ID:            ord.ID,
		OrderNumber:   ord.OrderNumber,
		Items:         lines,
		SubtotalPaise: ord.SubtotalPaise,
		ShippingPaise: ord.ShippingPaise,
		DiscountPaise: ord.DiscountPaise,
		TotalPaise:    ord.TotalPaise,
		OfferCode:     ord.OfferCode,
		Status:        ord.Status,
		PaymentStatus: ord.PaymentStatus,
		PaymentMethod: ord.PaymentMethod,
		Address: addressResponse{
			FullName: ord.ShippingAddress.FullName,
			Phone:    ord.ShippingAddress.Phone,
			Email:    ord.ShippingAddress.Email,
			Line1:    ord.ShippingAddress.Line1,
			Line2:    ord.ShippingAddress.Line2,
			City:     ord.ShippingAddress.City,
			State:    ord.ShippingAddress.State,
			Pincode:  ord.ShippingAddress.Pincode,
		},
		TrackingNumber: ord.TrackingNumber,
		Courier:        ord.Courier,
		ConfirmedAt:    ord.ConfirmedAt,
		CancelledAt:    ord.CancelledAt,
		CreatedAt:      ord.CreatedAt,
		AuditLog:       audits,
	}
}
