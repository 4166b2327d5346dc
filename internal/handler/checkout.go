package handler

import (
	"log/slog"
	"net/http"

	"github.com/zariya-commerce/zariya/internal/checkout"
	"github.com/zariya-commerce/zariya/internal/domain"
	"github.com/zariya-commerce/zariya/internal/telemetry"
)

// CheckoutHandler creates checkout sessions.
type CheckoutHandler struct {
	checkout checkout.Service
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(checkoutService checkout.Service, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{checkout: checkoutService, logger: logger}
}

type addressRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone" validate:"required,min=10"`
	Email    string `json:"email" validate:"required,email"`
	Line1    string `json:"line1" validate:"required"`
	Line2    string `json:"line2"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
	Pincode  string `json:"pincode" validate:"required,len=6,numeric"`
}

type createSessionRequest struct {
	UserID            string           `json:"user_id"`
	Items             []itemRefRequest `json:"items" validate:"required,min=1,dive"`
	Address           addressRequest   `json:"address" validate:"required"`
	OfferCode         string           `json:"offer_code"`
	SelectedCourierID int64            `json:"selected_courier_id" validate:"min=0"`
	PaymentMethod     string           `json:"payment_method" validate:"required,oneof=prepaid cod"`
}

type createSessionResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	SessionURL  string `json:"session_url,omitempty"`
	TotalPaise  int64  `json:"total_paise"`
}

// CreateSession handles POST /api/checkout/session.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeAndValidate(r, "checkout.session", &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.CheckoutStarted.WithLabelValues(req.PaymentMethod).Inc()
	}

	result, err := h.checkout.CreateSession(r.Context(), checkout.CreateSessionParams{
		UserID:            req.UserID,
		Items:             toItemRefs(req.Items),
		Address:           toAddress(req.Address),
		OfferCode:         req.OfferCode,
		SelectedCourierID: req.SelectedCourierID,
		PaymentMethod:     domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.CheckoutRejected.WithLabelValues(domain.ErrorCode(err)).Inc()
		}
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.OrdersCreated.WithLabelValues(req.PaymentMethod).Inc()
		telemetry.Business.OrderValue.WithLabelValues(req.PaymentMethod).
			Observe(float64(result.TotalPaise) / 100)
	}

	RespondJSON(w, http.StatusCreated, createSessionResponse{
		OrderID:     result.OrderID,
		OrderNumber: result.OrderNumber,
		SessionURL:  result.SessionURL,
		TotalPaise:  result.TotalPaise,
	})
}

func toAddress(a addressRequest) domain.Address {
	return domain.Address{
		FullName: a.FullName,
		Phone:    a.Phone,
		Email:    a.Email,
		Line1:    a.Line1,
		Line2:    a.Line2,
		City:     a.City,
		State:    a.State,
		Pincode:  a.Pincode,
	}
}
