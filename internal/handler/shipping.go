package handler

import (
	"log/slog"
	"net/http"

	"github.com/zariya-commerce/zariya/internal/checkout"
	"github.com/zariya-commerce/zariya/internal/shipping"
	"github.com/zariya-commerce/zariya/internal/telemetry"
)

// ShippingHandler previews shipping rates for a cart and destination.
type ShippingHandler struct {
	checkout checkout.Service
	logger   *slog.Logger
}

// NewShippingHandler creates a new shipping handler.
func NewShippingHandler(checkoutService checkout.Service, logger *slog.Logger) *ShippingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShippingHandler{checkout: checkoutService, logger: logger}
}

type ratesRequest struct {
	DeliveryPincode   string           `json:"delivery_pincode" validate:"required,len=6,numeric"`
	Items             []itemRefRequest `json:"items" validate:"required,min=1,dive"`
	COD               bool             `json:"cod"`
	SelectedCourierID int64            `json:"selected_courier_id" validate:"min=0"`
	OfferCode         string           `json:"offer_code"`
}

type itemRefRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int32  `json:"quantity" validate:"required,gt=0"`
}

type rateQuoteResponse struct {
	CourierID         int64  `json:"courier_id"`
	CourierName       string `json:"courier_name"`
	FreightPaise      int64  `json:"freight_paise"`
	CODPaise          int64  `json:"cod_paise"`
	OtherPaise        int64  `json:"other_paise"`
	TotalPaise        int64  `json:"total_paise"`
	EstimatedDelivery string `json:"estimated_delivery"`
	IsSurface         bool   `json:"is_surface"`
}

type ratesResponse struct {
	Quotes          []rateQuoteResponse `json:"quotes"`
	ChargePaise     int64               `json:"charge_paise"`
	ThresholdWaived bool                `json:"threshold_waived"`
	ChosenCourierID int64               `json:"chosen_courier_id"`
	SubtotalPaise   int64               `json:"subtotal_paise"`
	DiscountPaise   int64               `json:"discount_paise"`
	TotalPaise      int64               `json:"total_paise"`
}

// Rates handles POST /api/shipping/rates.
func (h *ShippingHandler) Rates(w http.ResponseWriter, r *http.Request) {
	var req ratesRequest
	if err := decodeAndValidate(r, "shipping.rates", &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	result, err := h.checkout.QuoteRates(r.Context(), checkout.RatesParams{
		DeliveryPincode:   req.DeliveryPincode,
		Items:             toItemRefs(req.Items),
		COD:               req.COD,
		SelectedCourierID: req.SelectedCourierID,
		OfferCode:         req.OfferCode,
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		outcome := "live"
		if len(result.Quotes) == 0 {
			outcome = "fallback"
		}
		telemetry.Business.RateQuoteRequests.WithLabelValues(outcome).Inc()
		if result.Effective.ThresholdWaived {
			telemetry.Business.ShippingWaived.Inc()
		}
	}

	RespondJSON(w, http.StatusOK, ratesResponse{
		Quotes:          toQuoteResponses(result.Quotes),
		ChargePaise:     result.Effective.ChargePaise,
		ThresholdWaived: result.Effective.ThresholdWaived,
		ChosenCourierID: result.Effective.ChosenCourierID,
		SubtotalPaise:   result.Totals.SubtotalPaise,
		DiscountPaise:   result.Totals.DiscountPaise,
		TotalPaise:      result.Totals.TotalPaise,
	})
}

func toItemRefs(items []itemRefRequest) []checkout.ItemRef {
	refs := make([]checkout.ItemRef, len(items))
	for i, it := range items {
		refs[i] = checkout.ItemRef{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return refs
}

func toQuoteResponses(quotes []shipping.RateQuote) []rateQuoteResponse {
	out := make([]rateQuoteResponse, len(quotes))
	for i, q := range quotes {
		out[i] = rateQuoteResponse{
			CourierID:         q.CourierID,
			CourierName:       q.CourierName,
			FreightPaise:      q.FreightPaise,
			CODPaise:          q.CODPaise,
			OtherPaise:        q.OtherPaise,
			TotalPaise:        q.TotalPaise,
			EstimatedDelivery: q.EstimatedDelivery,
			IsSurface:         q.IsSurface,
		}
	}
	return out
}
