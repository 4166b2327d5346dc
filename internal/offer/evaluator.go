// Package offer evaluates discount codes against a cart.
package offer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zariya-commerce/zariya/internal/domain"
)

// Result is the outcome of evaluating an offer code.
// Inapplicable codes are an expected condition, reported through Applicable
// and Reason rather than an error, so preview calls can surface the message.
type Result struct {
	Applicable    bool
	DiscountPaise int64
	// Reason explains why the code did not apply. Empty when Applicable.
	Reason string
	// Offer is the matched offer when Applicable, nil otherwise.
	Offer *domain.Offer
	// AppliesToShipping is true for shipping-type offers, whose discount
	// reduces the shipping charge instead of the subtotal.
	AppliesToShipping bool
}

// EvaluateParams are the inputs to one evaluation.
type EvaluateParams struct {
	Code          string
	Lines         []domain.CartLine
	SubtotalPaise int64
	// ShippingBeforePaise is the effective shipping charge before any
	// discount, capping what a shipping-type offer can take off.
	ShippingBeforePaise int64
	Now                 time.Time
}

// Evaluator applies merchant offers to carts. Evaluation is side-effect-free
// beyond the store read, so repeated preview calls are safe.
type Evaluator struct {
	offers domain.OfferStore
	logger *slog.Logger
}

// NewEvaluator creates an offer evaluator.
func NewEvaluator(offers domain.OfferStore, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{offers: offers, logger: logger}
}

// Evaluate checks eligibility and computes the discount for an offer code.
// Eligibility is checked in order: active, validity window, minimum amount,
// then scope. The discount never exceeds the amount it applies against.
func (e *Evaluator) Evaluate(ctx context.Context, params EvaluateParams) (*Result, error) {
	code := domain.NormalizeOfferCode(params.Code)
	if code == "" {
		return &Result{Reason: "No offer code provided"}, nil
	}

	off, err := e.offers.GetOfferByCode(ctx, code)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return &Result{Reason: "Offer code not found"}, nil
		}
		return nil, fmt.Errorf("failed to look up offer %s: %w", code, err)
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	if !off.IsActive {
		return &Result{Reason: "This offer is no longer active"}, nil
	}
	if !off.WithinWindow(now) {
		return &Result{Reason: "This offer is not valid right now"}, nil
	}
	if params.SubtotalPaise < off.MinAmountPaise {
		return &Result{
			Reason: fmt.Sprintf("Order must be at least %s to use this offer", formatPaise(off.MinAmountPaise)),
		}, nil
	}
	if !scopeMatches(off, params.Lines) {
		return &Result{Reason: "This offer does not apply to the items in your cart"}, nil
	}

	discount := discountFor(off, params.SubtotalPaise, params.ShippingBeforePaise)

	e.logger.Debug("offer applied",
		"offer_code", off.Code,
		"offer_type", off.Type,
		"discount_paise", discount,
	)

	return &Result{
		Applicable:        true,
		DiscountPaise:     discount,
		Offer:             off,
		AppliesToShipping: off.Type == domain.OfferShipping,
	}, nil
}

// scopeMatches reports whether the cart is eligible for a scoped offer.
// A single line matching any scope dimension is sufficient; an offer with no
// scope at all applies to everything.
func scopeMatches(off *domain.Offer, lines []domain.CartLine) bool {
	if off.Unscoped() {
		return true
	}
	for _, line := range lines {
		if containsFold(off.ScopeProducts, line.ProductID) ||
			containsFold(off.ScopeBrands, line.Brand) ||
			containsFold(off.ScopeCategories, line.Category) {
			return true
		}
	}
	return false
}

func discountFor(off *domain.Offer, subtotalPaise, shippingBeforePaise int64) int64 {
	switch off.Type {
	case domain.OfferPercentage:
		return subtotalPaise * off.Value / 100
	case domain.OfferFixed:
		return min(off.Value, subtotalPaise)
	case domain.OfferShipping:
		return min(off.Value, shippingBeforePaise)
	default:
		return 0
	}
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

// formatPaise renders a paise amount as rupees for customer-facing messages.
func formatPaise(paise int64) string {
	if paise%100 == 0 {
		return fmt.Sprintf("₹%d", paise/100)
	}
	return fmt.Sprintf("₹%d.%02d", paise/100, paise%100)
}
