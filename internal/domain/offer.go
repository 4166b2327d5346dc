package domain

import (
	"context"
	"strings"
	"time"
)

// Offer-related domain errors.
var (
	ErrOfferNotFound = &Error{Code: ENOTFOUND, Message: "Offer code not found"}
)

// OfferType distinguishes how an offer's value is applied.
type OfferType string

const (
	// OfferPercentage discounts value% off the cart subtotal.
	OfferPercentage OfferType = "percentage"
	// OfferFixed discounts a fixed paise amount off the subtotal.
	OfferFixed OfferType = "fixed"
	// OfferShipping discounts the shipping charge, never the subtotal.
	OfferShipping OfferType = "shipping"
)

// Offer is a merchant-configured discount code.
// Codes are unique case-insensitively; lookups normalize before matching.
type Offer struct {
	ID             string
	Code           string
	Type           OfferType
	MinAmountPaise int64
	// Value is a percentage for OfferPercentage, a paise amount otherwise.
	Value           int64
	ScopeCategories []string
	ScopeBrands     []string
	ScopeProducts   []string
	ValidFrom       time.Time
	ValidTo         time.Time
	IsActive        bool
	// StripeCouponID is the provider-side coupon created lazily for subtotal
	// offers, so the gateway line total matches the reconciled order total.
	StripeCouponID string
}

// Unscoped reports whether the offer applies to any cart contents.
func (o *Offer) Unscoped() bool {
	return len(o.ScopeCategories) == 0 && len(o.ScopeBrands) == 0 && len(o.ScopeProducts) == 0
}

// WithinWindow reports whether now falls inside the offer's validity window.
// A zero ValidFrom/ValidTo bound is treated as open-ended.
func (o *Offer) WithinWindow(now time.Time) bool {
	if !o.ValidFrom.IsZero() && now.Before(o.ValidFrom) {
		return false
	}
	if !o.ValidTo.IsZero() && now.After(o.ValidTo) {
		return false
	}
	return true
}

// NormalizeOfferCode canonicalizes an offer code for case-insensitive lookup.
func NormalizeOfferCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// OfferStore provides persistence for offers.
type OfferStore interface {
	// GetOfferByCode looks up an offer by code, case-insensitively.
	// Returns ErrOfferNotFound when no offer matches.
	GetOfferByCode(ctx context.Context, code string) (*Offer, error)

	// SetOfferStripeCoupon records the provider-side coupon ID after it is
	// created lazily on first use in a checkout session.
	SetOfferStripeCoupon(ctx context.Context, offerID, couponID string) error
}
