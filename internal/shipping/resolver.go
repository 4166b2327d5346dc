package shipping

import (
	"log/slog"
)

// EffectiveShipping is the shipping charge a customer will actually pay.
// It is derived at checkout time and folded into the order's shipping field,
// never persisted on its own.
type EffectiveShipping struct {
	// ChargePaise is the base shipping charge before any shipping discount.
	ChargePaise int64
	// ThresholdWaived is true when the free-shipping threshold zeroed the
	// charge. Always false when the customer explicitly selected a rate.
	ThresholdWaived bool
	// ChosenCourierID identifies the quote behind the charge, for shipment
	// booking later. Zero on the flat-rate degraded path.
	ChosenCourierID int64
}

// ResolveParams are the inputs to one shipping resolution.
type ResolveParams struct {
	SubtotalPaise int64
	// FreeShippingThresholdPaise zeroes the charge for qualifying subtotals.
	// Zero or negative disables the waiver.
	FreeShippingThresholdPaise int64
	// Quotes are the live carrier options, possibly empty when the carrier
	// was unreachable.
	Quotes []RateQuote
	// SelectedCourierID is the quote the customer explicitly chose during
	// checkout. Zero means no selection was made.
	SelectedCourierID int64
	// FallbackFlatRatePaise is charged when no live quote is usable and the
	// subtotal does not qualify for the waiver.
	FallbackFlatRatePaise int64
}

// Resolver decides the effective shipping charge by blending live carrier
// quotes, the free-shipping threshold, and the flat-rate fallback.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a shipping resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve computes the effective shipping charge.
//
// With no usable quotes the flat rate applies below the threshold and zero at
// or above it, so an unreachable carrier never blocks checkout. An explicit
// customer selection is honored verbatim because that price was already shown
// to and accepted by the customer; only the automatic flow applies the
// threshold waiver. The result is never negative.
func (r *Resolver) Resolve(params ResolveParams) EffectiveShipping {
	quotes := r.usableQuotes(params.Quotes)

	waiverQualifies := params.FreeShippingThresholdPaise > 0 &&
		params.SubtotalPaise >= params.FreeShippingThresholdPaise

	if len(quotes) == 0 {
		if waiverQualifies {
			return EffectiveShipping{ChargePaise: 0, ThresholdWaived: true}
		}
		return EffectiveShipping{ChargePaise: params.FallbackFlatRatePaise}
	}

	if params.SelectedCourierID != 0 {
		for _, q := range quotes {
			if q.CourierID == params.SelectedCourierID {
				return EffectiveShipping{
					ChargePaise:     q.TotalPaise,
					ChosenCourierID: q.CourierID,
				}
			}
		}
		// Selection no longer matches any live quote; fall through to the
		// automatic flow rather than failing the checkout.
		r.logger.Warn("selected courier not among live quotes",
			"selected_courier_id", params.SelectedCourierID,
		)
	}

	cheapest := quotes[0]
	for _, q := range quotes[1:] {
		if q.TotalPaise < cheapest.TotalPaise ||
			(q.TotalPaise == cheapest.TotalPaise && q.CourierID < cheapest.CourierID) {
			cheapest = q
		}
	}

	if waiverQualifies {
		return EffectiveShipping{
			ChargePaise:     0,
			ThresholdWaived: true,
			ChosenCourierID: cheapest.CourierID,
		}
	}
	return EffectiveShipping{
		ChargePaise:     cheapest.TotalPaise,
		ChosenCourierID: cheapest.CourierID,
	}
}

// usableQuotes drops malformed quotes with a negative total.
func (r *Resolver) usableQuotes(quotes []RateQuote) []RateQuote {
	usable := quotes[:0:0]
	for _, q := range quotes {
		if q.TotalPaise < 0 {
			r.logger.Warn("discarding malformed rate quote",
				"courier_id", q.CourierID,
				"total_paise", q.TotalPaise,
			)
			continue
		}
		usable = append(usable, q)
	}
	return usable
}
