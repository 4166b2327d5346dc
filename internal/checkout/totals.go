// Package checkout turns a cart, address and optional offer code into a
// priced order and a payment session.
package checkout

import (
	"github.com/zariya-commerce/zariya/internal/domain"
)

// Totals is a reconciled set of order amounts. Shipping is the pre-discount
// carrier/threshold charge; the discount is tracked separately so both "what
// shipping would have cost" and "what was taken off" stay visible.
type Totals struct {
	SubtotalPaise int64
	ShippingPaise int64
	DiscountPaise int64
	TotalPaise    int64
}

// Reconcile computes order totals from canonical inputs. The subtotal is
// always recomputed from the item snapshot; client-supplied totals are never
// trusted. The same function runs at preview, at session creation and at
// order persistence so the three amounts cannot drift apart.
func Reconcile(items []domain.CartLine, shippingPaise, discountPaise int64) Totals {
	subtotal := domain.Subtotal(items)

	total := subtotal + shippingPaise - discountPaise
	if total < 0 {
		total = 0
	}

	return Totals{
		SubtotalPaise: subtotal,
		ShippingPaise: shippingPaise,
		DiscountPaise: discountPaise,
		TotalPaise:    total,
	}
}
