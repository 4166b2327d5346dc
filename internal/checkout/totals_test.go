package checkout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zariya-commerce/zariya/internal/checkout"
	"github.com/zariya-commerce/zariya/internal/domain"
)

func TestReconcile(t *testing.T) {
	items := []domain.CartLine{
		{ProductID: "p_serum", UnitPricePaise: 50000, Quantity: 2},
		{ProductID: "p_soap", UnitPricePaise: 4500, Quantity: 1},
	}

	got := checkout.Reconcile(items, 9900, 5000)

	assert.Equal(t, int64(104500), got.SubtotalPaise)
	assert.Equal(t, int64(9900), got.ShippingPaise)
	assert.Equal(t, int64(5000), got.DiscountPaise)
	assert.Equal(t, int64(109400), got.TotalPaise)
}

func TestReconcile_TotalNeverNegative(t *testing.T) {
	items := []domain.CartLine{
		{ProductID: "p_soap", UnitPricePaise: 4500, Quantity: 1},
	}

	got := checkout.Reconcile(items, 0, 1000000)

	assert.Equal(t, int64(4500), got.SubtotalPaise)
	assert.Equal(t, int64(0), got.TotalPaise)
	assert.Equal(t, int64(1000000), got.DiscountPaise)
}

func TestReconcile_EmptyCart(t *testing.T) {
	got := checkout.Reconcile(nil, 9900, 0)

	assert.Equal(t, int64(0), got.SubtotalPaise)
	assert.Equal(t, int64(9900), got.TotalPaise)
}

// A cart of two ₹500 items against a ₹999 free-shipping threshold with no
// live quotes and a ₹99 flat rate ships free, and a shipping-type offer has
// nothing left to discount. The same numbers must come out at preview, at
// session creation and at persistence.
func TestReconcile_WaivedShippingWithShippingOffer(t *testing.T) {
	items := []domain.CartLine{
		{ProductID: "p_serum", UnitPricePaise: 50000, Quantity: 2},
	}

	for i := 0; i < 3; i++ {
		got := checkout.Reconcile(items, 0, 0)

		assert.Equal(t, int64(100000), got.SubtotalPaise)
		assert.Equal(t, int64(0), got.ShippingPaise)
		assert.Equal(t, int64(0), got.DiscountPaise)
		assert.Equal(t, int64(100000), got.TotalPaise)
	}
}
