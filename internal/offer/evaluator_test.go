package offer_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zariya-commerce/zariya/internal/domain"
	"github.com/zariya-commerce/zariya/internal/offer"
)

// mockOfferStore implements domain.OfferStore over a fixed set of offers.
type mockOfferStore struct {
	offers map[string]*domain.Offer
}

func (m *mockOfferStore) GetOfferByCode(ctx context.Context, code string) (*domain.Offer, error) {
	off, ok := m.offers[domain.NormalizeOfferCode(code)]
	if !ok {
		return nil, domain.ErrOfferNotFound
	}
	cp := *off
	return &cp, nil
}

func (m *mockOfferStore) SetOfferStripeCoupon(ctx context.Context, offerID, couponID string) error {
	return nil
}

func newTestEvaluator(offers ...*domain.Offer) *offer.Evaluator {
	store := &mockOfferStore{offers: make(map[string]*domain.Offer)}
	for _, o := range offers {
		store.offers[o.Code] = o
	}
	return offer.NewEvaluator(store, slog.New(slog.DiscardHandler))
}

func TestEvaluate_UnknownCode(t *testing.T) {
	e := newTestEvaluator()

	res, err := e.Evaluate(context.Background(), offer.EvaluateParams{
		Code:          "NOSUCHCODE",
		SubtotalPaise: 100000,
	})
	require.NoError(t, err)
	assert.False(t, res.Applicable)
	assert.Equal(t, "Offer code not found", res.Reason)
	assert.Zero(t, res.DiscountPaise)
}

func TestEvaluate_CaseInsensitiveLookup(t *testing.T) {
	e := newTestEvaluator(&domain.Offer{
		ID: "of_1", Code: "WELCOME10", Type: domain.OfferPercentage, Value: 10, IsActive: true,
	})

	res, err := e.Evaluate(context.Background(), offer.EvaluateParams{
		Code:          "  welcome10 ",
		SubtotalPaise: 100000,
	})
	require.NoError(t, err)
	assert.True(t, res.Applicable)
	assert.Equal(t, int64(10000), res.DiscountPaise)
}

func TestEvaluate_InactiveAndWindow(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	e := newTestEvaluator(
		&domain.Offer{ID: "of_1", Code: "OLD10", Type: domain.OfferPercentage, Value: 10, IsActive: false},
		&domain.Offer{
			ID: "of_2", Code: "DIWALI", Type: domain.OfferPercentage, Value: 15, IsActive: true,
			ValidFrom: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
			ValidTo:   time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC),
		},
	)

	res, err := e.Evaluate(context.Background(), offer.EvaluateParams{
		Code: "OLD10", SubtotalPaise: 100000, Now: now,
	})
	require.NoError(t, err)
	assert.False(t, res.Applicable)
	assert.Equal(t, "This offer is no longer active", res.Reason)

	res, err = e.Evaluate(context.Background(), offer.EvaluateParams{
		Code: "DIWALI", SubtotalPaise: 100000, Now: now,
	})
	require.NoError(t, err)
	assert.False(t, res.Applicable)
	assert.Equal(t, "This offer is not valid right now", res.Reason)
}

func TestEvaluate_MinimumAmount(t *testing.T) {
	e := newTestEvaluator(&domain.Offer{
		ID: "of_1", Code: "BIG50", Type: domain.OfferFixed, Value: 5000,
		MinAmountPaise: 50000, IsActive: true,
	})

	res, err := e.Evaluate(context.Background(), offer.EvaluateParams{
		Code: "BIG50", SubtotalPaise: 49900,
	})
	require.NoError(t, err)
	assert.False(t, res.Applicable)
	assert.Equal(t, "Order must be at least ₹500 to use this offer", res.Reason)

	res, err = e.Evaluate(context.Background(), offer.EvaluateParams{
		Code: "BIG50", SubtotalPaise: 50000,
	})
	require.NoError(t, err)
	assert.True(t, res.Applicable)
	assert.Equal(t, int64(5000), res.DiscountPaise)
}

func TestEvaluate_ScopeMatching(t *testing.T) {
	brandOffer := &domain.Offer{
		ID: "of_1", Code: "NIVEA20", Type: domain.OfferPercentage, Value: 20,
		ScopeBrands: []string{"Nivea"}, IsActive: true,
	}
	e := newTestEvaluator(brandOffer)

	doveOnly := []domain.CartLine{
		{ProductID: "p_dove_soap", Name: "Dove Soap", Brand: "Dove", Category: "bath-body", UnitPricePaise: 4500, Quantity: 2},
	}
	mixed := append([]domain.CartLine{
		{ProductID: "p_nivea_cream", Name: "Nivea Cream", Brand: "nivea", Category: "skincare", UnitPricePaise: 19900, Quantity: 1},
	}, doveOnly...)

	res, err := e.Evaluate(context.Background(), offer.EvaluateParams{
		Code: "NIVEA20", Lines: doveOnly, SubtotalPaise: 9000,
	})
	require.NoError(t, err)
	assert.False(t, res.Applicable)
	assert.Equal(t, "This offer does not apply to the items in your cart", res.Reason)

	// One matching line is enough; brand comparison ignores case.
	res, err = e.Evaluate(context.Background(), offer.EvaluateParams{
		Code: "NIVEA20", Lines: mixed, SubtotalPaise: 28900,
	})
	require.NoError(t, err)
	assert.True(t, res.Applicable)
	assert.Equal(t, int64(5780), res.DiscountPaise)
}

func TestEvaluate_ScopeDimensions(t *testing.T) {
	e := newTestEvaluator(
		&domain.Offer{
			ID: "of_1", Code: "SKIN15", Type: domain.OfferPercentage, Value: 15,
			ScopeCategories: []string{"skincare"}, IsActive: true,
		},
		&domain.Offer{
			ID: "of_2", Code: "SERUM100", Type: domain.OfferFixed, Value: 10000,
			ScopeProducts: []string{"p_serum"}, IsActive: true,
		},
	)

	lines := []domain.CartLine{
		{ProductID: "p_serum", Name: "Vitamin C Serum", Brand: "Zariya", Category: "Skincare", UnitPricePaise: 50000, Quantity: 1},
	}

	res, err := e.Evaluate(context.Background(), offer.EvaluateParams{
		Code: "SKIN15", Lines: lines, SubtotalPaise: 50000,
	})
	require.NoError(t, err)
	assert.True(t, res.Applicable)

	res, err = e.Evaluate(context.Background(), offer.EvaluateParams{
		Code: "SERUM100", Lines: lines, SubtotalPaise: 50000,
	})
	require.NoError(t, err)
	assert.True(t, res.Applicable)
	assert.Equal(t, int64(10000), res.DiscountPaise)
}

func TestEvaluate_FixedCappedAtSubtotal(t *testing.T) {
	e := newTestEvaluator(&domain.Offer{
		ID: "of_1", Code: "FLAT200", Type: domain.OfferFixed, Value: 20000, IsActive: true,
	})

	res, err := e.Evaluate(context.Background(), offer.EvaluateParams{
		Code: "FLAT200", SubtotalPaise: 15000,
	})
	require.NoError(t, err)
	assert.True(t, res.Applicable)
	assert.Equal(t, int64(15000), res.DiscountPaise)
}

func TestEvaluate_ShippingDiscountCappedAtShipping(t *testing.T) {
	e := newTestEvaluator(&domain.Offer{
		ID: "of_1", Code: "FREESHIP10", Type: domain.OfferShipping, Value: 5000,
		MinAmountPaise: 50000, IsActive: true,
	})

	t.Run("capped at shipping charge", func(t *testing.T) {
		res, err := e.Evaluate(context.Background(), offer.EvaluateParams{
			Code:                "FREESHIP10",
			SubtotalPaise:       60000,
			ShippingBeforePaise: 3000,
		})
		require.NoError(t, err)
		assert.True(t, res.Applicable)
		assert.True(t, res.AppliesToShipping)
		assert.Equal(t, int64(3000), res.DiscountPaise)
	})

	t.Run("zero shipping yields zero discount", func(t *testing.T) {
		res, err := e.Evaluate(context.Background(), offer.EvaluateParams{
			Code:                "FREESHIP10",
			SubtotalPaise:       100000,
			ShippingBeforePaise: 0,
		})
		require.NoError(t, err)
		assert.True(t, res.Applicable)
		assert.Zero(t, res.DiscountPaise)
	})
}

func TestEvaluate_EmptyCode(t *testing.T) {
	e := newTestEvaluator()

	res, err := e.Evaluate(context.Background(), offer.EvaluateParams{SubtotalPaise: 100000})
	require.NoError(t, err)
	assert.False(t, res.Applicable)
	assert.Zero(t, res.DiscountPaise)
}
