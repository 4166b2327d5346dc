package checkout_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zariya-commerce/zariya/internal/billing"
	"github.com/zariya-commerce/zariya/internal/checkout"
	"github.com/zariya-commerce/zariya/internal/domain"
	"github.com/zariya-commerce/zariya/internal/offer"
	"github.com/zariya-commerce/zariya/internal/shipping"
)

type mockProductStore struct {
	products map[string]*domain.Product
}

func (m *mockProductStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

type mockOrderStore struct {
	inserted      []*domain.Order
	insertErr     error
	dupCollisions int
	numbersTried  []string
	sessionID     string
}

func (m *mockOrderStore) InsertOrder(ctx context.Context, order *domain.Order) error {
	m.numbersTried = append(m.numbersTried, order.OrderNumber)
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.dupCollisions > 0 {
		m.dupCollisions--
		return domain.ErrDuplicateOrderNumber
	}
	cp := *order
	m.inserted = append(m.inserted, &cp)
	return nil
}

func (m *mockOrderStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return nil, domain.ErrOrderNotFound
}

func (m *mockOrderStore) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return nil, domain.ErrOrderNotFound
}

func (m *mockOrderStore) GetOrderByPaymentRef(ctx context.Context, ref string) (*domain.Order, error) {
	return nil, domain.ErrOrderNotFound
}

func (m *mockOrderStore) TransitionStatus(ctx context.Context, params domain.TransitionParams) (bool, error) {
	return false, nil
}

func (m *mockOrderStore) MarkEmailSent(ctx context.Context, orderID string, emailType domain.EmailType) (bool, error) {
	return false, nil
}

func (m *mockOrderStore) AppendAudit(ctx context.Context, orderID string, entry domain.AuditEntry) error {
	return nil
}

func (m *mockOrderStore) UpdatePricing(ctx context.Context, update domain.PricingUpdate) error {
	return nil
}

func (m *mockOrderStore) SetStockDecremented(ctx context.Context, orderID string, decremented bool) error {
	return nil
}

func (m *mockOrderStore) SetCheckoutSessionID(ctx context.Context, orderID, sessionID string) error {
	m.sessionID = sessionID
	return nil
}

func (m *mockOrderStore) SetPaymentIntentID(ctx context.Context, orderID, paymentIntentID string) error {
	return nil
}

type mockOfferStore struct {
	offers    map[string]*domain.Offer
	couponIDs map[string]string
}

func (m *mockOfferStore) GetOfferByCode(ctx context.Context, code string) (*domain.Offer, error) {
	o, ok := m.offers[domain.NormalizeOfferCode(code)]
	if !ok {
		return nil, domain.ErrOfferNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOfferStore) SetOfferStripeCoupon(ctx context.Context, offerID, couponID string) error {
	if m.couponIDs == nil {
		m.couponIDs = make(map[string]string)
	}
	m.couponIDs[offerID] = couponID
	return nil
}

type mockCarrier struct {
	quotes []shipping.RateQuote
	err    error
}

func (m *mockCarrier) GetRates(ctx context.Context, params shipping.RateParams) ([]shipping.RateQuote, error) {
	return m.quotes, m.err
}

func (m *mockCarrier) CreateShipment(ctx context.Context, params shipping.ShipmentParams) (*shipping.Shipment, error) {
	return nil, errors.New("not implemented")
}

type mockBilling struct {
	sessions      []billing.CheckoutSessionParams
	coupons       []billing.CouponParams
	sessionErr    error
	nextCouponID  string
	nextSessionID string
}

func (m *mockBilling) CreateCheckoutSession(ctx context.Context, params billing.CheckoutSessionParams) (*billing.CheckoutSession, error) {
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	m.sessions = append(m.sessions, params)
	id := m.nextSessionID
	if id == "" {
		id = "cs_test_1"
	}
	return &billing.CheckoutSession{ID: id, URL: "https://pay.example.com/" + id}, nil
}

func (m *mockBilling) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*billing.PaymentIntent, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBilling) CreateCoupon(ctx context.Context, params billing.CouponParams) (*billing.Coupon, error) {
	m.coupons = append(m.coupons, params)
	id := m.nextCouponID
	if id == "" {
		id = "coup_test_1"
	}
	return &billing.Coupon{ID: id}, nil
}

func (m *mockBilling) VerifyWebhookSignature(payload []byte, signature string) (*billing.WebhookEvent, error) {
	return nil, errors.New("not implemented")
}

type fixture struct {
	products *mockProductStore
	orders   *mockOrderStore
	offers   *mockOfferStore
	carrier  *mockCarrier
	billing  *mockBilling
	svc      checkout.Service
}

func newFixture(policy checkout.Policy) *fixture {
	logger := slog.New(slog.DiscardHandler)
	f := &fixture{
		products: &mockProductStore{products: map[string]*domain.Product{
			"p_serum": {ID: "p_serum", Name: "Vitamin C Serum", Brand: "Zariya", Category: "skincare", PricePaise: 50000, WeightKg: 0.1, IsActive: true},
			"p_soap":  {ID: "p_soap", Name: "Dove Soap", Brand: "Dove", Category: "bath-body", PricePaise: 4500, WeightKg: 0.075, IsActive: true},
		}},
		orders:  &mockOrderStore{},
		offers:  &mockOfferStore{offers: map[string]*domain.Offer{}},
		carrier: &mockCarrier{},
		billing: &mockBilling{},
	}
	f.svc = checkout.NewService(
		f.products,
		f.orders,
		f.offers,
		offer.NewEvaluator(f.offers, logger),
		f.carrier,
		shipping.NewResolver(logger),
		f.billing,
		policy,
		logger,
	)
	return f
}

func defaultPolicy() checkout.Policy {
	return checkout.Policy{
		FreeShippingThresholdPaise: 99900,
		FlatRatePaise:              9900,
		PickupPincode:              "110001",
		DefaultItemWeightKg:        0.2,
		SuccessURL:                 "https://zariya.in/checkout/success",
		CancelURL:                  "https://zariya.in/checkout/cancel",
	}
}

func testAddress() domain.Address {
	return domain.Address{
		FullName: "Asha Rao",
		Phone:    "9876543210",
		Email:    "asha@example.com",
		Line1:    "14 MG Road",
		City:     "Mumbai",
		State:    "Maharashtra",
		Pincode:  "400001",
	}
}

// Two items at ₹500 against a ₹999 threshold with the carrier down and a
// shipping offer applied: shipping is waived, the offer has nothing left to
// discount, and the persisted order, the gateway charge and the returned
// total all agree.
func TestCreateSession_WaivedShippingAgreesEverywhere(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.carrier.err = errors.New("carrier unreachable")
	f.offers.offers["FREESHIP10"] = &domain.Offer{
		ID: "of_ship", Code: "FREESHIP10", Type: domain.OfferShipping,
		Value: 5000, MinAmountPaise: 50000, IsActive: true,
	}

	res, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Items:         []checkout.ItemRef{{ProductID: "p_serum", Quantity: 2}},
		Address:       testAddress(),
		OfferCode:     "FREESHIP10",
		PaymentMethod: domain.PaymentPrepaid,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100000), res.TotalPaise)
	assert.NotEmpty(t, res.SessionURL)

	require.Len(t, f.orders.inserted, 1)
	order := f.orders.inserted[0]
	assert.Equal(t, int64(100000), order.SubtotalPaise)
	assert.Equal(t, int64(0), order.ShippingPaise)
	assert.Equal(t, int64(0), order.DiscountPaise)
	assert.Equal(t, int64(100000), order.TotalPaise)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)

	require.Len(t, f.billing.sessions, 1)
	sess := f.billing.sessions[0]
	gatewayTotal := int64(0)
	for _, li := range sess.LineItems {
		gatewayTotal += li.UnitAmountPaise * li.Quantity
	}
	gatewayTotal += sess.ShippingPaise
	assert.Equal(t, order.TotalPaise, gatewayTotal)
	assert.Empty(t, sess.CouponID)
}

func TestCreateSession_FlatRateBelowThreshold(t *testing.T) {
	f := newFixture(defaultPolicy())

	res, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Items:         []checkout.ItemRef{{ProductID: "p_soap", Quantity: 1}},
		Address:       testAddress(),
		PaymentMethod: domain.PaymentPrepaid,
	})
	require.NoError(t, err)

	order := f.orders.inserted[0]
	assert.Equal(t, int64(4500), order.SubtotalPaise)
	assert.Equal(t, int64(9900), order.ShippingPaise)
	assert.Equal(t, int64(14400), order.TotalPaise)
	assert.Equal(t, res.TotalPaise, order.TotalPaise)
}

func TestCreateSession_SelectedRateUsedVerbatim(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.carrier.quotes = []shipping.RateQuote{
		{CourierID: 11, CourierName: "Surface Lite", TotalPaise: 6500},
		{CourierID: 7, CourierName: "Air Express", TotalPaise: 14200},
	}

	// Subtotal clears the threshold, but the customer chose the air option.
	_, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:            "u_1",
		Items:             []checkout.ItemRef{{ProductID: "p_serum", Quantity: 2}},
		Address:           testAddress(),
		SelectedCourierID: 7,
		PaymentMethod:     domain.PaymentPrepaid,
	})
	require.NoError(t, err)

	order := f.orders.inserted[0]
	assert.Equal(t, int64(14200), order.ShippingPaise)
	require.NotNil(t, order.ShippingDetails)
	assert.Equal(t, "Air Express", order.ShippingDetails.CourierName)
}

func TestCreateSession_InapplicableOfferRejected(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.offers.offers["NIVEA20"] = &domain.Offer{
		ID: "of_1", Code: "NIVEA20", Type: domain.OfferPercentage, Value: 20,
		ScopeBrands: []string{"Nivea"}, IsActive: true,
	}

	_, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Items:         []checkout.ItemRef{{ProductID: "p_soap", Quantity: 2}},
		Address:       testAddress(),
		OfferCode:     "NIVEA20",
		PaymentMethod: domain.PaymentPrepaid,
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Contains(t, domain.ErrorMessage(err), "does not apply")
	assert.Empty(t, f.orders.inserted)
}

func TestCreateSession_SubtotalOfferBecomesCoupon(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.offers.offers["FLAT100"] = &domain.Offer{
		ID: "of_fix", Code: "FLAT100", Type: domain.OfferFixed, Value: 10000, IsActive: true,
	}

	_, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Items:         []checkout.ItemRef{{ProductID: "p_serum", Quantity: 2}},
		Address:       testAddress(),
		OfferCode:     "FLAT100",
		PaymentMethod: domain.PaymentPrepaid,
	})
	require.NoError(t, err)

	order := f.orders.inserted[0]
	assert.Equal(t, int64(10000), order.DiscountPaise)
	assert.Equal(t, int64(90000), order.TotalPaise)

	require.Len(t, f.billing.coupons, 1)
	assert.Equal(t, int64(10000), f.billing.coupons[0].AmountOffPaise)
	require.Len(t, f.billing.sessions, 1)
	assert.Equal(t, "coup_test_1", f.billing.sessions[0].CouponID)
	// The coupon is recorded on the offer for reuse.
	assert.Equal(t, "coup_test_1", f.offers.couponIDs["of_fix"])
}

func TestCreateSession_FixedOfferReusesExistingCoupon(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.offers.offers["FLAT100"] = &domain.Offer{
		ID: "of_fix", Code: "FLAT100", Type: domain.OfferFixed, Value: 10000,
		IsActive: true, StripeCouponID: "coup_existing",
	}

	_, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Items:         []checkout.ItemRef{{ProductID: "p_serum", Quantity: 2}},
		Address:       testAddress(),
		OfferCode:     "FLAT100",
		PaymentMethod: domain.PaymentPrepaid,
	})
	require.NoError(t, err)

	assert.Empty(t, f.billing.coupons)
	assert.Equal(t, "coup_existing", f.billing.sessions[0].CouponID)
}

func TestCreateSession_CODSkipsGateway(t *testing.T) {
	f := newFixture(defaultPolicy())

	res, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Items:         []checkout.ItemRef{{ProductID: "p_soap", Quantity: 1}},
		Address:       testAddress(),
		PaymentMethod: domain.PaymentCOD,
	})
	require.NoError(t, err)

	assert.Empty(t, res.SessionURL)
	assert.Empty(t, f.billing.sessions)
	assert.Equal(t, domain.PaymentCOD, f.orders.inserted[0].PaymentMethod)
}

func TestCreateSession_GatewayFailureLeavesOrderPending(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.billing.sessionErr = errors.New("gateway timeout")

	_, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Items:         []checkout.ItemRef{{ProductID: "p_soap", Quantity: 1}},
		Address:       testAddress(),
		PaymentMethod: domain.PaymentPrepaid,
	})
	require.Error(t, err)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))

	// The order was written before the gateway call and stays pending so
	// the customer can retry payment.
	require.Len(t, f.orders.inserted, 1)
	assert.Equal(t, domain.OrderPending, f.orders.inserted[0].Status)
}

func TestCreateSession_UnknownProductFailsCheckout(t *testing.T) {
	f := newFixture(defaultPolicy())

	_, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Items:         []checkout.ItemRef{{ProductID: "p_ghost", Quantity: 1}},
		Address:       testAddress(),
		PaymentMethod: domain.PaymentPrepaid,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Empty(t, f.orders.inserted)
}

func TestCreateSession_EmptyCart(t *testing.T) {
	f := newFixture(defaultPolicy())

	_, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Address:       testAddress(),
		PaymentMethod: domain.PaymentPrepaid,
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestQuoteRates(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.carrier.quotes = []shipping.RateQuote{
		{CourierID: 11, CourierName: "Surface Lite", TotalPaise: 6500},
		{CourierID: 7, CourierName: "Air Express", TotalPaise: 14200},
	}

	res, err := f.svc.QuoteRates(context.Background(), checkout.RatesParams{
		DeliveryPincode: "400001",
		Items:           []checkout.ItemRef{{ProductID: "p_soap", Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Len(t, res.Quotes, 2)
	assert.Equal(t, int64(4500), res.Totals.SubtotalPaise)
	assert.Equal(t, int64(6500), res.Effective.ChargePaise)
	assert.Equal(t, int64(11), res.Effective.ChosenCourierID)
	assert.Equal(t, int64(11000), res.Totals.TotalPaise)
}

func TestQuoteRates_CarrierDownFallsBack(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.carrier.err = errors.New("dial timeout")

	res, err := f.svc.QuoteRates(context.Background(), checkout.RatesParams{
		DeliveryPincode: "400001",
		Items:           []checkout.ItemRef{{ProductID: "p_soap", Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Empty(t, res.Quotes)
	assert.Equal(t, int64(9900), res.Effective.ChargePaise)
	assert.Equal(t, int64(14400), res.Totals.TotalPaise)
}

func TestQuoteRates_OfferDiscountInTotals(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.carrier.err = errors.New("dial timeout")
	f.offers.offers["FLAT100"] = &domain.Offer{
		ID: "of_fix", Code: "FLAT100", Type: domain.OfferFixed, Value: 10000, IsActive: true,
	}

	res, err := f.svc.QuoteRates(context.Background(), checkout.RatesParams{
		DeliveryPincode: "400001",
		Items:           []checkout.ItemRef{{ProductID: "p_serum", Quantity: 2}},
		OfferCode:       "FLAT100",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100000), res.Totals.SubtotalPaise)
	assert.Equal(t, int64(0), res.Totals.ShippingPaise)
	assert.Equal(t, int64(10000), res.Totals.DiscountPaise)
	assert.Equal(t, int64(90000), res.Totals.TotalPaise)
}

func TestQuoteRates_InapplicableOfferRejected(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.offers.offers["NIVEA20"] = &domain.Offer{
		ID: "of_1", Code: "NIVEA20", Type: domain.OfferPercentage, Value: 20,
		ScopeBrands: []string{"Nivea"}, IsActive: true,
	}

	_, err := f.svc.QuoteRates(context.Background(), checkout.RatesParams{
		DeliveryPincode: "400001",
		Items:           []checkout.ItemRef{{ProductID: "p_soap", Quantity: 2}},
		OfferCode:       "NIVEA20",
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

// A preview and the checkout it becomes must price identically: same items,
// destination and offer code, same total, even with the carrier down.
func TestQuoteRates_AgreesWithCreateSession(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.carrier.err = errors.New("carrier unreachable")
	f.offers.offers["FREESHIP10"] = &domain.Offer{
		ID: "of_ship", Code: "FREESHIP10", Type: domain.OfferShipping,
		Value: 5000, MinAmountPaise: 50000, IsActive: true,
	}

	preview, err := f.svc.QuoteRates(context.Background(), checkout.RatesParams{
		DeliveryPincode: "400001",
		Items:           []checkout.ItemRef{{ProductID: "p_serum", Quantity: 2}},
		OfferCode:       "FREESHIP10",
	})
	require.NoError(t, err)
	assert.Equal(t, checkout.Totals{SubtotalPaise: 100000, TotalPaise: 100000}, preview.Totals)

	res, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Items:         []checkout.ItemRef{{ProductID: "p_serum", Quantity: 2}},
		Address:       testAddress(),
		OfferCode:     "FREESHIP10",
		PaymentMethod: domain.PaymentPrepaid,
	})
	require.NoError(t, err)

	assert.Equal(t, preview.Totals.TotalPaise, res.TotalPaise)
	require.Len(t, f.orders.inserted, 1)
	order := f.orders.inserted[0]
	assert.Equal(t, preview.Totals.SubtotalPaise, order.SubtotalPaise)
	assert.Equal(t, preview.Totals.ShippingPaise, order.ShippingPaise)
	assert.Equal(t, preview.Totals.DiscountPaise, order.DiscountPaise)
	assert.Equal(t, preview.Totals.TotalPaise, order.TotalPaise)
}

func TestCreateSession_OrderNumberCollisionRetries(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.orders.dupCollisions = 2

	res, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Items:         []checkout.ItemRef{{ProductID: "p_soap", Quantity: 1}},
		Address:       testAddress(),
		PaymentMethod: domain.PaymentCOD,
	})
	require.NoError(t, err)

	require.Len(t, f.orders.inserted, 1)
	assert.Len(t, f.orders.numbersTried, 3)
	assert.Equal(t, f.orders.numbersTried[2], res.OrderNumber)
}

func TestCreateSession_OrderNumberCollisionExhausted(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.orders.dupCollisions = 100

	_, err := f.svc.CreateSession(context.Background(), checkout.CreateSessionParams{
		UserID:        "u_1",
		Items:         []checkout.ItemRef{{ProductID: "p_soap", Quantity: 1}},
		Address:       testAddress(),
		PaymentMethod: domain.PaymentCOD,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Empty(t, f.orders.inserted)
}
