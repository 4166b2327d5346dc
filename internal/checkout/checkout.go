package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zariya-commerce/zariya/internal/billing"
	"github.com/zariya-commerce/zariya/internal/domain"
	"github.com/zariya-commerce/zariya/internal/offer"
	"github.com/zariya-commerce/zariya/internal/shipping"
)

// maxOrderNumberAttempts bounds regeneration when a freshly generated order
// number collides with an existing one.
const maxOrderNumberAttempts = 5

// Policy holds the merchant's shipping and checkout settings.
type Policy struct {
	// FreeShippingThresholdPaise waives shipping at or above this subtotal.
	// Zero disables the waiver.
	FreeShippingThresholdPaise int64
	// FlatRatePaise is charged when no live carrier quote is available.
	FlatRatePaise int64
	// PickupPincode is the warehouse origin for rate queries.
	PickupPincode string
	// DefaultItemWeightKg substitutes for products without a listed weight.
	DefaultItemWeightKg float64
	SuccessURL          string
	CancelURL           string
}

// ItemRef is one cart line as submitted by the client. Only the product ID
// and quantity are trusted; prices come from the catalog.
type ItemRef struct {
	ProductID string
	Quantity  int32
}

// RatesParams are the inputs to a rate preview.
type RatesParams struct {
	DeliveryPincode   string
	Items             []ItemRef
	COD               bool
	SelectedCourierID int64
	OfferCode         string
}

// RatesResult is a rate preview: the live courier options, the hybrid charge
// the customer would pay right now, and the totals the order would persist
// with if checked out unchanged.
type RatesResult struct {
	Quotes    []shipping.RateQuote
	Effective shipping.EffectiveShipping
	Totals    Totals
}

// CreateSessionParams are the inputs to checkout-session creation.
type CreateSessionParams struct {
	UserID            string
	Items             []ItemRef
	Address           domain.Address
	OfferCode         string
	SelectedCourierID int64
	PaymentMethod     domain.PaymentMethod
}

// CreateSessionResult is a created checkout.
type CreateSessionResult struct {
	OrderID     string
	OrderNumber string
	// SessionURL is the hosted payment page. Empty for COD orders, which
	// skip the gateway entirely.
	SessionURL string
	TotalPaise int64
}

// Service creates priced checkouts.
type Service interface {
	// QuoteRates previews courier options, the effective shipping charge and
	// the reconciled totals for a destination without creating anything. It
	// runs the same pricing pass as CreateSession, so a preview and the order
	// it becomes always agree.
	QuoteRates(ctx context.Context, params RatesParams) (*RatesResult, error)

	// CreateSession prices the cart from canonical inputs, persists a
	// pending order and, for prepaid orders, opens a gateway session.
	CreateSession(ctx context.Context, params CreateSessionParams) (*CreateSessionResult, error)
}

type checkoutService struct {
	products  domain.ProductStore
	orders    domain.OrderStore
	offers    domain.OfferStore
	evaluator *offer.Evaluator
	carrier   shipping.Provider
	resolver  *shipping.Resolver
	billing   billing.Provider
	policy    Policy
	logger    *slog.Logger
}

// NewService creates the checkout service.
func NewService(
	products domain.ProductStore,
	orders domain.OrderStore,
	offers domain.OfferStore,
	evaluator *offer.Evaluator,
	carrier shipping.Provider,
	resolver *shipping.Resolver,
	billingProvider billing.Provider,
	policy Policy,
	logger *slog.Logger,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &checkoutService{
		products:  products,
		orders:    orders,
		offers:    offers,
		evaluator: evaluator,
		carrier:   carrier,
		resolver:  resolver,
		billing:   billingProvider,
		policy:    policy,
		logger:    logger,
	}
}

// pricingInputs are the canonical inputs one pricing pass works from.
type pricingInputs struct {
	Items             []ItemRef
	DeliveryPincode   string
	COD               bool
	SelectedCourierID int64
	OfferCode         string
	Now               time.Time
}

// pricedCart is the outcome of one pricing pass: snapshotted lines, carrier
// quotes, the resolved shipping charge and the reconciled totals.
type pricedCart struct {
	lines      []domain.CartLine
	quotes     []shipping.RateQuote
	effective  shipping.EffectiveShipping
	totals     Totals
	offer      *domain.Offer
	onShipping bool
}

// price runs the full pricing pass. The preview endpoint and session creation
// both go through here, so the total a customer saw is the total the order
// persists with given the same inputs.
func (s *checkoutService) price(ctx context.Context, op string, in pricingInputs) (*pricedCart, error) {
	lines, err := s.priceLines(ctx, in.Items)
	if err != nil {
		// A failed price lookup means the total cannot be trusted, so the
		// checkout hard-fails rather than guessing.
		return nil, domain.WrapError(err, domain.ErrorCode(err), op, domain.ErrorMessage(err))
	}
	subtotal := domain.Subtotal(lines)

	quotes := s.fetchQuotes(ctx, in.DeliveryPincode, lines, subtotal, in.COD)

	effective := s.resolver.Resolve(shipping.ResolveParams{
		SubtotalPaise:              subtotal,
		FreeShippingThresholdPaise: s.policy.FreeShippingThresholdPaise,
		Quotes:                     quotes,
		SelectedCourierID:          in.SelectedCourierID,
		FallbackFlatRatePaise:      s.policy.FlatRatePaise,
	})

	var (
		discount   int64
		offerRec   *domain.Offer
		onShipping bool
	)
	if in.OfferCode != "" {
		res, err := s.evaluator.Evaluate(ctx, offer.EvaluateParams{
			Code:                in.OfferCode,
			Lines:               lines,
			SubtotalPaise:       subtotal,
			ShippingBeforePaise: effective.ChargePaise,
			Now:                 in.Now,
		})
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, op, "Failed to evaluate offer")
		}
		if !res.Applicable {
			return nil, &domain.Error{Code: domain.EINVALID, Message: res.Reason, Op: op}
		}
		discount = res.DiscountPaise
		offerRec = res.Offer
		onShipping = res.AppliesToShipping
	}

	return &pricedCart{
		lines:      lines,
		quotes:     quotes,
		effective:  effective,
		totals:     Reconcile(lines, effective.ChargePaise, discount),
		offer:      offerRec,
		onShipping: onShipping,
	}, nil
}

func (s *checkoutService) QuoteRates(ctx context.Context, params RatesParams) (*RatesResult, error) {
	const op = "checkout.QuoteRates"

	priced, err := s.price(ctx, op, pricingInputs{
		Items:             params.Items,
		DeliveryPincode:   params.DeliveryPincode,
		COD:               params.COD,
		SelectedCourierID: params.SelectedCourierID,
		OfferCode:         params.OfferCode,
		Now:               time.Now(),
	})
	if err != nil {
		return nil, err
	}

	return &RatesResult{
		Quotes:    priced.quotes,
		Effective: priced.effective,
		Totals:    priced.totals,
	}, nil
}

func (s *checkoutService) CreateSession(ctx context.Context, params CreateSessionParams) (*CreateSessionResult, error) {
	const op = "checkout.CreateSession"
	now := time.Now()

	cod := params.PaymentMethod == domain.PaymentCOD
	priced, err := s.price(ctx, op, pricingInputs{
		Items:             params.Items,
		DeliveryPincode:   params.Address.Pincode,
		COD:               cod,
		SelectedCourierID: params.SelectedCourierID,
		OfferCode:         params.OfferCode,
		Now:               now,
	})
	if err != nil {
		return nil, err
	}

	appliedCode := ""
	if priced.offer != nil {
		appliedCode = priced.offer.Code
	}

	order := &domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     domain.NewOrderNumber(now),
		UserID:          params.UserID,
		Items:           priced.lines,
		SubtotalPaise:   priced.totals.SubtotalPaise,
		ShippingPaise:   priced.totals.ShippingPaise,
		DiscountPaise:   priced.totals.DiscountPaise,
		TotalPaise:      priced.totals.TotalPaise,
		OfferCode:       appliedCode,
		Status:          domain.OrderPending,
		PaymentStatus:   domain.PaymentPending,
		PaymentMethod:   params.PaymentMethod,
		ShippingAddress: params.Address,
		ShippingDetails: snapshotQuote(priced.quotes, priced.effective.ChosenCourierID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.insertWithFreshNumber(ctx, order, now); err != nil {
		return nil, domain.WrapError(err, domain.ErrorCode(err), op, "Failed to create order")
	}

	logger := s.logger.With(
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total_paise", order.TotalPaise,
		"payment_method", order.PaymentMethod,
	)

	if cod {
		logger.Info("cod order created")
		return &CreateSessionResult{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			TotalPaise:  order.TotalPaise,
		}, nil
	}

	sessionURL, err := s.openGatewaySession(ctx, order, priced.lines, priced.totals, priced.offer, priced.onShipping)
	if err != nil {
		logger.Error("gateway session creation failed", "error", err)
		return nil, domain.WrapError(err, domain.EPAYMENT, op, "Payment gateway is unavailable, please try again")
	}

	logger.Info("checkout session created")
	return &CreateSessionResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		SessionURL:  sessionURL,
		TotalPaise:  order.TotalPaise,
	}, nil
}

// insertWithFreshNumber persists the order, regenerating the order number on
// a same-day suffix collision. The number a customer sees is still assigned
// exactly once; only unpersisted candidates are replaced.
func (s *checkoutService) insertWithFreshNumber(ctx context.Context, order *domain.Order, now time.Time) error {
	for attempt := 1; ; attempt++ {
		err := s.orders.InsertOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) || attempt >= maxOrderNumberAttempts {
			return err
		}
		s.logger.Warn("order number collision, regenerating",
			"order_number", order.OrderNumber, "attempt", attempt)
		order.OrderNumber = domain.NewOrderNumber(now)
	}
}

// openGatewaySession builds the hosted payment page so its charge equals the
// reconciled total. Subtotal discounts become a provider-side coupon; a
// shipping discount just shrinks the shipping line.
func (s *checkoutService) openGatewaySession(
	ctx context.Context,
	order *domain.Order,
	lines []domain.CartLine,
	totals Totals,
	offerRec *domain.Offer,
	discountOnShipping bool,
) (string, error) {
	lineItems := make([]billing.LineItem, len(lines))
	gatewayTotal := int64(0)
	for i, line := range lines {
		lineItems[i] = billing.LineItem{
			Name:            line.Name,
			ImageURL:        line.ImageURL,
			UnitAmountPaise: line.UnitPricePaise,
			Quantity:        int64(line.Quantity),
		}
		gatewayTotal += line.LineTotal()
	}

	shippingLine := totals.ShippingPaise
	couponID := ""
	if totals.DiscountPaise > 0 {
		if discountOnShipping {
			shippingLine -= totals.DiscountPaise
		} else {
			id, err := s.ensureCoupon(ctx, offerRec, totals.DiscountPaise)
			if err != nil {
				return "", err
			}
			couponID = id
			gatewayTotal -= totals.DiscountPaise
		}
	}
	gatewayTotal += shippingLine

	// The page must charge exactly what was reconciled. A mismatch here is
	// an integrity bug, not a retryable condition.
	if gatewayTotal != totals.TotalPaise {
		return "", domain.ErrAmountMismatch
	}

	sess, err := s.billing.CreateCheckoutSession(ctx, billing.CheckoutSessionParams{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.ShippingAddress.Email,
		LineItems:     lineItems,
		ShippingPaise: shippingLine,
		CouponID:      couponID,
		SuccessURL:    s.policy.SuccessURL,
		CancelURL:     s.policy.CancelURL,
	})
	if err != nil {
		return "", err
	}

	if err := s.orders.SetCheckoutSessionID(ctx, order.ID, sess.ID); err != nil {
		return "", err
	}
	return sess.URL, nil
}

// ensureCoupon returns the offer's provider-side coupon, creating it lazily
// on first use. Fixed-discount offers reuse one coupon; percentage offers
// get a per-order coupon since the amount depends on the cart.
func (s *checkoutService) ensureCoupon(ctx context.Context, offerRec *domain.Offer, discountPaise int64) (string, error) {
	if offerRec.Type == domain.OfferFixed && offerRec.StripeCouponID != "" {
		return offerRec.StripeCouponID, nil
	}

	c, err := s.billing.CreateCoupon(ctx, billing.CouponParams{
		Name:           offerRec.Code,
		AmountOffPaise: discountPaise,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create gateway coupon: %w", err)
	}

	if offerRec.Type == domain.OfferFixed {
		if err := s.offers.SetOfferStripeCoupon(ctx, offerRec.ID, c.ID); err != nil {
			s.logger.Warn("failed to record gateway coupon on offer",
				"offer_id", offerRec.ID, "error", err)
		}
	}
	return c.ID, nil
}

// priceLines resolves client item refs against the catalog into priced,
// snapshotted order lines.
func (s *checkoutService) priceLines(ctx context.Context, items []ItemRef) ([]domain.CartLine, error) {
	if len(items) == 0 {
		return nil, &domain.Error{Code: domain.EINVALID, Message: "Cart is empty"}
	}

	lines := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, &domain.Error{Code: domain.EINVALID, Message: "Item quantity must be positive"}
		}
		product, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, &domain.Error{
				Code:    domain.EINVALID,
				Message: fmt.Sprintf("%s is no longer available", product.Name),
			}
		}
		lines = append(lines, domain.CartLine{
			ProductID:      product.ID,
			Name:           product.Name,
			Brand:          product.Brand,
			Category:       product.Category,
			UnitPricePaise: product.PricePaise,
			Quantity:       item.Quantity,
			WeightKg:       product.WeightKg,
			ImageURL:       product.ImageURL,
		})
	}
	return lines, nil
}

// fetchQuotes queries the carrier with a bounded timeout. Any failure is
// logged and degrades to an empty quote list so checkout is never blocked by
// an unreachable carrier.
func (s *checkoutService) fetchQuotes(ctx context.Context, deliveryPincode string, lines []domain.CartLine, subtotal int64, cod bool) []shipping.RateQuote {
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	quotes, err := s.carrier.GetRates(ctx, shipping.RateParams{
		PickupPincode:      s.policy.PickupPincode,
		DeliveryPincode:    deliveryPincode,
		WeightKg:           domain.TotalWeightKg(lines, s.policy.DefaultItemWeightKg),
		DeclaredValuePaise: subtotal,
		COD:                cod,
	})
	if err != nil {
		s.logger.Warn("carrier rate query failed, using fallback",
			"delivery_pincode", deliveryPincode,
			"error", err,
		)
		return nil
	}
	return quotes
}

// snapshotQuote freezes the chosen courier's quote onto the order.
func snapshotQuote(quotes []shipping.RateQuote, courierID int64) *domain.RateSnapshot {
	if courierID == 0 {
		return nil
	}
	for _, q := range quotes {
		if q.CourierID == courierID {
			return &domain.RateSnapshot{
				CourierID:         q.CourierID,
				CourierName:       q.CourierName,
				FreightPaise:      q.FreightPaise,
				CODPaise:          q.CODPaise,
				OtherPaise:        q.OtherPaise,
				TotalPaise:        q.TotalPaise,
				EstimatedDelivery: q.EstimatedDelivery,
			}
		}
	}
	return nil
}
