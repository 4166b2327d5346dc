package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/coupon"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider using Stripe Checkout.
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider creates a new Stripe billing provider.
// The API key is set process-wide as the SDK expects.
func NewStripeProvider(apiKey, webhookSecret string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{webhookSecret: webhookSecret}
}

// CreateCheckoutSession creates a hosted Stripe Checkout page in INR.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.LineItems)+1)
	for _, item := range params.LineItems {
		priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(string(stripe.CurrencyINR)),
			UnitAmount: stripe.Int64(item.UnitAmountPaise),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(item.Name),
			},
		}
		if item.ImageURL != "" {
			priceData.ProductData.Images = stripe.StringSlice([]string{item.ImageURL})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: priceData,
			Quantity:  stripe.Int64(item.Quantity),
		})
	}

	if params.ShippingPaise > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyINR)),
				UnitAmount: stripe.Int64(params.ShippingPaise),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Shipping"),
				},
			},
			Quantity: stripe.Int64(1),
		})
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:     lineItems,
		SuccessURL:    stripe.String(params.SuccessURL),
		CancelURL:     stripe.String(params.CancelURL),
		CustomerEmail: stripe.String(params.CustomerEmail),
	}
	sessionParams.Context = ctx
	sessionParams.AddMetadata("order_id", params.OrderID)
	sessionParams.AddMetadata("order_number", params.OrderNumber)

	// The session's payment intent carries the order id too, so intent
	// events can be correlated before the order learns the intent ID.
	sessionParams.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
		Metadata: map[string]string{
			"order_id":     params.OrderID,
			"order_number": params.OrderNumber,
		},
	}

	if params.CouponID != "" {
		sessionParams.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(params.CouponID)},
		}
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// GetPaymentIntent retrieves a payment intent from Stripe.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}

	return &PaymentIntent{
		ID:          pi.ID,
		Status:      PaymentIntentStatus(pi.Status),
		AmountPaise: pi.Amount,
	}, nil
}

// CreateCoupon creates a single-use fixed-amount coupon.
func (s *StripeProvider) CreateCoupon(ctx context.Context, params CouponParams) (*Coupon, error) {
	couponParams := &stripe.CouponParams{
		Name:      stripe.String(params.Name),
		AmountOff: stripe.Int64(params.AmountOffPaise),
		Currency:  stripe.String(string(stripe.CurrencyINR)),
		Duration:  stripe.String(string(stripe.CouponDurationOnce)),
	}
	couponParams.Context = ctx

	c, err := coupon.New(couponParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	return &Coupon{ID: c.ID}, nil
}

// VerifyWebhookSignature verifies and decodes a Stripe webhook event.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session event: %w", err)
		}
		out.ObjectID = sess.ID
		out.OrderID = sess.Metadata["order_id"]
		out.AmountPaise = sess.AmountTotal
		if sess.PaymentIntent != nil {
			out.PaymentIntentID = sess.PaymentIntent.ID
		}

	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to parse payment intent event: %w", err)
		}
		out.ObjectID = pi.ID
		out.PaymentIntentID = pi.ID
		out.OrderID = pi.Metadata["order_id"]
		out.AmountPaise = pi.Amount
	}

	return out, nil
}
