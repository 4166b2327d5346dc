// Package billing abstracts the payment gateway behind a provider interface.
package billing

import (
	"context"
)

// Provider defines the interface for payment processing.
// Implementations can use Stripe, Razorpay, etc.
type Provider interface {
	// CreateCheckoutSession creates a hosted payment page for an order.
	// Amounts are integer paise; the gateway line totals must equal the
	// reconciled order total.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)

	// GetPaymentIntent retrieves a payment intent so its status and amount
	// can be verified against the order before confirming.
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)

	// CreateCoupon creates a provider-side discount object so the hosted
	// page shows the same total the reconciler computed.
	CreateCoupon(ctx context.Context, params CouponParams) (*Coupon, error)

	// VerifyWebhookSignature verifies that a webhook request is authentic
	// and decodes it. Payload contents must never be trusted before this.
	VerifyWebhookSignature(payload []byte, signature string) (*WebhookEvent, error)
}

// LineItem is one priced line on the hosted payment page.
type LineItem struct {
	Name            string
	ImageURL        string
	UnitAmountPaise int64
	Quantity        int64
}

// CheckoutSessionParams contains parameters for creating a checkout session.
type CheckoutSessionParams struct {
	OrderID       string
	OrderNumber   string
	CustomerEmail string
	LineItems     []LineItem
	// ShippingPaise is added as its own line when positive.
	ShippingPaise int64
	// CouponID applies a provider-side coupon to the session.
	CouponID   string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a created hosted payment page.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentIntentStatus is the gateway-side status of a payment intent.
type PaymentIntentStatus string

const (
	PaymentIntentSucceeded PaymentIntentStatus = "succeeded"
)

// PaymentIntent is a retrieved payment intent.
type PaymentIntent struct {
	ID          string
	Status      PaymentIntentStatus
	AmountPaise int64
}

// CouponParams contains parameters for creating a one-off discount coupon.
type CouponParams struct {
	Name string
	// AmountOffPaise is the fixed amount the coupon takes off.
	AmountOffPaise int64
}

// Coupon is a created provider-side coupon.
type Coupon struct {
	ID string
}

// Webhook event types the order state machine reacts to.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
	EventPaymentIntentFailed      = "payment_intent.payment_failed"
)

// WebhookEvent is a signature-verified gateway event.
type WebhookEvent struct {
	ID   string
	Type string
	// ObjectID is the gateway object the event refers to, either a checkout
	// session ID or a payment intent ID depending on Type.
	ObjectID string
	// OrderID is the order the gateway object was created for, carried in
	// object metadata. Payment intent events can arrive before the order has
	// recorded the intent ID, so this is the only reliable correlation for
	// them.
	OrderID string
	// PaymentIntentID is set for checkout.session.completed events so the
	// order can record the intent behind the session.
	PaymentIntentID string
	// AmountPaise is the charged amount where the event carries one.
	AmountPaise int64
}
