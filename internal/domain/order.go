package domain

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

// Order-related domain errors.
var (
	ErrOrderNotFound           = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrPaymentNotSucceeded     = &Error{Code: EPAYMENT, Message: "Payment has not succeeded"}
	ErrPaymentAlreadyProcessed = &Error{Code: ECONFLICT, Message: "Payment already processed"}
	ErrInsufficientStock       = &Error{Code: ECONFLICT, Message: "Insufficient stock for one or more items"}
	ErrInvalidTransition       = &Error{Code: ECONFLICT, Message: "Order status does not allow this transition"}
	ErrAmountMismatch          = &Error{Code: EINTERNAL, Message: "Recomputed order total disagrees with charged amount"}
	ErrReasonRequired          = &Error{Code: EINVALID, Message: "A reason is required for price-affecting edits"}
	ErrDuplicateOrderNumber    = &Error{Code: ECONFLICT, Message: "Order number already exists"}
)

// OrderStatus is the fulfillment lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// PaymentStatus tracks the gateway-side outcome independently of fulfillment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentMethod selects the checkout flow. COD orders never touch the gateway.
type PaymentMethod string

const (
	PaymentPrepaid PaymentMethod = "prepaid"
	PaymentCOD     PaymentMethod = "cod"
)

// EmailType identifies a customer notification for send-once guarding.
type EmailType string

const (
	EmailOrderConfirmation EmailType = "confirmation"
	EmailOrderShipped      EmailType = "shipped"
)

// Address is a shipping destination, snapshotted onto the order at creation.
type Address struct {
	FullName string
	Phone    string
	Email    string
	Line1    string
	Line2    string
	City     string
	State    string
	Pincode  string
}

// RateSnapshot freezes the carrier quote an order was priced with.
type RateSnapshot struct {
	CourierID         int64
	CourierName       string
	FreightPaise      int64
	CODPaise          int64
	OtherPaise        int64
	TotalPaise        int64
	EstimatedDelivery string
}

// AuditEntry records one admin-initiated change to an order.
// The audit log is append-only; entries are never mutated or deleted.
type AuditEntry struct {
	ByUserID string
	ByName   string
	ByEmail  string
	At       time.Time
	Reason   string
	Changes  []string
}

// Order is the persisted record of a checkout.
// Items are a snapshot of the cart at order time, not live references.
// Shipping holds the pre-discount carrier/threshold charge; any shipping
// discount is tracked in DiscountPaise so the original cost stays auditable.
type Order struct {
	ID          string
	OrderNumber string
	UserID      string

	Items []CartLine

	SubtotalPaise int64
	ShippingPaise int64
	DiscountPaise int64
	TotalPaise    int64
	OfferCode     string

	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod

	// Gateway references for webhook correlation.
	CheckoutSessionID string
	PaymentIntentID   string

	ShippingAddress Address
	ShippingDetails *RateSnapshot
	TrackingNumber  string
	Courier         string

	ConfirmationEmailSent bool
	ShippingEmailSent     bool

	// StockDecremented records whether confirmation took stock, so
	// cancellation knows whether a compensating restore is owed.
	StockDecremented bool

	ConfirmedAt *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	AuditLog []AuditEntry
}

// orderNumberAlphabet excludes ambiguous characters (0/O, 1/I/L).
const orderNumberAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// NewOrderNumber generates an order number of the form ZRY-20250129-A3K9.
// Assigned exactly once at order creation and never regenerated.
func NewOrderNumber(now time.Time) string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = orderNumberAlphabet[int(b[i])%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("ZRY-%s-%s", now.Format("20060102"), string(b))
}

// TransitionParams is a status-precondition-guarded order update. The store
// applies it only when the current status is in From, so concurrent webhook
// and admin writes cannot interleave destructively.
type TransitionParams struct {
	OrderID string
	From    []OrderStatus
	To      OrderStatus

	PaymentStatus  PaymentStatus // empty = leave unchanged
	ConfirmedAt    *time.Time
	CancelledAt    *time.Time
	TrackingNumber string
	Courier        string
}

// PricingUpdate rewrites an order's priced fields after an admin edit.
// Totals are recomputed by the caller from canonical inputs before persisting.
type PricingUpdate struct {
	OrderID       string
	Items         []CartLine
	SubtotalPaise int64
	ShippingPaise int64
	DiscountPaise int64
	TotalPaise    int64
	Address       *Address
}

// OrderStore provides persistence for orders.
type OrderStore interface {
	InsertOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error)

	// GetOrderByPaymentRef resolves an order from either its checkout session
	// ID or its payment intent ID. Returns ErrOrderNotFound when no order
	// carries the reference.
	GetOrderByPaymentRef(ctx context.Context, ref string) (*Order, error)

	// TransitionStatus applies a guarded status transition. Returns false
	// without error when the precondition did not hold (zero rows updated).
	TransitionStatus(ctx context.Context, params TransitionParams) (bool, error)

	// MarkEmailSent flips the send-once flag for the given email type.
	// Returns false when the flag was already set, so webhook retries and
	// duplicate dispatch attempts turn into no-ops.
	MarkEmailSent(ctx context.Context, orderID string, emailType EmailType) (bool, error)

	// AppendAudit appends an entry to the order's append-only audit log.
	AppendAudit(ctx context.Context, orderID string, entry AuditEntry) error

	// UpdatePricing rewrites the priced fields for pre-shipment admin edits.
	UpdatePricing(ctx context.Context, update PricingUpdate) error

	// SetStockDecremented flips the stock-taken marker used to pair the
	// confirm-time decrement with the cancel-time restore.
	SetStockDecremented(ctx context.Context, orderID string, decremented bool) error

	// SetCheckoutSessionID records the gateway session created for the order.
	SetCheckoutSessionID(ctx context.Context, orderID, sessionID string) error

	// SetPaymentIntentID records the intent ID once the gateway reports it.
	SetPaymentIntentID(ctx context.Context, orderID, paymentIntentID string) error
}

// StockStore tracks per-product inventory.
type StockStore interface {
	// DecrementStock atomically reduces stock if at least qty is available.
	// Returns false when stock was insufficient (zero rows updated).
	DecrementStock(ctx context.Context, productID string, qty int32) (bool, error)

	// RestoreStock adds qty back, compensating a confirmed order's decrement
	// when the order is cancelled.
	RestoreStock(ctx context.Context, productID string, qty int32) error
}
