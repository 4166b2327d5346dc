// Package order drives the order lifecycle: payment-driven confirmation,
// shipment, delivery and cancellation, with an audit trail for admin edits.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zariya-commerce/zariya/internal/billing"
	"github.com/zariya-commerce/zariya/internal/checkout"
	"github.com/zariya-commerce/zariya/internal/domain"
	"github.com/zariya-commerce/zariya/internal/email"
	"github.com/zariya-commerce/zariya/internal/realtime"
	"github.com/zariya-commerce/zariya/internal/shipping"
	"github.com/zariya-commerce/zariya/internal/telemetry"
)

// Actor identifies who performed an admin action, for the audit log.
type Actor struct {
	UserID string
	Name   string
	Email  string
}

// EditParams describe a pre-shipment admin edit. Nil fields are unchanged.
// Reason is mandatory whenever the edit affects the price.
type EditParams struct {
	OrderID       string
	Items         []checkout.ItemRef
	Address       *domain.Address
	ShippingPaise *int64
	DiscountPaise *int64
	Reason        string
	Actor         Actor
}

// Service is the order state machine. Every transition is guarded by a
// status precondition in the store, so duplicated webhooks and concurrent
// admin actions collapse into no-ops instead of corrupting state.
type Service interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)

	// ConfirmFromPayment confirms a pending order after a verified gateway
	// success signal. Idempotent with respect to webhook redelivery.
	ConfirmFromPayment(ctx context.Context, paymentRef, paymentIntentID string, amountPaise int64) error

	// ConfirmCOD confirms a pending cash-on-delivery order by admin action,
	// through the same guarded transition as gateway confirmation.
	ConfirmCOD(ctx context.Context, orderID string, actor Actor) error

	// FailPayment cancels a pending order after a gateway failure signal.
	// Failure events can reference a payment intent the order never recorded,
	// so orderID from the intent's metadata serves as a fallback lookup.
	FailPayment(ctx context.Context, paymentRef, orderID string) error

	// MarkShipped books a shipment with the carrier and transitions the
	// order, recording tracking details atomically with the transition.
	MarkShipped(ctx context.Context, orderID string, actor Actor) error

	// MarkDelivered closes out a shipped order.
	MarkDelivered(ctx context.Context, orderID string, actor Actor) error

	// Cancel cancels a pending or confirmed order and restores any stock
	// taken at confirmation.
	Cancel(ctx context.Context, orderID string, actor Actor, reason string) error

	// ExpirePending cancels a pending order whose payment never arrived.
	// Unlike Cancel it only transitions from pending, so it loses cleanly
	// to a concurrent confirmation.
	ExpirePending(ctx context.Context, orderID string) error

	// Edit applies a pre-shipment admin edit, recomputing totals from
	// canonical fields and appending an audit entry.
	Edit(ctx context.Context, params EditParams) (*domain.Order, error)

	// ResendEmail re-dispatches a notification. Without force, an already
	// sent email is a no-op.
	ResendEmail(ctx context.Context, orderID string, emailType domain.EmailType, force bool) error
}

// Policy holds the shipment-booking settings the state machine needs.
type Policy struct {
	PickupPincode       string
	DefaultItemWeightKg float64
	// FreeShippingThresholdPaise and FlatRatePaise mirror the checkout
	// policy so admin edits reprice shipping under the same rules.
	FreeShippingThresholdPaise int64
	FlatRatePaise              int64
}

type orderService struct {
	orders    domain.OrderStore
	products  domain.ProductStore
	stock     domain.StockStore
	billing   billing.Provider
	carrier   shipping.Provider
	emails    email.Service
	broadcast realtime.Publisher
	policy    Policy
	logger    *slog.Logger
}

// NewService creates the order service.
func NewService(
	orders domain.OrderStore,
	products domain.ProductStore,
	stock domain.StockStore,
	billingProvider billing.Provider,
	carrier shipping.Provider,
	emails email.Service,
	broadcast realtime.Publisher,
	policy Policy,
	logger *slog.Logger,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if broadcast == nil {
		broadcast = realtime.NoopPublisher{}
	}
	return &orderService{
		orders:    orders,
		products:  products,
		stock:     stock,
		billing:   billingProvider,
		carrier:   carrier,
		emails:    emails,
		broadcast: broadcast,
		policy:    policy,
		logger:    logger,
	}
}

func (s *orderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.GetOrder(ctx, id)
}

func (s *orderService) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.orders.GetOrderByNumber(ctx, orderNumber)
}

func (s *orderService) ConfirmFromPayment(ctx context.Context, paymentRef, paymentIntentID string, amountPaise int64) error {
	const op = "order.ConfirmFromPayment"

	order, err := s.orders.GetOrderByPaymentRef(ctx, paymentRef)
	if err != nil {
		return domain.WrapError(err, domain.ErrorCode(err), op, "Order not found for payment reference")
	}

	logger := s.logger.With("order_id", order.ID, "order_number", order.OrderNumber)

	if paymentIntentID != "" && order.PaymentIntentID == "" {
		if err := s.orders.SetPaymentIntentID(ctx, order.ID, paymentIntentID); err != nil {
			logger.Warn("failed to record payment intent id", "error", err)
		}
	}

	if err := s.verifyAmount(ctx, order, paymentIntentID, amountPaise); err != nil {
		logger.Error("charged amount disagrees with order total",
			"order_total_paise", order.TotalPaise,
			"charged_paise", amountPaise,
		)
		return err
	}

	return s.confirm(ctx, order, domain.PaymentCompleted, nil)
}

func (s *orderService) ConfirmCOD(ctx context.Context, orderID string, actor Actor) error {
	const op = "order.ConfirmCOD"

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentMethod != domain.PaymentCOD {
		return domain.Invalid(op, "Only cash-on-delivery orders can be confirmed manually")
	}

	// COD payment completes at the doorstep, not at confirmation.
	return s.confirm(ctx, order, "", &actor)
}

// confirm is the single confirmation path for gateway and COD orders.
// The guarded transition makes redelivered webhooks and double-clicked admin
// buttons no-ops.
func (s *orderService) confirm(ctx context.Context, order *domain.Order, paymentStatus domain.PaymentStatus, actor *Actor) error {
	now := time.Now()
	logger := s.logger.With("order_id", order.ID, "order_number", order.OrderNumber)

	transitioned, err := s.orders.TransitionStatus(ctx, domain.TransitionParams{
		OrderID:       order.ID,
		From:          []domain.OrderStatus{domain.OrderPending},
		To:            domain.OrderConfirmed,
		PaymentStatus: paymentStatus,
		ConfirmedAt:   &now,
	})
	if err != nil {
		return fmt.Errorf("failed to confirm order %s: %w", order.ID, err)
	}
	if !transitioned {
		logger.Info("confirmation skipped, order not pending", "status", order.Status)
		return nil
	}

	s.decrementStock(ctx, order)

	if actor != nil {
		s.audit(ctx, order.ID, *actor, "", []string{"status: pending -> confirmed"})
	}

	s.sendOnce(ctx, order.ID, domain.EmailOrderConfirmation)
	s.publishStatus(ctx, order, domain.OrderConfirmed)

	if telemetry.Business != nil {
		telemetry.Business.OrdersConfirmed.WithLabelValues(string(order.PaymentMethod)).Inc()
	}

	logger.Info("order confirmed")
	return nil
}

// verifyAmount checks the gateway charge against the order total, consulting
// the payment intent when the event amount is absent. A mismatch is an
// integrity violation and blocks confirmation.
func (s *orderService) verifyAmount(ctx context.Context, order *domain.Order, paymentIntentID string, amountPaise int64) error {
	if amountPaise == 0 && paymentIntentID != "" {
		intent, err := s.billing.GetPaymentIntent(ctx, paymentIntentID)
		if err != nil {
			return domain.WrapError(err, domain.EPAYMENT, "order.verifyAmount", "Could not verify payment")
		}
		if intent.Status != billing.PaymentIntentSucceeded {
			return domain.ErrPaymentNotSucceeded
		}
		amountPaise = intent.AmountPaise
	}

	if amountPaise != order.TotalPaise {
		return domain.ErrAmountMismatch
	}
	return nil
}

// decrementStock takes stock for each line. A line that cannot be taken is
// restored-around and flagged in the audit log; the order stays confirmed
// since the customer has already paid.
func (s *orderService) decrementStock(ctx context.Context, order *domain.Order) {
	taken := make([]domain.CartLine, 0, len(order.Items))
	for _, item := range order.Items {
		ok, err := s.stock.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil || !ok {
			s.logger.Error("stock decrement failed",
				"order_id", order.ID,
				"product_id", item.ProductID,
				"quantity", item.Quantity,
				"error", err,
			)
			for _, t := range taken {
				if rerr := s.stock.RestoreStock(ctx, t.ProductID, t.Quantity); rerr != nil {
					s.logger.Error("stock restore failed", "product_id", t.ProductID, "error", rerr)
				}
			}
			s.audit(ctx, order.ID, Actor{Name: "system"}, "insufficient stock at confirmation",
				[]string{fmt.Sprintf("stock shortfall: %s x%d", item.ProductID, item.Quantity)})
			return
		}
		taken = append(taken, item)
	}

	if err := s.orders.SetStockDecremented(ctx, order.ID, true); err != nil {
		s.logger.Error("failed to mark stock decremented", "order_id", order.ID, "error", err)
	}
}

func (s *orderService) FailPayment(ctx context.Context, paymentRef, orderID string) error {
	const op = "order.FailPayment"

	order, err := s.orders.GetOrderByPaymentRef(ctx, paymentRef)
	if errors.Is(err, domain.ErrOrderNotFound) && orderID != "" {
		// The intent ID is only recorded on a success signal, so a failed
		// intent usually matches nothing; its metadata names the order.
		order, err = s.orders.GetOrder(ctx, orderID)
	}
	if err != nil {
		return domain.WrapError(err, domain.ErrorCode(err), op, "Order not found for payment reference")
	}

	now := time.Now()
	transitioned, err := s.orders.TransitionStatus(ctx, domain.TransitionParams{
		OrderID:       order.ID,
		From:          []domain.OrderStatus{domain.OrderPending},
		To:            domain.OrderCancelled,
		PaymentStatus: domain.PaymentFailed,
		CancelledAt:   &now,
	})
	if err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", order.ID, err)
	}
	if !transitioned {
		// A success signal may have won the race; never un-confirm.
		s.logger.Info("payment failure ignored, order not pending",
			"order_id", order.ID, "status", order.Status)
		return nil
	}

	s.publishStatus(ctx, order, domain.OrderCancelled)

	if telemetry.Business != nil {
		telemetry.Business.OrdersCancelled.WithLabelValues("payment_failed").Inc()
	}

	s.logger.Info("order cancelled after payment failure", "order_id", order.ID)
	return nil
}

func (s *orderService) MarkShipped(ctx context.Context, orderID string, actor Actor) error {
	const op = "order.MarkShipped"

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderConfirmed {
		return domain.ErrInvalidTransition
	}

	shipment, err := s.carrier.CreateShipment(ctx, s.shipmentParams(order))
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "Failed to book shipment with carrier")
	}

	transitioned, err := s.orders.TransitionStatus(ctx, domain.TransitionParams{
		OrderID:        order.ID,
		From:           []domain.OrderStatus{domain.OrderConfirmed},
		To:             domain.OrderShipped,
		TrackingNumber: shipment.AWBCode,
		Courier:        shipment.CourierName,
	})
	if err != nil {
		return fmt.Errorf("failed to mark order %s shipped: %w", order.ID, err)
	}
	if !transitioned {
		return domain.ErrInvalidTransition
	}

	order.TrackingNumber = shipment.AWBCode
	order.Courier = shipment.CourierName

	s.audit(ctx, order.ID, actor, "", []string{
		"status: confirmed -> shipped",
		"tracking: " + shipment.AWBCode,
		"courier: " + shipment.CourierName,
	})
	s.sendOnce(ctx, order.ID, domain.EmailOrderShipped)
	s.publishStatus(ctx, order, domain.OrderShipped)

	if telemetry.Business != nil {
		telemetry.Business.OrdersShipped.Inc()
	}

	s.logger.Info("order shipped",
		"order_id", order.ID,
		"awb_code", shipment.AWBCode,
		"courier", shipment.CourierName,
	)
	return nil
}

func (s *orderService) MarkDelivered(ctx context.Context, orderID string, actor Actor) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	params := domain.TransitionParams{
		OrderID: orderID,
		From:    []domain.OrderStatus{domain.OrderShipped},
		To:      domain.OrderDelivered,
	}
	// COD collects at the doorstep, so delivery completes the payment.
	if order.PaymentMethod == domain.PaymentCOD {
		params.PaymentStatus = domain.PaymentCompleted
	}

	transitioned, err := s.orders.TransitionStatus(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to mark order %s delivered: %w", orderID, err)
	}
	if !transitioned {
		return domain.ErrInvalidTransition
	}

	s.audit(ctx, orderID, actor, "", []string{"status: shipped -> delivered"})
	s.publishStatus(ctx, order, domain.OrderDelivered)
	return nil
}

func (s *orderService) Cancel(ctx context.Context, orderID string, actor Actor, reason string) error {
	const op = "order.Cancel"

	if reason == "" {
		return domain.ErrReasonRequired
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	now := time.Now()
	transitioned, err := s.orders.TransitionStatus(ctx, domain.TransitionParams{
		OrderID:     orderID,
		From:        []domain.OrderStatus{domain.OrderPending, domain.OrderConfirmed},
		To:          domain.OrderCancelled,
		CancelledAt: &now,
	})
	if err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	if !transitioned {
		return domain.ErrInvalidTransition
	}

	// Compensate the confirmation-time stock decrement.
	if order.StockDecremented {
		for _, item := range order.Items {
			if err := s.stock.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				s.logger.Error("stock restore failed",
					"order_id", orderID,
					"product_id", item.ProductID,
					"error", err,
				)
			}
		}
		if err := s.orders.SetStockDecremented(ctx, orderID, false); err != nil {
			s.logger.Error("failed to clear stock marker", "order_id", orderID, "error", err)
		}
	}

	s.audit(ctx, orderID, actor, reason, []string{"status: " + string(order.Status) + " -> cancelled"})
	s.publishStatus(ctx, order, domain.OrderCancelled)

	if telemetry.Business != nil {
		telemetry.Business.OrdersCancelled.WithLabelValues("admin").Inc()
	}

	s.logger.Info("order cancelled", "order_id", orderID, "reason", reason)
	return nil
}

func (s *orderService) ExpirePending(ctx context.Context, orderID string) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	now := time.Now()
	transitioned, err := s.orders.TransitionStatus(ctx, domain.TransitionParams{
		OrderID:     orderID,
		From:        []domain.OrderStatus{domain.OrderPending},
		To:          domain.OrderCancelled,
		CancelledAt: &now,
	})
	if err != nil {
		return fmt.Errorf("failed to expire order %s: %w", orderID, err)
	}
	if !transitioned {
		return domain.ErrInvalidTransition
	}

	s.audit(ctx, orderID, Actor{Name: "system"}, "payment not completed in time",
		[]string{"status: pending -> cancelled"})
	s.publishStatus(ctx, order, domain.OrderCancelled)

	if telemetry.Business != nil {
		telemetry.Business.OrdersCancelled.WithLabelValues("expired").Inc()
	}

	s.logger.Info("pending order expired", "order_id", orderID)
	return nil
}

func (s *orderService) Edit(ctx context.Context, params EditParams) (*domain.Order, error) {
	const op = "order.Edit"

	order, err := s.orders.GetOrder(ctx, params.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderPending && order.Status != domain.OrderConfirmed {
		return nil, domain.Conflict(op, "Only pre-shipment orders can be edited")
	}

	priceAffecting := len(params.Items) > 0 || params.ShippingPaise != nil || params.DiscountPaise != nil
	if priceAffecting && params.Reason == "" {
		return nil, domain.ErrReasonRequired
	}

	changes := []string{}

	items := order.Items
	if len(params.Items) > 0 {
		items, err = s.priceLines(ctx, params.Items)
		if err != nil {
			return nil, domain.WrapError(err, domain.ErrorCode(err), op, domain.ErrorMessage(err))
		}
		changes = append(changes, fmt.Sprintf("items: %d -> %d lines", len(order.Items), len(items)))
	}

	shippingPaise := order.ShippingPaise
	if params.ShippingPaise != nil {
		if *params.ShippingPaise < 0 {
			return nil, domain.Invalid(op, "Shipping cannot be negative")
		}
		shippingPaise = *params.ShippingPaise
		changes = append(changes, fmt.Sprintf("shipping: %d -> %d", order.ShippingPaise, shippingPaise))
	}

	discountPaise := order.DiscountPaise
	if params.DiscountPaise != nil {
		if *params.DiscountPaise < 0 {
			return nil, domain.Invalid(op, "Discount cannot be negative")
		}
		discountPaise = *params.DiscountPaise
		changes = append(changes, fmt.Sprintf("discount: %d -> %d", order.DiscountPaise, discountPaise))
	}

	var address *domain.Address
	if params.Address != nil {
		address = params.Address
		changes = append(changes, "shipping address updated")
	}

	if len(changes) == 0 {
		return order, nil
	}

	// Totals always come from the canonical fields, never from a client
	// snapshot, so a concurrent webhook transition cannot be clobbered by
	// stale numbers.
	totals := checkout.Reconcile(items, shippingPaise, discountPaise)

	if err := s.orders.UpdatePricing(ctx, domain.PricingUpdate{
		OrderID:       order.ID,
		Items:         items,
		SubtotalPaise: totals.SubtotalPaise,
		ShippingPaise: totals.ShippingPaise,
		DiscountPaise: totals.DiscountPaise,
		TotalPaise:    totals.TotalPaise,
		Address:       address,
	}); err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", order.ID, err)
	}

	s.audit(ctx, order.ID, params.Actor, params.Reason, changes)

	return s.orders.GetOrder(ctx, order.ID)
}

func (s *orderService) ResendEmail(ctx context.Context, orderID string, emailType domain.EmailType, force bool) error {
	const op = "order.ResendEmail"

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	switch emailType {
	case domain.EmailOrderConfirmation, domain.EmailOrderShipped:
	default:
		return domain.Invalid(op, "Unknown email type")
	}

	if !force {
		first, err := s.orders.MarkEmailSent(ctx, orderID, emailType)
		if err != nil {
			return fmt.Errorf("failed to claim email send: %w", err)
		}
		if !first {
			s.logger.Info("email already sent, skipping",
				"order_id", orderID, "email_type", emailType)
			return nil
		}
	}

	return s.dispatch(ctx, order, emailType)
}

// sendOnce claims the send-once flag and dispatches the notification.
// Dispatch failures are logged, never propagated; the transition that
// triggered the email must stand.
func (s *orderService) sendOnce(ctx context.Context, orderID string, emailType domain.EmailType) {
	first, err := s.orders.MarkEmailSent(ctx, orderID, emailType)
	if err != nil {
		s.logger.Error("failed to claim email send",
			"order_id", orderID, "email_type", emailType, "error", err)
		return
	}
	if !first {
		return
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("failed to load order for email",
			"order_id", orderID, "error", err)
		return
	}

	if err := s.dispatch(ctx, order, emailType); err != nil {
		s.logger.Error("email dispatch failed",
			"order_id", orderID, "email_type", emailType, "error", err)
	}
}

func (s *orderService) dispatch(ctx context.Context, order *domain.Order, emailType domain.EmailType) error {
	switch emailType {
	case domain.EmailOrderConfirmation:
		return s.emails.SendOrderConfirmation(ctx, order)
	case domain.EmailOrderShipped:
		return s.emails.SendOrderShipped(ctx, order)
	}
	return nil
}

func (s *orderService) audit(ctx context.Context, orderID string, actor Actor, reason string, changes []string) {
	entry := domain.AuditEntry{
		ByUserID: actor.UserID,
		ByName:   actor.Name,
		ByEmail:  actor.Email,
		At:       time.Now(),
		Reason:   reason,
		Changes:  changes,
	}
	if err := s.orders.AppendAudit(ctx, orderID, entry); err != nil {
		s.logger.Error("failed to append audit entry",
			"order_id", orderID, "error", err)
	}
}

func (s *orderService) publishStatus(ctx context.Context, order *domain.Order, status domain.OrderStatus) {
	err := s.broadcast.PublishOrderStatus(ctx, realtime.StatusEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(status),
		At:          time.Now(),
	})
	if err != nil {
		s.logger.Warn("status broadcast failed", "order_id", order.ID, "error", err)
	}
}

func (s *orderService) shipmentParams(order *domain.Order) shipping.ShipmentParams {
	items := make([]shipping.ShipmentItem, len(order.Items))
	for i, line := range order.Items {
		items[i] = shipping.ShipmentItem{
			Name:           line.Name,
			SKU:            line.ProductID,
			Quantity:       line.Quantity,
			UnitPricePaise: line.UnitPricePaise,
		}
	}

	var courierID int64
	if order.ShippingDetails != nil {
		courierID = order.ShippingDetails.CourierID
	}

	collectable := int64(0)
	if order.PaymentMethod == domain.PaymentCOD {
		collectable = order.TotalPaise
	}

	addr := order.ShippingAddress
	return shipping.ShipmentParams{
		OrderNumber:      order.OrderNumber,
		CourierID:        courierID,
		PickupPincode:    s.policy.PickupPincode,
		DeliveryName:     addr.FullName,
		DeliveryPhone:    addr.Phone,
		DeliveryEmail:    addr.Email,
		DeliveryLine1:    addr.Line1,
		DeliveryLine2:    addr.Line2,
		DeliveryCity:     addr.City,
		DeliveryState:    addr.State,
		DeliveryPincode:  addr.Pincode,
		Items:            items,
		WeightKg:         domain.TotalWeightKg(order.Items, s.policy.DefaultItemWeightKg),
		COD:              order.PaymentMethod == domain.PaymentCOD,
		CollectablePaise: collectable,
	}
}

// priceLines reprices edited items from the catalog, mirroring checkout.
func (s *orderService) priceLines(ctx context.Context, items []checkout.ItemRef) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, domain.Invalid("order.priceLines", "Item quantity must be positive")
		}
		product, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
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
