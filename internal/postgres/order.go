package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zariya-commerce/zariya/internal/domain"
)

const uniqueViolation = "23505"

// OrderStore implements domain.OrderStore using PostgreSQL.
// Items, the shipping snapshot, the address and the audit log live in JSONB
// columns; everything transitions are guarded on is a plain column.
type OrderStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a PostgreSQL-backed order store.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
	id, order_number, user_id, items, subtotal_paise, shipping_paise,
	discount_paise, total_paise, offer_code, status, payment_status,
	payment_method, checkout_session_id, payment_intent_id, shipping_address,
	shipping_details, tracking_number, courier, confirmation_email_sent,
	shipping_email_sent, stock_decremented, confirmed_at, cancelled_at,
	created_at, updated_at, audit_log`

func (s *OrderStore) InsertOrder(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}
	var details []byte
	if order.ShippingDetails != nil {
		details, err = json.Marshal(order.ShippingDetails)
		if err != nil {
			return fmt.Errorf("failed to encode shipping details: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, items, subtotal_paise, shipping_paise,
			discount_paise, total_paise, offer_code, status, payment_status,
			payment_method, shipping_address, shipping_details, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		order.ID, order.OrderNumber, order.UserID, items,
		order.SubtotalPaise, order.ShippingPaise, order.DiscountPaise, order.TotalPaise,
		order.OfferCode, order.Status, order.PaymentStatus, order.PaymentMethod,
		address, details, order.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateOrderNumber
		}
		return domain.Internal(err, "order.insert", "failed to insert order")
	}
	return nil
}

func (s *OrderStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrder(ctx, "WHERE id = $1", id)
}

func (s *OrderStore) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.getOrder(ctx, "WHERE order_number = $1", orderNumber)
}

func (s *OrderStore) GetOrderByPaymentRef(ctx context.Context, ref string) (*domain.Order, error) {
	return s.getOrder(ctx, "WHERE checkout_session_id = $1 OR payment_intent_id = $1", ref)
}

func (s *OrderStore) getOrder(ctx context.Context, where string, arg any) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders "+where, arg)

	var (
		order    domain.Order
		items    []byte
		address  []byte
		details  []byte
		auditLog []byte
	)
	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &items,
		&order.SubtotalPaise, &order.ShippingPaise, &order.DiscountPaise, &order.TotalPaise,
		&order.OfferCode, &order.Status, &order.PaymentStatus, &order.PaymentMethod,
		&order.CheckoutSessionID, &order.PaymentIntentID, &address, &details,
		&order.TrackingNumber, &order.Courier,
		&order.ConfirmationEmailSent, &order.ShippingEmailSent, &order.StockDecremented,
		&order.ConfirmedAt, &order.CancelledAt, &order.CreatedAt, &order.UpdatedAt,
		&auditLog,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.get", "failed to load order")
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, domain.Internal(err, "order.get", "failed to decode order items")
	}
	if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
		return nil, domain.Internal(err, "order.get", "failed to decode shipping address")
	}
	if len(details) > 0 {
		order.ShippingDetails = &domain.RateSnapshot{}
		if err := json.Unmarshal(details, order.ShippingDetails); err != nil {
			return nil, domain.Internal(err, "order.get", "failed to decode shipping details")
		}
	}
	if len(auditLog) > 0 {
		if err := json.Unmarshal(auditLog, &order.AuditLog); err != nil {
			return nil, domain.Internal(err, "order.get", "failed to decode audit log")
		}
	}

	return &order, nil
}

// TransitionStatus applies a guarded status transition in one statement.
// Zero rows updated means the precondition did not hold.
func (s *OrderStore) TransitionStatus(ctx context.Context, params domain.TransitionParams) (bool, error) {
	from := make([]string, len(params.From))
	for i, st := range params.From {
		from[i] = string(st)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			status = $2,
			payment_status = COALESCE(NULLIF($3, ''), payment_status),
			confirmed_at = COALESCE($4, confirmed_at),
			cancelled_at = COALESCE($5, cancelled_at),
			tracking_number = CASE WHEN $6 <> '' THEN $6 ELSE tracking_number END,
			courier = CASE WHEN $7 <> '' THEN $7 ELSE courier END,
			updated_at = now()
		WHERE id = $1 AND status = ANY($8)`,
		params.OrderID, params.To, string(params.PaymentStatus),
		params.ConfirmedAt, params.CancelledAt,
		params.TrackingNumber, params.Courier, from,
	)
	if err != nil {
		return false, domain.Internal(err, "order.transition", "failed to transition order status")
	}
	return tag.RowsAffected() > 0, nil
}

// MarkEmailSent flips the send-once flag; zero rows means it was already set.
func (s *OrderStore) MarkEmailSent(ctx context.Context, orderID string, emailType domain.EmailType) (bool, error) {
	var column string
	switch emailType {
	case domain.EmailOrderConfirmation:
		column = "confirmation_email_sent"
	case domain.EmailOrderShipped:
		column = "shipping_email_sent"
	default:
		return false, domain.Invalid("order.mark_email", "unknown email type")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET `+column+` = true, updated_at = now()
		 WHERE id = $1 AND `+column+` = false`,
		orderID,
	)
	if err != nil {
		return false, domain.Internal(err, "order.mark_email", "failed to mark email sent")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *OrderStore) AppendAudit(ctx context.Context, orderID string, entry domain.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			audit_log = audit_log || $2::jsonb,
			updated_at = now()
		WHERE id = $1`,
		orderID, payload,
	)
	if err != nil {
		return domain.Internal(err, "order.audit", "failed to append audit entry")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *OrderStore) UpdatePricing(ctx context.Context, update domain.PricingUpdate) error {
	items, err := json.Marshal(update.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}
	var address []byte
	if update.Address != nil {
		address, err = json.Marshal(update.Address)
		if err != nil {
			return fmt.Errorf("failed to encode shipping address: %w", err)
		}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			items = $2,
			subtotal_paise = $3,
			shipping_paise = $4,
			discount_paise = $5,
			total_paise = $6,
			shipping_address = COALESCE($7, shipping_address),
			updated_at = now()
		WHERE id = $1`,
		update.OrderID, items,
		update.SubtotalPaise, update.ShippingPaise, update.DiscountPaise, update.TotalPaise,
		address,
	)
	if err != nil {
		return domain.Internal(err, "order.update_pricing", "failed to update order pricing")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// ListStalePendingOrderIDs returns prepaid orders still pending after the
// cutoff, oldest first. Used by the expiry worker to reclaim orders whose
// payment never arrived.
func (s *OrderStore) ListStalePendingOrderIDs(ctx context.Context, before time.Time, limit int32) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM orders
		WHERE status = 'pending' AND payment_method = 'prepaid' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, domain.Internal(err, "order.listStale", "failed to list stale orders")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.Internal(err, "order.listStale", "failed to scan order id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.listStale", "failed to read stale orders")
	}
	return ids, nil
}

func (s *OrderStore) SetStockDecremented(ctx context.Context, orderID string, decremented bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE orders SET stock_decremented = $2, updated_at = now() WHERE id = $1`,
		orderID, decremented,
	)
	if err != nil {
		return domain.Internal(err, "order.stock_marker", "failed to set stock marker")
	}
	return nil
}

func (s *OrderStore) SetCheckoutSessionID(ctx context.Context, orderID, sessionID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE orders SET checkout_session_id = $2, updated_at = now() WHERE id = $1`,
		orderID, sessionID,
	)
	if err != nil {
		return domain.Internal(err, "order.session_id", "failed to set checkout session id")
	}
	return nil
}

func (s *OrderStore) SetPaymentIntentID(ctx context.Context, orderID, paymentIntentID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE orders SET payment_intent_id = $2, updated_at = now() WHERE id = $1`,
		orderID, paymentIntentID,
	)
	if err != nil {
		return domain.Internal(err, "order.intent_id", "failed to set payment intent id")
	}
	return nil
}
