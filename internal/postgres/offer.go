package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zariya-commerce/zariya/internal/domain"
)

// OfferStore implements domain.OfferStore using PostgreSQL.
type OfferStore struct {
	pool *pgxpool.Pool
}

var _ domain.OfferStore = (*OfferStore)(nil)

// NewOfferStore creates a PostgreSQL-backed offer store.
func NewOfferStore(pool *pgxpool.Pool) *OfferStore {
	return &OfferStore{pool: pool}
}

func (s *OfferStore) GetOfferByCode(ctx context.Context, code string) (*domain.Offer, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, code, type, min_amount_paise, value,
		       scope_categories, scope_brands, scope_products,
		       valid_from, valid_to, is_active, stripe_coupon_id
		FROM offers
		WHERE upper(code) = upper($1)`,
		code,
	)

	var offer domain.Offer
	err := row.Scan(
		&offer.ID, &offer.Code, &offer.Type, &offer.MinAmountPaise, &offer.Value,
		&offer.ScopeCategories, &offer.ScopeBrands, &offer.ScopeProducts,
		&offer.ValidFrom, &offer.ValidTo, &offer.IsActive, &offer.StripeCouponID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOfferNotFound
		}
		return nil, domain.Internal(err, "offer.get", "failed to load offer")
	}
	return &offer, nil
}

func (s *OfferStore) SetOfferStripeCoupon(ctx context.Context, offerID, couponID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE offers SET stripe_coupon_id = $2, updated_at = now() WHERE id = $1`,
		offerID, couponID,
	)
	if err != nil {
		return domain.Internal(err, "offer.set_coupon", "failed to record gateway coupon")
	}
	return nil
}
