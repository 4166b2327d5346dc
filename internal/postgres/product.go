package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zariya-commerce/zariya/internal/domain"
)

// ProductStore implements domain.ProductStore and domain.StockStore.
// Stock lives on the product row; the decrement is a single guarded UPDATE
// so concurrent confirmations cannot oversell.
type ProductStore struct {
	pool *pgxpool.Pool
}

var (
	_ domain.ProductStore = (*ProductStore)(nil)
	_ domain.StockStore   = (*ProductStore)(nil)
)

// NewProductStore creates a PostgreSQL-backed product store.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

func (s *ProductStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, brand, category, price_paise, weight_kg,
		       image_url, stock, is_active
		FROM products
		WHERE id = $1`,
		id,
	)

	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Brand, &p.Category, &p.PricePaise, &p.WeightKg,
		&p.ImageURL, &p.Stock, &p.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.Internal(err, "product.get", "failed to load product")
	}
	return &p, nil
}

func (s *ProductStore) DecrementStock(ctx context.Context, productID string, qty int32) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now()
		 WHERE id = $1 AND stock >= $2`,
		productID, qty,
	)
	if err != nil {
		return false, domain.Internal(err, "product.decrement_stock", "failed to decrement stock")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ProductStore) RestoreStock(ctx context.Context, productID string, qty int32) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		productID, qty,
	)
	if err != nil {
		return domain.Internal(err, "product.restore_stock", "failed to restore stock")
	}
	return nil
}
