// Package bootstrap handles one-time initialization tasks for the application.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

type seedProduct struct {
	id         string
	name       string
	brand      string
	category   string
	pricePaise int64
	weightKg   float64
	stock      int32
}

type seedOffer struct {
	id             string
	code           string
	offerType      string
	minAmountPaise int64
	value          int64
	scopeBrands    []string
}

var devProducts = []seedProduct{
	{"p_vitc_serum", "Vitamin C Face Serum 30ml", "Glow&Co", "skincare", 59900, 0.12, 40},
	{"p_kumkumadi", "Kumkumadi Night Oil 15ml", "Vanalata", "skincare", 84900, 0.08, 25},
	{"p_neem_soap", "Neem & Tulsi Soap Bar", "Vanalata", "bath", 9900, 0.1, 120},
	{"p_hair_mask", "Onion Hair Mask 200g", "Glow&Co", "haircare", 44900, 0.25, 60},
	{"p_sunscreen", "SPF50 Matte Sunscreen 50g", "Suraksha", "skincare", 39900, 0.07, 80},
}

var devOffers = []seedOffer{
	{"off_welcome", "WELCOME10", "percentage", 49900, 10, nil},
	{"off_flat150", "FLAT150", "fixed", 99900, 15000, nil},
	{"off_freeship", "FREESHIP", "shipping", 29900, 9900, nil},
	{"off_vanalata", "VANALATA20", "percentage", 0, 20, []string{"Vanalata"}},
}

// SeedDevData inserts a sample catalog and offers for local development.
// Idempotent - existing rows are left untouched, so edits made through the
// admin surface survive restarts.
func SeedDevData(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	inserted := 0
	for _, p := range devProducts {
		tag, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, brand, category, price_paise, weight_kg, stock)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			p.id, p.name, p.brand, p.category, p.pricePaise, p.weightKg, p.stock,
		)
		if err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.id, err)
		}
		inserted += int(tag.RowsAffected())
	}

	for _, o := range devOffers {
		scopeBrands := o.scopeBrands
		if scopeBrands == nil {
			scopeBrands = []string{}
		}
		tag, err := pool.Exec(ctx, `
			INSERT INTO offers (id, code, type, min_amount_paise, value, scope_brands)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			o.id, o.code, o.offerType, o.minAmountPaise, o.value, scopeBrands,
		)
		if err != nil {
			return fmt.Errorf("failed to seed offer %s: %w", o.code, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if inserted > 0 {
		logger.Info("seeded development data", "rows", inserted)
	}
	return nil
}
