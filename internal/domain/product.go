package domain

import (
	"context"
)

// Product-related domain errors.
var (
	ErrProductNotFound = &Error{Code: ENOTFOUND, Message: "Product not found"}
)

// Product is a catalog item. Prices live here and nowhere else; order lines
// snapshot them at checkout time.
type Product struct {
	ID         string
	Name       string
	Brand      string
	Category   string
	PricePaise int64
	WeightKg   float64
	ImageURL   string
	Stock      int32
	IsActive   bool
}

// ProductStore provides catalog reads.
type ProductStore interface {
	// GetProduct returns a product by ID. Returns ErrProductNotFound when
	// the ID is unknown.
	GetProduct(ctx context.Context, id string) (*Product, error)
}
