package shipping

import (
	"context"
)

// DisabledProvider stands in when no carrier is configured. Rate queries
// report no live quotes, so the resolver falls back to the flat rate, and
// shipment booking fails loudly.
type DisabledProvider struct{}

// NewDisabledProvider creates a provider for deployments without carrier
// credentials.
func NewDisabledProvider() DisabledProvider {
	return DisabledProvider{}
}

func (DisabledProvider) GetRates(ctx context.Context, params RateParams) ([]RateQuote, error) {
	return nil, ErrMissingCredentials
}

func (DisabledProvider) CreateShipment(ctx context.Context, params ShipmentParams) (*Shipment, error) {
	return nil, ErrMissingCredentials
}
