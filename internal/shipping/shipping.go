package shipping

import (
	"context"
)

// Provider defines the interface for carrier operations.
// Implementations can integrate with aggregators like Shiprocket or Delhivery.
type Provider interface {
	// GetRates returns candidate courier options for a shipment query.
	// An unreachable or failing carrier yields an empty slice and an error;
	// callers must treat an empty result as "no live rate available", not as
	// a checkout-blocking condition.
	GetRates(ctx context.Context, params RateParams) ([]RateQuote, error)

	// CreateShipment books a shipment for a confirmed order and returns the
	// carrier-assigned AWB (tracking) code.
	CreateShipment(ctx context.Context, params ShipmentParams) (*Shipment, error)
}

// RateParams contains parameters for a rate query.
// Postal codes are 6-digit numeric pincodes.
type RateParams struct {
	PickupPincode   string
	DeliveryPincode string
	WeightKg        float64
	// DeclaredValuePaise is the insured value of the shipment.
	DeclaredValuePaise int64
	// COD requests cash-on-delivery rates, which typically carry a surcharge.
	COD bool
}

// RateQuote is one candidate courier option, normalized from the carrier's
// response. Immutable once returned; a new checkout attempt re-queries.
type RateQuote struct {
	CourierID         int64
	CourierName       string
	FreightPaise      int64
	CODPaise          int64
	OtherPaise        int64
	TotalPaise        int64
	EstimatedDelivery string
	IsAir             bool
	IsSurface         bool
}

// ShipmentItem is one order line forwarded to the carrier.
type ShipmentItem struct {
	Name           string
	SKU            string
	Quantity       int32
	UnitPricePaise int64
}

// ShipmentParams contains parameters for booking a shipment.
type ShipmentParams struct {
	OrderNumber     string
	CourierID       int64
	PickupPincode   string
	DeliveryName    string
	DeliveryPhone   string
	DeliveryEmail   string
	DeliveryLine1   string
	DeliveryLine2   string
	DeliveryCity    string
	DeliveryState   string
	DeliveryPincode string
	Items           []ShipmentItem
	WeightKg        float64
	COD             bool
	// CollectablePaise is the amount to collect on delivery for COD orders.
	CollectablePaise int64
}

// Shipment is the carrier's booking confirmation.
type Shipment struct {
	ShipmentID  string
	AWBCode     string
	CourierName string
}
