package shipping

import (
	"errors"
)

var (
	// ErrMissingCredentials is returned when a provider is constructed
	// without API credentials.
	ErrMissingCredentials = errors.New("carrier credentials are required")

	// ErrInvalidPincode is returned for postal codes that are not 6-digit
	// numeric pincodes. Rejected at the boundary; never reaches the resolver.
	ErrInvalidPincode = errors.New("pincode must be 6 numeric digits")

	// ErrInvalidWeight is returned for non-positive shipment weights.
	ErrInvalidWeight = errors.New("weight must be greater than zero")

	// ErrAuthFailed is returned when the carrier rejects our credentials.
	ErrAuthFailed = errors.New("carrier authentication failed")

	// ErrShipmentFailed is returned when the carrier could not book a shipment.
	ErrShipmentFailed = errors.New("carrier could not create shipment")
)
