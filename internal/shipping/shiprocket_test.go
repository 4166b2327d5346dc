package shipping_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zariya-commerce/zariya/internal/shipping"
)

// carrierStub fakes the aggregator API: a login endpoint and a serviceability
// endpoint that rejects unknown bearer tokens.
type carrierStub struct {
	validToken string
	logins     int
	rateCalls  int
	rateBody   string
}

func (s *carrierStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/external/auth/login", func(w http.ResponseWriter, r *http.Request) {
		s.logins++
		json.NewEncoder(w).Encode(map[string]string{"token": s.validToken})
	})
	mux.HandleFunc("GET /v1/external/courier/serviceability/", func(w http.ResponseWriter, r *http.Request) {
		s.rateCalls++
		if r.Header.Get("Authorization") != "Bearer "+s.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(s.rateBody))
	})
	return mux
}

func newStubProvider(t *testing.T, stub *carrierStub) *shipping.ShiprocketProvider {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	p, err := shipping.NewShiprocketProvider(shipping.ShiprocketConfig{
		BaseURL:  srv.URL + "/v1/external",
		Email:    "ops@zariya.in",
		Password: "secret",
	})
	require.NoError(t, err)
	return p
}

func TestNewShiprocketProvider_RequiresCredentials(t *testing.T) {
	_, err := shipping.NewShiprocketProvider(shipping.ShiprocketConfig{Email: "ops@zariya.in"})
	assert.ErrorIs(t, err, shipping.ErrMissingCredentials)

	_, err = shipping.NewShiprocketProvider(shipping.ShiprocketConfig{Password: "secret"})
	assert.ErrorIs(t, err, shipping.ErrMissingCredentials)
}

func TestGetRates_ValidatesInput(t *testing.T) {
	p := newStubProvider(t, &carrierStub{validToken: "tok"})

	_, err := p.GetRates(context.Background(), shipping.RateParams{
		PickupPincode:   "11001", // five digits
		DeliveryPincode: "400001",
		WeightKg:        0.5,
	})
	assert.ErrorIs(t, err, shipping.ErrInvalidPincode)

	_, err = p.GetRates(context.Background(), shipping.RateParams{
		PickupPincode:   "110001",
		DeliveryPincode: "40000A",
		WeightKg:        0.5,
	})
	assert.ErrorIs(t, err, shipping.ErrInvalidPincode)

	_, err = p.GetRates(context.Background(), shipping.RateParams{
		PickupPincode:   "110001",
		DeliveryPincode: "400001",
		WeightKg:        0,
	})
	assert.ErrorIs(t, err, shipping.ErrInvalidWeight)
}

func TestGetRates_NormalizesQuotes(t *testing.T) {
	stub := &carrierStub{
		validToken: "tok",
		rateBody: `{"data":{"available_courier_companies":[
			{"courier_company_id":11,"courier_name":"Surface Lite","rate":65.5,"cod_charges":30,"other_charges":2.5,"etd":"Sep 03, 2026","is_surface":true},
			{"courier_company_id":7,"courier_name":"Air Express","freight_charge":142,"estimated_delivery_days":"2","is_surface":false}
		]}}`,
	}
	p := newStubProvider(t, stub)

	quotes, err := p.GetRates(context.Background(), shipping.RateParams{
		PickupPincode:      "110001",
		DeliveryPincode:    "400001",
		WeightKg:           0.5,
		DeclaredValuePaise: 100000,
		COD:                true,
	})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	// Rupee floats become integer paise.
	assert.Equal(t, shipping.RateQuote{
		CourierID:         11,
		CourierName:       "Surface Lite",
		FreightPaise:      6550,
		CODPaise:          3000,
		OtherPaise:        250,
		TotalPaise:        9800,
		EstimatedDelivery: "Sep 03, 2026",
		IsSurface:         true,
	}, quotes[0])

	assert.Equal(t, int64(7), quotes[1].CourierID)
	assert.Equal(t, int64(14200), quotes[1].TotalPaise)
	assert.Equal(t, "2 days", quotes[1].EstimatedDelivery)
	assert.True(t, quotes[1].IsAir)
}

func TestGetRates_ReusesToken(t *testing.T) {
	stub := &carrierStub{
		validToken: "tok",
		rateBody:   `{"data":{"available_courier_companies":[]}}`,
	}
	p := newStubProvider(t, stub)

	for i := 0; i < 3; i++ {
		quotes, err := p.GetRates(context.Background(), shipping.RateParams{
			PickupPincode:   "110001",
			DeliveryPincode: "400001",
			WeightKg:        0.5,
		})
		require.NoError(t, err)
		assert.Empty(t, quotes)
	}

	assert.Equal(t, 1, stub.logins)
	assert.Equal(t, 3, stub.rateCalls)
}

func TestGetRates_RefetchesTokenOnRejection(t *testing.T) {
	stub := &carrierStub{
		validToken: "tok-1",
		rateBody:   `{"data":{"available_courier_companies":[]}}`,
	}
	p := newStubProvider(t, stub)

	_, err := p.GetRates(context.Background(), shipping.RateParams{
		PickupPincode:   "110001",
		DeliveryPincode: "400001",
		WeightKg:        0.5,
	})
	require.NoError(t, err)

	// Carrier rotates the token; the next call gets a 401, logs in again and
	// retries with the fresh token.
	stub.validToken = "tok-2"

	_, err = p.GetRates(context.Background(), shipping.RateParams{
		PickupPincode:   "110001",
		DeliveryPincode: "400001",
		WeightKg:        0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stub.logins)
	assert.Equal(t, 3, stub.rateCalls)
}

func TestCreateShipment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/external/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	})
	var gotReq map[string]any
	mux.HandleFunc("POST /v1/external/shipments/create/forward-shipment", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"payload":{"shipment_id":98765,"awb_code":"AWB123456789","courier_name":"Surface Lite"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p, err := shipping.NewShiprocketProvider(shipping.ShiprocketConfig{
		BaseURL:  srv.URL + "/v1/external",
		Email:    "ops@zariya.in",
		Password: "secret",
	})
	require.NoError(t, err)

	shipment, err := p.CreateShipment(context.Background(), shipping.ShipmentParams{
		OrderNumber:     "ZRY-20260829-A3K9",
		CourierID:       11,
		PickupPincode:   "110001",
		DeliveryName:    "Asha Rao",
		DeliveryPincode: "400001",
		Items: []shipping.ShipmentItem{
			{Name: "Vitamin C Serum", SKU: "VCS-30", Quantity: 2, UnitPricePaise: 50000},
		},
		WeightKg:         0.5,
		COD:              true,
		CollectablePaise: 109900,
	})
	require.NoError(t, err)

	assert.Equal(t, "98765", shipment.ShipmentID)
	assert.Equal(t, "AWB123456789", shipment.AWBCode)
	assert.Equal(t, "Surface Lite", shipment.CourierName)

	assert.Equal(t, "ZRY-20260829-A3K9", gotReq["order_id"])
	assert.Equal(t, "COD", gotReq["payment_method"])
	assert.Equal(t, 1099.0, gotReq["sub_total"])
}

func TestCreateShipment_MissingAWB(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/external/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	})
	mux.HandleFunc("POST /v1/external/shipments/create/forward-shipment", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"payload":{"shipment_id":98765}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p, err := shipping.NewShiprocketProvider(shipping.ShiprocketConfig{
		BaseURL:  srv.URL + "/v1/external",
		Email:    "ops@zariya.in",
		Password: "secret",
	})
	require.NoError(t, err)

	_, err = p.CreateShipment(context.Background(), shipping.ShipmentParams{
		OrderNumber:     "ZRY-20260829-A3K9",
		PickupPincode:   "110001",
		DeliveryPincode: "400001",
		WeightKg:        0.5,
	})
	assert.ErrorIs(t, err, shipping.ErrShipmentFailed)
}
