package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const defaultShiprocketBaseURL = "https://apiv2.shiprocket.in/v1/external"

// ShiprocketProvider implements Provider against the Shiprocket aggregator API.
type ShiprocketProvider struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client
	logger     *slog.Logger

	// Token lifecycle: fetch once, reuse until a call fails with an auth
	// error, then refetch. Shiprocket does not document a TTL.
	mu    sync.Mutex
	token string
}

// ShiprocketConfig contains configuration for the Shiprocket provider.
type ShiprocketConfig struct {
	BaseURL  string // Optional: defaults to the public API endpoint
	Email    string
	Password string
	Timeout  time.Duration // Optional: defaults to 10s
	Logger   *slog.Logger  // Optional: defaults to slog.Default()
}

// NewShiprocketProvider creates a new Shiprocket carrier provider.
func NewShiprocketProvider(cfg ShiprocketConfig) (*ShiprocketProvider, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultShiprocketBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ShiprocketProvider{
		baseURL:    baseURL,
		email:      cfg.Email,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// GetRates queries courier serviceability for the destination and normalizes
// the carrier's options into RateQuote values.
func (p *ShiprocketProvider) GetRates(ctx context.Context, params RateParams) ([]RateQuote, error) {
	if !validPincode(params.PickupPincode) || !validPincode(params.DeliveryPincode) {
		return nil, ErrInvalidPincode
	}
	if params.WeightKg <= 0 {
		return nil, ErrInvalidWeight
	}

	logger := p.logger.With(
		"delivery_pincode", params.DeliveryPincode,
		"weight_kg", params.WeightKg,
		"cod", params.COD,
	)

	q := url.Values{}
	q.Set("pickup_postcode", params.PickupPincode)
	q.Set("delivery_postcode", params.DeliveryPincode)
	q.Set("weight", strconv.FormatFloat(params.WeightKg, 'f', 2, 64))
	q.Set("declared_value", strconv.FormatFloat(paiseToRupees(params.DeclaredValuePaise), 'f', 2, 64))
	if params.COD {
		q.Set("cod", "1")
	} else {
		q.Set("cod", "0")
	}

	var resp serviceabilityResponse
	if err := p.doJSON(ctx, http.MethodGet, "/courier/serviceability/?"+q.Encode(), nil, &resp); err != nil {
		logger.Warn("rate query failed", "error", err)
		return nil, fmt.Errorf("failed to get rates: %w", err)
	}

	quotes := make([]RateQuote, 0, len(resp.Data.AvailableCourierCompanies))
	for _, c := range resp.Data.AvailableCourierCompanies {
		quotes = append(quotes, fromCourierCompany(c))
	}

	logger.Info("rates fetched", "quote_count", len(quotes))
	return quotes, nil
}

// CreateShipment books a forward shipment and returns the assigned AWB code.
func (p *ShiprocketProvider) CreateShipment(ctx context.Context, params ShipmentParams) (*Shipment, error) {
	logger := p.logger.With(
		"order_number", params.OrderNumber,
		"courier_id", params.CourierID,
	)
	logger.Info("creating shipment")

	items := make([]shiprocketOrderItem, len(params.Items))
	for i, it := range params.Items {
		items[i] = shiprocketOrderItem{
			Name:         it.Name,
			SKU:          it.SKU,
			Units:        it.Quantity,
			SellingPrice: paiseToRupees(it.UnitPricePaise),
		}
	}

	paymentMethod := "Prepaid"
	if params.COD {
		paymentMethod = "COD"
	}

	body := shiprocketShipmentRequest{
		OrderID:         params.OrderNumber,
		OrderDate:       time.Now().Format("2006-01-02 15:04"),
		CourierID:       params.CourierID,
		PickupPostcode:  params.PickupPincode,
		BillingName:     params.DeliveryName,
		BillingPhone:    params.DeliveryPhone,
		BillingEmail:    params.DeliveryEmail,
		BillingAddress:  params.DeliveryLine1,
		BillingAddress2: params.DeliveryLine2,
		BillingCity:     params.DeliveryCity,
		BillingState:    params.DeliveryState,
		BillingPincode:  params.DeliveryPincode,
		ShippingIsBill:  true,
		OrderItems:      items,
		PaymentMethod:   paymentMethod,
		SubTotal:        paiseToRupees(params.CollectablePaise),
		Weight:          params.WeightKg,
	}

	var resp shiprocketShipmentResponse
	if err := p.doJSON(ctx, http.MethodPost, "/shipments/create/forward-shipment", body, &resp); err != nil {
		logger.Error("shipment creation failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrShipmentFailed, err)
	}

	if resp.Payload.AWBCode == "" {
		logger.Error("shipment created without awb", "shipment_id", resp.Payload.ShipmentID)
		return nil, ErrShipmentFailed
	}

	logger.Info("shipment created",
		"shipment_id", resp.Payload.ShipmentID,
		"awb_code", resp.Payload.AWBCode,
	)

	return &Shipment{
		ShipmentID:  strconv.FormatInt(resp.Payload.ShipmentID, 10),
		AWBCode:     resp.Payload.AWBCode,
		CourierName: resp.Payload.CourierName,
	}, nil
}

// doJSON performs an authenticated request, refreshing the cached token and
// retrying once if the carrier rejects it.
func (p *ShiprocketProvider) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := p.ensureToken(ctx)
	if err != nil {
		return err
	}

	status, err := p.request(ctx, method, path, token, body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		p.invalidateToken(token)
		token, err = p.ensureToken(ctx)
		if err != nil {
			return err
		}
		status, err = p.request(ctx, method, path, token, body, out)
		if err != nil {
			return err
		}
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("carrier returned status %d", status)
	}
	return nil
}

// request performs one HTTP round trip. Non-2xx statuses are returned to the
// caller rather than treated as errors so auth failures can trigger a refetch.
func (p *ShiprocketProvider) request(ctx context.Context, method, path, token string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// ensureToken returns the cached bearer token, logging in if none is held.
func (p *ShiprocketProvider) ensureToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" {
		return p.token, nil
	}

	buf, err := json.Marshal(map[string]string{
		"email":    p.email,
		"password": p.password,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/login", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if body.Token == "" {
		return "", ErrAuthFailed
	}

	p.token = body.Token
	p.logger.Info("carrier token refreshed")
	return p.token, nil
}

// invalidateToken clears the cached token if it is still the one that failed.
// A concurrent refetch may have replaced it already.
func (p *ShiprocketProvider) invalidateToken(failed string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == failed {
		p.token = ""
	}
}

// Wire types for the Shiprocket API.

type serviceabilityResponse struct {
	Data struct {
		AvailableCourierCompanies []courierCompany `json:"available_courier_companies"`
	} `json:"data"`
}

type courierCompany struct {
	CourierCompanyID      int64   `json:"courier_company_id"`
	CourierName           string  `json:"courier_name"`
	Rate                  float64 `json:"rate"`
	FreightCharge         float64 `json:"freight_charge"`
	CODCharges            float64 `json:"cod_charges"`
	OtherCharges          float64 `json:"other_charges"`
	EstimatedDeliveryDays string  `json:"estimated_delivery_days"`
	ETD                   string  `json:"etd"`
	IsSurface             bool    `json:"is_surface"`
}

type shiprocketOrderItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int32   `json:"units"`
	SellingPrice float64 `json:"selling_price"`
}

type shiprocketShipmentRequest struct {
	OrderID         string                `json:"order_id"`
	OrderDate       string                `json:"order_date"`
	CourierID       int64                 `json:"courier_id,omitempty"`
	PickupPostcode  string                `json:"pickup_postcode"`
	BillingName     string                `json:"billing_customer_name"`
	BillingPhone    string                `json:"billing_phone"`
	BillingEmail    string                `json:"billing_email"`
	BillingAddress  string                `json:"billing_address"`
	BillingAddress2 string                `json:"billing_address_2,omitempty"`
	BillingCity     string                `json:"billing_city"`
	BillingState    string                `json:"billing_state"`
	BillingPincode  string                `json:"billing_pincode"`
	ShippingIsBill  bool                  `json:"shipping_is_billing"`
	OrderItems      []shiprocketOrderItem `json:"order_items"`
	PaymentMethod   string                `json:"payment_method"`
	SubTotal        float64               `json:"sub_total"`
	Weight          float64               `json:"weight"`
}

type shiprocketShipmentResponse struct {
	Payload struct {
		ShipmentID  int64  `json:"shipment_id"`
		AWBCode     string `json:"awb_code"`
		CourierName string `json:"courier_name"`
	} `json:"payload"`
}

// fromCourierCompany normalizes one carrier option into our RateQuote type.
// Shiprocket reports amounts as rupee floats; freight may arrive in either
// the rate or freight_charge field depending on the endpoint version.
func fromCourierCompany(c courierCompany) RateQuote {
	freight := c.FreightCharge
	if freight == 0 {
		freight = c.Rate
	}

	freightPaise := rupeesToPaise(freight)
	codPaise := rupeesToPaise(c.CODCharges)
	otherPaise := rupeesToPaise(c.OtherCharges)

	etd := c.ETD
	if etd == "" && c.EstimatedDeliveryDays != "" {
		etd = c.EstimatedDeliveryDays + " days"
	}

	return RateQuote{
		CourierID:         c.CourierCompanyID,
		CourierName:       c.CourierName,
		FreightPaise:      freightPaise,
		CODPaise:          codPaise,
		OtherPaise:        otherPaise,
		TotalPaise:        freightPaise + codPaise + otherPaise,
		EstimatedDelivery: etd,
		IsAir:             !c.IsSurface,
		IsSurface:         c.IsSurface,
	}
}

// validPincode reports whether s is a 6-digit numeric pincode.
func validPincode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Unit conversion helpers. Carrier amounts are rupee floats; everything
// internal is integer paise.

func rupeesToPaise(rupees float64) int64 {
	return int64(math.Round(rupees * 100))
}

func paiseToRupees(paise int64) float64 {
	return float64(paise) / 100
}
