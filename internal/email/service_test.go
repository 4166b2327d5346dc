package email_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zariya-commerce/zariya/internal/domain"
	"github.com/zariya-commerce/zariya/internal/email"
)

type mockSender struct {
	sent []*email.Email
}

func (m *mockSender) Send(ctx context.Context, e *email.Email) (string, error) {
	m.sent = append(m.sent, e)
	return "msg_1", nil
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:          "ord_1",
		OrderNumber: "ZRY-20260829-A3K9",
		Items: []domain.CartLine{
			{ProductID: "p_serum", Name: "Vitamin C Serum", UnitPricePaise: 50000, Quantity: 2},
		},
		SubtotalPaise: 100000,
		ShippingPaise: 0,
		TotalPaise:    100000,
		PaymentMethod: domain.PaymentPrepaid,
		ShippingAddress: domain.Address{
			FullName: "Asha Rao",
			Email:    "asha@example.com",
			Phone:    "9876543210",
			Line1:    "14 MG Road",
			City:     "Mumbai",
			State:    "Maharashtra",
			Pincode:  "400001",
		},
		TrackingNumber: "AWB123456789",
		Courier:        "Surface Lite",
		CreatedAt:      time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
	}
}

func TestSendOrderConfirmation(t *testing.T) {
	sender := &mockSender{}
	svc, err := email.NewService(sender, "orders@zariya.in", "Zariya")
	require.NoError(t, err)

	require.NoError(t, svc.SendOrderConfirmation(context.Background(), testOrder()))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"asha@example.com"}, msg.To)
	assert.Equal(t, "Order Confirmation - ZRY-20260829-A3K9", msg.Subject)
	assert.Equal(t, "Zariya <orders@zariya.in>", msg.From)
	assert.Contains(t, msg.HTMLBody, "ZRY-20260829-A3K9")
	assert.Contains(t, msg.HTMLBody, "Vitamin C Serum")
	assert.Contains(t, msg.HTMLBody, "₹1000")
	assert.Contains(t, msg.HTMLBody, "Free")
}

func TestSendOrderShipped(t *testing.T) {
	sender := &mockSender{}
	svc, err := email.NewService(sender, "orders@zariya.in", "Zariya")
	require.NoError(t, err)

	require.NoError(t, svc.SendOrderShipped(context.Background(), testOrder()))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Your Order Has Shipped - ZRY-20260829-A3K9", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "AWB123456789")
	assert.Contains(t, msg.HTMLBody, "Surface Lite")
}
