package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/zariya-commerce/zariya/internal/domain"
)

// Service sends order notifications. Callers treat failures as non-fatal;
// a failed send never rolls back the state transition that triggered it.
type Service interface {
	SendOrderConfirmation(ctx context.Context, order *domain.Order) error
	SendOrderShipped(ctx context.Context, order *domain.Order) error
}

type service struct {
	sender      Sender
	fromAddress string
	fromName    string
	templates   *template.Template
}

// NewService creates an email service with the embedded templates.
func NewService(sender Sender, fromAddress, fromName string) (Service, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &service{
		sender:      sender,
		fromAddress: fromAddress,
		fromName:    fromName,
		templates:   tmpl,
	}, nil
}

// SendOrderConfirmation sends an order confirmation email.
func (s *service) SendOrderConfirmation(ctx context.Context, order *domain.Order) error {
	data := OrderConfirmationEmail{
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.ShippingAddress.FullName,
		CustomerEmail: order.ShippingAddress.Email,
		OrderDate:     order.CreatedAt,
		Lines:         emailLines(order),
		SubtotalPaise: order.SubtotalPaise,
		ShippingPaise: order.ShippingPaise,
		DiscountPaise: order.DiscountPaise,
		TotalPaise:    order.TotalPaise,
		PaymentMethod: paymentMethodLabel(order.PaymentMethod),
		Address:       emailAddress(order.ShippingAddress),
	}
	return s.send(ctx, data, data.CustomerEmail)
}

// SendOrderShipped sends a shipping notification email.
func (s *service) SendOrderShipped(ctx context.Context, order *domain.Order) error {
	data := OrderShippedEmail{
		OrderNumber:    order.OrderNumber,
		CustomerName:   order.ShippingAddress.FullName,
		CustomerEmail:  order.ShippingAddress.Email,
		Courier:        order.Courier,
		TrackingNumber: order.TrackingNumber,
		Address:        emailAddress(order.ShippingAddress),
	}
	return s.send(ctx, data, data.CustomerEmail)
}

func (s *service) send(ctx context.Context, tpl EmailTemplate, to string) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, tpl.TemplateName(), tpl); err != nil {
		return fmt.Errorf("failed to render %s: %w", tpl.TemplateName(), err)
	}

	msg := &Email{
		To:       []string{to},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  tpl.Subject(),
		HTMLBody: buf.String(),
	}

	if _, err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", tpl.TemplateName(), err)
	}
	return nil
}

func emailLines(order *domain.Order) []OrderLine {
	lines := make([]OrderLine, len(order.Items))
	for i, item := range order.Items {
		lines[i] = OrderLine{
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPricePaise: item.UnitPricePaise,
			LineTotalPaise: item.LineTotal(),
		}
	}
	return lines
}

func emailAddress(addr domain.Address) OrderAddress {
	return OrderAddress{
		FullName: addr.FullName,
		Line1:    addr.Line1,
		Line2:    addr.Line2,
		City:     addr.City,
		State:    addr.State,
		Pincode:  addr.Pincode,
		Phone:    addr.Phone,
	}
}

func paymentMethodLabel(method domain.PaymentMethod) string {
	if method == domain.PaymentCOD {
		return "Cash on Delivery"
	}
	return "Paid Online"
}
