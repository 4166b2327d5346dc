package email

import (
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"rupees": formatRupees,
	}).ParseFS(templateFS, "templates/*.html")
}

// formatRupees renders a paise amount for display.
func formatRupees(paise int64) string {
	if paise%100 == 0 {
		return fmt.Sprintf("₹%d", paise/100)
	}
	return fmt.Sprintf("₹%d.%02d", paise/100, paise%100)
}

// EmailTemplate defines the interface for email templates.
type EmailTemplate interface {
	Subject() string
	TemplateName() string
}

// OrderLine is one order line rendered in an email.
type OrderLine struct {
	Name           string
	Quantity       int32
	UnitPricePaise int64
	LineTotalPaise int64
}

// OrderAddress is the delivery address rendered in an email.
type OrderAddress struct {
	FullName string
	Line1    string
	Line2    string
	City     string
	State    string
	Pincode  string
	Phone    string
}

// OrderConfirmationEmail represents an order confirmation email.
type OrderConfirmationEmail struct {
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	OrderDate     time.Time
	Lines         []OrderLine
	SubtotalPaise int64
	ShippingPaise int64
	DiscountPaise int64
	TotalPaise    int64
	PaymentMethod string
	Address       OrderAddress
}

func (e OrderConfirmationEmail) Subject() string {
	return "Order Confirmation - " + e.OrderNumber
}

func (e OrderConfirmationEmail) TemplateName() string {
	return "order_confirmation.html"
}

// OrderShippedEmail represents a shipping notification email.
type OrderShippedEmail struct {
	OrderNumber    string
	CustomerName   string
	CustomerEmail  string
	Courier        string
	TrackingNumber string
	Address        OrderAddress
}

func (e OrderShippedEmail) Subject() string {
	return "Your Order Has Shipped - " + e.OrderNumber
}

func (e OrderShippedEmail) TemplateName() string {
	return "order_shipped.html"
}
