package domain

// Cart-related domain errors.
var (
	ErrCartEmpty       = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrInvalidQuantity = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
)

// CartLine is a single cart entry as submitted at checkout. Price and name
// are looked up server-side and frozen into the order snapshot; client-sent
// prices are informational only.
type CartLine struct {
	ProductID      string
	Name           string
	Brand          string
	Category       string
	UnitPricePaise int64
	Quantity       int32
	WeightKg       float64
	ImageURL       string
}

// LineTotal returns unit price times quantity for one line.
func (l CartLine) LineTotal() int64 {
	return l.UnitPricePaise * int64(l.Quantity)
}

// Subtotal recomputes the cart subtotal from line items.
// Always computed server-side; never trusted from a client-supplied total.
func Subtotal(lines []CartLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.LineTotal()
	}
	return sum
}

// TotalWeightKg sums line weights for rate quoting. Lines without a weight
// contribute the given default per unit.
func TotalWeightKg(lines []CartLine, defaultPerUnitKg float64) float64 {
	var total float64
	for _, l := range lines {
		w := l.WeightKg
		if w <= 0 {
			w = defaultPerUnitKg
		}
		total += w * float64(l.Quantity)
	}
	return total
}
