// Package pricing derives unit prices and order totals. All functions are
// pure.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/model"
)

var (
	// FreeShippingThreshold is the subtotal from which shipping is waived.
	FreeShippingThreshold = decimal.NewFromInt(30_000)
	// FlatShippingFee is charged below FreeShippingThreshold.
	FlatShippingFee = decimal.NewFromInt(3_000)
)

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Summary struct {
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// EffectiveUnitPrice is the discount price when it is positive and below the
// list price, the list price otherwise.
func EffectiveUnitPrice(p *model.Product) decimal.Decimal {
	if p.OnSale() {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}

func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineTotal(l.UnitPrice, l.Quantity))
	}
	return sum
}

func ShippingFee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShippingFee
}

// Total returns subtotal + shippingFee - discount. A negative result is
// reported as model.ErrNegativeTotal.
func Total(subtotal, shippingFee, discount decimal.Decimal) (decimal.Decimal, error) {
	var o model.Order
	if err := o.SetAmounts(subtotal, shippingFee, discount); err != nil {
		return decimal.Zero, err
	}
	return o.Total, nil
}

func Summarize(lines []Line, discount decimal.Decimal) (Summary, error) {
	subtotal := Subtotal(lines)
	fee := ShippingFee(subtotal)
	total, err := Total(subtotal, fee, discount)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Subtotal: subtotal, ShippingFee: fee, Discount: discount, Total: total}, nil
}

// CartLines converts captured cart prices into pricing lines.
func CartLines(items []model.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	return lines
}
