package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one item+quantity entry on a bill.
type Line struct {
	ItemID   uuid.UUID
	Quantity int32
}

// Totals is the priced result of a line set with an optional discount.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// ItemNotFoundError indicates a line references an item with no known price.
type ItemNotFoundError struct {
	ItemID uuid.UUID
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %s not found", e.ItemID)
}

var oneHundred = decimal.NewFromInt(100)

// clampPercentage forces a discount percentage into [0, 100] regardless
// of what is stored on the voucher.
func clampPercentage(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(oneHundred) {
		return oneHundred
	}
	return p
}

// ComputeTotals prices a line set against the given unit prices and
// applies a percentage discount. Every line's item must have a price in
// priceByItemID or the whole computation fails; there is no best-effort
// partial result. Pure function, decimal arithmetic throughout.
func ComputeTotals(lines []Line, priceByItemID map[uuid.UUID]decimal.Decimal, discountPercentage decimal.Decimal) (Totals, error) {
	subtotal := decimal.Zero
	for _, line := range lines {
		price, ok := priceByItemID[line.ItemID]
		if !ok {
			return Totals{}, &ItemNotFoundError{ItemID: line.ItemID}
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt32(line.Quantity)))
	}

	pct := clampPercentage(discountPercentage)
	discount := subtotal.Mul(pct).Div(oneHundred)
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          total,
	}, nil
}
