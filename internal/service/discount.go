package service

import (
	"sales-service/internal/models"

	"github.com/shopspring/decimal"
)

// DiscountRate is the flat loyalty discount applied to eligible customers
var DiscountRate = decimal.RequireFromString("0.10")

// Totals holds the money figures of a sale. Net always equals Gross minus Discount.
type Totals struct {
	Gross    decimal.Decimal `json:"gross_total"`
	Discount decimal.Decimal `json:"discount"`
	Net      decimal.Decimal `json:"net_total"`
}

// ComputeTotals prices the cart with the unit prices it carries.
// Any single flag makes the customer eligible; flags do not stack.
func ComputeTotals(items []CartItem, flags models.DiscountFlags) Totals {
	gross := decimal.Zero
	for _, item := range items {
		gross = gross.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	discount := decimal.Zero
	if flags.Eligible() {
		discount = gross.Mul(DiscountRate).Round(2)
	}

	return Totals{
		Gross:    gross,
		Discount: discount,
		Net:      gross.Sub(discount),
	}
}
