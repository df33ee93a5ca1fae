package service

import (
	"context"
	"fmt"

	"sales-service/internal/models"

	"github.com/shopspring/decimal"
)

// CartItem is one line of a cart with the unit price captured when it was added
type CartItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PriceSource resolves the current catalog price of a product
type PriceSource interface {
	GetPrice(ctx context.Context, productID int64) (decimal.Decimal, error)
}

// Cart is an ordered, session-scoped collection of lines not yet sold.
// It is not safe for concurrent use.
type Cart struct {
	items []CartItem
}

// NewCart returns an empty cart
func NewCart() *Cart {
	return &Cart{}
}

// Add appends a line. A line for the same product at the same price is merged.
func (c *Cart) Add(productID int64, quantity int, unitPrice decimal.Decimal) error {
	item := CartItem{ProductID: productID, Quantity: quantity, UnitPrice: unitPrice}
	if err := validateLine(item); err != nil {
		return err
	}

	for i := range c.items {
		if c.items[i].ProductID == productID && c.items[i].UnitPrice.Equal(unitPrice) {
			c.items[i].Quantity += quantity
			return nil
		}
	}

	c.items = append(c.items, item)
	return nil
}

// AddProduct appends a line priced at the catalog price read now.
// Later catalog price changes do not affect the line.
func (c *Cart) AddProduct(ctx context.Context, prices PriceSource, productID int64, quantity int) error {
	price, err := prices.GetPrice(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to price product %d: %w", productID, err)
	}
	return c.Add(productID, quantity, price)
}

// Remove drops every line of a product and reports whether any was present
func (c *Cart) Remove(productID int64) bool {
	kept := c.items[:0]
	removed := false
	for _, item := range c.items {
		if item.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	c.items = kept
	return removed
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the cart lines in insertion order
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Total returns the undiscounted total of the cart
func (c *Cart) Total() decimal.Decimal {
	return ComputeTotals(c.items, models.DiscountFlags{}).Gross
}

// Checkout sells the cart and clears it on success.
// On failure the cart is left untouched so the caller can adjust it and retry.
func (c *Cart) Checkout(ctx context.Context, checkout *CheckoutService, req CheckoutRequest) (*CheckoutResult, error) {
	req.Items = c.Items()

	result, err := checkout.EffectuatePurchase(ctx, &req)
	if err != nil {
		return nil, err
	}

	c.Clear()
	return result, nil
}
