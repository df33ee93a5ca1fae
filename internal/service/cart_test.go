package service

import (
	"context"
	"errors"
	"testing"

	"sales-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priceList map[int64]decimal.Decimal

func (p priceList) GetPrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	v, ok := p[productID]
	if !ok {
		return decimal.Zero, store.ErrNotFound
	}
	return v, nil
}

func TestCartAddMergesSameProductAndPrice(t *testing.T) {
	cart := NewCart()
	require.True(t, cart.IsEmpty())

	require.NoError(t, cart.Add(1, 2, price("10.00")))
	require.NoError(t, cart.Add(1, 1, price("10.00")))
	require.NoError(t, cart.Add(1, 1, price("9.00")))
	require.NoError(t, cart.Add(2, 5, price("1.50")))

	items := cart.Items()
	require.Len(t, items, 3)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, int64(2), items[2].ProductID)
	assert.True(t, cart.Total().Equal(price("46.50")))
}

func TestCartAddRejectsInvalidLines(t *testing.T) {
	cart := NewCart()

	assert.ErrorIs(t, cart.Add(1, 0, price("10.00")), ErrInvalidCartLine)
	assert.ErrorIs(t, cart.Add(1, 1, price("-1")), ErrInvalidCartLine)
	assert.True(t, cart.IsEmpty())
}

func TestCartItemsReturnsCopy(t *testing.T) {
	cart := NewCart()
	require.NoError(t, cart.Add(1, 2, price("10.00")))

	items := cart.Items()
	items[0].Quantity = 99

	assert.Equal(t, 2, cart.Items()[0].Quantity)
}

func TestCartRemoveAndClear(t *testing.T) {
	cart := NewCart()
	require.NoError(t, cart.Add(1, 2, price("10.00")))
	require.NoError(t, cart.Add(2, 1, price("5.00")))
	require.NoError(t, cart.Add(1, 1, price("8.00")))

	assert.True(t, cart.Remove(1))
	assert.False(t, cart.Remove(1))
	require.Len(t, cart.Items(), 1)
	assert.Equal(t, int64(2), cart.Items()[0].ProductID)

	cart.Clear()
	assert.True(t, cart.IsEmpty())
}

func TestCartAddProductCapturesPrice(t *testing.T) {
	prices := priceList{1: price("10.00")}
	cart := NewCart()
	ctx := context.Background()

	require.NoError(t, cart.AddProduct(ctx, prices, 1, 2))
	prices[1] = price("15.00")

	assert.True(t, cart.Items()[0].UnitPrice.Equal(price("10.00")))

	err := cart.AddProduct(ctx, prices, 7, 1)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestCartCheckoutClearsOnlyOnSuccess(t *testing.T) {
	svc, fs := setupCheckout(t)
	fs.addProduct(1, "Collar", 3, true)
	ctx := context.Background()

	cart := NewCart()
	require.NoError(t, cart.Add(1, 5, price("10.00")))

	_, err := cart.Checkout(ctx, svc, CheckoutRequest{CustomerID: customerPlain, SellerID: sellerID, PaymentMethod: "cash"})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.False(t, cart.IsEmpty())

	cart.Remove(1)
	require.NoError(t, cart.Add(1, 3, price("10.00")))

	result, err := cart.Checkout(ctx, svc, CheckoutRequest{CustomerID: customerPlain, SellerID: sellerID, PaymentMethod: "cash"})
	require.NoError(t, err)
	assert.True(t, result.Net.Equal(price("30.00")))
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 0, fs.quantity(1))
}
