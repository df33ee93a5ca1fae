package service

import (
	"context"
	"fmt"
	"testing"

	"sales-service/internal/models"
	"sales-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCustomerStore map[int64]models.DiscountFlags

func (m memCustomerStore) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	flags, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, store.ErrNotFound)
	}
	return &models.Customer{ID: id, Name: fmt.Sprintf("customer-%d", id), DiscountFlags: flags}, nil
}

func (m memCustomerStore) CustomerExists(ctx context.Context, id int64) (bool, error) {
	_, ok := m[id]
	return ok, nil
}

func (m memCustomerStore) GetDiscountFlags(ctx context.Context, id int64) (models.DiscountFlags, error) {
	flags, ok := m[id]
	if !ok {
		return flags, fmt.Errorf("customer %d: %w", id, store.ErrNotFound)
	}
	return flags, nil
}

func (m memCustomerStore) UpdateDiscountFlags(ctx context.Context, id int64, flags models.DiscountFlags) error {
	if _, ok := m[id]; !ok {
		return fmt.Errorf("customer %d: %w", id, store.ErrNotFound)
	}
	m[id] = flags
	return nil
}

func TestCustomerDiscountEligibility(t *testing.T) {
	customers := memCustomerStore{
		1: {},
		2: {AnimeFan: true},
	}
	svc := NewCustomerService(customers)
	ctx := context.Background()

	eligible, err := svc.GetDiscountEligibility(ctx, 1)
	require.NoError(t, err)
	assert.False(t, eligible)

	eligible, err = svc.GetDiscountEligibility(ctx, 2)
	require.NoError(t, err)
	assert.True(t, eligible)

	_, err = svc.GetDiscountEligibility(ctx, 3)
	assert.ErrorIs(t, err, store.ErrNotFound)

	exists, err := svc.Exists(ctx, 3)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateDiscountFlags(t *testing.T) {
	customers := memCustomerStore{1: {}}
	svc := NewCustomerService(customers)
	ctx := context.Background()

	require.NoError(t, svc.UpdateDiscountFlags(ctx, 1, models.DiscountFlags{SportsClubFan: true}))

	customer, err := svc.GetCustomer(ctx, 1)
	require.NoError(t, err)
	assert.True(t, customer.SportsClubFan)
	assert.True(t, customer.Eligible())

	assert.ErrorIs(t, svc.UpdateDiscountFlags(ctx, 2, models.DiscountFlags{}), store.ErrNotFound)
}

func TestUpdateDiscountFlagsDoesNotTouchPastSales(t *testing.T) {
	checkout, fs := setupCheckout(t)
	fs.addProduct(1, "Collar", 10, true)
	ctx := context.Background()

	first, err := checkout.EffectuatePurchase(ctx, request(customerLocal, line(1, 1, "10.00")))
	require.NoError(t, err)
	require.True(t, first.Discount.Equal(price("1.00")))

	fs.mu.Lock()
	fs.state.customers[customerLocal] = models.DiscountFlags{}
	fs.mu.Unlock()

	second, err := checkout.EffectuatePurchase(ctx, request(customerLocal, line(1, 1, "10.00")))
	require.NoError(t, err)
	assert.True(t, second.Discount.IsZero())

	st := fs.snapshot()
	assert.True(t, st.sales[0].Discount.Equal(price("1.00")))
}
