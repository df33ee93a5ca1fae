package service

import (
	"context"
	"fmt"
	"testing"

	"sales-service/internal/models"
	"sales-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCatalog struct {
	products []models.Product
}

func (m *memCatalog) find(id int64) (int, error) {
	for i, p := range m.products {
		if p.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
}

func (m *memCatalog) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	i, err := m.find(id)
	if err != nil {
		return nil, err
	}
	p := m.products[i]
	return &p, nil
}

func (m *memCatalog) GetPrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	i, err := m.find(productID)
	if err != nil {
		return decimal.Zero, err
	}
	return m.products[i].Price, nil
}

func (m *memCatalog) SearchProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	out := []models.Product{}
	for _, p := range m.products {
		if p.Active && (!f.LocallyMade || p.LocallyMade) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memCatalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	return []models.Category{{ID: 1, Name: "Accessories"}}, nil
}

func (m *memCatalog) DeactivateProduct(ctx context.Context, productID int64) error {
	i, err := m.find(productID)
	if err != nil {
		return err
	}
	m.products[i].Active = false
	return nil
}

func TestCatalogDeactivateKeepsProductReadable(t *testing.T) {
	catalog := &memCatalog{products: []models.Product{
		{ID: 1, Name: "Collar", Price: price("10.00"), Active: true, LocallyMade: true},
		{ID: 2, Name: "Leash", Price: price("5.00"), Active: true},
	}}
	svc := NewCatalogService(catalog)
	ctx := context.Background()

	require.NoError(t, svc.DeactivateProduct(ctx, 1))

	active, err := svc.SearchProducts(ctx, store.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].ID)

	product, err := svc.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.False(t, product.Active)

	assert.ErrorIs(t, svc.DeactivateProduct(ctx, 3), store.ErrNotFound)
}

func TestCatalogPricesCart(t *testing.T) {
	catalog := &memCatalog{products: []models.Product{{ID: 1, Name: "Collar", Price: price("12.50"), Active: true}}}
	svc := NewCatalogService(catalog)

	cart := NewCart()
	require.NoError(t, cart.AddProduct(context.Background(), svc, 1, 2))
	assert.True(t, cart.Total().Equal(price("25.00")))
}
