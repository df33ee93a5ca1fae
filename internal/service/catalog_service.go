package service

import (
	"context"

	"sales-service/internal/models"
	"sales-service/internal/store"
	"sales-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogStore is the read side of the catalog plus soft deletion
type CatalogStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetPrice(ctx context.Context, productID int64) (decimal.Decimal, error)
	SearchProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	DeactivateProduct(ctx context.Context, productID int64) error
}

// CatalogService exposes products and categories
type CatalogService struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{store: store, logger: util.GetLogger()}
}

// GetProduct retrieves one product
func (cs *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return cs.store.GetProductByID(ctx, id)
}

// GetPrice returns the current catalog price of a product
func (cs *CatalogService) GetPrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	return cs.store.GetPrice(ctx, productID)
}

// SearchProducts lists active products matching the filter
func (cs *CatalogService) SearchProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.SearchProducts")
	defer span.End()

	return cs.store.SearchProducts(ctx, f)
}

// ListCategories lists all categories
func (cs *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return cs.store.ListCategories(ctx)
}

// DeactivateProduct removes a product from sale without touching past sales
func (cs *CatalogService) DeactivateProduct(ctx context.Context, productID int64) error {
	if err := cs.store.DeactivateProduct(ctx, productID); err != nil {
		return err
	}
	cs.logger.Info("Product deactivated", zap.Int64("product_id", productID))
	return nil
}
