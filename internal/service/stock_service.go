package service

import (
	"context"
	"fmt"
	"time"

	"sales-service/internal/models"
	"sales-service/internal/util"

	"go.uber.org/zap"
)

// StockStore is the catalog persistence behind stock reads and restocks
type StockStore interface {
	GetStock(ctx context.Context, productID int64) (*models.StockLevel, error)
	GetStockLevels(ctx context.Context, productIDs []int64) ([]models.StockLevel, error)
	ListStock(ctx context.Context) ([]models.StockLevel, error)
	ListLowStock(ctx context.Context, threshold int) ([]models.StockLevel, error)
	Restock(ctx context.Context, productID int64, quantity int) (*models.StockMovement, error)
}

// StockCache is a read-through cache of stock quantities
type StockCache interface {
	GetStock(ctx context.Context, productID int64) (int, bool, error)
	SetStock(ctx context.Context, productID int64, quantity int, ttl time.Duration) error
	SetStocks(ctx context.Context, quantities map[int64]int, ttl time.Duration) error
	InvalidateStock(ctx context.Context, productIDs ...int64) error
}

// StockService serves stock availability. The database is authoritative;
// Redis only speeds up reads and is never consulted by the checkout guard.
type StockService struct {
	store     StockStore
	cache     StockCache
	ttl       time.Duration
	threshold int
	logger    *zap.Logger
}

// NewStockService creates a new stock service. cache may be nil.
func NewStockService(store StockStore, cache StockCache, ttl time.Duration, lowStockThreshold int) *StockService {
	return &StockService{
		store:     store,
		cache:     cache,
		ttl:       ttl,
		threshold: lowStockThreshold,
		logger:    util.GetLogger(),
	}
}

// LowStockThreshold returns the quantity under which a product counts as low
func (ss *StockService) LowStockThreshold() int {
	return ss.threshold
}

// GetStock returns the available quantity of a product (cache first)
func (ss *StockService) GetStock(ctx context.Context, productID int64) (int, error) {
	ctx, span := util.StartSpan(ctx, "StockService.GetStock")
	defer span.End()

	if ss.cache != nil {
		qty, found, err := ss.cache.GetStock(ctx, productID)
		if err != nil {
			ss.logger.Warn("Stock cache read failed, falling back to DB",
				zap.Int64("product_id", productID),
				zap.Error(err))
		} else if found {
			util.StockCacheHitsTotal.WithLabelValues("hit").Inc()
			return qty, nil
		}
		util.StockCacheHitsTotal.WithLabelValues("miss").Inc()
	}

	level, err := ss.store.GetStock(ctx, productID)
	if err != nil {
		return 0, err
	}

	if ss.cache != nil {
		if err := ss.cache.SetStock(ctx, productID, level.Quantity, ss.ttl); err != nil {
			ss.logger.Warn("Failed to populate stock cache",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}
	return level.Quantity, nil
}

// RefreshStock re-reads stock levels from the database and rewrites the cache
func (ss *StockService) RefreshStock(ctx context.Context, productIDs []int64) ([]models.StockLevel, error) {
	ctx, span := util.StartSpan(ctx, "StockService.RefreshStock")
	defer span.End()

	levels, err := ss.store.GetStockLevels(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read stock levels: %w", err)
	}

	ss.cacheLevels(ctx, levels)
	return levels, nil
}

// SyncStockToRedis loads every active product's stock into the cache
func (ss *StockService) SyncStockToRedis(ctx context.Context) error {
	ss.logger.Info("Starting stock sync to Redis")

	levels, err := ss.store.ListStock(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stock: %w", err)
	}

	ss.cacheLevels(ctx, levels)
	ss.logger.Info("Stock sync completed", zap.Int("count", len(levels)))
	return nil
}

func (ss *StockService) cacheLevels(ctx context.Context, levels []models.StockLevel) {
	if ss.cache == nil || len(levels) == 0 {
		return
	}

	quantities := make(map[int64]int, len(levels))
	for _, level := range levels {
		quantities[level.ProductID] = level.Quantity
	}
	if err := ss.cache.SetStocks(ctx, quantities, ss.ttl); err != nil {
		ss.logger.Error("Failed to write stock cache", zap.Int("count", len(levels)), zap.Error(err))
	}
}

// Restock adds stock to a product. This is the only stock increase path.
func (ss *StockService) Restock(ctx context.Context, productID int64, quantity int) (*models.StockMovement, error) {
	ctx, span := util.StartSpan(ctx, "StockService.Restock")
	defer span.End()

	movement, err := ss.store.Restock(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	ss.logger.Info("Product restocked",
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("new_quantity", movement.NewQty))

	if ss.cache != nil {
		if err := ss.cache.InvalidateStock(ctx, productID); err != nil {
			ss.logger.Warn("Failed to invalidate stock cache", zap.Int64("product_id", productID), zap.Error(err))
		}
	}
	return movement, nil
}

// LowStock lists active products whose stock is under the threshold
func (ss *StockService) LowStock(ctx context.Context) ([]models.StockLevel, error) {
	return ss.store.ListLowStock(ctx, ss.threshold)
}
