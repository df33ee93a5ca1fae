package service

import (
	"context"
	"fmt"
	"time"

	"sales-service/internal/models"
	"sales-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventLedger remembers which events were already handled
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// StockLevelSource re-reads authoritative stock levels
type StockLevelSource interface {
	RefreshStock(ctx context.Context, productIDs []int64) ([]models.StockLevel, error)
	LowStockThreshold() int
}

// LowStockPublisher announces products that are running out
type LowStockPublisher interface {
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
}

// StockWatcher reacts to committed sales: it refreshes the stock cache of the
// products sold and raises low-stock alerts
type StockWatcher struct {
	ledger    EventLedger
	stock     StockLevelSource
	publisher LowStockPublisher
	logger    *zap.Logger
}

// NewStockWatcher creates a new stock watcher. publisher may be nil.
func NewStockWatcher(ledger EventLedger, stock StockLevelSource, publisher LowStockPublisher) *StockWatcher {
	return &StockWatcher{
		ledger:    ledger,
		stock:     stock,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// HandleSaleCompleted processes a SALE_COMPLETED event at most once
func (w *StockWatcher) HandleSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	ctx, span := util.StartSpan(ctx, "StockWatcher.HandleSaleCompleted")
	defer span.End()

	processed, err := w.ledger.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed, skipping", zap.String("event_id", event.EventID))
		return nil
	}

	productIDs := make([]int64, 0, len(event.Items))
	seen := make(map[int64]bool, len(event.Items))
	for _, item := range event.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			productIDs = append(productIDs, item.ProductID)
		}
	}

	levels, err := w.stock.RefreshStock(ctx, productIDs)
	if err != nil {
		return err
	}

	threshold := w.stock.LowStockThreshold()
	for _, level := range levels {
		if !level.Active || level.Quantity >= threshold {
			continue
		}
		if err := w.alert(ctx, level, threshold); err != nil {
			return err
		}
	}

	if err := w.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (w *StockWatcher) alert(ctx context.Context, level models.StockLevel, threshold int) error {
	util.LowStockAlertsTotal.Inc()
	w.logger.Warn("Product stock is low",
		zap.Int64("product_id", level.ProductID),
		zap.String("product_name", level.ProductName),
		zap.Int("quantity", level.Quantity),
		zap.Int("threshold", threshold))

	if w.publisher == nil {
		return nil
	}

	event := &models.StockLowEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockLow,
			Timestamp: time.Now().UTC(),
		},
		ProductID:   level.ProductID,
		ProductName: level.ProductName,
		Quantity:    level.Quantity,
		Threshold:   threshold,
	}
	if err := w.publisher.PublishStockLow(ctx, event); err != nil {
		return fmt.Errorf("failed to publish low stock alert: %w", err)
	}
	return nil
}
