package service

import (
	"context"
	"testing"
	"time"

	"sales-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLedger struct {
	processed map[string]string
}

func (l *memLedger) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	_, ok := l.processed[eventID]
	return ok, nil
}

func (l *memLedger) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	l.processed[eventID] = eventType
	return nil
}

type capturePublisher struct {
	events []*models.StockLowEvent
}

func (p *capturePublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	p.events = append(p.events, event)
	return nil
}

func saleEvent(id string, productIDs ...int64) *models.SaleCompletedEvent {
	items := make([]models.SaleItemData, 0, len(productIDs))
	for _, pid := range productIDs {
		items = append(items, models.SaleItemData{ProductID: pid, Quantity: 1, UnitPrice: price("1.00")})
	}
	return &models.SaleCompletedEvent{
		BaseEvent: models.BaseEvent{EventID: id, EventType: models.EventTypeSaleCompleted, Timestamp: time.Now()},
		SaleID:    1,
		Items:     items,
	}
}

func TestStockWatcherAlertsOnLowStock(t *testing.T) {
	stock, _, cache := setupStockService(t,
		models.StockLevel{ProductID: 1, ProductName: "Collar", Active: true, Quantity: 2},
		models.StockLevel{ProductID: 2, ProductName: "Leash", Active: true, Quantity: 40},
	)
	ledger := &memLedger{processed: map[string]string{}}
	publisher := &capturePublisher{}
	watcher := NewStockWatcher(ledger, stock, publisher)
	ctx := context.Background()

	require.NoError(t, watcher.HandleSaleCompleted(ctx, saleEvent("evt-1", 1, 2, 1)))

	require.Len(t, publisher.events, 1)
	alert := publisher.events[0]
	assert.Equal(t, models.EventTypeStockLow, alert.EventType)
	assert.Equal(t, int64(1), alert.ProductID)
	assert.Equal(t, "Collar", alert.ProductName)
	assert.Equal(t, 2, alert.Quantity)
	assert.Equal(t, 5, alert.Threshold)

	qty, found, err := cache.GetStock(ctx, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 40, qty)

	assert.Equal(t, models.EventTypeSaleCompleted, ledger.processed["evt-1"])
}

func TestStockWatcherSkipsProcessedEvents(t *testing.T) {
	stock, _, _ := setupStockService(t, models.StockLevel{ProductID: 1, Active: true, Quantity: 0})
	ledger := &memLedger{processed: map[string]string{"evt-1": models.EventTypeSaleCompleted}}
	publisher := &capturePublisher{}
	watcher := NewStockWatcher(ledger, stock, publisher)

	require.NoError(t, watcher.HandleSaleCompleted(context.Background(), saleEvent("evt-1", 1)))
	assert.Empty(t, publisher.events)
}

func TestStockWatcherWithoutPublisher(t *testing.T) {
	stock, _, _ := setupStockService(t, models.StockLevel{ProductID: 1, Active: true, Quantity: 0})
	ledger := &memLedger{processed: map[string]string{}}
	watcher := NewStockWatcher(ledger, stock, nil)

	require.NoError(t, watcher.HandleSaleCompleted(context.Background(), saleEvent("evt-2", 1)))
	assert.Contains(t, ledger.processed, "evt-2")
}
