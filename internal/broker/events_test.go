package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"sales-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte("sale-1"), Value: value}
}

func TestHandleMessageRoutesSaleCompleted(t *testing.T) {
	handler := NewEventHandler()

	var got *models.SaleCompletedEvent
	handler.OnSaleCompleted(func(ctx context.Context, e *models.SaleCompletedEvent) error {
		got = e
		return nil
	})

	event := models.SaleCompletedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeSaleCompleted, Timestamp: time.Now()},
		SaleID:    1,
		NetTotal:  decimal.RequireFromString("18.00"),
		Items:     []models.SaleItemData{{ProductID: 3, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")}},
	}

	require.NoError(t, handler.HandleMessage(context.Background(), message(t, event)))
	require.NotNil(t, got)
	assert.Equal(t, "evt-1", got.EventID)
	assert.True(t, got.NetTotal.Equal(decimal.RequireFromString("18")))
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(3), got.Items[0].ProductID)
}

func TestHandleMessageRoutesPaymentConfirmed(t *testing.T) {
	handler := NewEventHandler()

	called := false
	handler.OnSaleCompleted(func(ctx context.Context, e *models.SaleCompletedEvent) error {
		t.Fatal("sale handler must not run for payment events")
		return nil
	})
	handler.OnPaymentConfirmed(func(ctx context.Context, e *models.SalePaymentConfirmedEvent) error {
		called = true
		assert.Equal(t, int64(7), e.SaleID)
		return nil
	})

	event := models.SalePaymentConfirmedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeSalePaymentConfirmed},
		SaleID:    7,
	}

	require.NoError(t, handler.HandleMessage(context.Background(), message(t, event)))
	assert.True(t, called)
}

func TestHandleMessageIgnoresUnknownTypes(t *testing.T) {
	handler := NewEventHandler()

	event := models.BaseEvent{EventID: "evt-3", EventType: models.EventTypeStockLow}
	assert.NoError(t, handler.HandleMessage(context.Background(), message(t, event)))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	handler := NewEventHandler()

	err := handler.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestHandlerErrorIsReturned(t *testing.T) {
	handler := NewEventHandler()
	handler.OnSaleCompleted(func(ctx context.Context, e *models.SaleCompletedEvent) error {
		return assert.AnError
	})

	event := models.BaseEvent{EventID: "evt-4", EventType: models.EventTypeSaleCompleted}
	assert.ErrorIs(t, handler.HandleMessage(context.Background(), message(t, event)), assert.AnError)
}
