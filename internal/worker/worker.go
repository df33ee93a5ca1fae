package worker

import (
	"context"

	"sales-service/internal/broker"
	"sales-service/internal/models"
	"sales-service/internal/service"
	"sales-service/internal/util"

	"go.uber.org/zap"
)

// StockWorker consumes sale events and keeps stock views up to date
type StockWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewStockWorker creates a new stock worker
func NewStockWorker(consumer *broker.Consumer, watcher *service.StockWatcher) *StockWorker {
	logger := util.GetLogger()
	eventHandler := broker.NewEventHandler()

	eventHandler.OnSaleCompleted(watcher.HandleSaleCompleted)
	eventHandler.OnPaymentConfirmed(func(ctx context.Context, e *models.SalePaymentConfirmedEvent) error {
		logger.Info("Sale payment confirmed", zap.Int64("sale_id", e.SaleID))
		return nil
	})

	return &StockWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// Start starts the worker
func (w *StockWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockWorker) Stop() error {
	w.logger.Info("Stopping stock worker")
	return w.consumer.Close()
}
