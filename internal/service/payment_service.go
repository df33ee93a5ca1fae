package service

import (
	"context"
	"fmt"
	"time"

	"sales-service/internal/models"
	"sales-service/internal/store"
	"sales-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentStore runs payment status changes in a transaction
type PaymentStore interface {
	InTx(ctx context.Context, fn func(tx store.SalesTx) error) error
}

// PaymentService settles pending sales
type PaymentService struct {
	store  PaymentStore
	topic  string
	logger *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store PaymentStore, topic string) *PaymentService {
	return &PaymentService{
		store:  store,
		topic:  topic,
		logger: util.GetLogger(),
	}
}

// ConfirmPayment moves a pending sale to confirmed.
// Confirming an already confirmed sale is a no-op.
func (ps *PaymentService) ConfirmPayment(ctx context.Context, saleID int64) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ConfirmPayment")
	defer span.End()

	var confirmed *models.Sale
	changed := false
	err := ps.store.InTx(ctx, func(tx store.SalesTx) error {
		sale, err := tx.LockSale(ctx, saleID)
		if err != nil {
			return err
		}

		if sale.PaymentStatus == models.PaymentStatusConfirmed {
			confirmed = sale
			return nil
		}

		if err := tx.SetPaymentStatus(ctx, saleID, models.PaymentStatusConfirmed); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		sale.PaymentStatus = models.PaymentStatusConfirmed

		event := &models.SalePaymentConfirmedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSalePaymentConfirmed,
				Timestamp: time.Now().UTC(),
			},
			SaleID:   sale.ID,
			NetTotal: sale.NetTotal,
		}
		if err := tx.InsertOutbox(ctx, event.EventID, ps.topic, saleKey(sale.ID), event); err != nil {
			return fmt.Errorf("failed to enqueue payment event: %w", err)
		}

		confirmed = sale
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		util.PaymentsConfirmedTotal.Inc()
		ps.logger.Info("Payment confirmed", zap.Int64("sale_id", saleID))
	}
	return confirmed, nil
}
