package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"sales-service/internal/models"
	"sales-service/internal/store"
	"sales-service/internal/util"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CheckoutStore is the persistence the checkout engine needs
type CheckoutStore interface {
	InTx(ctx context.Context, fn func(tx store.SalesTx) error) error
	GetSaleByIdempotencyKey(ctx context.Context, key string) (*models.Sale, error)
}

// CheckoutCache is the Redis side of a checkout: stock cache invalidation and
// the in-flight guard for idempotency keys
type CheckoutCache interface {
	InvalidateStock(ctx context.Context, productIDs ...int64) error
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	CompleteIdempotencyKey(ctx context.Context, key string, saleID int64, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
	LookupIdempotencyKey(ctx context.Context, key string) (saleID int64, inFlight bool, err error)
}

// CheckoutOptions tunes timeouts and retries of the checkout engine
type CheckoutOptions struct {
	AttemptTimeout time.Duration
	MaxAttempts    int
	RetryInterval  time.Duration
	IdempotencyTTL time.Duration
	Topic          string
}

func (o CheckoutOptions) withDefaults() CheckoutOptions {
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 10 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 100 * time.Millisecond
	}
	if o.IdempotencyTTL <= 0 {
		o.IdempotencyTTL = 24 * time.Hour
	}
	if o.Topic == "" {
		o.Topic = "sale-events"
	}
	return o
}

// CheckoutService is the only component that creates sales and decrements stock
type CheckoutService struct {
	store  CheckoutStore
	cache  CheckoutCache
	opts   CheckoutOptions
	logger *zap.Logger
}

// NewCheckoutService creates a new checkout service. cache may be nil.
func NewCheckoutService(store CheckoutStore, cache CheckoutCache, opts CheckoutOptions) *CheckoutService {
	return &CheckoutService{
		store:  store,
		cache:  cache,
		opts:   opts.withDefaults(),
		logger: util.GetLogger(),
	}
}

// CheckoutRequest represents a request to sell a cart
type CheckoutRequest struct {
	CustomerID     int64                `json:"customer_id" binding:"required"`
	SellerID       int64                `json:"seller_id" binding:"required"`
	PaymentMethod  models.PaymentMethod `json:"payment_method" binding:"required"`
	PaymentStatus  models.PaymentStatus `json:"payment_status,omitempty"`
	Items          []CartItem           `json:"items"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

// CheckoutResult represents the outcome of a committed checkout
type CheckoutResult struct {
	SaleID        int64                `json:"sale_id"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Totals
	Replayed bool `json:"replayed,omitempty"`
}

// productDemand is the total quantity a cart asks of one product
type productDemand struct {
	ProductID int64
	Quantity  int
}

// EffectuatePurchase validates the cart, then in one transaction locks and checks
// stock, prices the sale, records it with its lines and decrements stock.
// Either every effect is committed or none is.
func (s *CheckoutService) EffectuatePurchase(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.EffectuatePurchase",
		attribute.Int64("customer_id", req.CustomerID),
		attribute.Int64("seller_id", req.SellerID),
		attribute.Int("lines", len(req.Items)))
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutDuration.Observe(time.Since(start).Seconds())
	}()

	result, err := s.effectuate(ctx, req)
	if err != nil {
		util.SalesFailedTotal.WithLabelValues(failureReason(err)).Inc()
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("sale_id", result.SaleID), attribute.Bool("replayed", result.Replayed))
	return result, nil
}

func (s *CheckoutService) effectuate(ctx context.Context, req *CheckoutRequest) (result *CheckoutResult, err error) {
	status, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	if key != "" {
		result, err = s.replay(ctx, key)
		if err != nil || result != nil {
			return result, err
		}

		var claimed bool
		claimed, err = s.claim(ctx, key)
		if err != nil {
			return nil, err
		}
		if claimed {
			defer func() {
				if err != nil {
					s.releaseClaim(key)
				}
			}()
		}
	}

	result, err = s.runWithRetry(ctx, req, status)
	if errors.Is(err, errIdempotencyRace) {
		return s.replay(ctx, key)
	}
	if err != nil {
		s.logger.Warn("Checkout failed",
			zap.Int64("customer_id", req.CustomerID),
			zap.Int64("seller_id", req.SellerID),
			zap.Error(err))
		return nil, err
	}

	util.SalesCompletedTotal.Inc()
	if result.Discount.IsPositive() {
		util.SalesDiscountedTotal.Inc()
	}
	util.SaleNetAmount.Observe(result.Net.InexactFloat64())

	s.logger.Info("Sale completed",
		zap.Int64("sale_id", result.SaleID),
		zap.Int64("customer_id", req.CustomerID),
		zap.String("net_total", result.Net.StringFixed(2)))

	s.afterCommit(ctx, req, result)
	return result, nil
}

var errIdempotencyRace = errors.New("idempotency race")

// runWithRetry bounds each attempt with a deadline and retries only failures
// that rolled back cleanly because of lock contention
func (s *CheckoutService) runWithRetry(ctx context.Context, req *CheckoutRequest, status models.PaymentStatus) (*CheckoutResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInterval
	b.MaxInterval = 10 * s.opts.RetryInterval

	attempt := 0
	op := func() (*CheckoutResult, error) {
		attempt++
		if attempt > 1 {
			util.CheckoutRetriesTotal.Inc()
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
		defer cancel()

		result, err := s.checkoutOnce(attemptCtx, req, status)
		if err == nil {
			return result, nil
		}

		var txErr *TransactionFailedError
		if errors.As(err, &txErr) && txErr.Retryable {
			s.logger.Warn("Retryable checkout failure",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.opts.MaxAttempts)))

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if err != nil && !errors.Is(err, ErrTransactionFailed) &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = &TransactionFailedError{Err: err, Retryable: true}
	}
	return result, err
}

func (s *CheckoutService) checkoutOnce(ctx context.Context, req *CheckoutRequest, status models.PaymentStatus) (*CheckoutResult, error) {
	var result *CheckoutResult

	err := s.store.InTx(ctx, func(tx store.SalesTx) error {
		flags, err := tx.GetDiscountFlags(ctx, req.CustomerID)
		if errors.Is(err, store.ErrNotFound) {
			return &InvalidReferenceError{Entity: "customer", ID: req.CustomerID}
		}
		if err != nil {
			return fmt.Errorf("failed to read customer: %w", err)
		}

		sellerOK, err := tx.SellerExists(ctx, req.SellerID)
		if err != nil {
			return fmt.Errorf("failed to read seller: %w", err)
		}
		if !sellerOK {
			return &InvalidReferenceError{Entity: "seller", ID: req.SellerID}
		}

		demand := aggregateDemand(req.Items)
		levels, err := s.guardStock(ctx, tx, demand)
		if err != nil {
			return err
		}

		totals := ComputeTotals(req.Items, flags)

		sale := &models.Sale{
			CustomerID:    req.CustomerID,
			SellerID:      req.SellerID,
			PaymentMethod: req.PaymentMethod,
			PaymentStatus: status,
			GrossTotal:    totals.Gross,
			Discount:      totals.Discount,
			NetTotal:      totals.Net,
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			sale.IdempotencyKey = &key
		}

		if err := tx.InsertSale(ctx, sale); err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}

		eventItems := make([]models.SaleItemData, 0, len(req.Items))
		for _, item := range req.Items {
			line := &models.SaleLineItem{
				SaleID:    sale.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			}
			if err := tx.InsertSaleLineItem(ctx, line); err != nil {
				return fmt.Errorf("failed to insert sale line item: %w", err)
			}
			eventItems = append(eventItems, models.SaleItemData{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}

		for _, d := range demand {
			if err := tx.DecrementStock(ctx, d.ProductID, d.Quantity); err != nil {
				return err
			}

			previous := levels[d.ProductID].Quantity
			saleID := sale.ID
			if err := tx.InsertStockMovement(ctx, &models.StockMovement{
				ProductID:   d.ProductID,
				Kind:        models.MovementSale,
				Delta:       -d.Quantity,
				PreviousQty: previous,
				NewQty:      previous - d.Quantity,
				SaleID:      &saleID,
			}); err != nil {
				return fmt.Errorf("failed to record stock movement: %w", err)
			}
		}

		event := &models.SaleCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSaleCompleted,
				Timestamp: time.Now().UTC(),
			},
			SaleID:        sale.ID,
			CustomerID:    sale.CustomerID,
			SellerID:      sale.SellerID,
			PaymentMethod: sale.PaymentMethod,
			PaymentStatus: sale.PaymentStatus,
			GrossTotal:    sale.GrossTotal,
			Discount:      sale.Discount,
			NetTotal:      sale.NetTotal,
			Items:         eventItems,
		}
		if err := tx.InsertOutbox(ctx, event.EventID, s.opts.Topic, saleKey(sale.ID), event); err != nil {
			return fmt.Errorf("failed to enqueue sale event: %w", err)
		}

		result = &CheckoutResult{
			SaleID:        sale.ID,
			PaymentStatus: sale.PaymentStatus,
			Totals:        totals,
		}
		return nil
	})
	if err != nil {
		return nil, s.classify(req, err)
	}
	return result, nil
}

// guardStock locks every product row in ascending id order and checks the
// aggregated demand against the locked quantity. The check and the later
// decrement share the same locks, so concurrent checkouts cannot oversell.
func (s *CheckoutService) guardStock(ctx context.Context, tx store.SalesTx, demand []productDemand) (map[int64]*models.StockLevel, error) {
	start := time.Now()
	defer func() {
		util.StockLockLatency.Observe(time.Since(start).Seconds())
	}()

	levels := make(map[int64]*models.StockLevel, len(demand))
	for _, d := range demand {
		level, err := tx.LockStock(ctx, d.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, &InvalidReferenceError{Entity: "product", ID: d.ProductID}
		}
		if err != nil {
			return nil, err
		}
		if !level.Active {
			return nil, &InvalidReferenceError{Entity: "product", ID: d.ProductID, Reason: "product is no longer sold"}
		}
		if level.Quantity < d.Quantity {
			return nil, newInsufficientStockError(d.ProductID, level.ProductName, d.Quantity, level.Quantity)
		}
		levels[d.ProductID] = level
	}
	return levels, nil
}

// classify turns a rolled-back transaction error into the checkout error taxonomy
func (s *CheckoutService) classify(req *CheckoutRequest, err error) error {
	if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrInvalidReference) {
		return err
	}
	if req.IdempotencyKey != "" && store.IsUniqueViolation(err) {
		return errIdempotencyRace
	}

	retryable := store.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)
	return &TransactionFailedError{Err: err, Retryable: retryable}
}

// replay returns the result of an earlier sale with the same idempotency key
func (s *CheckoutService) replay(ctx context.Context, key string) (*CheckoutResult, error) {
	sale, err := s.store.GetSaleByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, &TransactionFailedError{Err: fmt.Errorf("failed to check idempotency: %w", err), Retryable: true}
	}
	if sale == nil {
		return nil, nil
	}

	s.logger.Info("Duplicate checkout request detected",
		zap.String("idempotency_key", key),
		zap.Int64("sale_id", sale.ID))

	return &CheckoutResult{
		SaleID:        sale.ID,
		PaymentStatus: sale.PaymentStatus,
		Totals: Totals{
			Gross:    sale.GrossTotal,
			Discount: sale.Discount,
			Net:      sale.NetTotal,
		},
		Replayed: true,
	}, nil
}

// claim marks the idempotency key in flight for at most one full run of
// attempts. Redis being unavailable does not block checkouts; the unique key
// on sales still prevents duplicates.
func (s *CheckoutService) claim(ctx context.Context, key string) (bool, error) {
	if s.cache == nil {
		return false, nil
	}

	inFlightTTL := time.Duration(s.opts.MaxAttempts+1) * s.opts.AttemptTimeout
	claimed, err := s.cache.ClaimIdempotencyKey(ctx, key, inFlightTTL)
	if err != nil {
		s.logger.Warn("Idempotency guard unavailable", zap.String("idempotency_key", key), zap.Error(err))
		return false, nil
	}
	if claimed {
		return true, nil
	}

	_, inFlight, err := s.cache.LookupIdempotencyKey(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.String("idempotency_key", key), zap.Error(err))
		return false, nil
	}
	if inFlight {
		return false, ErrCheckoutInProgress
	}
	// completed since the replay check; the insert will hit the unique key and replay
	return false, nil
}

func (s *CheckoutService) releaseClaim(key string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.cache.ReleaseIdempotencyKey(ctx, key); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(err))
	}
}

// afterCommit updates Redis once the sale is durable. Failures only leave the
// cache stale until its TTL, so they are logged and swallowed.
func (s *CheckoutService) afterCommit(ctx context.Context, req *CheckoutRequest, result *CheckoutResult) {
	if s.cache == nil {
		return
	}

	productIDs := make([]int64, 0, len(req.Items))
	for _, d := range aggregateDemand(req.Items) {
		productIDs = append(productIDs, d.ProductID)
	}
	if err := s.cache.InvalidateStock(ctx, productIDs...); err != nil {
		s.logger.Warn("Failed to invalidate stock cache", zap.Int64("sale_id", result.SaleID), zap.Error(err))
	}

	if req.IdempotencyKey != "" {
		if err := s.cache.CompleteIdempotencyKey(ctx, req.IdempotencyKey, result.SaleID, s.opts.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to record idempotency key", zap.Int64("sale_id", result.SaleID), zap.Error(err))
		}
	}
}

// validateRequest rejects malformed requests before any I/O and resolves the payment status
func validateRequest(req *CheckoutRequest) (models.PaymentStatus, error) {
	if len(req.Items) == 0 {
		return "", ErrEmptyCart
	}
	for i, item := range req.Items {
		if err := validateLine(item); err != nil {
			return "", fmt.Errorf("line %d: %w", i, err)
		}
	}
	if !req.PaymentMethod.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}

	status := req.PaymentStatus
	if status == "" {
		status = req.PaymentMethod.DefaultStatus()
	}
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, status)
	}
	return status, nil
}

func validateLine(item CartItem) error {
	switch {
	case item.ProductID <= 0:
		return fmt.Errorf("%w: product id must be positive", ErrInvalidCartLine)
	case item.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidCartLine, item.Quantity)
	case !item.UnitPrice.IsPositive():
		return fmt.Errorf("%w: unit price must be positive, got %s", ErrInvalidCartLine, item.UnitPrice)
	case !item.UnitPrice.Equal(item.UnitPrice.Round(2)):
		return fmt.Errorf("%w: unit price has more than two decimals: %s", ErrInvalidCartLine, item.UnitPrice)
	}
	return nil
}

// aggregateDemand sums quantities per product, sorted by product id so every
// checkout acquires row locks in the same order
func aggregateDemand(items []CartItem) []productDemand {
	totals := make(map[int64]int, len(items))
	for _, item := range items {
		totals[item.ProductID] += item.Quantity
	}

	demand := make([]productDemand, 0, len(totals))
	for productID, qty := range totals {
		demand = append(demand, productDemand{ProductID: productID, Quantity: qty})
	}
	sort.Slice(demand, func(i, j int) bool {
		return demand[i].ProductID < demand[j].ProductID
	})
	return demand
}

func saleKey(saleID int64) string {
	return fmt.Sprintf("sale-%d", saleID)
}
