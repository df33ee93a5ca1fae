package worker

import (
	"context"
	"time"

	"sales-service/internal/models"
	"sales-service/internal/util"

	"go.uber.org/zap"
)

const outboxLockKey = "outbox-relay"

// OutboxSource is where committed but unpublished events wait
type OutboxSource interface {
	FetchPendingOutbox(ctx context.Context, limit int) ([]models.OutboxRecord, error)
	MarkOutboxSent(ctx context.Context, id int64) error
}

// Publisher delivers one encoded event
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Locker elects a single relay among service instances
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// OutboxRelay publishes outbox records in insertion order. A record is marked
// sent only after the broker accepted it, so delivery is at least once.
type OutboxRelay struct {
	source    OutboxSource
	publisher Publisher
	locker    Locker
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	done      chan struct{}
}

// NewOutboxRelay creates a new relay. locker may be nil for a single instance.
func NewOutboxRelay(source OutboxSource, publisher Publisher, locker Locker, interval time.Duration, batchSize int) *OutboxRelay {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		source:    source,
		publisher: publisher,
		locker:    locker,
		interval:  interval,
		batchSize: batchSize,
		logger:    util.GetLogger(),
		done:      make(chan struct{}),
	}
}

// Start polls the outbox until ctx is cancelled or Stop is called
func (r *OutboxRelay) Start(ctx context.Context) error {
	r.logger.Info("Starting outbox relay", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.Error("Outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// Stop stops the relay
func (r *OutboxRelay) Stop() error {
	r.logger.Info("Stopping outbox relay")
	close(r.done)
	return nil
}

// RelayOnce publishes one batch and returns how many records were sent.
// It stops at the first publish failure to keep per-key ordering.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	if r.locker != nil {
		token, ok, err := r.locker.AcquireLock(ctx, outboxLockKey, 4*r.interval+5*time.Second)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		defer func() {
			if err := r.locker.ReleaseLock(context.Background(), outboxLockKey, token); err != nil {
				r.logger.Warn("Failed to release outbox lock", zap.Error(err))
			}
		}()
	}

	records, err := r.source.FetchPendingOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range records {
		if err := r.publisher.Publish(ctx, rec.Topic, rec.Key, rec.Payload); err != nil {
			util.OutboxPublishFailedTotal.Inc()
			return sent, err
		}
		if err := r.source.MarkOutboxSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		util.OutboxPublishedTotal.Inc()
		sent++
	}

	if sent > 0 {
		r.logger.Debug("Relayed outbox events", zap.Int("count", sent))
	}
	return sent, nil
}
