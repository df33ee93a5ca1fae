package store

import (
	"context"

	"sales-service/internal/models"
)

// FetchPendingOutbox returns unsent outbox records in insertion order
func (s *Store) FetchPendingOutbox(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	records := []models.OutboxRecord{}
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, event_id, topic, key, payload, created_at, sent_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	return records, err
}

// MarkOutboxSent flags an outbox record as delivered
func (s *Store) MarkOutboxSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE outbox SET sent_at = NOW() WHERE id = $1", id)
	return err
}
