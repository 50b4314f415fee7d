package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

const (
	createOutboxEventSQL = `
INSERT INTO outbox_events (id, aggregate_id, aggregate_type, event_type, payload, created_at, published)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getUnpublishedEventsSQL = `
SELECT id, aggregate_id, aggregate_type, event_type, payload, created_at, published_at, published
FROM outbox_events
WHERE published = FALSE
ORDER BY created_at, id
LIMIT $1`

	markEventPublishedSQL = `UPDATE outbox_events SET published = TRUE, published_at = $2 WHERE id = $1`

	deletePublishedEventsSQL = `DELETE FROM outbox_events WHERE published = TRUE AND published_at < $1`
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	db DBTX
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(db DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Create creates a new outbox event within a transaction.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, createOutboxEventSQL,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		payload,
		timeToPgTimestamptz(event.CreatedAt),
		event.Published,
	)

	return mapError("create_outbox_event", err)
}

// GetUnpublished retrieves unpublished events, oldest first.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, getUnpublishedEventsSQL, limit)
	if err != nil {
		return nil, mapError("get_unpublished_events", err)
	}
	defer rows.Close()

	events := make([]*domain.OutboxEvent, 0)
	for rows.Next() {
		var (
			e                      domain.OutboxEvent
			payload                []byte
			createdAt, publishedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &payload, &createdAt, &publishedAt, &e.Published); err != nil {
			return nil, err
		}

		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &e.Payload)
		}
		e.CreatedAt = createdAt.Time
		e.PublishedAt = timestamptzPtr(publishedAt)

		events = append(events, &e)
	}

	return events, rows.Err()
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	tag, err := r.db.Exec(ctx, markEventPublishedSQL, id, timeToPgTimestamptz(publishedAt))
	if err != nil {
		return mapError("mark_event_published", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox event %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// DeletePublished deletes published events older than the given time.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, deletePublishedEventsSQL, timeToPgTimestamptz(before))
	if err != nil {
		return 0, mapError("delete_published_events", err)
	}

	return tag.RowsAffected(), nil
}
