package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// Create stages an outbox event.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	e := *event
	return mt.stage(func(s *Store) {
		s.outbox[e.ID] = &e
		s.outboxSeq = append(s.outboxSeq, e.ID)
	})
}

// GetUnpublished returns up to limit unpublished events, oldest first.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var events []*domain.OutboxEvent
	for _, id := range r.store.outboxSeq {
		e := r.store.outbox[id]
		if e.Published {
			continue
		}
		c := *e
		events = append(events, &c)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.outbox[id]
	if !ok {
		return fmt.Errorf("outbox event %s: %w", id, domain.ErrNotFound)
	}
	e.Published = true
	e.PublishedAt = &publishedAt
	return nil
}

// DeletePublished drops published events whose publish time is before the cutoff.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	kept := r.store.outboxSeq[:0]
	for _, id := range r.store.outboxSeq {
		e := r.store.outbox[id]
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			delete(r.store.outbox, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	r.store.outboxSeq = kept

	return deleted, nil
}
