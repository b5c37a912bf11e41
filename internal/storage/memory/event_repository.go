package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// eventRepositoryInMemory — in-memory журнал обработанных уведомлений шлюза.
type eventRepositoryInMemory struct {
	store *Store
}

// NewProcessedEventRepository создаёт in-memory реализацию ProcessedEventRepository.
func NewProcessedEventRepository(store *Store) domain.ProcessedEventRepository {
	return &eventRepositoryInMemory{store: store}
}

// Record фиксирует событие; повтор transaction_id — ErrDuplicateEvent.
func (r *eventRepositoryInMemory) Record(_ context.Context, tx domain.Tx, event domain.ProcessedEvent) error {
	if errs := event.Validate(); len(errs) > 0 {
		return errs[0]
	}
	return r.store.exec(tx, func(t *memTx) error {
		if _, exists := t.store.events[event.TransactionID]; exists {
			return domain.ErrDuplicateEvent
		}
		if event.ProcessedAt.IsZero() {
			event.ProcessedAt = time.Now().UTC()
		}
		id := event.TransactionID
		t.store.events[id] = event
		t.onRollback(func() {
			delete(t.store.events, id)
		})
		return nil
	})
}

// DeleteOlderThan удаляет записи старше before, не больше limit за раз.
func (r *eventRepositoryInMemory) DeleteOlderThan(_ context.Context, before time.Time, limit int) (int, error) {
	removed := 0
	err := r.store.exec(nil, func(t *memTx) error {
		for id, event := range t.store.events {
			if !event.ProcessedAt.Before(before) {
				continue
			}
			delete(t.store.events, id)
			removed++
			if limit > 0 && removed >= limit {
				break
			}
		}
		return nil
	})
	return removed, err
}

var _ domain.ProcessedEventRepository = (*eventRepositoryInMemory)(nil)
