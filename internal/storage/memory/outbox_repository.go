package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// OutboxRepository — in-memory хранилище transactional outbox поверх Store.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository создаёт in-memory реализацию outbox.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// Enqueue сохраняет событие со статусом `pending` в той же единице работы,
// что и доменное изменение, и возвращает его идентификатор.
func (r *OutboxRepository) Enqueue(_ context.Context, tx domain.Tx, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	err := r.store.exec(tx, func(t *memTx) error {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		id := msg.ID
		t.store.outbox[id] = &outboxRecord{
			msg:       msg,
			status:    "pending",
			createdAt: now,
			updatedAt: now,
		}
		t.onRollback(func() {
			delete(t.store.outbox, id)
		})
		return nil
	})
	return msg, err
}

// PullPending возвращает до limit сообщений со статусом `pending`, старые первыми.
func (r *OutboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var pending []*outboxRecord
	err := r.store.exec(nil, func(t *memTx) error {
		for _, rec := range t.store.outbox {
			if rec.status == "pending" {
				pending = append(pending, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].createdAt.Before(pending[j].createdAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

// Stats возвращает размер backlog и возраст самого старого pending сообщения.
func (r *OutboxRepository) Stats(_ context.Context) (domain.OutboxStats, error) {
	var stats domain.OutboxStats
	err := r.store.exec(nil, func(t *memTx) error {
		for _, rec := range t.store.outbox {
			if rec.status != "pending" {
				continue
			}
			stats.PendingCount++
			if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
				stats.OldestPendingAt = rec.createdAt
			}
		}
		return nil
	})
	return stats, err
}

// MarkSent обновляет статус события после успешной публикации.
func (r *OutboxRepository) MarkSent(_ context.Context, id string) error {
	return r.markStatus(id, "sent")
}

// MarkFailed фиксирует ошибку публикации.
func (r *OutboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.markStatus(id, "failed")
}

func (r *OutboxRepository) markStatus(id, status string) error {
	return r.store.exec(nil, func(t *memTx) error {
		record, ok := t.store.outbox[id]
		if !ok {
			return domain.ErrOutboxPublish
		}
		record.status = status
		record.attemptCnt++
		record.updatedAt = time.Now().UTC()
		return nil
	})
}

// AllPending возвращает копию всех сообщений со статусом `pending` (используется в тестах).
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	result := make([]domain.OutboxMessage, 0)
	_ = r.store.exec(nil, func(t *memTx) error {
		for _, rec := range t.store.outbox {
			if rec.status == "pending" {
				result = append(result, rec.msg)
			}
		}
		return nil
	})
	return result
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
