package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type processedEventRepository struct {
	store *Store
}

// NewProcessedEventRepository создаёт PostgreSQL-реализацию ProcessedEventRepository.
func NewProcessedEventRepository(store *Store) domain.ProcessedEventRepository {
	return &processedEventRepository{store: store}
}

// Record фиксирует обработанное уведомление. Повтор transaction_id бьётся
// об уникальный индекс и возвращает ErrDuplicateEvent.
func (r *processedEventRepository) Record(ctx context.Context, tx domain.Tx, event domain.ProcessedEvent) error {
	if errs := event.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	q, err := r.store.q(tx)
	if err != nil {
		return err
	}

	processedAt := event.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO processed_payment_events (transaction_id, order_id, status, processed_at)
		VALUES ($1,$2,$3,$4)
	`, event.TransactionID, event.OrderID, event.Status, processedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("record processed event: %w", err)
	}

	return nil
}

func (r *processedEventRepository) DeleteOlderThan(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}

	res, err := r.store.db.ExecContext(ctx, `
		DELETE FROM processed_payment_events
		WHERE transaction_id IN (
			SELECT transaction_id
			FROM processed_payment_events
			WHERE processed_at < $1
			ORDER BY processed_at ASC
			LIMIT $2
		)
	`, before, limit)
	if err != nil {
		return 0, fmt.Errorf("delete processed events: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

var _ domain.ProcessedEventRepository = (*processedEventRepository)(nil)
