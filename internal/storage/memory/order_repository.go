package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository поверх Store.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

// Create сохраняет новый заказ вместе с позициями, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(_ context.Context, tx domain.Tx, order domain.Order) error {
	return r.store.exec(tx, func(t *memTx) error {
		if _, exists := t.store.orders[order.ID]; exists {
			return domain.ErrOrderVersionConflict
		}
		id := order.ID
		// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
		t.store.orders[id] = cloneOrder(order)
		t.onRollback(func() {
			delete(t.store.orders, id)
		})
		return nil
	})
}

// Get возвращает заказ или ErrOrderNotFound, если его нет либо он мягко удалён.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	var out domain.Order
	err := r.store.exec(nil, func(t *memTx) error {
		order, ok := t.store.orders[id]
		if !ok || order.DeletedAt != nil {
			return domain.ErrOrderNotFound
		}
		out = cloneOrder(order)
		return nil
	})
	return out, err
}

// GetForUpdate возвращает заказ внутри транзакции. Сериализация по заказу
// обеспечивается общим замком стора на время единицы работы.
func (r *orderRepositoryInMemory) GetForUpdate(_ context.Context, tx domain.Tx, id string) (domain.Order, error) {
	var out domain.Order
	err := r.store.exec(tx, func(t *memTx) error {
		order, ok := t.store.orders[id]
		if !ok || order.DeletedAt != nil {
			return domain.ErrOrderNotFound
		}
		out = cloneOrder(order)
		return nil
	})
	return out, err
}

// ListByCustomer возвращает заказы клиента, новые первыми.
func (r *orderRepositoryInMemory) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Order, error) {
	var result []domain.Order
	err := r.store.exec(nil, func(t *memTx) error {
		result = make([]domain.Order, 0, len(t.store.orders))
		for _, order := range t.store.orders {
			if order.CustomerID != customerID || order.DeletedAt != nil {
				continue
			}
			result = append(result, cloneOrder(order))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает статус, способ оплаты и updated_at, проверяя версию
// (optimistic locking). Версия инкрементируется перед сохранением.
func (r *orderRepositoryInMemory) Save(_ context.Context, tx domain.Tx, order domain.Order) error {
	return r.store.exec(tx, func(t *memTx) error {
		current, ok := t.store.orders[order.ID]
		if !ok {
			return domain.ErrOrderNotFound
		}
		if current.Version != order.Version {
			return domain.ErrOrderVersionConflict
		}

		prev := current
		updated := cloneOrder(current)
		updated.Status = order.Status
		updated.PaymentMethod = order.PaymentMethod
		updated.UpdatedAt = order.UpdatedAt
		updated.Version++

		t.store.orders[order.ID] = updated
		t.onRollback(func() {
			t.store.orders[prev.ID] = prev
		})
		return nil
	})
}

// SoftDelete помечает заказ удалённым, сохраняя запись для аудита.
func (r *orderRepositoryInMemory) SoftDelete(_ context.Context, tx domain.Tx, id string, at time.Time) error {
	return r.store.exec(tx, func(t *memTx) error {
		current, ok := t.store.orders[id]
		if !ok || current.DeletedAt != nil {
			return domain.ErrOrderNotFound
		}

		prev := current
		updated := cloneOrder(current)
		deletedAt := at
		updated.DeletedAt = &deletedAt

		t.store.orders[id] = updated
		t.onRollback(func() {
			t.store.orders[prev.ID] = prev
		})
		return nil
	})
}

// cloneOrder делает глубокую копию заказа вместе с позициями.
func cloneOrder(order domain.Order) domain.Order {
	out := order
	out.Lines = make([]domain.OrderLine, len(order.Lines))
	copy(out.Lines, order.Lines)
	if order.DeletedAt != nil {
		deletedAt := *order.DeletedAt
		out.DeletedAt = &deletedAt
	}
	return out
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
