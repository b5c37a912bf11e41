package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
// Методы, принимающие Tx, выполняются внутри единицы работы UnitOfWork.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	Create(ctx context.Context, tx Tx, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	// Мягко удалённые заказы не возвращаются.
	Get(ctx context.Context, id string) (Order, error)
	// GetForUpdate возвращает заказ, захватывая его на время транзакции.
	// Обработка событий одного заказа сериализуется этим захватом.
	GetForUpdate(ctx context.Context, tx Tx, id string) (Order, error)
	// ListByCustomer возвращает заказы клиента, новые первыми.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
	// Save применяет статус, способ оплаты и updated_at с учётом optimistic locking.
	Save(ctx context.Context, tx Tx, order Order) error
	// SoftDelete помечает заказ удалённым, сохраняя запись для аудита.
	SoftDelete(ctx context.Context, tx Tx, id string, at time.Time) error
}

// StockRepository — складская книга: атомарные операции над партиями.
type StockRepository interface {
	// ActiveBatches возвращает живые партии товара в порядке создания
	// (детерминированный tie-break выбора партии).
	ActiveBatches(ctx context.Context, tx Tx, productID string) ([]StockBatch, error)
	// ReserveBatch атомарно уменьшает остаток партии при условии достаточности:
	// эквивалент UPDATE ... SET quantity = quantity - n WHERE quantity >= n.
	// При проигранной гонке возвращает ErrInsufficientStock.
	ReserveBatch(ctx context.Context, tx Tx, batchID string, qty int32) error
	// RestoreBatch возвращает количество в партию; false — партии больше нет.
	RestoreBatch(ctx context.Context, tx Tx, batchID string, qty int32) (bool, error)
	// RestoreAny возвращает количество в любую живую партию товара;
	// false — живых партий нет и остаток потерян (логируется для ручной сверки).
	RestoreAny(ctx context.Context, tx Tx, productID string, qty int32) (bool, error)
	// InsertBatch добавляет партию (сидинг каталога для разработки и тестов).
	InsertBatch(ctx context.Context, batch StockBatch) (StockBatch, error)
}

// ProcessedEventRepository хранит обработанные уведомления шлюза для дедупликации.
type ProcessedEventRepository interface {
	// Record фиксирует событие; на повтор transaction_id возвращает ErrDuplicateEvent.
	Record(ctx context.Context, tx Tx, event ProcessedEvent) error
	// DeleteOlderThan удаляет записи старше before, не больше limit за раз.
	DeleteOlderThan(ctx context.Context, before time.Time, limit int) (int, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	// Enqueue сохраняет событие в той же единице работы, что и доменное изменение.
	Enqueue(ctx context.Context, tx Tx, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}
