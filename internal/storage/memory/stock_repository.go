package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// stockRepositoryInMemory — in-memory складская книга поверх Store.
type stockRepositoryInMemory struct {
	store *Store
}

// NewStockRepository возвращает in-memory реализацию StockRepository.
func NewStockRepository(store *Store) domain.StockRepository {
	return &stockRepositoryInMemory{store: store}
}

// ActiveBatches возвращает живые партии товара в порядке создания.
func (r *stockRepositoryInMemory) ActiveBatches(_ context.Context, tx domain.Tx, productID string) ([]domain.StockBatch, error) {
	var result []domain.StockBatch
	err := r.store.exec(tx, func(t *memTx) error {
		for _, batch := range t.store.batches {
			if batch.ProductID != productID || batch.DeletedAt != nil {
				continue
			}
			result = append(result, cloneBatch(batch))
		}
		sort.Slice(result, func(i, j int) bool {
			return t.store.batchSeq[result[i].ID] < t.store.batchSeq[result[j].ID]
		})
		return nil
	})
	return result, err
}

// ReserveBatch атомарно уменьшает остаток партии при условии достаточности.
func (r *stockRepositoryInMemory) ReserveBatch(_ context.Context, tx domain.Tx, batchID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrReservationQtyInvalid
	}
	return r.store.exec(tx, func(t *memTx) error {
		batch, ok := t.store.batches[batchID]
		if !ok || batch.DeletedAt != nil {
			return domain.ErrInsufficientStock
		}
		// Условное списание: проверка и декремент под одним замком,
		// эквивалент UPDATE ... WHERE quantity >= qty.
		if batch.Quantity < qty {
			return domain.ErrInsufficientStock
		}
		batch.Quantity -= qty
		t.store.batches[batchID] = batch
		t.onRollback(func() {
			restored := t.store.batches[batchID]
			restored.Quantity += qty
			t.store.batches[batchID] = restored
		})
		return nil
	})
}

// RestoreBatch возвращает количество в партию; false — партии больше нет.
func (r *stockRepositoryInMemory) RestoreBatch(_ context.Context, tx domain.Tx, batchID string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrReservationQtyInvalid
	}
	restored := false
	err := r.store.exec(tx, func(t *memTx) error {
		batch, ok := t.store.batches[batchID]
		if !ok || batch.DeletedAt != nil {
			return nil
		}
		batch.Quantity += qty
		t.store.batches[batchID] = batch
		t.onRollback(func() {
			prev := t.store.batches[batchID]
			prev.Quantity -= qty
			t.store.batches[batchID] = prev
		})
		restored = true
		return nil
	})
	return restored, err
}

// RestoreAny возвращает количество в первую живую партию товара.
func (r *stockRepositoryInMemory) RestoreAny(ctx context.Context, tx domain.Tx, productID string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrReservationQtyInvalid
	}
	restored := false
	err := r.store.exec(tx, func(t *memTx) error {
		var target string
		bestSeq := -1
		for id, batch := range t.store.batches {
			if batch.ProductID != productID || batch.DeletedAt != nil {
				continue
			}
			if seq := t.store.batchSeq[id]; bestSeq == -1 || seq < bestSeq {
				bestSeq = seq
				target = id
			}
		}
		if target == "" {
			return nil
		}

		batch := t.store.batches[target]
		batch.Quantity += qty
		t.store.batches[target] = batch
		t.onRollback(func() {
			prev := t.store.batches[target]
			prev.Quantity -= qty
			t.store.batches[target] = prev
		})
		restored = true
		return nil
	})
	return restored, err
}

// InsertBatch добавляет партию (сидинг каталога для разработки и тестов).
func (r *stockRepositoryInMemory) InsertBatch(_ context.Context, batch domain.StockBatch) (domain.StockBatch, error) {
	err := r.store.exec(nil, func(t *memTx) error {
		if batch.ID == "" {
			batch.ID = uuid.NewString()
		}
		if batch.CreatedAt.IsZero() {
			batch.CreatedAt = time.Now().UTC()
		}
		t.store.batches[batch.ID] = cloneBatch(batch)
		t.store.batchSeq[batch.ID] = t.store.nextSeq
		t.store.nextSeq++
		return nil
	})
	return batch, err
}

// cloneBatch копирует партию вместе с указателем мягкого удаления.
func cloneBatch(batch domain.StockBatch) domain.StockBatch {
	out := batch
	if batch.DeletedAt != nil {
		deletedAt := *batch.DeletedAt
		out.DeletedAt = &deletedAt
	}
	return out
}

var _ domain.StockRepository = (*stockRepositoryInMemory)(nil)
