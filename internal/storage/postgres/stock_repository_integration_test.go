package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

func seedBatchForTest(t *testing.T, repo domain.StockRepository, productID string, qty int32, createdAt time.Time) domain.StockBatch {
	t.Helper()

	batch, err := repo.InsertBatch(context.Background(), domain.StockBatch{
		ProductID:  productID,
		PriceMinor: 1500,
		Quantity:   qty,
		ExpiresAt:  createdAt.Add(24 * time.Hour),
		CreatedAt:  createdAt,
	})
	if err != nil {
		t.Fatalf("insert stock batch: %v", err)
	}
	return batch
}

func batchQuantityByID(t *testing.T, store *Store, batchID string) int32 {
	t.Helper()

	var qty int32
	err := store.DB().QueryRowContext(context.Background(), `
		SELECT quantity FROM stock_batches WHERE id = $1
	`, batchID).Scan(&qty)
	if err != nil {
		t.Fatalf("read batch quantity: %v", err)
	}
	return qty
}

func TestStockRepository_PostgresReserveAndRestore(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewStockRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	batch := seedBatchForTest(t, repo, "prod-reserve", 10, now)

	err := store.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		return repo.ReserveBatch(ctx, tx, batch.ID, 4)
	})
	if err != nil {
		t.Fatalf("reserve batch: %v", err)
	}
	if got := batchQuantityByID(t, store, batch.ID); got != 6 {
		t.Fatalf("expected quantity 6 after reserve, got %d", got)
	}

	// Больше остатка — отказ без частичного списания.
	err = store.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		return repo.ReserveBatch(ctx, tx, batch.ID, 7)
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := batchQuantityByID(t, store, batch.ID); got != 6 {
		t.Fatalf("failed reserve must not change quantity, got %d", got)
	}

	restored, err := repo.RestoreBatch(ctx, nil, batch.ID, 4)
	if err != nil {
		t.Fatalf("restore batch: %v", err)
	}
	if !restored {
		t.Fatal("expected restore to hit the batch")
	}
	if got := batchQuantityByID(t, store, batch.ID); got != 10 {
		t.Fatalf("expected quantity 10 after restore, got %d", got)
	}

	restored, err = repo.RestoreBatch(ctx, nil, uuid.NewString(), 1)
	if err != nil {
		t.Fatalf("restore missing batch: %v", err)
	}
	if restored {
		t.Fatal("restore of missing batch must report false")
	}
}

func TestStockRepository_PostgresRestoreAnyPicksOldestBatch(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewStockRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	oldest := seedBatchForTest(t, repo, "prod-restore-any", 0, now.Add(-time.Hour))
	newer := seedBatchForTest(t, repo, "prod-restore-any", 5, now)

	restored, err := repo.RestoreAny(ctx, nil, "prod-restore-any", 3)
	if err != nil {
		t.Fatalf("restore any: %v", err)
	}
	if !restored {
		t.Fatal("expected restore to hit a batch")
	}
	if got := batchQuantityByID(t, store, oldest.ID); got != 3 {
		t.Fatalf("expected oldest batch to receive restore, got %d", got)
	}
	if got := batchQuantityByID(t, store, newer.ID); got != 5 {
		t.Fatalf("newer batch must stay untouched, got %d", got)
	}

	restored, err = repo.RestoreAny(ctx, nil, "prod-unknown", 1)
	if err != nil {
		t.Fatalf("restore any for unknown product: %v", err)
	}
	if restored {
		t.Fatal("restore for unknown product must report false")
	}
}

func TestStockRepository_PostgresActiveBatchesOrderAndQty(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewStockRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	first := seedBatchForTest(t, repo, "prod-list", 2, now.Add(-2*time.Hour))
	second := seedBatchForTest(t, repo, "prod-list", 8, now.Add(-time.Hour))
	seedBatchForTest(t, repo, "prod-other", 1, now)

	batches, err := repo.ActiveBatches(ctx, nil, "prod-list")
	if err != nil {
		t.Fatalf("active batches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0].ID != first.ID || batches[1].ID != second.ID {
		t.Fatalf("batches must be ordered by created_at asc: %+v", batches)
	}

	if err := store.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		return repo.ReserveBatch(ctx, tx, first.ID, 2)
	}); err != nil {
		t.Fatalf("drain first batch: %v", err)
	}

	batches, err = repo.ActiveBatches(ctx, nil, "prod-list")
	if err != nil {
		t.Fatalf("active batches after drain: %v", err)
	}
	if batches[0].Quantity != 0 {
		t.Fatalf("drained batch quantity must be 0, got %d", batches[0].Quantity)
	}

	if err := store.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		return repo.ReserveBatch(ctx, tx, first.ID, 0)
	}); !errors.Is(err, domain.ErrReservationQtyInvalid) {
		t.Fatalf("expected ErrReservationQtyInvalid for qty 0, got %v", err)
	}
}
