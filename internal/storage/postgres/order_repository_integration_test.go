package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

func createOrderForTest(t *testing.T, store *Store, repo domain.OrderRepository, order domain.Order) {
	t.Helper()

	err := store.Run(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return repo.Create(ctx, tx, order)
	})
	if err != nil {
		t.Fatalf("create order %s: %v", order.ID, err)
	}
}

func TestOrderRepository_PostgresCreateGetListAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("customer-1", now.Add(-2*time.Minute))
	order2 := sampleOrder("customer-1", now.Add(-time.Minute))

	createOrderForTest(t, store, repo, order1)
	createOrderForTest(t, store, repo, order2)

	got, err := repo.Get(ctx, order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.CustomerID != order1.CustomerID || got.Status != order1.Status {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if len(got.Lines) != len(order1.Lines) {
		t.Fatalf("unexpected lines count: got=%d want=%d", len(got.Lines), len(order1.Lines))
	}
	if got.Lines[0].ProductName != "Arabica Beans" {
		t.Fatalf("unexpected product name snapshot: %s", got.Lines[0].ProductName)
	}

	listed, err := repo.ListByCustomer(ctx, "customer-1", 1)
	if err != nil {
		t.Fatalf("list by customer with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListByCustomer(ctx, "customer-1", 0)
	if err != nil {
		t.Fatalf("list by customer without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}

	got.Status = domain.OrderStatusCompleted
	got.PaymentMethod = "credit_card"
	got.UpdatedAt = now.Add(time.Minute)
	err = store.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		return repo.Save(ctx, tx, got)
	})
	if err != nil {
		t.Fatalf("save order: %v", err)
	}

	updated, err := repo.Get(ctx, order1.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if updated.Status != domain.OrderStatusCompleted {
		t.Fatalf("unexpected status after save: %s", updated.Status)
	}
	if updated.PaymentMethod != "credit_card" {
		t.Fatalf("unexpected payment method after save: %s", updated.PaymentMethod)
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}
}

func TestOrderRepository_PostgresGetForUpdateAndSoftDelete(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("customer-3", now)
	createOrderForTest(t, store, repo, order)

	err := store.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		locked, err := repo.GetForUpdate(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		locked.Status = domain.OrderStatusFailed
		locked.UpdatedAt = now.Add(time.Second)
		return repo.Save(ctx, tx, locked)
	})
	if err != nil {
		t.Fatalf("get for update + save: %v", err)
	}

	err = store.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		return repo.SoftDelete(ctx, tx, order.ID, now.Add(2*time.Second))
	})
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	if _, err := repo.Get(ctx, order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("soft deleted order must be hidden, got %v", err)
	}
	listed, err := repo.ListByCustomer(ctx, "customer-3", 0)
	if err != nil {
		t.Fatalf("list after soft delete: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("soft deleted order must not be listed: %+v", listed)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleOrder("customer-2", now)

	if _, err := repo.Get(ctx, uuid.NewString()); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	err := store.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		return repo.Save(ctx, tx, base)
	})
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on save missing, got %v", err)
	}

	createOrderForTest(t, store, repo, base)

	err = store.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		return repo.Create(ctx, tx, base)
	})
	if !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on duplicate create, got %v", err)
	}

	stale := base
	stale.Status = domain.OrderStatusCancelled
	stale.UpdatedAt = now.Add(time.Minute)
	stale.Version = 42
	err = store.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		return repo.Save(ctx, tx, stale)
	})
	if !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on stale save, got %v", err)
	}
}

func TestOrderRepository_PostgresPreservesLineOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	// Все позиции получают одинаковый created_at и случайные UUID:
	// порядок из запроса обязана держать сама схема.
	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("customer-lines", now)
	order.Lines = nil
	order.TotalMinor = 0
	products := []string{"prod-7", "prod-3", "prod-9", "prod-1", "prod-5", "prod-2"}
	for _, productID := range products {
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:             uuid.NewString(),
			OrderID:        order.ID,
			ProductID:      productID,
			ProductName:    "Beans " + productID,
			UnitPriceMinor: 100,
			Qty:            1,
			SubtotalMinor:  100,
			CreatedAt:      now,
		})
		order.TotalMinor += 100
	}
	createOrderForTest(t, store, repo, order)

	got, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(got.Lines) != len(products) {
		t.Fatalf("unexpected lines count: got=%d want=%d", len(got.Lines), len(products))
	}
	for i, productID := range products {
		if got.Lines[i].ProductID != productID {
			t.Fatalf("line %d out of order: got=%s want=%s", i, got.Lines[i].ProductID, productID)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func sampleOrder(customerID string, createdAt time.Time) domain.Order {
	orderID := uuid.NewString()
	lines := []domain.OrderLine{
		{
			ID:             uuid.NewString(),
			OrderID:        orderID,
			ProductID:      "prod-1",
			ProductName:    "Arabica Beans",
			UnitPriceMinor: 150,
			Qty:            2,
			SubtotalMinor:  300,
			CreatedAt:      createdAt,
		},
	}

	return domain.Order{
		ID:         orderID,
		CustomerID: customerID,
		Status:     domain.OrderStatusPending,
		TotalMinor: 300,
		Lines:      lines,
		Version:    0,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}
