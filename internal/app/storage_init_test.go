package app

import (
	"context"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/shopcore/internal/health"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
	}, log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory) failed: %v", err)
	}

	if deps.uow == nil {
		t.Fatal("uow should not be nil for memory storage")
	}
	if deps.orders == nil || deps.stocks == nil || deps.outbox == nil {
		t.Fatal("repositories should not be nil for memory storage")
	}
	if deps.events == nil || deps.timeline == nil {
		t.Fatal("event and timeline repositories should not be nil")
	}
	if deps.storageChecker == nil {
		t.Fatal("expected non-nil storage checker")
	}
	if check := deps.storageChecker.Check(); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("memory storage checker must be healthy, got %+v", check)
	}
	if deps.closeFn != nil {
		t.Fatal("memory storage must not require close")
	}
}

func TestInitRuntimeDependencies_EmptyDriverDefaultsToMemory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{}, log.WithField("test", "empty-driver"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(empty) failed: %v", err)
	}
	if deps.orders == nil {
		t.Fatal("repo should not be nil for default driver")
	}
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverPostgres,
	}, log.WithField("test", "postgres-missing-dsn"))
	if err == nil {
		t.Fatal("expected error when postgres driver is selected without DSN")
	}
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: "cassandra",
	}, log.WithField("test", "unsupported-driver"))
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestSeedDemoData(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{}, log.WithField("test", "seed"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies failed: %v", err)
	}

	products := seedDemoData(context.Background(), deps.stocks, log.WithField("test", "seed"))
	if len(products) == 0 {
		t.Fatal("expected seeded demo products")
	}

	for _, p := range products {
		batches, err := deps.stocks.ActiveBatches(context.Background(), nil, p.ID)
		if err != nil {
			t.Fatalf("active batches for %s: %v", p.ID, err)
		}
		if len(batches) == 0 {
			t.Fatalf("expected at least one batch for %s", p.ID)
		}
	}
}
