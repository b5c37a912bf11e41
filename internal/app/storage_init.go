package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shopcore/internal/health"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/postgres"
)

// runtimeDependencies — хранилище и репозитории, подобранные под драйвер.
type runtimeDependencies struct {
	uow      domain.UnitOfWork
	orders   domain.OrderRepository
	stocks   domain.StockRepository
	outbox   domain.OutboxRepository
	events   domain.ProcessedEventRepository
	timeline domain.TimelineRepository

	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies создаёт репозитории под выбранный драйвер хранилища.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			uow:      store,
			orders:   memory.NewOrderRepository(store),
			stocks:   memory.NewStockRepository(store),
			outbox:   memory.NewOutboxRepository(store),
			events:   memory.NewProcessedEventRepository(store),
			timeline: memory.NewTimelineRepository(),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires a dsn")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		logger.Info("using postgres storage")

		return &runtimeDependencies{
			uow:      store,
			orders:   postgres.NewOrderRepository(store),
			stocks:   postgres.NewStockRepository(store),
			outbox:   postgres.NewOutboxRepository(store),
			events:   postgres.NewProcessedEventRepository(store),
			timeline: postgres.NewTimelineRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return store.Ping(pingCtx)
			}),
			closeFn: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// seedDemoData наполняет сток демо-партиями для локальной разработки.
func seedDemoData(ctx context.Context, stocks domain.StockRepository, logger *log.Entry) []domain.Product {
	now := time.Now().UTC()
	products := []struct {
		product domain.Product
		price   int64
		qty     int32
	}{
		{domain.Product{ID: "demo-coffee", Name: "Arabica Beans 1kg"}, 150000, 25},
		{domain.Product{ID: "demo-grinder", Name: "Hand Grinder"}, 420000, 10},
		{domain.Product{ID: "demo-dripper", Name: "V60 Dripper"}, 95000, 40},
	}

	seeded := make([]domain.Product, 0, len(products))
	for _, p := range products {
		_, err := stocks.InsertBatch(ctx, domain.StockBatch{
			ProductID:  p.product.ID,
			PriceMinor: p.price,
			Quantity:   p.qty,
			ExpiresAt:  now.Add(90 * 24 * time.Hour),
			CreatedAt:  now,
		})
		if err != nil {
			logger.WithError(err).WithField("product_id", p.product.ID).Warn("failed to seed demo batch")
			continue
		}
		seeded = append(seeded, p.product)
	}

	logger.WithField("products", len(seeded)).Info("demo catalog seeded")
	return seeded
}
