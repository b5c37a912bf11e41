package app

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/cache"
	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shopcore/internal/health"
	"github.com/vladislavdragonenkov/shopcore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
	"github.com/vladislavdragonenkov/shopcore/internal/service/catalog"
	eventsvc "github.com/vladislavdragonenkov/shopcore/internal/service/events"
	"github.com/vladislavdragonenkov/shopcore/internal/service/order"
	outboxsvc "github.com/vladislavdragonenkov/shopcore/internal/service/outbox"
	"github.com/vladislavdragonenkov/shopcore/internal/service/payment"
	"github.com/vladislavdragonenkov/shopcore/internal/service/reconcile"
	"github.com/vladislavdragonenkov/shopcore/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/shopcore/internal/version"
)

// Run собирает сервисы по конфигурации и держит их до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if deps.closeFn != nil {
		defer func() { _ = deps.closeFn() }()
	}

	var (
		redisClient *redis.Client
		views       *cache.OrderViews
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = redisClient.Close() }()
		views = cache.NewOrderViews(redisClient, cfg.RedisTTL, logger)
		logger.WithField("addr", cfg.RedisAddr).Info("redis order cache enabled")
	}

	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafkaProducer(producer, logger)

	// Каталог и профили покупателей живут вне ядра; здесь — их заглушки.
	products := catalog.NewStaticCatalog()
	customers := catalog.NewStaticDirectory()
	if cfg.SeedDemoData && cfg.StorageDriver != StorageDriverPostgres {
		for _, p := range seedDemoData(ctx, deps.stocks, logger) {
			products.AddProduct(p)
		}
		customers.AddProfile("demo-customer", domain.CustomerProfile{
			FullName: "Demo Customer",
			Email:    "demo@example.com",
			Phone:    "+620000000000",
		})
	}

	var gateway domain.PaymentGateway
	if cfg.MidtransServerKey != "" {
		gateway = payment.NewMidtransClient(cfg.MidtransBaseURL, cfg.MidtransServerKey,
			logger.WithField("component", "midtrans"))
	} else {
		logger.Warn("midtrans server key is not set, using mock payment gateway")
		gateway = payment.NewMockGateway()
	}

	orderMetrics := metrics.NewOrderMetrics()

	orderOpts := []order.Option{
		order.WithMetrics(orderMetrics),
		order.WithGatewayTimeout(cfg.GatewayTimeout),
	}
	if views != nil {
		orderOpts = append(orderOpts, order.WithOrderViews(views))
	}
	orderSvc := order.NewService(
		deps.uow, deps.orders, deps.stocks, deps.outbox, deps.timeline,
		products, customers, gateway,
		logger.WithField("component", "order-service"),
		orderOpts...,
	)

	recOpts := []reconcile.Option{reconcile.WithMetrics(orderMetrics)}
	if views != nil {
		recOpts = append(recOpts, reconcile.WithOrderViews(views))
	}
	reconciler := reconcile.NewReconciler(
		deps.uow, deps.orders, deps.stocks, deps.events, deps.outbox, deps.timeline,
		logger.WithField("component", "reconciler"),
		recOpts...,
	)

	var apiOpts []httpapi.Option
	if producer != nil {
		apiOpts = append(apiOpts, httpapi.WithDeadLetter(producer, cfg.DLQTopic))
	}
	api := httpapi.NewHandler(orderSvc, reconciler, logger.WithField("component", "httpapi"), apiOpts...)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var workersDone sync.WaitGroup

	var notificationConsumer *kafka.Consumer
	if producer != nil {
		notificationConsumer = initNotificationConsumer(cfg, producer, reconciler, logger)
	}
	if notificationConsumer != nil {
		if err := notificationConsumer.Start(workerCtx); err != nil {
			logger.WithError(err).Warn("notification consumer failed to start")
			notificationConsumer = nil
		}
	}

	if producer != nil {
		worker := outboxsvc.NewWorker(
			deps.outbox,
			kafka.NewOutboxPublisher(producer, cfg.OrderEventsTopic),
			outboxsvc.WithLogger(logger.WithField("component", "outbox-worker")),
			outboxsvc.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.DLQTopic)),
			outboxsvc.WithPollInterval(cfg.OutboxPollInterval),
			outboxsvc.WithBatchSize(cfg.OutboxBatchSize),
			outboxsvc.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outboxsvc.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		workersDone.Add(1)
		go func() {
			defer workersDone.Done()
			worker.Run(workerCtx)
		}()
	}

	cleaner := eventsvc.NewCleanupWorker(
		deps.events,
		eventsvc.WithLogger(logger.WithField("component", "event-cleanup")),
		eventsvc.WithInterval(cfg.EventCleanupInterval),
		eventsvc.WithBatchSize(cfg.EventCleanupBatchSize),
		eventsvc.WithRetention(cfg.EventRetention),
	)
	workersDone.Add(1)
	go func() {
		defer workersDone.Done()
		cleaner.Run(workerCtx)
	}()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	if redisClient != nil {
		healthHandler.RegisterChecker("redis", healthcheck.NewSimpleChecker("redis", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(pingCtx).Err()
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	errCh := make(chan error, 1)
	apiSrv := startAPIServer(cfg.HTTPAddr, api.Router(), logger, errCh)

	shutdown := func() {
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		if notificationConsumer != nil {
			if err := notificationConsumer.Stop(); err != nil {
				logger.WithError(err).Warn("notification consumer stop failed")
			}
		}
		workersDone.Wait()
	}

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP серверы")
		shutdown()
		return ctx.Err()
	case err := <-errCh:
		logger.WithError(err).Error("HTTP API сервер завершился с ошибкой")
		shutdown()
		return err
	}
}
