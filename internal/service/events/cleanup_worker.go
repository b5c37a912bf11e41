package events

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

const (
	defaultCleanupInterval  = 1 * time.Hour
	defaultCleanupBatchSize = 500
	defaultRetention        = 30 * 24 * time.Hour
)

var (
	eventCleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopcore_event_cleanup_runs_total",
		Help: "Total number of processed payment event cleanup runs grouped by result.",
	}, []string{"result"})
	eventCleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopcore_event_cleanup_deleted_total",
		Help: "Total number of deleted processed payment event records.",
	})
	eventCleanupLastDeleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopcore_event_cleanup_last_deleted",
		Help: "Number of deleted records during the last cleanup run.",
	})
)

// CleanupOptions задаёт параметры воркера очистки обработанных уведомлений.
type CleanupOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	Retention time.Duration
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между cleanup-циклами.
func WithInterval(interval time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Interval = interval
	}
}

// WithBatchSize задаёт размер batch для одного удаления.
func WithBatchSize(batchSize int) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.BatchSize = batchSize
	}
}

// WithRetention задаёт срок хранения записей дедупликации.
// Окно не должно быть короче горизонта повторных доставок шлюза.
func WithRetention(retention time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Retention = retention
	}
}

// CleanupWorker периодически удаляет устаревшие записи дедупликации
// платёжных уведомлений.
type CleanupWorker struct {
	repo      domain.ProcessedEventRepository
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	retention time.Duration
}

// NewCleanupWorker создаёт воркер очистки обработанных уведомлений.
func NewCleanupWorker(repo domain.ProcessedEventRepository, options ...CleanupOption) *CleanupWorker {
	opts := CleanupOptions{
		Interval:  defaultCleanupInterval,
		BatchSize: defaultCleanupBatchSize,
		Retention: defaultRetention,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "event-cleanup-worker")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultCleanupInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}

	return &CleanupWorker{
		repo:      repo,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		retention: opts.Retention,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("event cleanup worker is disabled: repo is nil")
		return
	}

	w.cleanup(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *CleanupWorker) cleanup(ctx context.Context) {
	before := time.Now().UTC().Add(-w.retention)

	deleted, err := w.DeleteOlderThan(ctx, before)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		eventCleanupRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("event cleanup run failed")
		return
	}

	eventCleanupRunsTotal.WithLabelValues("ok").Inc()
	eventCleanupLastDeleted.Set(float64(deleted))
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("event cleanup completed")
	}
}

// DeleteOlderThan удаляет все записи старше before порциями batchSize.
func (w *CleanupWorker) DeleteOlderThan(ctx context.Context, before time.Time) (int, error) {
	totalDeleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		deleted, err := w.repo.DeleteOlderThan(ctx, before, w.batchSize)
		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted > 0 {
			eventCleanupDeletedTotal.Add(float64(deleted))
		}

		if deleted < w.batchSize {
			break
		}
	}

	return totalDeleted, nil
}
