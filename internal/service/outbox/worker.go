package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond

	// backoffShiftCap ограничивает сдвиг при расчёте exponential backoff,
	// чтобы не переполнить time.Duration.
	backoffShiftCap = 32
)

var (
	publishResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopcore_outbox_publish_attempts_total",
		Help: "Total number of outbox publish attempts grouped by result.",
	}, []string{"result"})
	backlogSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopcore_outbox_pending_records",
		Help: "Current number of pending records in transactional outbox.",
	})
	backlogOldestAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopcore_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending outbox record.",
	})
)

type workerConfig struct {
	logger         *log.Entry
	deadLetters    domain.OutboxPublisher
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*workerConfig)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) Option {
	return func(c *workerConfig) { c.logger = logger }
}

// WithDLQPublisher задаёт publisher, в который уходят записи после
// исчерпания всех попыток публикации.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(c *workerConfig) { c.deadLetters = publisher }
}

// WithPollInterval задаёт период опроса outbox-таблицы.
func WithPollInterval(interval time.Duration) Option {
	return func(c *workerConfig) { c.pollInterval = interval }
}

// WithBatchSize задаёт, сколько pending-записей забирается за цикл.
func WithBatchSize(batchSize int) Option {
	return func(c *workerConfig) { c.batchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации до failed/DLQ.
func WithMaxAttempts(maxAttempts int) Option {
	return func(c *workerConfig) { c.maxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт базовую задержку exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(c *workerConfig) { c.retryBaseDelay = delay }
}

// Worker перекачивает pending-записи transactional outbox в брокер.
// Порядок внутри батча сохраняется: запись либо уходит в topic и
// помечается sent, либо после retry уезжает в DLQ и помечается failed.
type Worker struct {
	outbox domain.OutboxRepository
	broker domain.OutboxPublisher
	cfg    workerConfig
}

// NewWorker создаёт outbox worker поверх репозитория и publisher-а.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	cfg := workerConfig{
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = log.WithField("component", "outbox-worker")
	}
	if cfg.pollInterval <= 0 {
		cfg.pollInterval = defaultPollInterval
	}
	if cfg.batchSize <= 0 {
		cfg.batchSize = defaultBatchSize
	}
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = defaultMaxAttempts
	}
	if cfg.retryBaseDelay < 0 {
		cfg.retryBaseDelay = 0
	}

	return &Worker{outbox: repo, broker: publisher, cfg: cfg}
}

// Run крутит polling-цикл до отмены ctx. Первый проход выполняется
// сразу, не дожидаясь тикера.
func (w *Worker) Run(ctx context.Context) {
	if w.outbox == nil || w.broker == nil {
		w.cfg.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.cfg.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce забирает один батч pending-записей и прогоняет каждую
// через publish-retry. Ошибки отдельных записей не прерывают батч.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.observeBacklog(ctx)

	batch, err := w.outbox.PullPending(ctx, w.cfg.batchSize)
	if err != nil {
		w.cfg.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return
	}

	for _, msg := range batch {
		if ctx.Err() != nil {
			return
		}
		w.dispatch(ctx, msg)
	}

	if len(batch) > 0 {
		w.observeBacklog(ctx)
	}
}

// dispatch доводит одну запись до терминального статуса: sent после
// успешной публикации, failed (плюс копия в DLQ) после исчерпания попыток.
func (w *Worker) dispatch(ctx context.Context, msg domain.OutboxMessage) {
	pubErr := w.deliver(ctx, msg)
	if pubErr == nil {
		if err := w.outbox.MarkSent(ctx, msg.ID); err != nil {
			w.cfg.logger.WithError(err).WithField("outbox_id", msg.ID).Warn("failed to mark outbox as sent")
		}
		return
	}

	w.cfg.logger.WithError(pubErr).WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"event_type": msg.EventType,
	}).Error("outbox publish failed after retries")
	publishResults.WithLabelValues("failed").Inc()

	if err := w.quarantine(msg, pubErr); err != nil {
		w.cfg.logger.WithError(err).WithField("outbox_id", msg.ID).Warn("failed to publish to DLQ")
		publishResults.WithLabelValues("dlq_failed").Inc()
	}
	if err := w.outbox.MarkFailed(ctx, msg.ID); err != nil {
		w.cfg.logger.WithError(err).WithField("outbox_id", msg.ID).Warn("failed to mark outbox as failed")
	}
}

func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, w.backoffDelay(attempt-1)); err != nil {
				return err
			}
		}

		if lastErr = w.broker.Publish(msg); lastErr == nil {
			publishResults.WithLabelValues("sent").Inc()
			return nil
		}
		publishResults.WithLabelValues("retry_error").Inc()
	}
	return fmt.Errorf("publish failed after %d attempts: %w", w.cfg.maxAttempts, lastErr)
}

// quarantine заворачивает запись в DLQ-конверт вместе с текстом ошибки
// публикации. Поля конверта читает утилита переигрывания DLQ.
func (w *Worker) quarantine(msg domain.OutboxMessage, pubErr error) error {
	if w.cfg.deadLetters == nil {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"outbox_id":        msg.ID,
		"aggregate_type":   msg.AggregateType,
		"aggregate_id":     msg.AggregateID,
		"event_type":       msg.EventType,
		"payload":          json.RawMessage(msg.Payload),
		"publish_error":    pubErr.Error(),
		"dlq_published_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq payload: %w", err)
	}

	dead := msg
	dead.Payload = payload
	if err := w.cfg.deadLetters.Publish(dead); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

func (w *Worker) observeBacklog(ctx context.Context) {
	stats, err := w.outbox.Stats(ctx)
	if err != nil {
		w.cfg.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	backlogSize.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		backlogOldestAge.Set(0)
		return
	}
	backlogOldestAge.Set(max(time.Since(stats.OldestPendingAt).Seconds(), 0))
}

// backoffDelay возвращает retryBaseDelay * 2^(retries-1).
func (w *Worker) backoffDelay(retries int) time.Duration {
	if w.cfg.retryBaseDelay <= 0 || retries <= 0 {
		return 0
	}
	shift := retries - 1
	if shift > backoffShiftCap {
		shift = backoffShiftCap
	}
	return w.cfg.retryBaseDelay << shift
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
