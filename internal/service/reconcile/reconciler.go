package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/cache"
	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
)

// Outcome — итог обработки одного уведомления шлюза.
type Outcome string

const (
	// OutcomeApplied — статус заказа изменился.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoop — уведомление валидно, но статус не меняет
	// (повтор, неизвестная комбинация или терминальный заказ).
	OutcomeNoop Outcome = "noop"
	// OutcomeDuplicate — transaction_id уже обрабатывался.
	OutcomeDuplicate Outcome = "duplicate"
)

// Reconciler сводит платёжные уведомления шлюза со статусом заказа.
// Обработка одного заказа сериализуется захватом записи; применение статуса,
// возврат стока и дедупликация — одна единица работы.
type Reconciler struct {
	uow      domain.UnitOfWork
	orders   domain.OrderRepository
	stocks   domain.StockRepository
	events   domain.ProcessedEventRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	views    *cache.OrderViews
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// Option настраивает Reconciler.
type Option func(*Reconciler)

// WithOrderViews подключает кеш представлений для инвалидации.
func WithOrderViews(views *cache.OrderViews) Option {
	return func(r *Reconciler) {
		r.views = views
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// NewReconciler создаёт обработчик уведомлений.
func NewReconciler(
	uow domain.UnitOfWork,
	orders domain.OrderRepository,
	stocks domain.StockRepository,
	events domain.ProcessedEventRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
	opts ...Option,
) *Reconciler {
	if logger == nil {
		logger = log.New().WithField("component", "payment-reconciler")
	}
	r := &Reconciler{
		uow:      uow,
		orders:   orders,
		stocks:   stocks,
		events:   events,
		outbox:   outbox,
		timeline: timeline,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle применяет уведомление к заказу. Идемпотентен: повтор того же
// transaction_id и уведомление, не меняющее статус, безопасны.
func (r *Reconciler) Handle(ctx context.Context, n domain.PaymentNotification) (Outcome, error) {
	if errs := n.Validate(); len(errs) > 0 {
		r.record("invalid")
		return OutcomeNoop, errors.Join(errs...)
	}

	logger := r.logger.WithFields(log.Fields{
		"order_id":           n.OrderID,
		"transaction_id":     n.TransactionID,
		"transaction_status": n.TransactionStatus,
		"fraud_status":       n.FraudStatus,
	})

	var (
		outcome    = OutcomeNoop
		fromStatus domain.OrderStatus
		toStatus   domain.OrderStatus
	)

	err := r.uow.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		order, err := r.orders.GetForUpdate(ctx, tx, n.OrderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}

		if n.TransactionID != "" {
			err := r.events.Record(ctx, tx, domain.ProcessedEvent{
				TransactionID: n.TransactionID,
				OrderID:       n.OrderID,
				Status:        n.TransactionStatus,
			})
			if errors.Is(err, domain.ErrDuplicateEvent) {
				outcome = OutcomeDuplicate
				return nil
			}
			if err != nil {
				return fmt.Errorf("record event: %w", err)
			}
		}

		next, changed := domain.ApplyNotification(order.Status, n)
		if !changed {
			return nil
		}
		fromStatus, toStatus = order.Status, next

		if releasesStock(order.Status, next) {
			r.restoreLines(ctx, tx, logger, order)
		}

		order.Status = next
		if n.PaymentType != "" {
			order.PaymentMethod = n.PaymentType
		}
		order.UpdatedAt = time.Now().UTC()
		if err := r.orders.Save(ctx, tx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		r.enqueueStatusEvent(ctx, tx, order, n)
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		r.record("error")
		return OutcomeNoop, err
	}

	switch outcome {
	case OutcomeApplied:
		logger.WithFields(log.Fields{
			"from": fromStatus,
			"to":   toStatus,
		}).Info("order status reconciled")
		r.views.Invalidate(ctx, n.OrderID)
		r.appendTimeline(ctx, n.OrderID, string(toStatus), string(n.TransactionStatus))
	case OutcomeDuplicate:
		logger.Debug("duplicate notification ignored")
	default:
		logger.Debug("notification does not change order status")
	}
	r.record(string(outcome))
	return outcome, nil
}

// releasesStock — нужен ли возврат стока при данном переходе.
// Возврат выполняется только при уходе из нетерминального состояния в
// failed или cancelled; refund из completed сток не возвращает.
func releasesStock(from, to domain.OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	return to == domain.OrderStatusFailed || to == domain.OrderStatusCancelled
}

// restoreLines возвращает количество всех позиций заказа на склад.
// Исходная партия после оплаты неизвестна, возврат идёт в любую живую
// партию товара.
func (r *Reconciler) restoreLines(ctx context.Context, tx domain.Tx, logger *log.Entry, order domain.Order) {
	for _, line := range order.Lines {
		restored, err := r.stocks.RestoreAny(ctx, tx, line.ProductID, line.Qty)
		if err != nil {
			logger.WithError(err).WithField("product_id", line.ProductID).Error("restore stock failed")
			continue
		}
		if !restored {
			logger.WithFields(log.Fields{
				"product_id": line.ProductID,
				"qty":        line.Qty,
			}).Warn("no live batch to restore stock, inventory short")
			if r.metrics != nil {
				r.metrics.RecordRestoreShortfall()
			}
			continue
		}
		if r.metrics != nil {
			r.metrics.RecordStockRestore()
		}
	}
}

// statusEventType переводит новый статус заказа в тип события;
// нетерминальные переходы публикуются как общий status_changed.
func statusEventType(status domain.OrderStatus) kafka.EventType {
	switch status {
	case domain.OrderStatusCompleted:
		return kafka.EventTypeOrderCompleted
	case domain.OrderStatusFailed:
		return kafka.EventTypeOrderFailed
	case domain.OrderStatusCancelled:
		return kafka.EventTypeOrderCancelled
	case domain.OrderStatusRefunded:
		return kafka.EventTypeOrderRefunded
	default:
		return kafka.EventTypeOrderStatusChanged
	}
}

func (r *Reconciler) enqueueStatusEvent(ctx context.Context, tx domain.Tx, order domain.Order, n domain.PaymentNotification) {
	eventType := statusEventType(order.Status)
	event := kafka.NewOrderEvent(eventType, order.ID, order.CustomerID, string(order.Status), map[string]interface{}{
		"transaction_id":     n.TransactionID,
		"transaction_status": n.TransactionStatus,
	})
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.WithError(err).WithField("order_id", order.ID).Error("marshal status event failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}
	if _, err := r.outbox.Enqueue(ctx, tx, msg); err != nil {
		r.logger.WithError(err).WithField("order_id", order.ID).Error("enqueue status event failed")
	} else if r.metrics != nil {
		r.metrics.RecordOutboxEvent()
	}
}

func (r *Reconciler) appendTimeline(ctx context.Context, orderID, eventType, reason string) {
	if r.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := r.timeline.Append(ctx, event); err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Warn("append timeline event failed")
	} else if r.metrics != nil {
		r.metrics.RecordTimelineEvent()
	}
}

func (r *Reconciler) record(outcome string) {
	if r.metrics != nil {
		r.metrics.RecordNotification(outcome)
	}
}
