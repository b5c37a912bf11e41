package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики создания заказов и обработки уведомлений шлюза.
type OrderMetrics struct {
	// Счётчики создания заказов
	ordersCreated   prometheus.Counter
	ordersRejected  *prometheus.CounterVec
	gatewaySessions *prometheus.CounterVec
	compensations   prometheus.Counter
	createDuration  prometheus.Histogram

	// Счётчики обработки уведомлений
	notifications     *prometheus.CounterVec
	stockRestores     prometheus.Counter
	restoreShortfalls prometheus.Counter

	// Счётчики событий
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shopcore_orders_created_total",
			Help: "Total number of orders successfully created",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shopcore_orders_rejected_total",
			Help: "Total number of rejected order attempts grouped by reason",
		}, []string{"reason"}),
		gatewaySessions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shopcore_gateway_sessions_total",
			Help: "Total number of payment session attempts grouped by result",
		}, []string{"result"}),
		compensations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shopcore_order_compensations_total",
			Help: "Total number of compensating stock restorations",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shopcore_order_create_duration_seconds",
			Help:    "Duration of order creation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shopcore_payment_notifications_total",
			Help: "Total number of processed gateway notifications grouped by outcome",
		}, []string{"outcome"}),
		stockRestores: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shopcore_stock_restores_total",
			Help: "Total number of stock restorations triggered by failed or cancelled orders",
		}),
		restoreShortfalls: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shopcore_stock_restore_shortfalls_total",
			Help: "Total number of restorations dropped because no live batch exists",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shopcore_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shopcore_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderRejected увеличивает счётчик отклонённых попыток с причиной.
func (m *OrderMetrics) RecordOrderRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordGatewaySession фиксирует результат создания платёжной сессии.
func (m *OrderMetrics) RecordGatewaySession(result string) {
	m.gatewaySessions.WithLabelValues(result).Inc()
}

// RecordCompensation увеличивает счётчик компенсаций.
func (m *OrderMetrics) RecordCompensation() {
	m.compensations.Inc()
}

// RecordCreateDuration записывает длительность создания заказа.
func (m *OrderMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}

// RecordNotification фиксирует исход обработки уведомления шлюза.
func (m *OrderMetrics) RecordNotification(outcome string) {
	m.notifications.WithLabelValues(outcome).Inc()
}

// RecordStockRestore увеличивает счётчик возвратов стока.
func (m *OrderMetrics) RecordStockRestore() {
	m.stockRestores.Inc()
}

// RecordRestoreShortfall фиксирует потерянный при возврате остаток.
func (m *OrderMetrics) RecordRestoreShortfall() {
	m.restoreShortfalls.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
