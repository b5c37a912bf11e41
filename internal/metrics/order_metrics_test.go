package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOrderMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newOrderMetricsWithRegisterer(registry)

	m.RecordOrderCreated()
	m.RecordOrderCreated()
	m.RecordOrderRejected("insufficient_stock")
	m.RecordGatewaySession("ok")
	m.RecordGatewaySession("error")
	m.RecordCompensation()
	m.RecordNotification("applied")
	m.RecordNotification("duplicate")
	m.RecordStockRestore()
	m.RecordRestoreShortfall()
	m.RecordTimelineEvent()
	m.RecordOutboxEvent()
	m.RecordCreateDuration(25 * time.Millisecond)

	if got := testutil.ToFloat64(m.ordersCreated); got != 2 {
		t.Fatalf("orders created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ordersRejected.WithLabelValues("insufficient_stock")); got != 1 {
		t.Fatalf("orders rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.gatewaySessions.WithLabelValues("error")); got != 1 {
		t.Fatalf("gateway errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("duplicate")); got != 1 {
		t.Fatalf("duplicate notifications = %v, want 1", got)
	}
}

func TestOrderMetrics_DoubleRegistrationReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := newOrderMetricsWithRegisterer(registry)
	second := newOrderMetricsWithRegisterer(registry)

	first.RecordOrderCreated()
	second.RecordOrderCreated()

	if got := testutil.ToFloat64(first.ordersCreated); got != 2 {
		t.Fatalf("collectors must be shared, got %v", got)
	}
}
