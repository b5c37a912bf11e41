package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orderRepo := NewOrderRepository(store)
	timelineRepo := NewTimelineRepository(store)
	ctx := context.Background()

	createdAt := time.Now().UTC().Add(-time.Minute).Round(time.Microsecond)
	order := sampleOrder("customer-timeline", createdAt)
	createOrderForTest(t, store, orderRepo, order)

	// Нулевое occurred должно заполняться автоматически.
	if err := timelineRepo.Append(ctx, domain.TimelineEvent{
		OrderID: order.ID,
		Type:    "OrderCreated",
		Reason:  "created",
	}); err != nil {
		t.Fatalf("append timeline event with zero occurred: %v", err)
	}

	explicitOccurred := createdAt.Add(10 * time.Second)
	if err := timelineRepo.Append(ctx, domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     "OrderStatusChanged",
		Reason:   "settlement",
		Occurred: explicitOccurred,
	}); err != nil {
		t.Fatalf("append timeline event with explicit occurred: %v", err)
	}

	events, err := timelineRepo.List(ctx, order.ID)
	if err != nil {
		t.Fatalf("list timeline events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 timeline events, got %d", len(events))
	}
	if events[0].Occurred.After(events[1].Occurred) {
		t.Fatalf("events should be sorted by occurred asc: %+v", events)
	}
	types := []string{events[0].Type, events[1].Type}
	if !(containsString(types, "OrderCreated") && containsString(types, "OrderStatusChanged")) {
		t.Fatalf("unexpected event types: %+v", types)
	}
}

func TestTimelineRepository_PostgresEmptyList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	timelineRepo := NewTimelineRepository(store)
	ctx := context.Background()

	events, err := timelineRepo.List(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("list for unknown order should not fail: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for unknown order, got %d", len(events))
	}
}

func containsString(values []string, needle string) bool {
	for _, value := range values {
		if value == needle {
			return true
		}
	}
	return false
}
