package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// timelineRepositoryInMemory хранит журнал переходов заказов в памяти.
// Используется в тестах и при запуске со storage=memory.
type timelineRepositoryInMemory struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{byOrder: make(map[string][]domain.TimelineEvent)}
}

func (r *timelineRepositoryInMemory) Append(_ context.Context, event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	journal := append(r.byOrder[event.OrderID], event)
	// Stable-сортировка сохраняет порядок вставки для событий
	// с одинаковым occurred, как вторичный ключ id в Postgres.
	sort.SliceStable(journal, func(i, j int) bool {
		return journal[i].Occurred.Before(journal[j].Occurred)
	})
	r.byOrder[event.OrderID] = journal

	return nil
}

// List возвращает копию журнала заказа в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(_ context.Context, orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.TimelineEvent(nil), r.byOrder[orderID]...), nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
