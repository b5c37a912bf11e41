package domain

import "time"

// Типы событий таймлайна, которые пишет само ядро; реконсилер дополнительно
// пишет события с типом целевого статуса заказа.
const (
	TimelineOrderCreated = "OrderCreated"
	TimelineOrderFailed  = "OrderFailed"
)

// TimelineEvent — запись аудит-истории заказа: кто-то создал заказ, шлюз
// сообщил о статусе, сработала компенсация. История только дописывается.
type TimelineEvent struct {
	OrderID string
	Type    string
	// Reason хранит человекочитаемый контекст события, для переходов от
	// шлюза — исходный transaction_status.
	Reason   string
	Occurred time.Time
}
