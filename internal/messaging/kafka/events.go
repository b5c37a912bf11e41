package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderCompleted     EventType = "order.completed"
	EventTypeOrderFailed        EventType = "order.failed"
	EventTypeOrderCancelled     EventType = "order.cancelled"
	EventTypeOrderRefunded      EventType = "order.refunded"
	EventTypeOrderStatusChanged EventType = "order.status_changed"

	// Stock события
	EventTypeStockReserved EventType = "stock.reserved"
	EventTypeStockRestored EventType = "stock.restored"
)

// Topics для Kafka
const (
	TopicOrderEvents = "shopcore.order.events"
	// TopicPaymentNotifications — канал повторной подачи платёжных
	// уведомлений; сюда возвращает сообщения dlq-reprocess.
	TopicPaymentNotifications = "shopcore.payment.notifications"
	TopicDeadLetterQueue      = "shopcore.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	CustomerID string                 `json:"customer_id"`
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, customerID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Status:     status,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}
