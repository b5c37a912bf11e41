package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// ErrPublisherNotReady возвращается при публикации через
// не инициализированный publisher.
var ErrPublisherNotReady = errors.New("kafka outbox publisher is not initialized")

// outboxEnvelope — wire-формат outbox-события в topic-е заказов.
// Payload несёт исходное доменное событие без изменений.
type outboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OutboxTopicPublisher отправляет записи transactional outbox в один
// Kafka topic. Ключом сообщения служит aggregate_id, поэтому события
// одного заказа попадают в одну партицию и сохраняют порядок.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт publisher поверх общего Producer-а.
// Пустой topic означает topic событий заказов по умолчанию.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic}
}

func (p *OutboxTopicPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return ErrPublisherNotReady
	}

	return p.producer.PublishEvent(p.topic, messageKey(msg), outboxEnvelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   time.Now().UTC(),
	})
}

func messageKey(msg domain.OutboxMessage) string {
	if msg.AggregateID != "" {
		return msg.AggregateID
	}
	return msg.ID
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
