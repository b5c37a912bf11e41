package kafka

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

func newTestPublisher(t *testing.T, mock sarama.SyncProducer) domain.OutboxPublisher {
	t.Helper()
	producer := &Producer{
		producer: mock,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	return NewOutboxPublisher(producer, TopicOrderEvents)
}

func TestOutboxPublisherWrapsMessageInEnvelope(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var envelope outboxEnvelope
		if err := json.Unmarshal(value, &envelope); err != nil {
			return err
		}
		require.Equal(t, "outbox-1", envelope.ID)
		require.Equal(t, "order", envelope.AggregateType)
		require.Equal(t, "order-123", envelope.AggregateID)
		require.Equal(t, "OrderStatusChanged", envelope.EventType)
		require.JSONEq(t, `{"status":"completed"}`, string(envelope.Payload))
		require.False(t, envelope.PublishedAt.IsZero())
		return nil
	})

	publisher := newTestPublisher(t, mockProducer)
	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     "OrderStatusChanged",
		Payload:       []byte(`{"status":"completed"}`),
	})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisherReturnsProducerError(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := newTestPublisher(t, mockProducer)
	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: "order",
		AggregateID:   "order-234",
		EventType:     "OrderStatusChanged",
		Payload:       []byte(`{"status":"failed"}`),
	})
	require.Error(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisherNilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	err := publisher.Publish(domain.OutboxMessage{ID: "outbox-3"})
	require.ErrorIs(t, err, ErrPublisherNotReady)
}

func TestMessageKeyFallsBackToOutboxID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "order-1", messageKey(domain.OutboxMessage{ID: "ob-1", AggregateID: "order-1"}))
	require.Equal(t, "ob-2", messageKey(domain.OutboxMessage{ID: "ob-2"}))
}
