package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestParseBrokerList(t *testing.T) {
	require.Empty(t, parseBrokerList(""))
	require.Empty(t, parseBrokerList(" , ,"))
	require.Equal(t, []string{"kafka-1:9092"}, parseBrokerList("kafka-1:9092"))
	require.Equal(t,
		[]string{"kafka-1:9092", "kafka-2:9092"},
		parseBrokerList(" kafka-1:9092 , kafka-2:9092 "),
	)
}

func TestInitKafkaProducerEmptyBrokers(t *testing.T) {
	producer, err := initKafkaProducer("", log.WithField("test", "kafka"))

	require.NoError(t, err)
	require.Nil(t, producer)
}

func TestInitKafkaProducerUnreachableBroker(t *testing.T) {
	// Ошибка подключения не фатальна: приложение работает без Kafka.
	producer, err := initKafkaProducer("invalid-broker:9999", log.WithField("test", "kafka"))

	require.Error(t, err)
	require.Nil(t, producer)
}

func TestCloseKafkaProducerNil(_ *testing.T) {
	closeKafkaProducer(nil, log.WithField("test", "kafka-close"))
}
