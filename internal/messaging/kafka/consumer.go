package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// MessageHandler обрабатывает одно сообщение из Kafka.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

const defaultHandlerRetryDelay = 500 * time.Millisecond

// deadLetterRecord — формат записи в DLQ-topic. Поля original_* читает
// утилита переигрывания DLQ, поэтому их имена фиксированы.
type deadLetterRecord struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	RetryCount        int    `json:"retry_count"`
}

// Consumer читает topics в составе consumer group и прогоняет каждое
// сообщение через handler. Ошибки обрабатываются в два этапа: сначала
// in-process retry, затем redelivery брокером, и только после
// исчерпания бюджета maxRetries сообщение уезжает в DLQ.
type Consumer struct {
	group      sarama.ConsumerGroup
	topics     []string
	handler    MessageHandler
	logger     *log.Entry
	wg         sync.WaitGroup
	dlq        *Producer
	maxRetries int
	retryDelay time.Duration
}

func consumerGroupConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true
	return cfg
}

// NewConsumer создаёт consumer без DLQ: после maxRetries=3 сообщение
// остаётся неподтверждённым и будет доставлено брокером повторно.
func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler) (*Consumer, error) {
	return NewConsumerWithDLQ(brokers, groupID, topics, handler, nil, 3)
}

// NewConsumerWithDLQ создаёт consumer, который после исчерпания
// maxRetries отправляет сообщение в Dead Letter Queue.
func NewConsumerWithDLQ(brokers []string, groupID string, topics []string, handler MessageHandler, dlqProducer *Producer, maxRetries int) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, consumerGroupConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		group:      group,
		topics:     topics,
		handler:    handler,
		logger:     log.WithField("component", "kafka-consumer"),
		dlq:        dlqProducer,
		maxRetries: maxRetries,
		retryDelay: defaultHandlerRetryDelay,
	}, nil
}

// Start запускает фоновые горутины consumer-а и сразу возвращается.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(2)
	go c.consumeLoop(ctx)
	go c.drainErrors()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// consumeLoop перезапускает Consume после каждого rebalance до отмены ctx.
func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			c.logger.WithError(err).Error("error from consumer")
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Consumer) drainErrors() {
	defer c.wg.Done()
	for err := range c.group.Errors() {
		c.logger.WithError(err).Error("consumer error")
	}
}

// Stop закрывает consumer group и дожидается фоновых горутин.
func (c *Consumer) Stop() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

// Setup реализует sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup реализует sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim читает сообщения одной партиции до закрытия канала
// или завершения session.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			c.processMessage(session, message)
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) processMessage(session sarama.ConsumerGroupSession, message *sarama.ConsumerMessage) {
	entry := c.logger.WithFields(log.Fields{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
	})
	entry.Debug("received message")

	if err := c.handleWithRetry(session.Context(), message); err != nil {
		// Сообщение не подтверждаем: брокер доставит его повторно
		// с увеличенным retry count.
		entry.WithError(err).Error("message processing failed after all retries")
		return
	}

	session.MarkMessage(message, "")
}

// handleWithRetry прогоняет сообщение через handler, расходуя остаток
// бюджета попыток. Бюджет считается от retry count в headers: часть
// попыток уже могла быть потрачена предыдущими redeliveries.
func (c *Consumer) handleWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	redelivered := redeliveryCount(message)

	remaining := c.maxRetries - redelivered
	if remaining < 1 {
		remaining = 1
	}

	var lastErr error
	for attempt := 0; attempt < remaining; attempt++ {
		if lastErr = c.handler(ctx, message); lastErr == nil {
			return nil
		}

		if attempt+1 < remaining {
			c.logger.WithFields(log.Fields{
				"topic":       message.Topic,
				"retry_count": redelivered + attempt,
				"max_retries": c.maxRetries,
			}).Warn("message processing failed, will retry")

			if c.retryDelay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.retryDelay):
				}
			}
		}
	}

	// Бюджет redeliveries ещё не исчерпан: ошибка вернёт сообщение брокеру.
	if redelivered < c.maxRetries {
		return lastErr
	}

	if c.dlq == nil {
		return lastErr
	}

	if dlqErr := c.sendToDLQ(message, lastErr); dlqErr != nil {
		c.logger.WithError(dlqErr).Error("failed to send message to DLQ")
		return fmt.Errorf("failed to send to DLQ: %w", dlqErr)
	}
	c.logger.WithFields(log.Fields{
		"topic":       message.Topic,
		"retry_count": redelivered,
	}).Info("message sent to DLQ after max retries")
	return nil
}

func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, processingErr error) error {
	record := deadLetterRecord{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      processingErr.Error(),
		FailedAt:          time.Now().UTC().Format(time.RFC3339),
		RetryCount:        redeliveryCount(message),
	}
	return c.dlq.PublishEvent(TopicDeadLetterQueue, string(message.Key), record)
}

// redeliveryCount извлекает retry count из headers сообщения.
func redeliveryCount(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if string(header.Key) != HeaderRetryCount {
			continue
		}
		if count, err := strconv.Atoi(string(header.Value)); err == nil {
			return count
		}
	}
	return 0
}

// paymentNotificationPayload — тело уведомления в формате Midtrans;
// тот же JSON, что приходит в вебхук.
type paymentNotificationPayload struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
}

// ParsePaymentNotification разбирает переигранное платёжное уведомление
// из тела сообщения.
func ParsePaymentNotification(message *sarama.ConsumerMessage) (domain.PaymentNotification, error) {
	var payload paymentNotificationPayload
	if err := json.Unmarshal(message.Value, &payload); err != nil {
		return domain.PaymentNotification{}, fmt.Errorf("failed to unmarshal payment notification: %w", err)
	}
	return domain.PaymentNotification{
		OrderID:           payload.OrderID,
		TransactionID:     payload.TransactionID,
		TransactionStatus: payload.TransactionStatus,
		FraudStatus:       payload.FraudStatus,
		PaymentType:       payload.PaymentType,
	}, nil
}
