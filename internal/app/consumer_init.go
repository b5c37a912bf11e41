package app

import (
	"context"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopcore/internal/service/reconcile"
)

const (
	// notificationConsumerGroup — группа потребителей переигранных
	// уведомлений, общая для всех инстансов сервиса.
	notificationConsumerGroup = "shopcore-reconciler"
	// notificationMaxRetries — бюджет попыток до отправки уведомления в DLQ.
	notificationMaxRetries = 3
)

// notificationApplier применяет платёжное уведомление к заказу.
type notificationApplier interface {
	Handle(ctx context.Context, n domain.PaymentNotification) (reconcile.Outcome, error)
}

// notificationReplayHandler строит обработчик переигранных уведомлений:
// разбор тела и прогон через сверку. Ошибка уходит наружу, ретраи и DLQ
// остаются за consumer-ом.
func notificationReplayHandler(applier notificationApplier, logger *log.Entry) kafka.MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		notification, err := kafka.ParsePaymentNotification(message)
		if err != nil {
			return err
		}
		outcome, err := applier.Handle(ctx, notification)
		if err != nil {
			return err
		}
		logger.WithFields(log.Fields{
			"order_id": notification.OrderID,
			"outcome":  string(outcome),
		}).Info("replayed payment notification processed")
		return nil
	}
}

// initNotificationConsumer подписывает сверку на topic переигранных
// платёжных уведомлений: сюда dlq-reprocess возвращает вебхуки, которые
// не удалось применить с первого раза. Недоступный брокер не валит
// запуск — основным каналом уведомлений остаётся HTTP-вебхук.
func initNotificationConsumer(cfg Config, dlq *kafka.Producer, applier notificationApplier, logger *log.Entry) *kafka.Consumer {
	if cfg.KafkaBrokers == "" || cfg.PaymentNotificationsTopic == "" {
		return nil
	}

	handler := notificationReplayHandler(applier, logger.WithField("component", "notification-consumer"))
	consumer, err := kafka.NewConsumerWithDLQ(
		parseBrokerList(cfg.KafkaBrokers),
		notificationConsumerGroup,
		[]string{cfg.PaymentNotificationsTopic},
		handler,
		dlq,
		notificationMaxRetries,
	)
	if err != nil {
		logger.WithError(err).Warn("kafka notification consumer unavailable, replay channel disabled")
		return nil
	}
	return consumer
}
