package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// maxNotificationBody ограничивает размер тела уведомления.
const maxNotificationBody = 1 << 20

// midtransNotification — тело вебхука Midtrans; лишние поля игнорируются.
type midtransNotification struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
}

// paymentNotification принимает вебхук платёжного шлюза. Ответ всегда 200:
// шлюз ретраит не-2xx, а повтор уведомления мы и так обрабатываем
// идемпотентно. Необработанные payload'ы уходят в DLQ на разбор.
func (h *Handler) paymentNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBody))
	if err != nil {
		h.logger.WithError(err).Warn("failed to read notification body")
		w.WriteHeader(http.StatusOK)
		return
	}

	var payload midtransNotification
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.WithError(err).Warn("malformed payment notification")
		h.deadLetter(body, "unmarshal: "+err.Error())
		w.WriteHeader(http.StatusOK)
		return
	}

	notification := domain.PaymentNotification{
		OrderID:           payload.OrderID,
		TransactionID:     payload.TransactionID,
		TransactionStatus: payload.TransactionStatus,
		FraudStatus:       payload.FraudStatus,
		PaymentType:       payload.PaymentType,
	}

	outcome, err := h.notifications.Handle(r.Context(), notification)
	if err != nil {
		h.logger.WithError(err).WithFields(log.Fields{
			"order_id":           payload.OrderID,
			"transaction_status": payload.TransactionStatus,
		}).Error("payment notification processing failed")
		h.deadLetter(body, err.Error())
		w.WriteHeader(http.StatusOK)
		return
	}

	h.logger.WithFields(log.Fields{
		"order_id":           payload.OrderID,
		"transaction_status": payload.TransactionStatus,
		"outcome":            string(outcome),
	}).Info("payment notification processed")
	w.WriteHeader(http.StatusOK)
}

// deadLetterEnvelope — сырое уведомление с причиной отказа для DLQ.
type deadLetterEnvelope struct {
	Source  string          `json:"source"`
	Reason  string          `json:"reason"`
	Payload json.RawMessage `json:"payload"`
}

func (h *Handler) deadLetter(body []byte, reason string) {
	if h.dlq == nil {
		return
	}

	if !json.Valid(body) {
		body, _ = json.Marshal(string(body))
	}
	envelope := deadLetterEnvelope{
		Source:  "midtrans-webhook",
		Reason:  reason,
		Payload: body,
	}
	if err := h.dlq.PublishEvent(h.dlqTopic, "midtrans-webhook", envelope); err != nil {
		h.logger.WithError(err).Error("failed to dead-letter payment notification")
	}
}
