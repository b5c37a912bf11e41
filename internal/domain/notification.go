package domain

import "time"

// Статусы транзакции, приходящие от платёжного шлюза (Midtrans).
const (
	GatewayStatusCapture           = "capture"
	GatewayStatusSettlement        = "settlement"
	GatewayStatusPending           = "pending"
	GatewayStatusDeny              = "deny"
	GatewayStatusExpire            = "expire"
	GatewayStatusCancel            = "cancel"
	GatewayStatusRefund            = "refund"
	GatewayStatusPartialRefund     = "partial_refund"
	GatewayStatusChargeback        = "chargeback"
	GatewayStatusPartialChargeback = "partial_chargeback"

	// FraudAccept/FraudChallenge — вердикты антифрода для capture.
	FraudAccept    = "accept"
	FraudChallenge = "challenge"
)

// PaymentNotification — входящее уведомление шлюза о статусе платежа.
// Доставка at-least-once: события могут дублироваться и приходить не по порядку.
type PaymentNotification struct {
	OrderID string
	// TransactionID — идентификатор транзакции у шлюза; ключ дедупликации.
	TransactionID     string
	TransactionStatus string
	FraudStatus       string
	PaymentType       string
}

// Validate проверяет обязательные поля уведомления.
func (n *PaymentNotification) Validate() []error {
	var errs []error

	if n.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if n.TransactionStatus == "" {
		errs = append(errs, ErrGatewayStatusRequired)
	}

	return errs
}

// IsRefundFamily сообщает, относится ли событие к семейству возвратов.
// Такие события пробивают терминальность статуса: refunded достижим откуда угодно.
func (n *PaymentNotification) IsRefundFamily() bool {
	switch n.TransactionStatus {
	case GatewayStatusRefund, GatewayStatusPartialRefund, GatewayStatusChargeback, GatewayStatusPartialChargeback:
		return true
	default:
		return false
	}
}

// ApplyNotification возвращает следующий статус заказа для события шлюза.
// Второй результат false означает no-op: событие не меняет статус
// (повторная доставка, неизвестный статус или challenge от антифрода).
func ApplyNotification(current OrderStatus, n PaymentNotification) (OrderStatus, bool) {
	if n.IsRefundFamily() {
		if current == OrderStatusRefunded {
			return current, false
		}
		return OrderStatusRefunded, true
	}

	// Терминальный статус не меняется обычными событиями (идемпотентные дубли).
	if current.IsTerminal() {
		return current, false
	}

	next := current
	switch n.TransactionStatus {
	case GatewayStatusCapture:
		switch n.FraudStatus {
		case FraudAccept:
			next = OrderStatusCompleted
		case FraudChallenge:
			// Остаёмся в pending до вердикта антифрода.
			next = OrderStatusPending
		default:
			next = OrderStatusFailed
		}
	case GatewayStatusSettlement:
		next = OrderStatusCompleted
	case GatewayStatusPending:
		next = OrderStatusPending
	case GatewayStatusDeny, GatewayStatusExpire:
		next = OrderStatusFailed
	case GatewayStatusCancel:
		next = OrderStatusCancelled
	default:
		return current, false
	}

	if next == current {
		return current, false
	}
	return next, true
}

// ProcessedEvent — запись об обработанном уведомлении шлюза.
// Хранится, чтобы безусловно отбрасывать точные дубли по transaction_id,
// включая повторные доставки из семейства возвратов.
type ProcessedEvent struct {
	// TransactionID — ключ дедупликации (идентификатор транзакции у шлюза).
	TransactionID string
	OrderID       string
	// Status — transaction_status обработанного события.
	Status      string
	ProcessedAt time.Time
}

// Validate проверяет ключевые поля записи дедупликации.
func (e *ProcessedEvent) Validate() []error {
	var errs []error

	if e.TransactionID == "" {
		errs = append(errs, ErrTransactionIDRequired)
	}
	if e.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}

	return errs
}
