package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отрицательной суммы заказа.
	ErrTotalNegative = errors.New("total_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrLineQtyInvalid = errors.New("line qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// Ошибка, если subtotal позиции не равен qty * price.
	ErrLineSubtotalMismatch = errors.New("line subtotal does not match qty * price")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match lines sum")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего идентификатора партии в резерве.
	ErrBatchIDRequired = errors.New("batch_id is required")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка некорректного количества в резерве.
	ErrReservationQtyInvalid = errors.New("reservation qty must be greater than zero")
	// Ошибка отсутствующего transaction_status в уведомлении шлюза.
	ErrGatewayStatusRequired = errors.New("transaction_status is required")
	// Ошибка отсутствующего transaction_id в записи дедупликации.
	ErrTransactionIDRequired = errors.New("transaction_id is required")

	// ErrOrderNotFound возвращается, если заказ не найден (или принадлежит другому клиенту).
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается каталогом, если товар не существует.
	ErrProductNotFound = errors.New("product not found")
	// ErrCustomerNotFound возвращается, если профиль покупателя не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrInsufficientStock — нет подходящей партии либо проигран гонка за остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrGatewayUnavailable — внешний платёжный вызов упал или превысил таймаут.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrDuplicateEvent — уведомление с таким transaction_id уже обработано.
	ErrDuplicateEvent = errors.New("payment event already processed")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsNotFound проверяет ошибки семейства "не найдено".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCustomerNotFound)
}
