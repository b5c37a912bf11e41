package domain

import "time"

// OrderStatus описывает жизненный цикл заказа в платёжном ядре магазина.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, сток зарезервирован, ждём оплату.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCompleted — оплата подтверждена платёжным шлюзом.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusFailed — оплата отклонена/просрочена либо не удалось создать платёжную сессию.
	OrderStatusFailed OrderStatus = "failed"
	// OrderStatusCancelled — шлюз сообщил об отмене платежа.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded — средства возвращены клиенту (полностью или частично).
	OrderStatusRefunded OrderStatus = "refunded"
)

// IsTerminal сообщает, является ли статус конечным.
// Из конечного статуса возможен только переход в refunded (см. ApplyNotification).
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// OrderLine представляет одну позицию заказа.
// Позиция — неизменяемый снимок каталога на момент покупки: если товар позже
// переименуют, удалят или поменяют цену, заказ останется исторически точным.
type OrderLine struct {
	ID      string
	OrderID string
	// ProductID — ссылка на товар каталога; сам товар может быть удалён позже.
	ProductID string
	// ProductName — имя товара на момент покупки.
	ProductName string
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах на момент покупки.
	UnitPriceMinor int64
	// Qty — количество единиц товара.
	Qty int32
	// SubtotalMinor — Qty * UnitPriceMinor.
	SubtotalMinor int64
	CreatedAt     time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID         string
	CustomerID string
	Status     OrderStatus
	// TotalMinor — сумма заказа в минимальных денежных единицах.
	TotalMinor int64
	// PaymentMethod заполняется из уведомления шлюза (payment_type), до этого пустой.
	PaymentMethod   string
	ShippingAddress string
	BillingAddress  string
	Notes           string
	Lines           []OrderLine
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	// DeletedAt — soft delete для аудита; заказы физически не удаляются.
	DeletedAt *time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrTotalNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price == subtotal.
	var calc int64
	for _, line := range o.Lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		if line.SubtotalMinor != int64(line.Qty)*line.UnitPriceMinor {
			errs = append(errs, ErrLineSubtotalMismatch)
		}
		calc += line.SubtotalMinor
	}
	if calc != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
