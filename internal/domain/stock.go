package domain

import "time"

// StockBatch — партия товара на складе: количество, цена и срок годности.
// Каталог владеет партиями, но поле Quantity мутирует только складская книга
// (резервирование при создании заказа, возврат при компенсации).
type StockBatch struct {
	ID        string
	ProductID string
	// PriceMinor — цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// Quantity — доступный остаток; инвариант Quantity >= 0 держится
	// условными обновлениями и CHECK-ограничением в БД.
	Quantity  int32
	ExpiresAt time.Time
	CreatedAt time.Time
	// DeletedAt — партия мягко удалена каталогом и больше не продаётся.
	DeletedAt *time.Time
}

// EligibleAt сообщает, можно ли продать qty единиц из партии в момент now.
func (b *StockBatch) EligibleAt(now time.Time, qty int32) bool {
	if b.DeletedAt != nil {
		return false
	}
	if !now.Before(b.ExpiresAt) {
		return false
	}
	return b.Quantity >= qty
}

// Reservation описывает успешный резерв по одной позиции заказа:
// из какой партии, сколько и по какой цене. Оркестратор строит по резерву
// снимок позиции, а компенсация возвращает количество в ту же партию.
type Reservation struct {
	BatchID     string
	ProductID   string
	ProductName string
	Qty         int32
	PriceMinor  int64
}

// Validate проверяет, корректно ли заполнены ключевые поля резерва.
func (r *Reservation) Validate() []error {
	var errs []error

	if r.BatchID == "" {
		errs = append(errs, ErrBatchIDRequired)
	}
	if r.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if r.Qty <= 0 {
		errs = append(errs, ErrReservationQtyInvalid)
	}
	if r.PriceMinor < 0 {
		errs = append(errs, ErrLinePriceInvalid)
	}

	return errs
}
