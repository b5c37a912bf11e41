package domain

import (
	"context"
	"time"
)

// Tx — непрозрачный дескриптор транзакции хранилища.
// Репозитории приводят его к своему конкретному типу.
type Tx interface{}

// UnitOfWork выполняет fn в одной атомарной единице работы: либо применяются
// все изменения репозиториев, сделанные через tx, либо ни одно из них.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Product — узкое представление товара каталога.
// Управление каталогом вне ядра; нам нужно только имя для снимка позиции.
type Product struct {
	ID   string
	Name string
}

// Catalog — read-only доступ к каталогу товаров.
type Catalog interface {
	// GetProduct возвращает товар или ErrProductNotFound.
	GetProduct(ctx context.Context, id string) (Product, error)
}

// CustomerProfile — контактные данные покупателя для платёжного шлюза.
type CustomerProfile struct {
	FullName string
	Email    string
	Phone    string
}

// CustomerDirectory — read-only доступ к профилям покупателей.
type CustomerDirectory interface {
	// GetProfile возвращает профиль или ErrCustomerNotFound.
	GetProfile(ctx context.Context, customerID string) (CustomerProfile, error)
}

// SessionItem — метаданные позиции для платёжной сессии шлюза.
type SessionItem struct {
	ID         string
	Name       string
	PriceMinor int64
	Qty        int32
}

// SessionCustomer — контактные данные покупателя в формате шлюза.
type SessionCustomer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// SessionRequest описывает запрос на создание платёжной сессии.
// Заказ выступает внешним order reference сессии.
type SessionRequest struct {
	OrderID    string
	TotalMinor int64
	Items      []SessionItem
	Customer   SessionCustomer
}

// PaymentSession — эфемерный результат создания сессии: токен и redirect URL.
// Не персистится на заказе, при необходимости генерируется заново.
type PaymentSession struct {
	Token       string
	RedirectURL string
}

// PaymentGateway описывает взаимодействие с внешним платёжным провайдером.
type PaymentGateway interface {
	// CreateSession создаёт платёжную сессию; на сетевые/авторизационные/валидационные
	// сбои и таймауты возвращает ошибку, оборачивающую ErrGatewayUnavailable.
	CreateSession(ctx context.Context, req SessionRequest) (PaymentSession, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
