package payment

import (
	"context"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов.
type MockGateway struct {
	Session domain.PaymentSession
	Err     error

	Calls       int
	LastRequest domain.SessionRequest
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Session: domain.PaymentSession{
			Token:       "mock-token",
			RedirectURL: "https://pay.example/mock-token",
		},
	}
}

// CreateSession возвращает заранее настроенный результат и считает вызовы.
func (m *MockGateway) CreateSession(_ context.Context, req domain.SessionRequest) (domain.PaymentSession, error) {
	m.Calls++
	m.LastRequest = req
	if m.Err != nil {
		return domain.PaymentSession{}, m.Err
	}
	return m.Session, nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
