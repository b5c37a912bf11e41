package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/order"
	"github.com/vladislavdragonenkov/shopcore/internal/service/reconcile"
)

// customerIDHeader — контракт внешнего слоя аутентификации: он проверяет
// токен и подставляет идентификатор клиента в заголовок.
const customerIDHeader = "X-Customer-ID"

const requestTimeout = 15 * time.Second

// OrderService — операции заказов, нужные HTTP-слою.
type OrderService interface {
	Create(ctx context.Context, req order.CreateRequest) (order.Result, error)
	Get(ctx context.Context, id, requesterID string) (domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error)
}

// NotificationService применяет уведомление шлюза к заказу.
type NotificationService interface {
	Handle(ctx context.Context, n domain.PaymentNotification) (reconcile.Outcome, error)
}

// DeadLetterPublisher публикует необработанные уведомления в DLQ-топик.
type DeadLetterPublisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}

// Handler агрегирует зависимости HTTP-слоя.
type Handler struct {
	orders        OrderService
	notifications NotificationService
	logger        *log.Entry

	dlq      DeadLetterPublisher
	dlqTopic string
}

// Option настраивает Handler.
type Option func(*Handler)

// WithDeadLetter включает публикацию упавших уведомлений в DLQ-топик.
func WithDeadLetter(pub DeadLetterPublisher, topic string) Option {
	return func(h *Handler) {
		h.dlq = pub
		h.dlqTopic = topic
	}
}

// NewHandler создаёт HTTP-слой поверх сервисов заказов и сверки.
func NewHandler(orders OrderService, notifications NotificationService, logger *log.Entry, opts ...Option) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "httpapi")
	}
	h := &Handler{
		orders:        orders,
		notifications: notifications,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router собирает chi-маршрутизатор со стандартным набором middleware.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/payments/midtrans/notification", h.paymentNotification)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// statusForError переводит доменные ошибки в HTTP-коды.
func statusForError(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case isValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrCustomerRequired) ||
		errors.Is(err, domain.ErrLinesRequired) ||
		errors.Is(err, domain.ErrProductIDRequired) ||
		errors.Is(err, domain.ErrLineQtyInvalid) ||
		errors.Is(err, domain.ErrOrderIDRequired)
}
