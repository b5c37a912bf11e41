package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/cache"
	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
)

const (
	// gatewayItemNameLimit — ограничение шлюза на длину имени позиции.
	gatewayItemNameLimit = 50
	// phoneFallback подставляется, когда в профиле покупателя нет телефона.
	phoneFallback = "N/A"

	defaultGatewayTimeout = 10 * time.Second
	defaultListLimit      = 100
)

// LineRequest — одна запрошенная позиция корзины.
type LineRequest struct {
	ProductID string
	Qty       int32
}

// Contact — явные контактные данные покупателя для платёжной сессии.
// Если не заданы, контакты выводятся из профиля покупателя.
type Contact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// CreateRequest описывает запрос на создание заказа.
type CreateRequest struct {
	CustomerID      string
	Lines           []LineRequest
	ShippingAddress string
	BillingAddress  string
	Notes           string
	Contact         *Contact
}

// Result — итог успешного создания заказа: pending-заказ и эфемерная сессия оплаты.
type Result struct {
	Order        domain.Order
	SessionToken string
	RedirectURL  string
}

// Service — оркестратор заказов: валидация, резерв стока, снимок цен,
// персист заказа и создание платёжной сессии.
type Service struct {
	uow       domain.UnitOfWork
	orders    domain.OrderRepository
	stocks    domain.StockRepository
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	catalog   domain.Catalog
	customers domain.CustomerDirectory
	gateway   domain.PaymentGateway
	views     *cache.OrderViews
	logger    *log.Entry
	metrics   *metrics.OrderMetrics

	gatewayTimeout time.Duration
}

// Option настраивает Service.
type Option func(*Service)

// WithGatewayTimeout задаёт таймаут внешнего платёжного вызова.
func WithGatewayTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.gatewayTimeout = timeout
		}
	}
}

// WithOrderViews подключает кеш представлений заказов.
func WithOrderViews(views *cache.OrderViews) Option {
	return func(s *Service) {
		s.views = views
	}
}

// WithMetrics подключает метрики (nil — метрики отключены, для тестов).
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService создаёт рабочий экземпляр оркестратора.
func NewService(
	uow domain.UnitOfWork,
	orders domain.OrderRepository,
	stocks domain.StockRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	catalog domain.Catalog,
	customers domain.CustomerDirectory,
	gateway domain.PaymentGateway,
	logger *log.Entry,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	s := &Service{
		uow:            uow,
		orders:         orders,
		stocks:         stocks,
		outbox:         outbox,
		timeline:       timeline,
		catalog:        catalog,
		customers:      customers,
		gateway:        gateway,
		logger:         logger,
		gatewayTimeout: defaultGatewayTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create выполняет полный цикл создания заказа. Резерв стока по всем позициям
// и вставка заказа — одна единица работы; платёжная сессия создаётся после
// коммита, её провал компенсируется отдельной единицей работы.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Result, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCreateDuration(time.Since(start))
		}
	}()

	if err := validateCreateRequest(req); err != nil {
		s.recordRejected("validation")
		return Result{}, err
	}

	order, reservations, err := s.reserveAndPersist(ctx, req)
	if err != nil {
		return Result{}, err
	}

	logger := s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
	})
	logger.WithField("total_minor", order.TotalMinor).Info("order created, creating payment session")
	s.appendTimeline(ctx, order.ID, domain.TimelineOrderCreated, "")

	session, err := s.createSession(ctx, req, order)
	if err != nil {
		logger.WithError(err).Warn("payment session failed, compensating")
		s.compensate(ctx, order.ID, reservations)
		if s.metrics != nil {
			s.metrics.RecordGatewaySession("error")
		}
		return Result{}, fmt.Errorf("create payment session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
		s.metrics.RecordGatewaySession("ok")
	}
	return Result{
		Order:        order,
		SessionToken: session.Token,
		RedirectURL:  session.RedirectURL,
	}, nil
}

// Get возвращает заказ. Если задан requesterID, заказ другого клиента
// неотличим от несуществующего (ErrOrderNotFound).
func (s *Service) Get(ctx context.Context, id, requesterID string) (domain.Order, error) {
	if id == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}

	if order, ok := s.views.Get(ctx, id); ok {
		if requesterID != "" && order.CustomerID != requesterID {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return order, nil
	}

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if requesterID != "" && order.CustomerID != requesterID {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	s.views.Set(ctx, order)
	return order, nil
}

// ListByCustomer возвращает заказы клиента, новые первыми.
func (s *Service) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if customerID == "" {
		return nil, domain.ErrCustomerRequired
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return s.orders.ListByCustomer(ctx, customerID, limit)
}

// reserveAndPersist резервирует сток и вставляет заказ одной единицей работы.
func (s *Service) reserveAndPersist(ctx context.Context, req CreateRequest) (domain.Order, []domain.Reservation, error) {
	now := time.Now().UTC()
	orderID := uuid.NewString()

	var (
		order        domain.Order
		reservations []domain.Reservation
	)

	err := s.uow.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		lines := make([]domain.OrderLine, 0, len(req.Lines))
		reservations = reservations[:0]
		var total int64

		for _, lr := range req.Lines {
			res, err := s.reserveLine(ctx, tx, lr, now)
			if err != nil {
				return err
			}
			reservations = append(reservations, res)

			subtotal := int64(lr.Qty) * res.PriceMinor
			lines = append(lines, domain.OrderLine{
				ID:             uuid.NewString(),
				OrderID:        orderID,
				ProductID:      res.ProductID,
				ProductName:    res.ProductName,
				UnitPriceMinor: res.PriceMinor,
				Qty:            lr.Qty,
				SubtotalMinor:  subtotal,
				CreatedAt:      now,
			})
			total += subtotal
		}

		order = domain.Order{
			ID:              orderID,
			CustomerID:      req.CustomerID,
			Status:          domain.OrderStatusPending,
			TotalMinor:      total,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			Notes:           req.Notes,
			Lines:           lines,
			Version:         0,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return errors.Join(errs...)
		}
		if err := s.orders.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("persist order: %w", err)
		}

		s.enqueueEvent(ctx, tx, order, kafka.EventTypeOrderCreated, map[string]interface{}{
			"total_minor": order.TotalMinor,
			"lines":       len(order.Lines),
		})
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientStock):
			s.recordRejected("insufficient_stock")
		case domain.IsNotFound(err):
			s.recordRejected("not_found")
		default:
			s.recordRejected("internal")
		}
		return domain.Order{}, nil, err
	}

	return order, reservations, nil
}

// reserveLine выбирает подходящую партию и атомарно списывает остаток.
// При проигранной гонке за остаток выбор повторяется один раз.
func (s *Service) reserveLine(ctx context.Context, tx domain.Tx, lr LineRequest, now time.Time) (domain.Reservation, error) {
	product, err := s.catalog.GetProduct(ctx, lr.ProductID)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("product %s: %w", lr.ProductID, err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		batches, err := s.stocks.ActiveBatches(ctx, tx, lr.ProductID)
		if err != nil {
			return domain.Reservation{}, fmt.Errorf("load batches for %s: %w", lr.ProductID, err)
		}

		var chosen *domain.StockBatch
		for i := range batches {
			if batches[i].EligibleAt(now, lr.Qty) {
				chosen = &batches[i]
				break
			}
		}
		if chosen == nil {
			break
		}

		err = s.stocks.ReserveBatch(ctx, tx, chosen.ID, lr.Qty)
		if err == nil {
			return domain.Reservation{
				BatchID:     chosen.ID,
				ProductID:   lr.ProductID,
				ProductName: product.Name,
				Qty:         lr.Qty,
				PriceMinor:  chosen.PriceMinor,
			}, nil
		}
		if !errors.Is(err, domain.ErrInsufficientStock) {
			return domain.Reservation{}, fmt.Errorf("reserve batch %s: %w", chosen.ID, err)
		}
		// Проиграли гонку за остаток: перечитываем партии и пробуем ещё раз.
		s.logger.WithFields(log.Fields{
			"product_id": lr.ProductID,
			"batch_id":   chosen.ID,
			"attempt":    attempt + 1,
		}).Debug("reservation race lost, retrying batch selection")
	}

	return domain.Reservation{}, fmt.Errorf("product %q (%s): %w", product.Name, lr.ProductID, domain.ErrInsufficientStock)
}

// createSession собирает запрос для шлюза и создаёт платёжную сессию
// с ограниченным таймаутом.
func (s *Service) createSession(ctx context.Context, req CreateRequest, order domain.Order) (domain.PaymentSession, error) {
	customer, err := s.sessionCustomer(ctx, req)
	if err != nil {
		return domain.PaymentSession{}, err
	}

	items := make([]domain.SessionItem, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, domain.SessionItem{
			ID:         line.ProductID,
			Name:       truncate(line.ProductName, gatewayItemNameLimit),
			PriceMinor: line.UnitPriceMinor,
			Qty:        line.Qty,
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	return s.gateway.CreateSession(callCtx, domain.SessionRequest{
		OrderID:    order.ID,
		TotalMinor: order.TotalMinor,
		Items:      items,
		Customer:   customer,
	})
}

// sessionCustomer строит контакты покупателя: явный override из запроса,
// иначе профиль покупателя с разбиением полного имени.
func (s *Service) sessionCustomer(ctx context.Context, req CreateRequest) (domain.SessionCustomer, error) {
	if req.Contact != nil {
		return domain.SessionCustomer{
			FirstName: req.Contact.FirstName,
			LastName:  req.Contact.LastName,
			Email:     req.Contact.Email,
			Phone:     req.Contact.Phone,
		}, nil
	}

	profile, err := s.customers.GetProfile(ctx, req.CustomerID)
	if err != nil {
		return domain.SessionCustomer{}, fmt.Errorf("customer profile %s: %w", req.CustomerID, err)
	}

	first, last := splitFullName(profile.FullName)
	phone := profile.Phone
	if phone == "" {
		phone = phoneFallback
	}
	return domain.SessionCustomer{
		FirstName: first,
		LastName:  last,
		Email:     profile.Email,
		Phone:     phone,
	}, nil
}

// compensate возвращает зарезервированный сток и помечает заказ failed
// одной компенсирующей единицей работы.
func (s *Service) compensate(ctx context.Context, orderID string, reservations []domain.Reservation) {
	logger := s.logger.WithField("order_id", orderID)

	err := s.uow.Run(ctx, func(ctx context.Context, tx domain.Tx) error {
		// Сначала захват записи заказа, потом возврат стока: тот же
		// порядок блокировок, что и у сверки уведомлений.
		order, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("load order for compensation: %w", err)
		}

		for _, res := range reservations {
			s.restoreReservation(ctx, tx, logger, res)
		}
		order.Status = domain.OrderStatusFailed
		order.UpdatedAt = time.Now().UTC()
		if err := s.orders.Save(ctx, tx, order); err != nil {
			return fmt.Errorf("mark order failed: %w", err)
		}

		s.enqueueEvent(ctx, tx, order, kafka.EventTypeOrderFailed, map[string]interface{}{
			"reason": "payment session failed",
		})
		return nil
	})
	if err != nil {
		// Компенсация не удалась: сток может остаться списанным, нужна ручная сверка.
		logger.WithError(err).Error("compensation failed, stock may be short")
		return
	}

	if s.metrics != nil {
		s.metrics.RecordCompensation()
	}
	s.views.Invalidate(ctx, orderID)
	s.appendTimeline(ctx, orderID, domain.TimelineOrderFailed, "payment session failed")
}

// restoreReservation возвращает количество в исходную партию, при её отсутствии —
// в любую живую партию товара; если живых партий нет, остаток теряется с warn-логом.
func (s *Service) restoreReservation(ctx context.Context, tx domain.Tx, logger *log.Entry, res domain.Reservation) {
	restored, err := s.stocks.RestoreBatch(ctx, tx, res.BatchID, res.Qty)
	if err != nil {
		logger.WithError(err).WithField("batch_id", res.BatchID).Error("restore batch failed")
		return
	}
	if restored {
		if s.metrics != nil {
			s.metrics.RecordStockRestore()
		}
		return
	}

	restored, err = s.stocks.RestoreAny(ctx, tx, res.ProductID, res.Qty)
	if err != nil {
		logger.WithError(err).WithField("product_id", res.ProductID).Error("restore fallback failed")
		return
	}
	if restored {
		if s.metrics != nil {
			s.metrics.RecordStockRestore()
		}
		return
	}

	// Партий не осталось: инвентарь навсегда короче на res.Qty.
	logger.WithFields(log.Fields{
		"product_id": res.ProductID,
		"qty":        res.Qty,
	}).Warn("no live batch to restore stock, inventory short")
	if s.metrics != nil {
		s.metrics.RecordRestoreShortfall()
	}
}

func (s *Service) enqueueEvent(ctx context.Context, tx domain.Tx, order domain.Order, eventType kafka.EventType, metadata map[string]interface{}) {
	event := kafka.NewOrderEvent(eventType, order.ID, order.CustomerID, string(order.Status), metadata)
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("marshal event failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(ctx, tx, msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    string(eventType),
		}).Error("enqueue event failed")
	} else if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}

func (s *Service) appendTimeline(ctx context.Context, orderID, eventType, reason string) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := s.timeline.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
	} else if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}

func (s *Service) recordRejected(reason string) {
	if s.metrics != nil {
		s.metrics.RecordOrderRejected(reason)
	}
}

func validateCreateRequest(req CreateRequest) error {
	if req.CustomerID == "" {
		return domain.ErrCustomerRequired
	}
	if len(req.Lines) == 0 {
		return domain.ErrLinesRequired
	}
	for _, line := range req.Lines {
		if line.ProductID == "" {
			return domain.ErrProductIDRequired
		}
		if line.Qty <= 0 {
			return domain.ErrLineQtyInvalid
		}
	}
	return nil
}

// splitFullName делит полное имя на first/last в формате шлюза.
// Для однословных имён фамилия повторяет имя.
func splitFullName(fullName string) (string, string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "", ""
	}
	first := parts[0]
	last := strings.Join(parts[1:], " ")
	if last == "" {
		last = first
	}
	return first, last
}

// truncate режет строку по символам, не разрывая многобайтовые руны.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
