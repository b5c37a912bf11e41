package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

const (
	// SandboxBaseURL — песочница Midtrans Snap.
	SandboxBaseURL = "https://app.sandbox.midtrans.com"
	// ProductionBaseURL — боевой Midtrans Snap.
	ProductionBaseURL = "https://app.midtrans.com"

	snapTransactionsPath = "/snap/v1/transactions"
	defaultHTTPTimeout   = 30 * time.Second
)

// MidtransClient — адаптер платёжного шлюза поверх Midtrans Snap API.
// Создаёт эфемерные платёжные сессии; состояние платежа приходит
// отдельными уведомлениями на webhook.
type MidtransClient struct {
	baseURL   string
	serverKey string
	client    *http.Client
	logger    *log.Entry
}

var _ domain.PaymentGateway = (*MidtransClient)(nil)

// ClientOption настраивает MidtransClient.
type ClientOption func(*MidtransClient)

// WithHTTPClient заменяет HTTP-клиент (в тестах — клиент httptest-сервера).
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *MidtransClient) {
		if client != nil {
			c.client = client
		}
	}
}

// NewMidtransClient создаёт клиент Snap API. baseURL без завершающего слэша.
func NewMidtransClient(baseURL, serverKey string, logger *log.Entry, opts ...ClientOption) *MidtransClient {
	if logger == nil {
		logger = log.New().WithField("component", "midtrans-client")
	}
	c := &MidtransClient{
		baseURL:   baseURL,
		serverKey: serverKey,
		client:    &http.Client{Timeout: defaultHTTPTimeout},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// snapRequest — тело запроса Snap /v1/transactions.
type snapRequest struct {
	TransactionDetails snapTransactionDetails `json:"transaction_details"`
	ItemDetails        []snapItem             `json:"item_details"`
	CustomerDetails    snapCustomer           `json:"customer_details"`
}

type snapTransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type snapItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int32  `json:"quantity"`
}

type snapCustomer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type snapResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	ErrorMessages []string `json:"error_messages"`
}

// CreateSession создаёт платёжную сессию Snap и возвращает токен
// с redirect-ссылкой. Сетевые ошибки и не-2xx ответы оборачиваются
// в ErrGatewayUnavailable.
func (c *MidtransClient) CreateSession(ctx context.Context, req domain.SessionRequest) (domain.PaymentSession, error) {
	body := snapRequest{
		TransactionDetails: snapTransactionDetails{
			OrderID:     req.OrderID,
			GrossAmount: req.TotalMinor,
		},
		CustomerDetails: snapCustomer{
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Email:     req.Customer.Email,
			Phone:     req.Customer.Phone,
		},
	}
	for _, item := range req.Items {
		body.ItemDetails = append(body.ItemDetails, snapItem{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.PriceMinor,
			Quantity: item.Qty,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.PaymentSession{}, fmt.Errorf("marshal snap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+snapTransactionsPath, bytes.NewReader(payload))
	if err != nil {
		return domain.PaymentSession{}, fmt.Errorf("build snap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	// Snap аутентифицируется server key в роли basic-auth логина с пустым паролем.
	httpReq.SetBasicAuth(c.serverKey, "")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.PaymentSession{}, fmt.Errorf("snap request: %w: %w", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.PaymentSession{}, fmt.Errorf("read snap response: %w: %w", domain.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WithFields(log.Fields{
			"order_id":    req.OrderID,
			"http_status": resp.StatusCode,
		}).Warn("snap transaction rejected")
		return domain.PaymentSession{}, fmt.Errorf("snap status %d: %s: %w", resp.StatusCode, snapErrorText(data), domain.ErrGatewayUnavailable)
	}

	var parsed snapResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return domain.PaymentSession{}, fmt.Errorf("decode snap response: %w: %w", domain.ErrGatewayUnavailable, err)
	}
	if parsed.Token == "" {
		return domain.PaymentSession{}, fmt.Errorf("snap response without token: %w", domain.ErrGatewayUnavailable)
	}

	return domain.PaymentSession{
		Token:       parsed.Token,
		RedirectURL: parsed.RedirectURL,
	}, nil
}

func snapErrorText(data []byte) string {
	var parsed snapResponse
	if err := json.Unmarshal(data, &parsed); err == nil && len(parsed.ErrorMessages) > 0 {
		return parsed.ErrorMessages[0]
	}
	return "unknown error"
}
