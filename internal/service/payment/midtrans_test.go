package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

func sessionRequest() domain.SessionRequest {
	return domain.SessionRequest{
		OrderID:    "order-1",
		TotalMinor: 4500,
		Items: []domain.SessionItem{
			{ID: "prod-1", Name: "Arabica Beans", PriceMinor: 1500, Qty: 3},
		},
		Customer: domain.SessionCustomer{
			FirstName: "Ivan",
			LastName:  "Petrov",
			Email:     "ivan@example.com",
			Phone:     "+79990001122",
		},
	}
}

func TestCreateSession_Success(t *testing.T) {
	var captured map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/snap/v1/transactions", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "server-key", user)
		require.Empty(t, pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"snap-token","redirect_url":"https://app.example/snap-token"}`))
	}))
	defer srv.Close()

	client := NewMidtransClient(srv.URL, "server-key", nil)
	session, err := client.CreateSession(context.Background(), sessionRequest())
	require.NoError(t, err)
	require.Equal(t, "snap-token", session.Token)
	require.Equal(t, "https://app.example/snap-token", session.RedirectURL)

	details := captured["transaction_details"].(map[string]interface{})
	require.Equal(t, "order-1", details["order_id"])
	require.EqualValues(t, 4500, details["gross_amount"])

	items := captured["item_details"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	require.Equal(t, "Arabica Beans", item["name"])
	require.EqualValues(t, 1500, item["price"])
	require.EqualValues(t, 3, item["quantity"])

	customer := captured["customer_details"].(map[string]interface{})
	require.Equal(t, "Ivan", customer["first_name"])
	require.Equal(t, "Petrov", customer["last_name"])
}

func TestCreateSession_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_messages":["Access denied, please check client or server key"]}`))
	}))
	defer srv.Close()

	client := NewMidtransClient(srv.URL, "bad-key", nil)
	_, err := client.CreateSession(context.Background(), sessionRequest())
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	require.Contains(t, err.Error(), "Access denied")
}

func TestCreateSession_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewMidtransClient(srv.URL, "server-key", nil)
	_, err := client.CreateSession(context.Background(), sessionRequest())
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestCreateSession_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewMidtransClient(srv.URL, "server-key", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CreateSession(ctx, sessionRequest())
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestMockGateway(t *testing.T) {
	mock := NewMockGateway()
	session, err := mock.CreateSession(context.Background(), sessionRequest())
	require.NoError(t, err)
	require.Equal(t, "mock-token", session.Token)
	require.Equal(t, 1, mock.Calls)
	require.Equal(t, "order-1", mock.LastRequest.OrderID)
}
