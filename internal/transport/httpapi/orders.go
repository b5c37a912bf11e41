package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/order"
)

type createOrderRequest struct {
	Lines           []lineRequest  `json:"lines"`
	ShippingAddress string         `json:"shipping_address"`
	BillingAddress  string         `json:"billing_address"`
	Notes           string         `json:"notes"`
	Contact         *contactFields `json:"contact,omitempty"`
}

type lineRequest struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
}

type contactFields struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type createOrderResponse struct {
	Order        orderResponse `json:"order"`
	SessionToken string        `json:"session_token"`
	RedirectURL  string        `json:"redirect_url"`
}

type orderResponse struct {
	ID              string         `json:"id"`
	CustomerID      string         `json:"customer_id"`
	Status          string         `json:"status"`
	TotalMinor      int64          `json:"total_minor"`
	PaymentMethod   string         `json:"payment_method,omitempty"`
	ShippingAddress string         `json:"shipping_address,omitempty"`
	BillingAddress  string         `json:"billing_address,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	Lines           []lineResponse `json:"lines"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type lineResponse struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Qty            int32  `json:"qty"`
	SubtotalMinor  int64  `json:"subtotal_minor"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	customerID := r.Header.Get(customerIDHeader)
	if customerID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+customerIDHeader+" header")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	createReq := order.CreateRequest{
		CustomerID:      customerID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
	}
	for _, line := range req.Lines {
		createReq.Lines = append(createReq.Lines, order.LineRequest{
			ProductID: line.ProductID,
			Qty:       line.Qty,
		})
	}
	if req.Contact != nil {
		createReq.Contact = &order.Contact{
			FirstName: req.Contact.FirstName,
			LastName:  req.Contact.LastName,
			Email:     req.Contact.Email,
			Phone:     req.Contact.Phone,
		}
	}

	result, err := h.orders.Create(r.Context(), createReq)
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			h.logger.WithError(err).WithField("customer_id", customerID).Error("create order failed")
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		Order:        toOrderResponse(result.Order),
		SessionToken: result.SessionToken,
		RedirectURL:  result.RedirectURL,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	customerID := r.Header.Get(customerIDHeader)
	if customerID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+customerIDHeader+" header")
		return
	}

	got, err := h.orders.Get(r.Context(), orderID, customerID)
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			h.logger.WithError(err).WithField("order_id", orderID).Error("get order failed")
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(got))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.Header.Get(customerIDHeader)
	if customerID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+customerIDHeader+" header")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	listed, err := h.orders.ListByCustomer(r.Context(), customerID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("customer_id", customerID).Error("list orders failed")
		writeError(w, statusForError(err), err.Error())
		return
	}

	out := make([]orderResponse, 0, len(listed))
	for _, o := range listed {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func toOrderResponse(o domain.Order) orderResponse {
	lines := make([]lineResponse, 0, len(o.Lines))
	for _, line := range o.Lines {
		lines = append(lines, lineResponse{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			UnitPriceMinor: line.UnitPriceMinor,
			Qty:            line.Qty,
			SubtotalMinor:  line.SubtotalMinor,
		})
	}

	return orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		TotalMinor:      o.TotalMinor,
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Notes:           o.Notes,
		Lines:           lines,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
