package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:         "order-1",
		CustomerID: "customer-1",
		Status:     domain.OrderStatusPending,
		TotalMinor: 500,
		Lines: []domain.OrderLine{
			{
				ID:             "line-1",
				OrderID:        "order-1",
				ProductID:      "product-1",
				ProductName:    "Milk 1L",
				Qty:            5,
				UnitPriceMinor: 100,
				SubtotalMinor:  500,
				CreatedAt:      now,
			},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{
			name: "no customer",
			mut: func(o *domain.Order) {
				o.CustomerID = ""
			},
			want: domain.ErrCustomerRequired,
		},
		{
			name: "negative total",
			mut: func(o *domain.Order) {
				o.TotalMinor = -1
			},
			want: domain.ErrTotalNegative,
		},
		{
			name: "no lines",
			mut: func(o *domain.Order) {
				o.Lines = nil
			},
			want: domain.ErrLinesRequired,
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Lines[0].Qty = 0
			},
			want: domain.ErrLineQtyInvalid,
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Lines[0].UnitPriceMinor = -5
			},
			want: domain.ErrLinePriceInvalid,
		},
		{
			name: "subtotal mismatch",
			mut: func(o *domain.Order) {
				o.Lines[0].SubtotalMinor = 501
			},
			want: domain.ErrLineSubtotalMismatch,
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.TotalMinor = 999
			},
			want: domain.ErrTotalMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			errs := order.ValidateInvariants()
			if len(errs) == 0 {
				t.Fatalf("expected validation errors")
			}

			found := false
			for _, err := range errs {
				if err == tc.want {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := []domain.OrderStatus{
		domain.OrderStatusCompleted,
		domain.OrderStatusFailed,
		domain.OrderStatusCancelled,
		domain.OrderStatusRefunded,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("status %s must be terminal", s)
		}
	}
	if domain.OrderStatusPending.IsTerminal() {
		t.Fatalf("pending must not be terminal")
	}
}
