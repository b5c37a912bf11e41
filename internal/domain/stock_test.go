package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

func TestStockBatchEligibleAt(t *testing.T) {
	now := time.Now().UTC()
	deleted := now.Add(-time.Hour)

	cases := []struct {
		name  string
		batch domain.StockBatch
		qty   int32
		want  bool
	}{
		{
			name:  "eligible",
			batch: domain.StockBatch{Quantity: 10, ExpiresAt: now.Add(24 * time.Hour)},
			qty:   5,
			want:  true,
		},
		{
			name:  "not enough quantity",
			batch: domain.StockBatch{Quantity: 3, ExpiresAt: now.Add(24 * time.Hour)},
			qty:   5,
			want:  false,
		},
		{
			name:  "expired",
			batch: domain.StockBatch{Quantity: 10, ExpiresAt: now.Add(-time.Minute)},
			qty:   1,
			want:  false,
		},
		{
			name:  "expires exactly now",
			batch: domain.StockBatch{Quantity: 10, ExpiresAt: now},
			qty:   1,
			want:  false,
		},
		{
			name:  "soft deleted",
			batch: domain.StockBatch{Quantity: 10, ExpiresAt: now.Add(24 * time.Hour), DeletedAt: &deleted},
			qty:   1,
			want:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.batch.EligibleAt(now, tc.qty); got != tc.want {
				t.Fatalf("EligibleAt = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReservationValidate(t *testing.T) {
	r := domain.Reservation{BatchID: "batch-1", ProductID: "product-1", Qty: 2, PriceMinor: 100}
	if errs := r.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid reservation, got %v", errs)
	}

	bad := domain.Reservation{Qty: 0, PriceMinor: -1}
	if errs := bad.Validate(); len(errs) != 4 {
		t.Fatalf("expected 4 validation errors, got %v", errs)
	}
}
