package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"dokon/backend/internal/domain"
	"dokon/backend/internal/store"
)

func TestConcurrentSalesNeverOversell(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	// Product 4 starts at 50. Sixty goroutines each try to sell 1, so at
	// most fifty can succeed and stock must land exactly at zero.
	const attempts = 60
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateSale(ctx, domain.SaleDraft{
				StoreID:     1,
				CashierID:   1,
				PaymentType: domain.PaymentCash,
				Items: []domain.SaleItemInput{
					{ProductID: 4, Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(3200)},
				},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, store.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 50 {
		t.Fatalf("expected exactly 50 sales to succeed, got %d", succeeded)
	}
	qty, ok := repo.StockQty(1, 4)
	if !ok {
		t.Fatalf("expected inventory record for product 4")
	}
	if !qty.IsZero() {
		t.Fatalf("expected stock drained to zero, got %s", qty)
	}
}

func TestConcurrentAdjustmentsConserveQuantity(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	const workers = 40
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.AdjustInventory(ctx, 1, 3, decimal.RequireFromString("2.5")); err != nil {
				t.Errorf("adjust failed: %v", err)
			}
		}()
	}
	wg.Wait()

	qty, _ := repo.StockQty(1, 3)
	if !qty.Equal(decimal.RequireFromString("400")) {
		t.Fatalf("expected 300 + 40*2.5 = 400, got %s", qty)
	}
}
