package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dokon/backend/internal/domain"
)

func TestCreateSaleDecrementsInventory(t *testing.T) {
	databaseURL := os.Getenv("DOKON_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set DOKON_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	sku := fmt.Sprintf("SKU-SALE-IT-%d", stamp)
	var storeID, cashierID, productID int64

	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO stores (name) VALUES ('it-store') RETURNING id
	`).Scan(&storeID); err != nil {
		t.Fatalf("insert store: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id IN (SELECT id FROM sales WHERE store_id = $1)`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stores WHERE id = $1`, storeID)
	})

	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (store_id, username, full_name)
		VALUES ($1, $2, 'IT Kassir') RETURNING id
	`, storeID, fmt.Sprintf("it-kassir-%d", stamp)).Scan(&cashierID); err != nil {
		t.Fatalf("insert cashier: %v", err)
	}

	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (store_id, sku, name, category, unit, base_price, active, created_at)
		VALUES ($1, $2, 'IT Gazlama', 'gazlama', 'meter', 45000, true, now()) RETURNING id
	`, storeID, sku).Scan(&productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (store_id, product_id, qty, updated_at)
		VALUES ($1, $2, 10.5, now())
	`, storeID, productID); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	sale, err := s.CreateSale(ctx, domain.SaleDraft{
		StoreID:     storeID,
		CashierID:   cashierID,
		PaymentType: domain.PaymentCash,
		Discount:    decimal.Zero,
		Items: []domain.SaleItemInput{
			{ProductID: productID, Qty: decimal.RequireFromString("2.5"), UnitPrice: decimal.RequireFromString("45000")},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !sale.Total.Equal(decimal.RequireFromString("112500")) {
		t.Fatalf("expected total 112500, got %s", sale.Total)
	}
	if len(sale.ReceiptNo) != 17 {
		t.Fatalf("expected receipt number like 2026-01-02-000001, got %s", sale.ReceiptNo)
	}

	var qty decimal.Decimal
	if err := s.db.QueryRowContext(ctx, `
		SELECT qty FROM inventory WHERE store_id = $1 AND product_id = $2
	`, storeID, productID).Scan(&qty); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if !qty.Equal(decimal.RequireFromString("8")) {
		t.Fatalf("expected stock 8 after sale, got %s", qty)
	}
}
