package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64           `json:"id"`
	StoreID   int64           `json:"store_id"`
	SKU       string          `json:"sku,omitempty"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Unit      string          `json:"unit"`
	BasePrice decimal.Decimal `json:"base_price"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

type ProductCreateRequest struct {
	StoreID   int64           `json:"store_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Unit      string          `json:"unit"`
	BasePrice decimal.Decimal `json:"base_price"`
}

type ProductUpdateRequest struct {
	SKU       *string          `json:"sku,omitempty"`
	Name      *string          `json:"name,omitempty"`
	Category  *string          `json:"category,omitempty"`
	Unit      *string          `json:"unit,omitempty"`
	BasePrice *decimal.Decimal `json:"base_price,omitempty"`
	Active    *bool            `json:"active,omitempty"`
}

type ProductFilter struct {
	Query  string
	Active *bool
}

// ProductInfo is the subset of product columns embedded in inventory and
// sale item listings.
type ProductInfo struct {
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	Category  string          `json:"category,omitempty"`
	Unit      string          `json:"unit"`
	BasePrice decimal.Decimal `json:"base_price"`
	Active    bool            `json:"active"`
}

type InventoryRecord struct {
	ID        int64           `json:"id"`
	StoreID   int64           `json:"store_id"`
	ProductID int64           `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	UpdatedAt time.Time       `json:"updated_at"`
	Product   *ProductInfo    `json:"product,omitempty"`
}

type InventoryAdjustRequest struct {
	StoreID   int64           `json:"store_id"`
	ProductID int64           `json:"product_id"`
	DeltaQty  decimal.Decimal `json:"delta_qty"`
}

// InventoryAdjustment reports whether the adjustment created a fresh
// inventory row or updated an existing one.
type InventoryAdjustment struct {
	Kind   string          `json:"kind"`
	Record InventoryRecord `json:"inventory"`
}

type User struct {
	ID       int64  `json:"id"`
	StoreID  int64  `json:"store_id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type Customer struct {
	ID       int64  `json:"id"`
	StoreID  int64  `json:"store_id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
}

// PartySummary is a compact cashier or customer view attached to sales.
type PartySummary struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Username string `json:"username,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type SaleItemInput struct {
	ProductID int64           `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleCreateRequest struct {
	StoreID     int64            `json:"store_id"`
	CashierID   int64            `json:"cashier_id"`
	CustomerID  *int64           `json:"customer_id,omitempty"`
	PaymentType string           `json:"payment_type"`
	Discount    decimal.Decimal  `json:"discount"`
	PaidAmount  *decimal.Decimal `json:"paid_amount,omitempty"`
	Note        string           `json:"note,omitempty"`
	Items       []SaleItemInput  `json:"items"`
}

// SaleDraft is the normalized request handed to the repository once the
// service has rounded amounts and validated the shape. Totals and stock
// checks happen inside the repository transaction.
type SaleDraft struct {
	StoreID     int64
	CashierID   int64
	CustomerID  *int64
	PaymentType string
	Discount    decimal.Decimal
	PaidAmount  *decimal.Decimal
	Note        string
	Items       []SaleItemInput
}

type SaleItem struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	ProductID int64           `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Product   *ProductInfo    `json:"product,omitempty"`
}

type Sale struct {
	ID          int64           `json:"id"`
	StoreID     int64           `json:"store_id"`
	CashierID   int64           `json:"cashier_id"`
	CustomerID  *int64          `json:"customer_id,omitempty"`
	ReceiptNo   string          `json:"receipt_no"`
	PaymentType string          `json:"payment_type"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Note        string          `json:"note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Cashier     *PartySummary   `json:"cashier,omitempty"`
	Customer    *PartySummary   `json:"customer,omitempty"`
	ItemCount   int             `json:"item_count,omitempty"`
	Items       []SaleItem      `json:"items,omitempty"`
}

type SaleFilter struct {
	Query       string
	PaymentType string
}

const (
	UnitMeter = "meter"
	UnitPiece = "piece"
)

const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentMixed  = "mixed"
	PaymentCredit = "credit"
)

const (
	AdjustmentCreated = "created"
	AdjustmentUpdated = "updated"
)

func IsValidUnit(unit string) bool {
	return unit == UnitMeter || unit == UnitPiece
}

func IsValidPaymentType(paymentType string) bool {
	switch paymentType {
	case PaymentCash, PaymentCard, PaymentMixed, PaymentCredit:
		return true
	}
	return false
}

// Round2 rounds a monetary amount to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Round3 rounds a quantity to three decimal places, half away from zero.
func Round3(d decimal.Decimal) decimal.Decimal {
	return d.Round(3)
}
