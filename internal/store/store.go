package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"dokon/backend/internal/domain"
)

// Error kinds shared by every repository implementation. Operations wrap
// these with fmt.Errorf("%w: ...") so callers classify failures with
// errors.Is instead of inspecting messages.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
)

type Repository interface {
	ListProducts(ctx context.Context, storeID int64, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, storeID int64, productID int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListInventory(ctx context.Context, storeID int64, query string) ([]domain.InventoryRecord, error)
	AdjustInventory(ctx context.Context, storeID int64, productID int64, delta decimal.Decimal) (*domain.InventoryAdjustment, error)
	CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error)
	ListSales(ctx context.Context, storeID int64, filter domain.SaleFilter) ([]domain.Sale, error)
	GetSale(ctx context.Context, storeID int64, saleID int64) (*domain.Sale, error)
}
