// Package service normalizes and validates requests before handing them to
// the repository. Totals, receipt numbers and stock checks happen inside
// the repository transaction so every implementation stays atomic.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dokon/backend/internal/cache"
	"dokon/backend/internal/domain"
	"dokon/backend/internal/store"
)

type Service struct {
	repo     store.Repository
	products cache.ProductCache
	cacheTTL time.Duration
}

func New(repo store.Repository, products cache.ProductCache, cacheTTL time.Duration) *Service {
	if products == nil {
		products = cache.NoopProductCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Service{
		repo:     repo,
		products: products,
		cacheTTL: cacheTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context, storeID int64, filter domain.ProductFilter) ([]domain.Product, error) {
	if storeID < 1 {
		return nil, fmt.Errorf("%w: store id is required", store.ErrInvalidArgument)
	}
	filter.Query = strings.TrimSpace(filter.Query)

	// Only the unfiltered listing is cached; filtered queries go straight
	// to the repository.
	cacheable := filter.Query == "" && filter.Active == nil
	if cacheable {
		if products, ok, err := s.products.Get(ctx, storeID); err == nil && ok {
			return products, nil
		} else if err != nil {
			log.Printf("[service] WARN: product cache get store=%d: %v", storeID, err)
		}
	}

	products, err := s.repo.ListProducts(ctx, storeID, filter)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := s.products.Set(ctx, storeID, products, s.cacheTTL); err != nil {
			log.Printf("[service] WARN: product cache set store=%d: %v", storeID, err)
		}
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, storeID int64, productID int64) (domain.Product, error) {
	if storeID < 1 {
		return domain.Product{}, fmt.Errorf("%w: store id is required", store.ErrInvalidArgument)
	}
	if productID < 1 {
		return domain.Product{}, fmt.Errorf("%w: product id is required", store.ErrInvalidArgument)
	}
	product, err := s.repo.GetProduct(ctx, storeID, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if req.StoreID < 1 {
		return domain.Product{}, fmt.Errorf("%w: store id is required", store.ErrInvalidArgument)
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Unit = strings.ToLower(strings.TrimSpace(req.Unit))

	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrInvalidArgument)
	}
	if !domain.IsValidUnit(req.Unit) {
		return domain.Product{}, fmt.Errorf("%w: unit must be %q or %q", store.ErrInvalidArgument, domain.UnitMeter, domain.UnitPiece)
	}
	if req.BasePrice.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: base price cannot be negative", store.ErrInvalidArgument)
	}

	product := domain.Product{
		StoreID:   req.StoreID,
		SKU:       req.SKU,
		Name:      req.Name,
		Category:  req.Category,
		Unit:      req.Unit,
		BasePrice: domain.Round2(req.BasePrice),
		Active:    true,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateProducts(ctx, req.StoreID)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, storeID int64, productID int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	if storeID < 1 {
		return domain.Product{}, fmt.Errorf("%w: store id is required", store.ErrInvalidArgument)
	}
	if productID < 1 {
		return domain.Product{}, fmt.Errorf("%w: product id is required", store.ErrInvalidArgument)
	}

	existing, err := s.repo.GetProduct(ctx, storeID, productID)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.SKU != nil {
		updated.SKU = strings.ToUpper(strings.TrimSpace(*req.SKU))
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name cannot be empty", store.ErrInvalidArgument)
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Unit != nil {
		unit := strings.ToLower(strings.TrimSpace(*req.Unit))
		if !domain.IsValidUnit(unit) {
			return domain.Product{}, fmt.Errorf("%w: unit must be %q or %q", store.ErrInvalidArgument, domain.UnitMeter, domain.UnitPiece)
		}
		updated.Unit = unit
	}
	if req.BasePrice != nil {
		if req.BasePrice.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: base price cannot be negative", store.ErrInvalidArgument)
		}
		updated.BasePrice = domain.Round2(*req.BasePrice)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateProducts(ctx, storeID)
	return *saved, nil
}

// ToggleProduct flips the active flag, hiding the product from sale
// without touching its inventory.
func (s *Service) ToggleProduct(ctx context.Context, storeID int64, productID int64) (domain.Product, error) {
	existing, err := s.GetProduct(ctx, storeID, productID)
	if err != nil {
		return domain.Product{}, err
	}
	existing.Active = !existing.Active
	saved, err := s.repo.UpdateProduct(ctx, existing)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateProducts(ctx, storeID)
	return *saved, nil
}

func (s *Service) ListInventory(ctx context.Context, storeID int64, query string) ([]domain.InventoryRecord, error) {
	if storeID < 1 {
		return nil, fmt.Errorf("%w: store id is required", store.ErrInvalidArgument)
	}
	return s.repo.ListInventory(ctx, storeID, strings.TrimSpace(query))
}

func (s *Service) AdjustInventory(ctx context.Context, req domain.InventoryAdjustRequest) (domain.InventoryAdjustment, error) {
	if req.StoreID < 1 {
		return domain.InventoryAdjustment{}, fmt.Errorf("%w: store id is required", store.ErrInvalidArgument)
	}
	if req.ProductID < 1 {
		return domain.InventoryAdjustment{}, fmt.Errorf("%w: product id is required", store.ErrInvalidArgument)
	}

	delta := domain.Round3(req.DeltaQty)
	if delta.IsZero() {
		return domain.InventoryAdjustment{}, fmt.Errorf("%w: delta qty cannot be zero", store.ErrInvalidArgument)
	}

	adjusted, err := s.repo.AdjustInventory(ctx, req.StoreID, req.ProductID, delta)
	if err != nil {
		return domain.InventoryAdjustment{}, err
	}
	return *adjusted, nil
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if req.StoreID < 1 {
		return domain.Sale{}, fmt.Errorf("%w: store id is required", store.ErrInvalidArgument)
	}
	if req.CashierID < 1 {
		return domain.Sale{}, fmt.Errorf("%w: cashier id is required", store.ErrInvalidArgument)
	}
	if req.CustomerID != nil && *req.CustomerID < 1 {
		return domain.Sale{}, fmt.Errorf("%w: customer id must be positive", store.ErrInvalidArgument)
	}

	paymentType := strings.ToLower(strings.TrimSpace(req.PaymentType))
	if !domain.IsValidPaymentType(paymentType) {
		return domain.Sale{}, fmt.Errorf("%w: unknown payment type %q", store.ErrInvalidArgument, req.PaymentType)
	}

	if req.Discount.IsNegative() {
		return domain.Sale{}, fmt.Errorf("%w: discount cannot be negative", store.ErrInvalidArgument)
	}
	discount := domain.Round2(req.Discount)

	var paid *decimal.Decimal
	if req.PaidAmount != nil {
		if req.PaidAmount.IsNegative() {
			return domain.Sale{}, fmt.Errorf("%w: paid amount cannot be negative", store.ErrInvalidArgument)
		}
		rounded := domain.Round2(*req.PaidAmount)
		paid = &rounded
	}

	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: at least one sale item is required", store.ErrInvalidArgument)
	}
	items := make([]domain.SaleItemInput, 0, len(req.Items))
	for i, item := range req.Items {
		if item.ProductID < 1 {
			return domain.Sale{}, fmt.Errorf("%w: item %d: product id is required", store.ErrInvalidArgument, i+1)
		}
		qty := domain.Round3(item.Qty)
		if qty.Sign() <= 0 {
			return domain.Sale{}, fmt.Errorf("%w: item %d: qty must be positive", store.ErrInvalidArgument, i+1)
		}
		if item.UnitPrice.IsNegative() {
			return domain.Sale{}, fmt.Errorf("%w: item %d: unit price cannot be negative", store.ErrInvalidArgument, i+1)
		}
		items = append(items, domain.SaleItemInput{
			ProductID: item.ProductID,
			Qty:       qty,
			UnitPrice: domain.Round2(item.UnitPrice),
		})
	}

	draft := domain.SaleDraft{
		StoreID:     req.StoreID,
		CashierID:   req.CashierID,
		CustomerID:  req.CustomerID,
		PaymentType: paymentType,
		Discount:    discount,
		PaidAmount:  paid,
		Note:        strings.TrimSpace(req.Note),
		Items:       items,
	}

	sale, err := s.repo.CreateSale(ctx, draft)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, storeID int64, filter domain.SaleFilter) ([]domain.Sale, error) {
	if storeID < 1 {
		return nil, fmt.Errorf("%w: store id is required", store.ErrInvalidArgument)
	}
	filter.Query = strings.TrimSpace(filter.Query)
	filter.PaymentType = strings.ToLower(strings.TrimSpace(filter.PaymentType))
	if filter.PaymentType != "" && !domain.IsValidPaymentType(filter.PaymentType) {
		return nil, fmt.Errorf("%w: unknown payment type %q", store.ErrInvalidArgument, filter.PaymentType)
	}
	return s.repo.ListSales(ctx, storeID, filter)
}

func (s *Service) GetSale(ctx context.Context, storeID int64, saleID int64) (domain.Sale, error) {
	if storeID < 1 {
		return domain.Sale{}, fmt.Errorf("%w: store id is required", store.ErrInvalidArgument)
	}
	if saleID < 1 {
		return domain.Sale{}, fmt.Errorf("%w: sale id is required", store.ErrInvalidArgument)
	}
	sale, err := s.repo.GetSale(ctx, storeID, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) invalidateProducts(ctx context.Context, storeID int64) {
	if err := s.products.Invalidate(ctx, storeID); err != nil {
		log.Printf("[service] WARN: product cache invalidate store=%d: %v", storeID, err)
	}
}
