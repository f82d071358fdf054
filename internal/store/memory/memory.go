// Package memory holds an in-memory Repository used for dev mode and tests.
// Mutations mirror the postgres implementation: the same validation order,
// the same wrapped error kinds, and the same rounding.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dokon/backend/internal/domain"
	"dokon/backend/internal/receipt"
	"dokon/backend/internal/store"
)

type inventoryKey struct {
	storeID   int64
	productID int64
}

type Store struct {
	mu        sync.RWMutex
	products  map[int64]domain.Product
	inventory map[inventoryKey]domain.InventoryRecord
	users     map[int64]domain.User
	customers map[int64]domain.Customer
	sales     map[int64]domain.Sale
	saleItems map[int64][]domain.SaleItem

	nextProductID   int64
	nextInventoryID int64
	nextSaleID      int64
	nextSaleItemID  int64
}

func New() *Store {
	return &Store{
		products:        make(map[int64]domain.Product),
		inventory:       make(map[inventoryKey]domain.InventoryRecord),
		users:           make(map[int64]domain.User),
		customers:       make(map[int64]domain.Customer),
		sales:           make(map[int64]domain.Sale),
		saleItems:       make(map[int64][]domain.SaleItem),
		nextProductID:   1,
		nextInventoryID: 1,
		nextSaleID:      1,
		nextSaleItemID:  1,
	}
}

// NewSeeded returns a store pre-filled with two shops, cashiers, customers
// and a fabric catalog for dev/demo mode. Products 5 and 6 deliberately
// start without inventory rows so the create path of stock adjustment is
// reachable out of the box.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	users := []domain.User{
		{ID: 1, StoreID: 1, Username: "aziza", FullName: "Aziza Karimova"},
		{ID: 2, StoreID: 1, Username: "bekzod", FullName: "Bekzod To'rayev"},
		{ID: 3, StoreID: 2, Username: "gulnora", FullName: "Gulnora Rahimova"},
	}
	customers := []domain.Customer{
		{ID: 1, StoreID: 1, FullName: "Dilshod Abdullayev", Phone: "+998901234567"},
		{ID: 2, StoreID: 1, FullName: "Madina Yusupova", Phone: "+998907654321"},
		{ID: 3, StoreID: 2, FullName: "Olim Saidov"},
	}
	products := []domain.Product{
		{ID: 1, StoreID: 1, SKU: "GAZ-ATLAS-01", Name: "Atlas gazlama", Category: "gazlama", Unit: domain.UnitMeter, BasePrice: dec("45000"), Active: true, CreatedAt: now},
		{ID: 2, StoreID: 1, SKU: "GAZ-ADRAS-01", Name: "Adras gazlama", Category: "gazlama", Unit: domain.UnitMeter, BasePrice: dec("38000"), Active: true, CreatedAt: now},
		{ID: 3, StoreID: 1, SKU: "FUR-TUGMA-01", Name: "Tugma to'plami", Category: "furnitura", Unit: domain.UnitPiece, BasePrice: dec("5500"), Active: true, CreatedAt: now},
		{ID: 4, StoreID: 1, SKU: "FUR-IP-01", Name: "Ip g'altagi", Category: "furnitura", Unit: domain.UnitPiece, BasePrice: dec("3200"), Active: true, CreatedAt: now},
		{ID: 5, StoreID: 1, SKU: "GAZ-BAXMAL-01", Name: "Baxmal gazlama", Category: "gazlama", Unit: domain.UnitMeter, BasePrice: dec("72000"), Active: true, CreatedAt: now},
		{ID: 6, StoreID: 1, SKU: "GAZ-SHIFON-01", Name: "Shifon gazlama", Category: "gazlama", Unit: domain.UnitMeter, BasePrice: dec("29000"), Active: false, CreatedAt: now},
		{ID: 7, StoreID: 2, SKU: "GAZ-ATLAS-01", Name: "Atlas gazlama", Category: "gazlama", Unit: domain.UnitMeter, BasePrice: dec("46500"), Active: true, CreatedAt: now},
	}
	stock := []struct {
		productID int64
		qty       string
	}{
		{1, "120.5"},
		{2, "80"},
		{3, "300"},
		{4, "50"},
		{7, "64.25"},
	}

	for _, u := range users {
		s.users[u.ID] = u
	}
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	for _, p := range products {
		s.products[p.ID] = p
		if p.ID >= s.nextProductID {
			s.nextProductID = p.ID + 1
		}
	}
	for _, row := range stock {
		p := s.products[row.productID]
		s.inventory[inventoryKey{p.StoreID, p.ID}] = domain.InventoryRecord{
			ID:        s.nextInventoryID,
			StoreID:   p.StoreID,
			ProductID: p.ID,
			Qty:       dec(row.qty),
			UpdatedAt: now,
		}
		s.nextInventoryID++
	}
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (s *Store) ListProducts(_ context.Context, storeID int64, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.StoreID != storeID {
			continue
		}
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		if query != "" && !matchesProduct(p, query) {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return int(b.ID - a.ID)
	})
	return products, nil
}

func matchesProduct(p domain.Product, query string) bool {
	return strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strings.ToLower(p.SKU), query) ||
		strings.Contains(strings.ToLower(p.Category), query)
}

func (s *Store) GetProduct(_ context.Context, storeID int64, productID int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[productID]
	if !ok || product.StoreID != storeID {
		return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, productID)
	}
	copied := product
	return &copied, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSKU(product); err != nil {
		return nil, err
	}
	product.ID = s.nextProductID
	s.nextProductID++
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[product.ID]
	if !ok || current.StoreID != product.StoreID {
		return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, product.ID)
	}
	if err := s.checkSKU(product); err != nil {
		return nil, err
	}
	product.CreatedAt = current.CreatedAt
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

// checkSKU enforces the same per-store SKU uniqueness the postgres schema
// gets from its unique index. Empty SKUs are allowed to repeat.
func (s *Store) checkSKU(product domain.Product) error {
	if product.SKU == "" {
		return nil
	}
	for _, other := range s.products {
		if other.ID == product.ID {
			continue
		}
		if other.StoreID == product.StoreID && other.SKU == product.SKU {
			return fmt.Errorf("%w: sku %q already exists in store %d", store.ErrInvalidArgument, product.SKU, product.StoreID)
		}
	}
	return nil
}

func (s *Store) ListInventory(_ context.Context, storeID int64, query string) ([]domain.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	records := make([]domain.InventoryRecord, 0, len(s.inventory))
	for key, rec := range s.inventory {
		if key.storeID != storeID {
			continue
		}
		product, ok := s.products[key.productID]
		if !ok {
			continue
		}
		if query != "" && !matchesProduct(product, query) {
			continue
		}
		rec.Product = productInfo(product)
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b domain.InventoryRecord) int {
		return int(b.ProductID - a.ProductID)
	})
	return records, nil
}

func productInfo(p domain.Product) *domain.ProductInfo {
	return &domain.ProductInfo{
		Name:      p.Name,
		SKU:       p.SKU,
		Category:  p.Category,
		Unit:      p.Unit,
		BasePrice: p.BasePrice,
		Active:    p.Active,
	}
}

func (s *Store) AdjustInventory(_ context.Context, storeID int64, productID int64, delta decimal.Decimal) (*domain.InventoryAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok || product.StoreID != storeID {
		return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, productID)
	}

	now := time.Now().UTC()
	key := inventoryKey{storeID, productID}
	rec, exists := s.inventory[key]
	if !exists {
		if delta.Sign() <= 0 {
			return nil, fmt.Errorf("%w: no inventory record for product %d, cannot remove stock", store.ErrInvalidState, productID)
		}
		rec = domain.InventoryRecord{
			ID:        s.nextInventoryID,
			StoreID:   storeID,
			ProductID: productID,
			Qty:       domain.Round3(delta),
			UpdatedAt: now,
		}
		s.nextInventoryID++
		s.inventory[key] = rec
		rec.Product = productInfo(product)
		return &domain.InventoryAdjustment{Kind: domain.AdjustmentCreated, Record: rec}, nil
	}

	newQty := domain.Round3(rec.Qty.Add(delta))
	if newQty.IsNegative() {
		return nil, fmt.Errorf("%w: have %s, removing %s", store.ErrInvalidState, rec.Qty, delta.Neg())
	}
	rec.Qty = newQty
	rec.UpdatedAt = now
	s.inventory[key] = rec
	rec.Product = productInfo(product)
	return &domain.InventoryAdjustment{Kind: domain.AdjustmentUpdated, Record: rec}, nil
}

func (s *Store) CreateSale(_ context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cashier, ok := s.users[draft.CashierID]
	if !ok || cashier.StoreID != draft.StoreID {
		return nil, fmt.Errorf("%w: cashier %d not in store %d", store.ErrNotFound, draft.CashierID, draft.StoreID)
	}
	var customer *domain.Customer
	if draft.CustomerID != nil {
		c, ok := s.customers[*draft.CustomerID]
		if !ok || c.StoreID != draft.StoreID {
			return nil, fmt.Errorf("%w: customer %d not in store %d", store.ErrNotFound, *draft.CustomerID, draft.StoreID)
		}
		customer = &c
	}

	// First pass checks every line before anything is written, so a failed
	// sale leaves stock untouched. Availability is tracked against a running
	// balance so repeated lines for the same product cannot oversell together.
	subtotal := decimal.Zero
	remaining := make(map[inventoryKey]decimal.Decimal, len(draft.Items))
	for _, item := range draft.Items {
		key := inventoryKey{draft.StoreID, item.ProductID}
		available, seen := remaining[key]
		if !seen {
			rec, exists := s.inventory[key]
			if !exists {
				return nil, fmt.Errorf("%w: no inventory record for product %d", store.ErrNotFound, item.ProductID)
			}
			available = rec.Qty
		}
		if available.LessThan(item.Qty) {
			return nil, fmt.Errorf("%w: product %d has %s, requested %s", store.ErrInsufficientStock, item.ProductID, available, item.Qty)
		}
		remaining[key] = available.Sub(item.Qty)
		subtotal = subtotal.Add(domain.Round2(item.Qty.Mul(item.UnitPrice)))
	}

	subtotal = domain.Round2(subtotal)
	total := domain.Round2(subtotal.Sub(draft.Discount))
	if total.IsNegative() {
		return nil, fmt.Errorf("%w: discount %s exceeds subtotal %s", store.ErrInvalidArgument, draft.Discount, subtotal)
	}

	paid := total
	if draft.PaymentType == domain.PaymentCredit {
		paid = decimal.Zero
	}
	if draft.PaidAmount != nil {
		paid = *draft.PaidAmount
	}
	if paid.GreaterThan(total) {
		return nil, fmt.Errorf("%w: paid %s exceeds total %s", store.ErrInvalidArgument, paid, total)
	}

	now := time.Now().UTC()
	from, to := receipt.DayBounds(now)
	seq := 1
	for _, sale := range s.sales {
		if sale.StoreID != draft.StoreID {
			continue
		}
		if !sale.CreatedAt.Before(from) && sale.CreatedAt.Before(to) {
			seq++
		}
	}

	sale := domain.Sale{
		ID:          s.nextSaleID,
		StoreID:     draft.StoreID,
		CashierID:   draft.CashierID,
		CustomerID:  draft.CustomerID,
		ReceiptNo:   receipt.Number(now, seq),
		PaymentType: draft.PaymentType,
		Subtotal:    subtotal,
		Discount:    draft.Discount,
		Total:       total,
		PaidAmount:  paid,
		Note:        draft.Note,
		CreatedAt:   now,
	}
	s.nextSaleID++

	items := make([]domain.SaleItem, 0, len(draft.Items))
	for _, input := range draft.Items {
		key := inventoryKey{draft.StoreID, input.ProductID}
		rec := s.inventory[key]
		rec.Qty = domain.Round3(rec.Qty.Sub(input.Qty))
		rec.UpdatedAt = now
		s.inventory[key] = rec

		items = append(items, domain.SaleItem{
			ID:        s.nextSaleItemID,
			SaleID:    sale.ID,
			ProductID: input.ProductID,
			Qty:       input.Qty,
			UnitPrice: input.UnitPrice,
			LineTotal: domain.Round2(input.Qty.Mul(input.UnitPrice)),
		})
		s.nextSaleItemID++
	}

	s.sales[sale.ID] = sale
	s.saleItems[sale.ID] = items

	created := sale
	created.Cashier = userSummary(cashier)
	if customer != nil {
		created.Customer = customerSummary(*customer)
	}
	created.Items = s.itemsWithProducts(sale.ID)
	return &created, nil
}

func userSummary(u domain.User) *domain.PartySummary {
	return &domain.PartySummary{ID: u.ID, FullName: u.FullName, Username: u.Username}
}

func customerSummary(c domain.Customer) *domain.PartySummary {
	return &domain.PartySummary{ID: c.ID, FullName: c.FullName, Phone: c.Phone}
}

func (s *Store) itemsWithProducts(saleID int64) []domain.SaleItem {
	stored := s.saleItems[saleID]
	items := make([]domain.SaleItem, len(stored))
	copy(items, stored)
	for i := range items {
		if product, ok := s.products[items[i].ProductID]; ok {
			items[i].Product = productInfo(product)
		}
	}
	return items
}

func (s *Store) ListSales(_ context.Context, storeID int64, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if sale.StoreID != storeID {
			continue
		}
		if filter.PaymentType != "" && sale.PaymentType != filter.PaymentType {
			continue
		}
		if query != "" && !s.matchesSale(sale, query) {
			continue
		}
		if cashier, ok := s.users[sale.CashierID]; ok {
			sale.Cashier = userSummary(cashier)
		}
		if sale.CustomerID != nil {
			if customer, ok := s.customers[*sale.CustomerID]; ok {
				sale.Customer = customerSummary(customer)
			}
		}
		sale.ItemCount = len(s.saleItems[sale.ID])
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return int(b.ID - a.ID)
	})
	return sales, nil
}

func (s *Store) matchesSale(sale domain.Sale, query string) bool {
	if strings.Contains(strings.ToLower(sale.ReceiptNo), query) {
		return true
	}
	if cashier, ok := s.users[sale.CashierID]; ok {
		if strings.Contains(strings.ToLower(cashier.FullName), query) {
			return true
		}
	}
	if sale.CustomerID != nil {
		if customer, ok := s.customers[*sale.CustomerID]; ok {
			if strings.Contains(strings.ToLower(customer.FullName), query) {
				return true
			}
		}
	}
	return false
}

func (s *Store) GetSale(_ context.Context, storeID int64, saleID int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[saleID]
	if !ok || sale.StoreID != storeID {
		return nil, fmt.Errorf("%w: sale %d", store.ErrNotFound, saleID)
	}
	if cashier, ok := s.users[sale.CashierID]; ok {
		sale.Cashier = userSummary(cashier)
	}
	if sale.CustomerID != nil {
		if customer, ok := s.customers[*sale.CustomerID]; ok {
			sale.Customer = customerSummary(customer)
		}
	}
	sale.Items = s.itemsWithProducts(sale.ID)
	sale.ItemCount = len(sale.Items)
	copied := sale
	return &copied, nil
}

// StockQty reports the current stored quantity for a product, used by tests
// to assert decrements.
func (s *Store) StockQty(storeID int64, productID int64) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.inventory[inventoryKey{storeID, productID}]
	if !ok {
		return decimal.Zero, false
	}
	return rec.Qty, true
}
