// Package postgres implements the Repository on PostgreSQL via database/sql
// and the pgx stdlib driver. Stock mutations run in serializable
// transactions with FOR UPDATE row locks.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"dokon/backend/internal/domain"
	"dokon/backend/internal/receipt"
	"dokon/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, storeID int64, filter domain.ProductFilter) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, COALESCE(sku, ''), name, COALESCE(category, ''), unit, base_price, active, created_at
		FROM products
		WHERE store_id = $1
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%' OR category ILIKE '%' || $2 || '%')
		  AND ($3::boolean IS NULL OR active = $3)
		ORDER BY id DESC
	`, storeID, filter.Query, nullBool(filter.Active))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.SKU, &p.Name, &p.Category, &p.Unit, &p.BasePrice, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, storeID int64, productID int64) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, COALESCE(sku, ''), name, COALESCE(category, ''), unit, base_price, active, created_at
		FROM products
		WHERE store_id = $1 AND id = $2
	`, storeID, productID).Scan(&p.ID, &p.StoreID, &p.SKU, &p.Name, &p.Category, &p.Unit, &p.BasePrice, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, productID)
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (store_id, sku, name, category, unit, base_price, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		RETURNING id, created_at
	`, product.StoreID, nullIfEmpty(product.SKU), product.Name, nullIfEmpty(product.Category), product.Unit, product.BasePrice, product.Active).
		Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: sku %q already exists in store %d", store.ErrInvalidArgument, product.SKU, product.StoreID)
		}
		return nil, err
	}
	product.CreatedAt = product.CreatedAt.UTC()
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET sku = $3, name = $4, category = $5, unit = $6, base_price = $7, active = $8
		WHERE store_id = $1 AND id = $2
	`, product.StoreID, product.ID, nullIfEmpty(product.SKU), product.Name, nullIfEmpty(product.Category), product.Unit, product.BasePrice, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: sku %q already exists in store %d", store.ErrInvalidArgument, product.SKU, product.StoreID)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, product.ID)
	}
	updated := product
	return &updated, nil
}

func (s *Store) ListInventory(ctx context.Context, storeID int64, query string) ([]domain.InventoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.store_id, i.product_id, i.qty, i.updated_at,
		       p.name, COALESCE(p.sku, ''), COALESCE(p.category, ''), p.unit, p.base_price, p.active
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE i.store_id = $1
		  AND ($2 = '' OR p.name ILIKE '%' || $2 || '%' OR p.sku ILIKE '%' || $2 || '%' OR p.category ILIKE '%' || $2 || '%')
		ORDER BY i.product_id DESC
	`, storeID, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.InventoryRecord, 0, 64)
	for rows.Next() {
		var rec domain.InventoryRecord
		var info domain.ProductInfo
		if err := rows.Scan(&rec.ID, &rec.StoreID, &rec.ProductID, &rec.Qty, &rec.UpdatedAt,
			&info.Name, &info.SKU, &info.Category, &info.Unit, &info.BasePrice, &info.Active); err != nil {
			return nil, err
		}
		rec.UpdatedAt = rec.UpdatedAt.UTC()
		rec.Product = &info
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) AdjustInventory(ctx context.Context, storeID int64, productID int64, delta decimal.Decimal) (*domain.InventoryAdjustment, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var info domain.ProductInfo
	err = tx.QueryRowContext(ctx, `
		SELECT name, COALESCE(sku, ''), COALESCE(category, ''), unit, base_price, active
		FROM products
		WHERE store_id = $1 AND id = $2
	`, storeID, productID).Scan(&info.Name, &info.SKU, &info.Category, &info.Unit, &info.BasePrice, &info.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, productID)
		}
		return nil, err
	}

	var rec domain.InventoryRecord
	err = tx.QueryRowContext(ctx, `
		SELECT id, store_id, product_id, qty, updated_at
		FROM inventory
		WHERE store_id = $1 AND product_id = $2
		FOR UPDATE
	`, storeID, productID).Scan(&rec.ID, &rec.StoreID, &rec.ProductID, &rec.Qty, &rec.UpdatedAt)

	kind := domain.AdjustmentUpdated
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if delta.Sign() <= 0 {
			return nil, fmt.Errorf("%w: no inventory record for product %d, cannot remove stock", store.ErrInvalidState, productID)
		}
		kind = domain.AdjustmentCreated
		err = tx.QueryRowContext(ctx, `
			INSERT INTO inventory (store_id, product_id, qty, updated_at)
			VALUES ($1,$2,$3,now())
			RETURNING id, store_id, product_id, qty, updated_at
		`, storeID, productID, domain.Round3(delta)).
			Scan(&rec.ID, &rec.StoreID, &rec.ProductID, &rec.Qty, &rec.UpdatedAt)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		newQty := domain.Round3(rec.Qty.Add(delta))
		if newQty.IsNegative() {
			return nil, fmt.Errorf("%w: have %s, removing %s", store.ErrInvalidState, rec.Qty, delta.Neg())
		}
		err = tx.QueryRowContext(ctx, `
			UPDATE inventory
			SET qty = $3, updated_at = now()
			WHERE store_id = $1 AND product_id = $2
			RETURNING qty, updated_at
		`, storeID, productID, newQty).Scan(&rec.Qty, &rec.UpdatedAt)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	rec.Product = &info
	return &domain.InventoryAdjustment{Kind: kind, Record: rec}, nil
}

func (s *Store) CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	cashier := domain.PartySummary{ID: draft.CashierID}
	err = pgTx.QueryRowContext(ctx, `
		SELECT full_name, username
		FROM users
		WHERE store_id = $1 AND id = $2
	`, draft.StoreID, draft.CashierID).Scan(&cashier.FullName, &cashier.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: cashier %d not in store %d", store.ErrNotFound, draft.CashierID, draft.StoreID)
		}
		return nil, err
	}

	var customer *domain.PartySummary
	if draft.CustomerID != nil {
		c := domain.PartySummary{ID: *draft.CustomerID}
		err = pgTx.QueryRowContext(ctx, `
			SELECT full_name, COALESCE(phone, '')
			FROM customers
			WHERE store_id = $1 AND id = $2
		`, draft.StoreID, *draft.CustomerID).Scan(&c.FullName, &c.Phone)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: customer %d not in store %d", store.ErrNotFound, *draft.CustomerID, draft.StoreID)
			}
			return nil, err
		}
		customer = &c
	}

	// Lock every line's inventory row and verify availability before any
	// write, so a failed sale rolls back with stock untouched. The row is
	// read once per product and availability tracked as a running balance,
	// so repeated lines for the same product cannot oversell together.
	subtotal := decimal.Zero
	remaining := make(map[int64]decimal.Decimal, len(draft.Items))
	for _, item := range draft.Items {
		available, seen := remaining[item.ProductID]
		if !seen {
			err = pgTx.QueryRowContext(ctx, `
				SELECT qty
				FROM inventory
				WHERE store_id = $1 AND product_id = $2
				FOR UPDATE
			`, draft.StoreID, item.ProductID).Scan(&available)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, fmt.Errorf("%w: no inventory record for product %d", store.ErrNotFound, item.ProductID)
				}
				return nil, err
			}
		}
		if available.LessThan(item.Qty) {
			return nil, fmt.Errorf("%w: product %d has %s, requested %s", store.ErrInsufficientStock, item.ProductID, available, item.Qty)
		}
		remaining[item.ProductID] = available.Sub(item.Qty)
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
	var todayCount int
	err = pgTx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sales
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
	`, draft.StoreID, from, to).Scan(&todayCount)
	if err != nil {
		return nil, err
	}

	sale := domain.Sale{
		StoreID:     draft.StoreID,
		CashierID:   draft.CashierID,
		CustomerID:  draft.CustomerID,
		ReceiptNo:   receipt.Number(now, todayCount+1),
		PaymentType: draft.PaymentType,
		Subtotal:    subtotal,
		Discount:    draft.Discount,
		Total:       total,
		PaidAmount:  paid,
		Note:        draft.Note,
	}
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO sales (store_id, cashier_id, customer_id, receipt_no, payment_type, subtotal, discount, total, paid_amount, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at
	`, sale.StoreID, sale.CashierID, nullInt64(sale.CustomerID), sale.ReceiptNo, sale.PaymentType,
		sale.Subtotal, sale.Discount, sale.Total, sale.PaidAmount, nullIfEmpty(sale.Note), now).
		Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	items := make([]domain.SaleItem, 0, len(draft.Items))
	for _, input := range draft.Items {
		item := domain.SaleItem{
			SaleID:    sale.ID,
			ProductID: input.ProductID,
			Qty:       input.Qty,
			UnitPrice: input.UnitPrice,
			LineTotal: domain.Round2(input.Qty.Mul(input.UnitPrice)),
		}
		err = pgTx.QueryRowContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, qty, unit_price, line_total)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`, item.SaleID, item.ProductID, item.Qty, item.UnitPrice, item.LineTotal).Scan(&item.ID)
		if err != nil {
			return nil, err
		}

		_, err = pgTx.ExecContext(ctx, `
			UPDATE inventory
			SET qty = round(qty - $3, 3), updated_at = now()
			WHERE store_id = $1 AND product_id = $2
		`, draft.StoreID, input.ProductID, input.Qty)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.Cashier = &cashier
	sale.Customer = customer
	sale.Items = items
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, storeID int64, filter domain.SaleFilter) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.store_id, s.cashier_id, s.customer_id, s.receipt_no, s.payment_type,
		       s.subtotal, s.discount, s.total, s.paid_amount, COALESCE(s.note, ''), s.created_at,
		       u.full_name, u.username,
		       c.full_name, COALESCE(c.phone, ''),
		       (SELECT COUNT(*) FROM sale_items si WHERE si.sale_id = s.id)
		FROM sales s
		JOIN users u ON u.id = s.cashier_id
		LEFT JOIN customers c ON c.id = s.customer_id
		WHERE s.store_id = $1
		  AND ($2 = '' OR s.payment_type = $2)
		  AND ($3 = '' OR s.receipt_no ILIKE '%' || $3 || '%' OR u.full_name ILIKE '%' || $3 || '%' OR c.full_name ILIKE '%' || $3 || '%')
		ORDER BY s.id DESC
	`, storeID, filter.PaymentType, filter.Query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		var customerID sql.NullInt64
		var cashier domain.PartySummary
		var customerName sql.NullString
		var customerPhone string
		if err := rows.Scan(&sale.ID, &sale.StoreID, &sale.CashierID, &customerID, &sale.ReceiptNo, &sale.PaymentType,
			&sale.Subtotal, &sale.Discount, &sale.Total, &sale.PaidAmount, &sale.Note, &sale.CreatedAt,
			&cashier.FullName, &cashier.Username,
			&customerName, &customerPhone,
			&sale.ItemCount); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		cashier.ID = sale.CashierID
		sale.Cashier = &cashier
		if customerID.Valid {
			id := customerID.Int64
			sale.CustomerID = &id
			sale.Customer = &domain.PartySummary{ID: id, FullName: customerName.String, Phone: customerPhone}
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, storeID int64, saleID int64) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullInt64
	var cashier domain.PartySummary
	var customerName sql.NullString
	var customerPhone string
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.store_id, s.cashier_id, s.customer_id, s.receipt_no, s.payment_type,
		       s.subtotal, s.discount, s.total, s.paid_amount, COALESCE(s.note, ''), s.created_at,
		       u.full_name, u.username,
		       c.full_name, COALESCE(c.phone, '')
		FROM sales s
		JOIN users u ON u.id = s.cashier_id
		LEFT JOIN customers c ON c.id = s.customer_id
		WHERE s.store_id = $1 AND s.id = $2
	`, storeID, saleID).Scan(&sale.ID, &sale.StoreID, &sale.CashierID, &customerID, &sale.ReceiptNo, &sale.PaymentType,
		&sale.Subtotal, &sale.Discount, &sale.Total, &sale.PaidAmount, &sale.Note, &sale.CreatedAt,
		&cashier.FullName, &cashier.Username,
		&customerName, &customerPhone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %d", store.ErrNotFound, saleID)
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	cashier.ID = sale.CashierID
	sale.Cashier = &cashier
	if customerID.Valid {
		id := customerID.Int64
		sale.CustomerID = &id
		sale.Customer = &domain.PartySummary{ID: id, FullName: customerName.String, Phone: customerPhone}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT si.id, si.sale_id, si.product_id, si.qty, si.unit_price, si.line_total,
		       p.name, COALESCE(p.sku, ''), COALESCE(p.category, ''), p.unit, p.base_price, p.active
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.id
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.SaleItem
		var info domain.ProductInfo
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Qty, &item.UnitPrice, &item.LineTotal,
			&info.Name, &info.SKU, &info.Category, &info.Unit, &info.BasePrice, &info.Active); err != nil {
			return nil, err
		}
		item.Product = &info
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sale.ItemCount = len(sale.Items)
	return &sale, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullBool(val *bool) any {
	if val == nil {
		return nil
	}
	return *val
}
