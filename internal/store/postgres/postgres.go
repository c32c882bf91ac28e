package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"ventasvoz/internal/domain"
	"ventasvoz/internal/store"
	"ventasvoz/internal/xid"
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

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, available, auto_created, created_at
		FROM products
		WHERE tenant_id = $1 AND available = true
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Available, &p.AutoCreated, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProductByName(ctx context.Context, tenantID string, name string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, available, auto_created, created_at
		FROM products
		WHERE tenant_id = $1 AND lower(name) = lower($2)
	`, tenantID, strings.TrimSpace(name)).Scan(&p.ID, &p.TenantID, &p.Name, &p.Available, &p.AutoCreated, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.TenantID == "" || strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrInvalid
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, tenant_id, name, available, auto_created, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, product.ID, product.TenantID, strings.TrimSpace(product.Name), product.Available, product.AutoCreated, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetCurrentPrice(ctx context.Context, productID string) (*domain.PriceEntry, error) {
	var entry domain.PriceEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, price, valid_from, valid_to
		FROM price_history
		WHERE product_id = $1 AND valid_to IS NULL
	`, productID).Scan(&entry.ID, &entry.ProductID, &entry.Price, &entry.ValidFrom, &entry.ValidTo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (s *Store) SwapPrice(ctx context.Context, productID string, price decimal.Decimal, at time.Time) error {
	if productID == "" || !price.IsPositive() {
		return store.ErrInvalid
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE price_history
		SET valid_to = $2
		WHERE product_id = $1 AND valid_to IS NULL
	`, productID, at.UTC())
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO price_history (id, product_id, price, valid_from, valid_to)
		VALUES ($1,$2,$3,$4,NULL)
	`, xid.New("price"), productID, price, at.UTC())
	if err != nil {
		if isSerializationFailure(err) || isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListPriceHistory(ctx context.Context, productID string, limit int) ([]domain.PriceEntry, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, price, valid_from, valid_to
		FROM price_history
		WHERE product_id = $1
		ORDER BY valid_from DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.PriceEntry, 0, limit)
	for rows.Next() {
		var entry domain.PriceEntry
		if err := rows.Scan(&entry.ID, &entry.ProductID, &entry.Price, &entry.ValidFrom, &entry.ValidTo); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name
		FROM payment_methods
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	methods := make([]domain.PaymentMethod, 0, 8)
	for rows.Next() {
		var m domain.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return methods, nil
}

func (s *Store) GetCustomerByName(ctx context.Context, tenantID string, name string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, created_at
		FROM customers
		WHERE tenant_id = $1 AND lower(name) = lower($2)
	`, tenantID, strings.TrimSpace(name)).Scan(&c.ID, &c.TenantID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.TenantID == "" || strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalid
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, tenant_id, name, created_at)
		VALUES ($1,$2,$3,$4)
	`, customer.ID, customer.TenantID, strings.TrimSpace(customer.Name), customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return s.GetCustomerByName(ctx, customer.TenantID, customer.Name)
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || sale.TenantID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if sale.OccurredAt.IsZero() {
		sale.OccurredAt = time.Now().UTC()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	saleDate := sale.OccurredAt.UTC().Format("2006-01-02")

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(daily_ordinal), 0) + 1
		FROM sales
		WHERE tenant_id = $1 AND sale_date = $2
	`, sale.TenantID, saleDate).Scan(&sale.DailyOrdinal)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, tenant_id, sale_date, daily_ordinal, total, occurred_at,
			customer_id, customer_name, incomplete, voided, note, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,false,$10,$11)
	`, sale.ID, sale.TenantID, saleDate, sale.DailyOrdinal, sale.Total, sale.OccurredAt.UTC(),
		nullIfEmpty(sale.CustomerID), sale.CustomerName, sale.Incomplete, sale.Note, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) || isSerializationFailure(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, position, product_id, product_label, unit_price, quantity, subtotal, unit_label)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, item.ID, sale.ID, i, nullIfEmpty(item.ProductID), item.ProductLabel, item.UnitPrice, item.Quantity, item.Subtotal, item.UnitLabel)
		if err != nil {
			return nil, err
		}
	}

	for i := range sale.Payments {
		payment := &sale.Payments[i]
		payment.SaleID = sale.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_payments (id, sale_id, position, method_id, method_name, amount)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, payment.ID, sale.ID, i, payment.MethodID, payment.MethodName, payment.Amount)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	sale, err := s.scanSaleHeader(ctx, s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, daily_ordinal, total, occurred_at, customer_id, customer_name,
			incomplete, voided, voided_at, note, created_at
		FROM sales
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, saleID))
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(ctx, []*domain.Sale{sale}); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) ListSalesByDay(ctx context.Context, tenantID string, day time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, daily_ordinal, total, occurred_at, customer_id, customer_name,
			incomplete, voided, voided_at, note, created_at
		FROM sales
		WHERE tenant_id = $1 AND sale_date = $2 AND voided = false
		ORDER BY daily_ordinal
	`, tenantID, day.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]*domain.Sale, 0, 16)
	for rows.Next() {
		sale, err := s.scanSaleHeader(ctx, rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadChildren(ctx, refs); err != nil {
		return nil, err
	}

	sales := make([]domain.Sale, 0, len(refs))
	for _, ref := range refs {
		sales = append(sales, *ref)
	}
	return sales, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanSaleHeader(ctx context.Context, row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullString
	var voidedAt sql.NullTime
	err := row.Scan(&sale.ID, &sale.TenantID, &sale.DailyOrdinal, &sale.Total, &sale.OccurredAt,
		&customerID, &sale.CustomerName, &sale.Incomplete, &sale.Voided, &voidedAt, &sale.Note, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		sale.CustomerID = customerID.String
	}
	if voidedAt.Valid {
		at := voidedAt.Time.UTC()
		sale.VoidedAt = &at
	}
	sale.OccurredAt = sale.OccurredAt.UTC()
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func (s *Store) loadChildren(ctx context.Context, sales []*domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Sale, len(sales))
	ids := make([]string, 0, len(sales))
	for _, sale := range sales {
		byID[sale.ID] = sale
		ids = append(ids, sale.ID)
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_label, unit_price, quantity, subtotal, unit_label
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position
	`, ids)
	if err != nil {
		return err
	}
	for itemRows.Next() {
		var item domain.SaleItem
		var productID sql.NullString
		if err := itemRows.Scan(&item.ID, &item.SaleID, &productID, &item.ProductLabel, &item.UnitPrice, &item.Quantity, &item.Subtotal, &item.UnitLabel); err != nil {
			_ = itemRows.Close()
			return err
		}
		if productID.Valid {
			item.ProductID = productID.String
		}
		if sale, ok := byID[item.SaleID]; ok {
			sale.Items = append(sale.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return err
	}
	_ = itemRows.Close()

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, method_id, method_name, amount
		FROM sale_payments
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer paymentRows.Close()
	for paymentRows.Next() {
		var payment domain.SalePayment
		if err := paymentRows.Scan(&payment.ID, &payment.SaleID, &payment.MethodID, &payment.MethodName, &payment.Amount); err != nil {
			return err
		}
		if sale, ok := byID[payment.SaleID]; ok {
			sale.Payments = append(sale.Payments, payment)
		}
	}
	return paymentRows.Err()
}

func (s *Store) UpdateSale(ctx context.Context, tenantID string, saleID string, fields domain.SaleUpdate) (*domain.Sale, error) {
	if fields.Empty() {
		return nil, store.ErrInvalid
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var voided bool
	err = tx.QueryRowContext(ctx, `
		SELECT voided
		FROM sales
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE
	`, tenantID, saleID).Scan(&voided)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if voided {
		return nil, store.ErrVoided
	}

	if fields.Total != nil {
		if !fields.Total.IsPositive() {
			return nil, store.ErrInvalid
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sales SET total = $3 WHERE tenant_id = $1 AND id = $2`, tenantID, saleID, *fields.Total); err != nil {
			return nil, err
		}
	}
	if fields.CustomerID != nil || fields.CustomerName != nil {
		customerID := ""
		customerName := ""
		if fields.CustomerID != nil {
			customerID = *fields.CustomerID
		}
		if fields.CustomerName != nil {
			customerName = *fields.CustomerName
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sales SET customer_id = $3, customer_name = $4 WHERE tenant_id = $1 AND id = $2`, tenantID, saleID, nullIfEmpty(customerID), customerName); err != nil {
			return nil, err
		}
	}
	if fields.Note != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE sales SET note = $3 WHERE tenant_id = $1 AND id = $2`, tenantID, saleID, *fields.Note); err != nil {
			return nil, err
		}
	}
	if fields.OccurredAt != nil {
		// The daily ordinal and sale_date stay bound to the original day;
		// ordinals are never reused or renumbered.
		if _, err := tx.ExecContext(ctx, `UPDATE sales SET occurred_at = $3 WHERE tenant_id = $1 AND id = $2`, tenantID, saleID, fields.OccurredAt.UTC()); err != nil {
			return nil, err
		}
	}
	if fields.Incomplete != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE sales SET incomplete = $3 WHERE tenant_id = $1 AND id = $2`, tenantID, saleID, *fields.Incomplete); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSale(ctx, tenantID, saleID)
}

func (s *Store) VoidSale(ctx context.Context, tenantID string, saleID string, at time.Time) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var voided bool
	err = tx.QueryRowContext(ctx, `
		SELECT voided
		FROM sales
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE
	`, tenantID, saleID).Scan(&voided)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if voided {
		return nil, store.ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET voided = true, voided_at = $3
		WHERE tenant_id = $1 AND id = $2 AND voided = false
	`, tenantID, saleID, at.UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSale(ctx, tenantID, saleID)
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.TenantID == "" {
		return store.ErrInvalid
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_accounts (username, password, tenant_id, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.Username, user.Password, user.TenantID, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, tenant_id, role, active, created_at
		FROM user_accounts
		WHERE username = $1
	`, username).Scan(&user.Username, &user.Password, &user.TenantID, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
