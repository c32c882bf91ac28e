package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"ventasvoz/internal/domain"
	"ventasvoz/internal/store"
	"ventasvoz/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	productsByID     map[string]domain.Product
	priceEntriesByID map[string][]domain.PriceEntry
	paymentMethods   []domain.PaymentMethod
	customersByID    map[string]domain.Customer
	salesByID        map[string]*domain.Sale
	usersByUsername  map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		productsByID:     make(map[string]domain.Product),
		priceEntriesByID: make(map[string][]domain.PriceEntry),
		paymentMethods:   defaultPaymentMethods(),
		customersByID:    make(map[string]domain.Customer),
		salesByID:        make(map[string]*domain.Sale),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

func defaultPaymentMethods() []domain.PaymentMethod {
	return []domain.PaymentMethod{
		{ID: "pm-efectivo", Name: "Efectivo"},
		{ID: "pm-mercadopago", Name: "MercadoPago"},
		{ID: "pm-billetera", Name: "Billetera Digital"},
		{ID: "pm-tarjeta", Name: "Tarjeta"},
		{ID: "pm-transferencia", Name: "Transferencia"},
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode. The
// password is read from SEED_OWNER_PASSWORD; a hardcoded dev default is used
// with a warning when unset. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		tenantID string
		role     string
	}{
		{"owner", ownerPwd, "demo-tenant", "owner"},
		{"staff", ownerPwd, "demo-tenant", "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			TenantID:  u.tenantID,
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	seed := []struct {
		id    string
		name  string
		price string
	}{
		{"prod-empanada", "Empanada", "250"},
		{"prod-milanesa", "Milanesa", "1800"},
		{"prod-pan", "Pan Frances", "900"},
		{"prod-factura", "Factura", "300"},
		{"prod-tarta", "Tarta de Verdura", "1500"},
	}
	for _, p := range seed {
		s.productsByID[p.id] = domain.Product{
			ID:        p.id,
			TenantID:  "demo-tenant",
			Name:      p.name,
			Available: true,
			CreatedAt: now,
		}
		s.priceEntriesByID[p.id] = []domain.PriceEntry{{
			ID:        "price-" + p.id,
			ProductID: p.id,
			Price:     decimal.RequireFromString(p.price),
			ValidFrom: now,
		}}
	}
	return s
}

func (s *Store) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if p.TenantID == tenantID && p.Available {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *Store) GetProductByName(ctx context.Context, tenantID string, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.productsByID {
		if p.TenantID == tenantID && strings.EqualFold(p.Name, name) {
			found := p
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.TenantID == "" || strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.productsByID {
		if existing.TenantID == product.TenantID && strings.EqualFold(existing.Name, product.Name) {
			return nil, store.ErrConflict
		}
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.productsByID[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetCurrentPrice(ctx context.Context, productID string) (*domain.PriceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.priceEntriesByID[productID] {
		if entry.ValidTo == nil {
			found := entry
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) SwapPrice(ctx context.Context, productID string, price decimal.Decimal, at time.Time) error {
	if productID == "" || !price.IsPositive() {
		return store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.priceEntriesByID[productID]
	for i := range entries {
		if entries[i].ValidTo == nil {
			closed := at
			entries[i].ValidTo = &closed
		}
	}
	entries = append(entries, domain.PriceEntry{
		ID:        xid.New("price"),
		ProductID: productID,
		Price:     price,
		ValidFrom: at,
	})
	s.priceEntriesByID[productID] = entries
	return nil
}

func (s *Store) ListPriceHistory(ctx context.Context, productID string, limit int) ([]domain.PriceEntry, error) {
	if limit < 1 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := append([]domain.PriceEntry(nil), s.priceEntriesByID[productID]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ValidFrom.After(entries[j].ValidFrom) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.PaymentMethod(nil), s.paymentMethods...), nil
}

func (s *Store) GetCustomerByName(ctx context.Context, tenantID string, name string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customersByID {
		if c.TenantID == tenantID && strings.EqualFold(c.Name, name) {
			found := c
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.TenantID == "" || strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || sale.TenantID == "" {
		return nil, store.ErrInvalid
	}
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.OccurredAt.IsZero() {
		sale.OccurredAt = time.Now().UTC()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	day := sale.OccurredAt.UTC().Format("2006-01-02")
	highest := 0
	for _, existing := range s.salesByID {
		if existing.TenantID == sale.TenantID && existing.OccurredAt.UTC().Format("2006-01-02") == day {
			if existing.DailyOrdinal > highest {
				highest = existing.DailyOrdinal
			}
		}
	}
	sale.DailyOrdinal = highest + 1

	stored := sale
	stored.Items = append([]domain.SaleItem(nil), sale.Items...)
	stored.Payments = append([]domain.SalePayment(nil), sale.Payments...)
	for i := range stored.Items {
		stored.Items[i].SaleID = stored.ID
	}
	for i := range stored.Payments {
		stored.Payments[i].SaleID = stored.ID
	}
	s.salesByID[stored.ID] = &stored

	created := cloneSale(&stored)
	return created, nil
}

func cloneSale(sale *domain.Sale) *domain.Sale {
	clone := *sale
	clone.Items = append([]domain.SaleItem(nil), sale.Items...)
	clone.Payments = append([]domain.SalePayment(nil), sale.Payments...)
	return &clone
}

func (s *Store) GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[saleID]
	if !ok || sale.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSalesByDay(ctx context.Context, tenantID string, day time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := day.UTC().Format("2006-01-02")
	sales := make([]domain.Sale, 0, 16)
	for _, sale := range s.salesByID {
		if sale.TenantID != tenantID || sale.Voided {
			continue
		}
		if sale.OccurredAt.UTC().Format("2006-01-02") == key {
			sales = append(sales, *cloneSale(sale))
		}
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].DailyOrdinal < sales[j].DailyOrdinal })
	return sales, nil
}

func (s *Store) UpdateSale(ctx context.Context, tenantID string, saleID string, fields domain.SaleUpdate) (*domain.Sale, error) {
	if fields.Empty() {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[saleID]
	if !ok || sale.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	if sale.Voided {
		return nil, store.ErrVoided
	}

	if fields.Total != nil {
		if !fields.Total.IsPositive() {
			return nil, store.ErrInvalid
		}
		sale.Total = *fields.Total
	}
	if fields.CustomerID != nil {
		sale.CustomerID = *fields.CustomerID
	}
	if fields.CustomerName != nil {
		sale.CustomerName = *fields.CustomerName
	}
	if fields.Note != nil {
		sale.Note = *fields.Note
	}
	if fields.OccurredAt != nil {
		sale.OccurredAt = fields.OccurredAt.UTC()
	}
	if fields.Incomplete != nil {
		sale.Incomplete = *fields.Incomplete
	}

	return cloneSale(sale), nil
}

func (s *Store) VoidSale(ctx context.Context, tenantID string, saleID string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[saleID]
	if !ok || sale.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	if sale.Voided {
		return nil, store.ErrNotFound
	}

	voidedAt := at.UTC()
	sale.Voided = true
	sale.VoidedAt = &voidedAt
	return cloneSale(sale), nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.TenantID == "" {
		return store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := user
	return &found, nil
}
