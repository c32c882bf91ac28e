package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ventasvoz/internal/cache"
	"ventasvoz/internal/domain"
	"ventasvoz/internal/oracle"
	"ventasvoz/internal/store"
	"ventasvoz/internal/store/memory"
)

const testTenant = "demo-tenant"

func newTestEngine(repo store.Repository) *Engine {
	extractor := oracle.ExtractorFunc(func(ctx context.Context, utterance string, snapshot domain.CatalogSnapshot) (domain.RawExtraction, error) {
		return domain.RawExtraction{}, errors.New("not scripted")
	})
	return New(repo, extractor, cache.NoopCatalogCache{}, 0, 0)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func normalizedSale(total string, items ...domain.NormalizedItem) domain.NormalizedSale {
	return domain.NormalizedSale{
		Items:      items,
		Total:      dec(total),
		Payments:   []domain.NormalizedPayment{{MethodPhrase: "efectivo", Amount: dec(total)}},
		OccurredAt: time.Now().UTC(),
	}
}

func item(name, qty, unitPrice, subtotal string) domain.NormalizedItem {
	return domain.NormalizedItem{
		ProductName: name,
		Quantity:    dec(qty),
		UnitPrice:   dec(unitPrice),
		Subtotal:    dec(subtotal),
	}
}

func TestCreateSalePersistsAndAssignsOrdinal(t *testing.T) {
	repo := memory.NewSeeded()
	e := newTestEngine(repo)
	ctx := context.Background()

	sale, err := e.CreateSale(ctx, testTenant, normalizedSale("600", item("Empanada", "2", "300", "600")))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if sale.DailyOrdinal != 1 {
		t.Fatalf("expected daily ordinal 1, got %d", sale.DailyOrdinal)
	}
	if !sale.Total.Equal(dec("600")) {
		t.Fatalf("expected total 600, got %s", sale.Total)
	}
	if len(sale.Items) != 1 || sale.Items[0].ProductID != "prod-empanada" {
		t.Fatalf("expected item resolved to seeded product, got %+v", sale.Items)
	}
	if len(sale.Payments) != 1 || sale.Payments[0].MethodName != "Efectivo" {
		t.Fatalf("expected Efectivo payment, got %+v", sale.Payments)
	}

	stored, err := e.GetSale(ctx, testTenant, sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if stored.Voided {
		t.Fatalf("new sale should not be voided")
	}
}

func TestCreateSaleKeepsDictationOrder(t *testing.T) {
	repo := memory.NewSeeded()
	e := newTestEngine(repo)
	ctx := context.Background()

	ns := domain.NormalizedSale{
		Items: []domain.NormalizedItem{
			item("Milanesa", "1", "1800", "1800"),
			item("Empanada", "2", "300", "600"),
			item("Factura", "1", "300", "300"),
		},
		Total: dec("2700"),
		Payments: []domain.NormalizedPayment{
			{MethodPhrase: "efectivo", Amount: dec("2000")},
			{MethodPhrase: "qr", Amount: dec("700")},
		},
		OccurredAt: time.Now().UTC(),
	}
	sale, err := e.CreateSale(ctx, testTenant, ns)
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	stored, err := e.GetSale(ctx, testTenant, sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	wantLabels := []string{"Milanesa", "Empanada", "Factura"}
	for i, want := range wantLabels {
		if stored.Items[i].ProductLabel != want {
			t.Fatalf("item %d: expected %q, got %q (items must read back in dictation order)", i, want, stored.Items[i].ProductLabel)
		}
	}
	if stored.Payments[0].MethodName != "Efectivo" || stored.Payments[1].MethodName != "Billetera Digital" {
		t.Fatalf("payments must read back in dictation order, got %+v", stored.Payments)
	}
}

func TestCreateSaleUpdatesPriceHistory(t *testing.T) {
	repo := memory.NewSeeded()
	e := newTestEngine(repo)
	ctx := context.Background()

	// Seeded price is 250; selling at 300 should close it and open 300.
	if _, err := e.CreateSale(ctx, testTenant, normalizedSale("600", item("Empanada", "2", "300", "600"))); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	entries, err := repo.ListPriceHistory(ctx, "prod-empanada", 10)
	if err != nil {
		t.Fatalf("ListPriceHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 price entries, got %d", len(entries))
	}
	open, err := repo.GetCurrentPrice(ctx, "prod-empanada")
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if !open.Price.Equal(dec("300")) {
		t.Fatalf("expected open price 300, got %s", open.Price)
	}

	// Selling again at the same price must not add an entry.
	if _, err := e.CreateSale(ctx, testTenant, normalizedSale("300", item("Empanada", "1", "300", "300"))); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	entries, _ = repo.ListPriceHistory(ctx, "prod-empanada", 10)
	if len(entries) != 2 {
		t.Fatalf("same price should not add an entry, got %d", len(entries))
	}
}

func TestCreateSaleAutoCreatesUnknownProduct(t *testing.T) {
	repo := memory.NewSeeded()
	e := newTestEngine(repo)
	ctx := context.Background()

	if _, err := e.CreateSale(ctx, testTenant, normalizedSale("1200", item("Chipa", "6", "200", "1200"))); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	product, err := repo.GetProductByName(ctx, testTenant, "Chipa")
	if err != nil {
		t.Fatalf("auto-created product missing: %v", err)
	}
	if !product.AutoCreated {
		t.Fatalf("expected auto_created product")
	}
	open, err := repo.GetCurrentPrice(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if !open.Price.Equal(dec("200")) {
		t.Fatalf("expected opening price 200, got %s", open.Price)
	}
}

func TestCreateSaleUnresolvedPaymentMethodWritesNothing(t *testing.T) {
	repo := memory.NewSeeded()
	e := newTestEngine(repo)
	ctx := context.Background()

	ns := normalizedSale("600", item("Gaseosa", "2", "300", "600"))
	ns.Payments = []domain.NormalizedPayment{{MethodPhrase: "cheque", Amount: dec("600")}}

	_, err := e.CreateSale(ctx, testTenant, ns)
	if !errors.Is(err, ErrPaymentMethodUnresolved) {
		t.Fatalf("expected ErrPaymentMethodUnresolved, got %v", err)
	}
	if sales, _ := repo.ListSalesByDay(ctx, testTenant, time.Now().UTC()); len(sales) != 0 {
		t.Fatalf("rejected sale must not be persisted")
	}
	if _, err := repo.GetProductByName(ctx, testTenant, "Gaseosa"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("rejected sale must not create catalog rows, got %v", err)
	}
}

func TestCreateSaleConcurrentOrdinalsUnique(t *testing.T) {
	repo := memory.NewSeeded()
	e := newTestEngine(repo)
	ctx := context.Background()

	const n = 12
	var wg sync.WaitGroup
	ordinals := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, err := e.CreateSale(ctx, testTenant, normalizedSale("300", item("Empanada", "1", "300", "300")))
			if err != nil {
				t.Errorf("CreateSale: %v", err)
				return
			}
			ordinals <- sale.DailyOrdinal
		}()
	}
	wg.Wait()
	close(ordinals)

	seen := make(map[int]bool)
	for o := range ordinals {
		if seen[o] {
			t.Fatalf("duplicate daily ordinal %d", o)
		}
		if o < 1 || o > n {
			t.Fatalf("ordinal %d outside 1..%d", o, n)
		}
		seen[o] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d sales, got %d", n, len(seen))
	}
}

func TestEditSale(t *testing.T) {
	repo := memory.NewSeeded()
	e := newTestEngine(repo)
	ctx := context.Background()

	sale, err := e.CreateSale(ctx, testTenant, normalizedSale("600", item("Empanada", "2", "300", "600")))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	if _, err := e.EditSale(ctx, testTenant, sale.ID, domain.SaleUpdate{}); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("empty update should be invalid, got %v", err)
	}

	total := dec("500")
	name := "Marta"
	updated, err := e.EditSale(ctx, testTenant, sale.ID, domain.SaleUpdate{Total: &total, CustomerName: &name})
	if err != nil {
		t.Fatalf("EditSale: %v", err)
	}
	if !updated.Total.Equal(dec("500")) {
		t.Fatalf("expected total 500, got %s", updated.Total)
	}
	if updated.CustomerID == "" || updated.CustomerName != "Marta" {
		t.Fatalf("expected resolved customer, got %+v", updated)
	}
	if _, err := repo.GetCustomerByName(ctx, testTenant, "marta"); err != nil {
		t.Fatalf("customer row should exist: %v", err)
	}
}

func TestEditSaleVoidedIsRefused(t *testing.T) {
	repo := memory.NewSeeded()
	e := newTestEngine(repo)
	ctx := context.Background()

	sale, err := e.CreateSale(ctx, testTenant, normalizedSale("600", item("Empanada", "2", "300", "600")))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if _, err := e.CancelSale(ctx, testTenant, sale.ID); err != nil {
		t.Fatalf("CancelSale: %v", err)
	}

	total := dec("500")
	if _, err := e.EditSale(ctx, testTenant, sale.ID, domain.SaleUpdate{Total: &total}); !errors.Is(err, store.ErrVoided) {
		t.Fatalf("expected ErrVoided, got %v", err)
	}
}

func TestCancelSaleTwice(t *testing.T) {
	repo := memory.NewSeeded()
	e := newTestEngine(repo)
	ctx := context.Background()

	sale, err := e.CreateSale(ctx, testTenant, normalizedSale("600", item("Empanada", "2", "300", "600")))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	voided, err := e.CancelSale(ctx, testTenant, sale.ID)
	if err != nil {
		t.Fatalf("CancelSale: %v", err)
	}
	if !voided.Voided || voided.VoidedAt == nil {
		t.Fatalf("expected voided sale, got %+v", voided)
	}
	if _, err := e.CancelSale(ctx, testTenant, sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second cancel should be not-found, got %v", err)
	}
	if sales, _ := repo.ListSalesByDay(ctx, testTenant, time.Now().UTC()); len(sales) != 0 {
		t.Fatalf("voided sale must not appear in daily listing")
	}
}

func TestCancelSaleWrongTenant(t *testing.T) {
	repo := memory.NewSeeded()
	e := newTestEngine(repo)
	ctx := context.Background()

	sale, err := e.CreateSale(ctx, testTenant, normalizedSale("600", item("Empanada", "2", "300", "600")))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if _, err := e.CancelSale(ctx, "other-tenant", sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-tenant cancel should be not-found, got %v", err)
	}
}

func TestRegisterProduct(t *testing.T) {
	repo := memory.NewSeeded()
	e := newTestEngine(repo)
	ctx := context.Background()

	price := dec("450")
	product, err := e.RegisterProduct(ctx, testTenant, "Medialuna", &price)
	if err != nil {
		t.Fatalf("RegisterProduct: %v", err)
	}
	if product.AutoCreated {
		t.Fatalf("explicitly registered product must not be auto_created")
	}
	open, err := repo.GetCurrentPrice(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if !open.Price.Equal(price) {
		t.Fatalf("expected opening price %s, got %s", price, open.Price)
	}

	if _, err := e.RegisterProduct(ctx, testTenant, "Medialuna", nil); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate name should conflict, got %v", err)
	}
	if _, err := e.RegisterProduct(ctx, testTenant, "  ", nil); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("blank name should be invalid, got %v", err)
	}
}

// recordingCache wraps a single in-process snapshot to observe cache traffic.
type recordingCache struct {
	mu        sync.Mutex
	snapshot  *domain.CatalogSnapshot
	gets      int
	sets      int
	dropCount int
}

func (c *recordingCache) Get(_ context.Context, _ string) (*domain.CatalogSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.snapshot == nil {
		return nil, false, nil
	}
	return c.snapshot, true, nil
}

func (c *recordingCache) Set(_ context.Context, _ string, snapshot *domain.CatalogSnapshot, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.snapshot = snapshot
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropCount++
	c.snapshot = nil
	return nil
}

func TestSnapshotUsesCacheAndInvalidatesOnWrite(t *testing.T) {
	repo := memory.NewSeeded()
	rc := &recordingCache{}
	extractor := oracle.ExtractorFunc(func(ctx context.Context, utterance string, snapshot domain.CatalogSnapshot) (domain.RawExtraction, error) {
		return domain.RawExtraction{}, errors.New("not scripted")
	})
	e := New(repo, extractor, rc, time.Minute, 0)
	ctx := context.Background()

	first, err := e.Snapshot(ctx, testTenant)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(first.Products) != 5 || len(first.PaymentMethods) != 5 {
		t.Fatalf("unexpected snapshot shape: %d products, %d methods", len(first.Products), len(first.PaymentMethods))
	}
	if rc.sets != 1 {
		t.Fatalf("expected one cache write, got %d", rc.sets)
	}

	if _, err := e.Snapshot(ctx, testTenant); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if rc.sets != 1 {
		t.Fatalf("second snapshot should come from cache, sets=%d", rc.sets)
	}

	if _, err := e.CreateSale(ctx, testTenant, normalizedSale("600", item("Empanada", "2", "300", "600"))); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if rc.dropCount == 0 {
		t.Fatalf("sale write should invalidate the snapshot")
	}

	rebuilt, err := e.Snapshot(ctx, testTenant)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	var empanada *domain.ProductPrice
	for i := range rebuilt.Products {
		if rebuilt.Products[i].Name == "Empanada" {
			empanada = &rebuilt.Products[i]
		}
	}
	if empanada == nil || empanada.Price == nil || !empanada.Price.Equal(dec("300")) {
		t.Fatalf("rebuilt snapshot should carry the new price, got %+v", empanada)
	}
}
