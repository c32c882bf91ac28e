package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ventasvoz/internal/cache"
	"ventasvoz/internal/catalog"
	"ventasvoz/internal/domain"
	"ventasvoz/internal/oracle"
	"ventasvoz/internal/pricing"
	"ventasvoz/internal/store"
	"ventasvoz/internal/xid"
)

var (
	// ErrAmbiguousReference means a cancel/edit command has no resolvable
	// target; the caller asks for clarification instead of failing.
	ErrAmbiguousReference = errors.New("ambiguous sale reference")
	// ErrPaymentMethodUnresolved fails the entire sale write: a payment row
	// with a missing method would corrupt the payments-sum invariant.
	ErrPaymentMethodUnresolved = errors.New("payment method unresolved")
)

type Engine struct {
	repo        store.Repository
	catalog     *catalog.Resolver
	prices      *pricing.Ledger
	extractor   oracle.Extractor
	snapshots   cache.CatalogCache
	snapshotTTL time.Duration
	disambigTTL time.Duration
}

func New(repo store.Repository, extractor oracle.Extractor, snapshots cache.CatalogCache, snapshotTTL time.Duration, disambigTTL time.Duration) *Engine {
	if snapshotTTL <= 0 {
		snapshotTTL = time.Minute
	}
	if disambigTTL <= 0 {
		disambigTTL = 5 * time.Minute
	}
	return &Engine{
		repo:        repo,
		catalog:     catalog.New(repo),
		prices:      pricing.New(repo),
		extractor:   extractor,
		snapshots:   snapshots,
		snapshotTTL: snapshotTTL,
		disambigTTL: disambigTTL,
	}
}

// CreateSale persists a validated sale: payment methods are resolved first so
// an unresolvable phrase fails before anything is written, then customer and
// products, then the header+items+payments write (atomic at the store layer,
// with the daily ordinal assigned inside it). Price-history updates follow as
// their own atomic step per product.
func (e *Engine) CreateSale(ctx context.Context, tenantID string, ns domain.NormalizedSale) (*domain.Sale, error) {
	methods, err := e.repo.ListPaymentMethods(ctx)
	if err != nil {
		return nil, err
	}

	payments := make([]domain.SalePayment, 0, len(ns.Payments))
	for _, p := range ns.Payments {
		method := catalog.MatchPaymentMethod(p.MethodPhrase, methods)
		if method == nil {
			return nil, fmt.Errorf("%w: %q", ErrPaymentMethodUnresolved, p.MethodPhrase)
		}
		payments = append(payments, domain.SalePayment{
			ID:         xid.New("pay"),
			MethodID:   method.ID,
			MethodName: method.Name,
			Amount:     p.Amount,
		})
	}

	sale := domain.Sale{
		ID:         xid.New("sale"),
		TenantID:   tenantID,
		Total:      ns.Total,
		OccurredAt: ns.OccurredAt,
		Note:       ns.Note,
		Payments:   payments,
	}

	if ns.CustomerName != "" {
		customer, err := e.catalog.ResolveCustomer(ctx, tenantID, ns.CustomerName)
		if err != nil {
			return nil, err
		}
		sale.CustomerID = customer.ID
		sale.CustomerName = customer.Name
	}

	products := make([]*domain.Product, 0, len(ns.Items))
	for _, item := range ns.Items {
		product, err := e.catalog.ResolveProduct(ctx, tenantID, item.ProductName)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
		sale.Items = append(sale.Items, domain.SaleItem{
			ID:           xid.New("item"),
			ProductID:    product.ID,
			ProductLabel: product.Name,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
			Subtotal:     item.Subtotal,
			UnitLabel:    item.UnitLabel,
		})
	}

	created, err := e.repo.CreateSale(ctx, sale)
	if errors.Is(err, store.ErrConflict) {
		// Daily-ordinal race with a concurrent creation; recompute once.
		created, err = e.repo.CreateSale(ctx, sale)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i, item := range ns.Items {
		if err := e.prices.RecordPriceIfChanged(ctx, products[i].ID, item.UnitPrice, now); err != nil {
			log.Printf("[engine] WARN: failed to record price history product=%s: %v", products[i].ID, err)
		}
	}

	if err := e.snapshots.Invalidate(ctx, tenantID); err != nil {
		log.Printf("[engine] WARN: failed to invalidate catalog snapshot tenant=%s: %v", tenantID, err)
	}

	return created, nil
}

// EditSale applies only the declared header fields. Wrong-tenant and missing
// sales report identically as not-found; voided sales report a distinct
// error so the caller can say why the edit was refused.
func (e *Engine) EditSale(ctx context.Context, tenantID string, saleID string, fields domain.SaleUpdate) (*domain.Sale, error) {
	if fields.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", store.ErrInvalid)
	}
	if fields.CustomerName != nil && strings.TrimSpace(*fields.CustomerName) != "" {
		customer, err := e.catalog.ResolveCustomer(ctx, tenantID, *fields.CustomerName)
		if err != nil {
			return nil, err
		}
		fields.CustomerID = &customer.ID
		fields.CustomerName = &customer.Name
	}
	return e.repo.UpdateSale(ctx, tenantID, saleID, fields)
}

// CancelSale voids the sale, never deleting rows. Missing and already-voided
// sales are reported identically as not-found.
func (e *Engine) CancelSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	return e.repo.VoidSale(ctx, tenantID, saleID, time.Now().UTC())
}

// Snapshot returns the tenant's catalog context for prompt building, cached
// with a short TTL.
func (e *Engine) Snapshot(ctx context.Context, tenantID string) (domain.CatalogSnapshot, error) {
	if cached, ok, err := e.snapshots.Get(ctx, tenantID); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[engine] WARN: catalog snapshot cache read failed tenant=%s: %v", tenantID, err)
	}

	products, err := e.repo.ListProducts(ctx, tenantID)
	if err != nil {
		return domain.CatalogSnapshot{}, err
	}
	methods, err := e.repo.ListPaymentMethods(ctx)
	if err != nil {
		return domain.CatalogSnapshot{}, err
	}

	snapshot := domain.CatalogSnapshot{
		TenantID:       tenantID,
		PaymentMethods: methods,
		TakenAt:        time.Now().UTC(),
	}
	for _, p := range products {
		price, err := e.prices.CurrentPrice(ctx, p.ID)
		if err != nil {
			return domain.CatalogSnapshot{}, err
		}
		snapshot.Products = append(snapshot.Products, domain.ProductPrice{Name: p.Name, Price: price})
	}

	if err := e.snapshots.Set(ctx, tenantID, &snapshot, e.snapshotTTL); err != nil {
		log.Printf("[engine] WARN: catalog snapshot cache write failed tenant=%s: %v", tenantID, err)
	}
	return snapshot, nil
}

func (e *Engine) GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	return e.repo.GetSale(ctx, tenantID, saleID)
}

func (e *Engine) ListSalesByDay(ctx context.Context, tenantID string, day time.Time) ([]domain.Sale, error) {
	return e.repo.ListSalesByDay(ctx, tenantID, day)
}

func (e *Engine) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	return e.repo.ListProducts(ctx, tenantID)
}

func (e *Engine) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return e.repo.ListPaymentMethods(ctx)
}

// RegisterProduct creates an explicitly catalogued product (auto_created
// false), optionally opening its first price entry.
func (e *Engine) RegisterProduct(ctx context.Context, tenantID string, name string, price *decimal.Decimal) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalid
	}
	if price != nil && !price.IsPositive() {
		return nil, store.ErrInvalid
	}

	product, err := e.repo.CreateProduct(ctx, domain.Product{
		ID:        xid.New("prod"),
		TenantID:  tenantID,
		Name:      name,
		Available: true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if price != nil {
		if err := e.prices.RecordPriceIfChanged(ctx, product.ID, *price, time.Now().UTC()); err != nil {
			log.Printf("[engine] WARN: failed to open price entry product=%s: %v", product.ID, err)
		}
	}
	if err := e.snapshots.Invalidate(ctx, tenantID); err != nil {
		log.Printf("[engine] WARN: failed to invalidate catalog snapshot tenant=%s: %v", tenantID, err)
	}
	return product, nil
}

func (e *Engine) PriceHistory(ctx context.Context, tenantID string, productName string, limit int) ([]domain.PriceEntry, error) {
	product, err := e.repo.GetProductByName(ctx, tenantID, productName)
	if err != nil {
		return nil, err
	}
	return e.prices.History(ctx, product.ID, limit)
}
