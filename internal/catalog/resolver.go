package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"ventasvoz/internal/domain"
	"ventasvoz/internal/store"
	"ventasvoz/internal/xid"
)

// Resolver turns the free-text names the oracle extracts into catalog records.
type Resolver struct {
	repo store.Repository
}

func New(repo store.Repository) *Resolver {
	return &Resolver{repo: repo}
}

// ResolveProduct matches name case-insensitively within the tenant and, on a
// miss, registers a new product flagged auto-created. Absence always resolves
// to creation: by the time this runs the sale has already been asserted, so a
// product must exist to attach the line item to.
func (r *Resolver) ResolveProduct(ctx context.Context, tenantID string, name string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalid
	}

	existing, err := r.repo.GetProductByName(ctx, tenantID, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	created, err := r.repo.CreateProduct(ctx, domain.Product{
		ID:          xid.New("prod"),
		TenantID:    tenantID,
		Name:        name,
		Available:   true,
		AutoCreated: true,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a create race with a concurrent turn; the winner's row is
			// the one to use.
			return r.repo.GetProductByName(ctx, tenantID, name)
		}
		return nil, err
	}
	return created, nil
}

// ResolveCustomer looks the name up case-insensitively and creates the
// customer on first unmatched mention.
func (r *Resolver) ResolveCustomer(ctx context.Context, tenantID string, name string) (*domain.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalid
	}

	existing, err := r.repo.GetCustomerByName(ctx, tenantID, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	return r.repo.CreateCustomer(ctx, domain.Customer{
		ID:        xid.New("cust"),
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
}

// methodSynonyms maps common slang and abbreviations to a canonical substring
// that is then matched against the available methods. The table lives in
// engine code, not in prompts, so it stays unit-testable on its own.
var methodSynonyms = map[string]string{
	"qr":            "Billetera Digital",
	"codigo qr":     "Billetera Digital",
	"código qr":     "Billetera Digital",
	"billetera":     "Billetera Digital",
	"mp":            "MercadoPago",
	"mercadopago":   "MercadoPago",
	"mercado pago":  "MercadoPago",
	"efectivo":      "Efectivo",
	"cash":          "Efectivo",
	"plata":         "Efectivo",
	"tarjeta":       "Tarjeta",
	"card":          "Tarjeta",
	"debito":        "Tarjeta",
	"débito":        "Tarjeta",
	"credito":       "Tarjeta",
	"crédito":       "Tarjeta",
	"transferencia": "Transferencia",
	"transfer":      "Transferencia",
	"cbu":           "Transferencia",
}

// MatchPaymentMethod resolves a free-text payment phrase against the
// available methods. Priority: exact case-insensitive equality, then the
// synonym table, then substring containment either direction. Returns nil
// when nothing matches; callers must not fall back to a guess.
func MatchPaymentMethod(phrase string, methods []domain.PaymentMethod) *domain.PaymentMethod {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil
	}

	for i := range methods {
		if strings.EqualFold(methods[i].Name, phrase) {
			return &methods[i]
		}
	}

	if canonical, ok := methodSynonyms[strings.ToLower(phrase)]; ok {
		for i := range methods {
			if containsFold(methods[i].Name, canonical) || containsFold(canonical, methods[i].Name) {
				return &methods[i]
			}
		}
	}

	for i := range methods {
		if containsFold(methods[i].Name, phrase) || containsFold(phrase, methods[i].Name) {
			return &methods[i]
		}
	}

	return nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
