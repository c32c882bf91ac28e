package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"ventasvoz/internal/domain"
	"ventasvoz/internal/store"
)

// Ledger maintains per-product price history: a single open entry per product
// and a closed history of prior prices with validity intervals.
type Ledger struct {
	repo store.Repository
}

func New(repo store.Repository) *Ledger {
	return &Ledger{repo: repo}
}

// CurrentPrice returns the open entry's price, or nil when the product has
// never had a price recorded.
func (l *Ledger) CurrentPrice(ctx context.Context, productID string) (*decimal.Decimal, error) {
	entry, err := l.repo.GetCurrentPrice(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	price := entry.Price
	return &price, nil
}

// RecordPriceIfChanged opens the first entry for a product, or closes the
// current one and opens a new one when the observed price differs. The
// comparison is exact decimal inequality, no tolerance. The close+open pair
// is one atomic store step.
func (l *Ledger) RecordPriceIfChanged(ctx context.Context, productID string, observed decimal.Decimal, now time.Time) error {
	if !observed.IsPositive() {
		return store.ErrInvalid
	}

	current, err := l.CurrentPrice(ctx, productID)
	if err != nil {
		return err
	}
	if current != nil && current.Equal(observed) {
		return nil
	}
	return l.repo.SwapPrice(ctx, productID, observed, now.UTC())
}

// History returns the product's price entries, most recent first.
func (l *Ledger) History(ctx context.Context, productID string, limit int) ([]domain.PriceEntry, error) {
	return l.repo.ListPriceHistory(ctx, productID, limit)
}
