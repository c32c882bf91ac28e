package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ventasvoz/internal/domain"
)

// ErrRejected marks an oracle reply that is structurally present but fails a
// business rule. Rejected extractions are never persisted and never coerced;
// a total mismatch is reported, not re-summed.
var ErrRejected = errors.New("extraction rejected")

// currencyPlaces is the fixed number of fractional digits amounts are
// normalized to before equality checks.
const currencyPlaces = 2

// Validate checks the oracle's raw reply against the validation rules, in
// order, short-circuiting on the first failure. On success it returns the
// normalized sale ready for persistence.
func Validate(raw domain.RawExtraction, now time.Time) (domain.NormalizedSale, error) {
	var ns domain.NormalizedSale

	// Whether the utterance described sale data at all is the oracle's
	// judgment; it is not re-derived here.
	if !raw.IsSale {
		return ns, fmt.Errorf("%w: no sale data in utterance", ErrRejected)
	}
	if len(raw.Items) == 0 {
		return ns, fmt.Errorf("%w: no line items", ErrRejected)
	}

	itemSum := decimal.Zero
	items := make([]domain.NormalizedItem, 0, len(raw.Items))
	for i, item := range raw.Items {
		name := strings.TrimSpace(item.Product)
		if name == "" {
			return ns, fmt.Errorf("%w: item %d has no product name", ErrRejected, i+1)
		}
		if !item.Quantity.IsPositive() {
			return ns, fmt.Errorf("%w: item %q has non-positive quantity", ErrRejected, name)
		}
		if !item.UnitPrice.IsPositive() {
			return ns, fmt.Errorf("%w: item %q has non-positive unit price", ErrRejected, name)
		}
		unitPrice := item.UnitPrice.Round(currencyPlaces)
		subtotal := unitPrice.Mul(item.Quantity).Round(currencyPlaces)
		itemSum = itemSum.Add(subtotal)
		items = append(items, domain.NormalizedItem{
			ProductName: name,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			Subtotal:    subtotal,
			UnitLabel:   strings.TrimSpace(item.Unit),
		})
	}

	total := raw.Total.Round(currencyPlaces)
	if !total.IsPositive() {
		return ns, fmt.Errorf("%w: invalid total amount", ErrRejected)
	}
	if !total.Equal(itemSum) {
		return ns, fmt.Errorf("%w: invalid total amount: declared %s, items sum to %s", ErrRejected, total, itemSum)
	}

	payments := make([]domain.NormalizedPayment, 0, len(raw.Payments))
	if len(raw.Payments) > 0 {
		paymentSum := decimal.Zero
		for _, payment := range raw.Payments {
			phrase := strings.TrimSpace(payment.Method)
			if phrase == "" {
				return ns, fmt.Errorf("%w: payment with no method", ErrRejected)
			}
			amount := payment.Amount.Round(currencyPlaces)
			if !amount.IsPositive() {
				return ns, fmt.Errorf("%w: payment %q has non-positive amount", ErrRejected, phrase)
			}
			paymentSum = paymentSum.Add(amount)
			payments = append(payments, domain.NormalizedPayment{MethodPhrase: phrase, Amount: amount})
		}
		// Fractional-split phrases are expected to arrive already expanded
		// into explicit per-method amounts; only the sum is checked here.
		if !paymentSum.Equal(total) {
			return ns, fmt.Errorf("%w: payments sum to %s, total is %s", ErrRejected, paymentSum, total)
		}
	}

	ns = domain.NormalizedSale{
		Items:        items,
		Total:        total,
		Payments:     payments,
		CustomerName: strings.TrimSpace(raw.Customer),
		Note:         strings.TrimSpace(raw.Note),
		OccurredAt:   now.UTC(),
	}
	return ns, nil
}
