package session

import (
	"testing"
	"time"

	"ventasvoz/internal/domain"
)

func TestParseOrdinal(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"la 2", 2, true},
		{"el 3", 3, true},
		{"2", 2, true},
		{"the 2nd one", 2, true},
		{"the second one", 2, true},
		{"la segunda", 2, true},
		{"la primera", 1, true},
		{"borrá la tercera", 3, true},
		{"hola", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseOrdinal(tc.text)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseOrdinal(%q) = %d,%v; want %d,%v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseOrdinalAnswer(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"la 2", 2, true},
		{"2", 2, true},
		{"the second one", 2, true},
		{"número 3", 3, true},
		{"la segunda", 2, true},
		// Utterances that merely contain a number are not answers.
		{"vendí dos empanadas a 300, pagaron en efectivo", 0, false},
		{"cancelá la venta 2", 0, false},
		{"hola", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseOrdinalAnswer(tc.text)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseOrdinalAnswer(%q) = %d,%v; want %d,%v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRecordNewSaleClearsPending(t *testing.T) {
	ctx := domain.SessionContext{}
	ctx = OfferDisambiguation(ctx, "2026-08-29", []string{"sale-a", "sale-b"}, time.Now())
	ctx = RecordNewSale(ctx, "sale-c")
	if ctx.LastSaleID != "sale-c" {
		t.Fatalf("expected last sale to be set")
	}
	if ctx.Pending != nil {
		t.Fatalf("expected pending disambiguation to be cleared")
	}
}

func TestRecordCancellationClearsState(t *testing.T) {
	ctx := domain.SessionContext{LastSaleID: "sale-a"}
	ctx = OfferDisambiguation(ctx, "2026-08-29", []string{"sale-a"}, time.Now())
	ctx = RecordCancellation(ctx)
	if ctx.LastSaleID != "" || ctx.Pending != nil {
		t.Fatalf("expected cleared session, got %+v", ctx)
	}
}

func TestResolveOrdinal(t *testing.T) {
	now := time.Now().UTC()
	ctx := OfferDisambiguation(domain.SessionContext{}, "2026-08-29", []string{"sale-a", "sale-b", "sale-c"}, now)

	if got := ResolveOrdinal(ctx, "la 2", now, 5*time.Minute); got != "sale-b" {
		t.Fatalf("expected sale-b, got %q", got)
	}
	if got := ResolveOrdinal(ctx, "la 9", now, 5*time.Minute); got != "" {
		t.Fatalf("expected out-of-range ordinal to resolve to nothing, got %q", got)
	}
	if got := ResolveOrdinal(domain.SessionContext{}, "la 2", now, 5*time.Minute); got != "" {
		t.Fatalf("expected no resolution without pending map, got %q", got)
	}
}

func TestResolveOrdinalExpires(t *testing.T) {
	shownAt := time.Now().UTC().Add(-10 * time.Minute)
	ctx := OfferDisambiguation(domain.SessionContext{}, "2026-08-29", []string{"sale-a"}, shownAt)
	if got := ResolveOrdinal(ctx, "la 1", time.Now().UTC(), 5*time.Minute); got != "" {
		t.Fatalf("expected expired map to resolve to nothing, got %q", got)
	}
}

func TestAppendBoundsWindow(t *testing.T) {
	ctx := domain.SessionContext{}
	for i := 0; i < 50; i++ {
		ctx = Append(ctx, "user", "hola", time.Now())
	}
	if len(ctx.Messages) != maxMessages {
		t.Fatalf("expected window of %d messages, got %d", maxMessages, len(ctx.Messages))
	}
}
