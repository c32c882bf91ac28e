package extract

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ventasvoz/internal/domain"
)

func validRaw() domain.RawExtraction {
	return domain.RawExtraction{
		IsSale: true,
		Intent: "sale",
		Items: []domain.RawItem{
			{Product: "Empanada", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(300)},
		},
		Total: decimal.NewFromInt(900),
		Payments: []domain.RawPayment{
			{Method: "mercadopago", Amount: decimal.NewFromInt(900)},
		},
	}
}

func TestValidateAcceptsWellFormedExtraction(t *testing.T) {
	ns, err := Validate(validRaw(), time.Now())
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if !ns.Total.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("expected total 900, got %s", ns.Total)
	}
	if len(ns.Items) != 1 || !ns.Items[0].Subtotal.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("unexpected items: %+v", ns.Items)
	}
	if len(ns.Payments) != 1 || ns.Payments[0].MethodPhrase != "mercadopago" {
		t.Fatalf("unexpected payments: %+v", ns.Payments)
	}
}

func TestValidateRejectsNonSaleReply(t *testing.T) {
	raw := validRaw()
	raw.IsSale = false
	if _, err := Validate(raw, time.Now()); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestValidateRejectsEmptyItems(t *testing.T) {
	raw := validRaw()
	raw.Items = nil
	if _, err := Validate(raw, time.Now()); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestValidateRejectsBadItemFields(t *testing.T) {
	cases := []func(*domain.RawExtraction){
		func(r *domain.RawExtraction) { r.Items[0].Quantity = decimal.Zero },
		func(r *domain.RawExtraction) { r.Items[0].UnitPrice = decimal.NewFromInt(-5) },
		func(r *domain.RawExtraction) { r.Items[0].Product = "  " },
	}
	for i, mutate := range cases {
		raw := validRaw()
		mutate(&raw)
		if _, err := Validate(raw, time.Now()); !errors.Is(err, ErrRejected) {
			t.Fatalf("case %d: expected rejection, got %v", i, err)
		}
	}
}

func TestValidateRejectsTotalMismatchWithoutCoercing(t *testing.T) {
	raw := validRaw()
	raw.Total = decimal.NewFromInt(150)
	raw.Items = []domain.RawItem{
		{Product: "Empanada", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(70)},
	}
	raw.Payments = nil

	_, err := Validate(raw, time.Now())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid total amount") {
		t.Fatalf("expected total mismatch reason, got %v", err)
	}
}

func TestValidateRejectsPaymentSumMismatch(t *testing.T) {
	raw := validRaw()
	raw.Payments = []domain.RawPayment{
		{Method: "efectivo", Amount: decimal.NewFromInt(400)},
		{Method: "qr", Amount: decimal.NewFromInt(400)},
	}
	if _, err := Validate(raw, time.Now()); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestValidateAcceptsExpandedSplitPayments(t *testing.T) {
	raw := validRaw()
	raw.Total = decimal.NewFromInt(100)
	raw.Items = []domain.RawItem{
		{Product: "Pan", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
	}
	raw.Payments = []domain.RawPayment{
		{Method: "efectivo", Amount: decimal.NewFromInt(50)},
		{Method: "qr", Amount: decimal.NewFromInt(50)},
	}
	ns, err := Validate(raw, time.Now())
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if len(ns.Payments) != 2 {
		t.Fatalf("expected two payments, got %d", len(ns.Payments))
	}
}

func TestValidateAllowsFractionalQuantities(t *testing.T) {
	raw := domain.RawExtraction{
		IsSale: true,
		Items: []domain.RawItem{
			{Product: "Queso", Quantity: decimal.RequireFromString("0.5"), UnitPrice: decimal.NewFromInt(1000), Unit: "kilo"},
		},
		Total: decimal.NewFromInt(500),
	}
	ns, err := Validate(raw, time.Now())
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if ns.Items[0].UnitLabel != "kilo" {
		t.Fatalf("expected unit label to survive, got %q", ns.Items[0].UnitLabel)
	}
}
