package oracle

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"ventasvoz/internal/domain"
)

func TestParseReplyPlainJSON(t *testing.T) {
	reply := `{"is_sale": true, "intent": "sale", "items": [{"product": "Empanada", "quantity": 3, "unit_price": 300}], "total": 900, "payments": [{"method": "mercadopago", "amount": 900}]}`
	raw, err := ParseReply(reply)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !raw.IsSale || len(raw.Items) != 1 {
		t.Fatalf("unexpected extraction: %+v", raw)
	}
	if !raw.Total.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("expected total 900, got %s", raw.Total)
	}
}

func TestParseReplyJSONWrappedInProse(t *testing.T) {
	reply := "Claro, acá está el resultado:\n```json\n{\"is_sale\": false, \"intent\": \"question\", \"items\": [], \"total\": 0}\n```\nEspero que sirva."
	raw, err := ParseReply(reply)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if raw.IsSale {
		t.Fatalf("expected non-sale reply")
	}
}

func TestParseReplyGarbageIsParseError(t *testing.T) {
	for _, reply := range []string{"", "no JSON here", "{broken"} {
		if _, err := ParseReply(reply); !errors.Is(err, ErrParse) {
			t.Fatalf("reply %q: expected ErrParse, got %v", reply, err)
		}
	}
}

func TestBuildPromptEmbedsCatalog(t *testing.T) {
	price := decimal.NewFromInt(250)
	prompt := BuildPrompt("vendí 3 empanadas", domain.CatalogSnapshot{
		Products: []domain.ProductPrice{
			{Name: "Empanada", Price: &price},
			{Name: "Milanesa"},
		},
		PaymentMethods: []domain.PaymentMethod{
			{ID: "pm-efectivo", Name: "Efectivo"},
			{ID: "pm-mercadopago", Name: "MercadoPago"},
		},
	})

	for _, want := range []string{"Empanada: 250", "Milanesa: sin precio registrado", "Efectivo", "MercadoPago", "vendí 3 empanadas", "mitad efectivo mitad QR"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}
