package oracle

import (
	"fmt"
	"strings"

	"ventasvoz/internal/domain"
)

const systemPrompt = `Sos el extractor de datos de un asistente de ventas por voz para pequeños comercios. ` +
	`Recibís lo que dijo el comerciante y devolvés UN solo objeto JSON, sin explicaciones ni bloques de código.`

// BuildPrompt embeds the tenant's current catalog in the extraction
// instructions so the oracle matches existing names instead of inventing
// identifiers. Split-payment arithmetic and method slang are spelled out as
// instructions; the engine still re-validates everything that comes back.
func BuildPrompt(utterance string, snapshot domain.CatalogSnapshot) string {
	var b strings.Builder

	b.WriteString("Productos registrados (nombre: precio actual):\n")
	if len(snapshot.Products) == 0 {
		b.WriteString("- (ninguno todavía)\n")
	}
	for _, p := range snapshot.Products {
		if p.Price != nil {
			fmt.Fprintf(&b, "- %s: %s\n", p.Name, p.Price.String())
		} else {
			fmt.Fprintf(&b, "- %s: sin precio registrado\n", p.Name)
		}
	}

	b.WriteString("\nMedios de pago disponibles:\n")
	for _, m := range snapshot.PaymentMethods {
		fmt.Fprintf(&b, "- %s\n", m.Name)
	}

	b.WriteString(`
Esquema de salida (JSON, un solo objeto):
{"is_sale": true|false, "intent": "sale"|"question"|"other", "items": [{"product": "", "quantity": 0, "unit_price": 0, "unit": ""}], "total": 0, "payments": [{"method": "", "amount": 0}], "customer": "", "note": ""}

Reglas:
- is_sale es true solo si el texto describe una venta concretada. Preguntas, hipoteticos o pedidos de ayuda: is_sale false.
- Usá los nombres de producto registrados cuando coincidan; si el producto no está registrado, poné el nombre tal como lo dijo el comerciante.
- "qr" o "código qr" es Billetera Digital; "mp" o "mercadopago" es MercadoPago; "efectivo" o "cash" es Efectivo.
- Pagos divididos: expandilos a montos explícitos por medio. "mitad efectivo mitad QR" de $100 son dos pagos de $50. "un tercio cada uno" divide el total en partes iguales.
- total debe ser la suma de quantity * unit_price de todos los items.
- Si no se menciona medio de pago, devolvé payments como lista vacía.
- Cantidades fraccionarias están permitidas (medio kilo = 0.5).

Texto del comerciante:
`)
	b.WriteString(utterance)
	return b.String()
}
