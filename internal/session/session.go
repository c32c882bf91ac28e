package session

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"ventasvoz/internal/domain"
)

// maxMessages bounds the recent-message window carried in the context.
const maxMessages = 20

// Append records a message in the bounded conversation window.
func Append(ctx domain.SessionContext, role string, text string, at time.Time) domain.SessionContext {
	ctx.Messages = append(ctx.Messages, domain.SessionMessage{Role: role, Text: text, At: at.UTC()})
	if len(ctx.Messages) > maxMessages {
		ctx.Messages = ctx.Messages[len(ctx.Messages)-maxMessages:]
	}
	return ctx
}

// RecordNewSale sets the last-created sale and clears any pending
// disambiguation.
func RecordNewSale(ctx domain.SessionContext, saleID string) domain.SessionContext {
	ctx.LastSaleID = saleID
	ctx.Pending = nil
	return ctx
}

// RecordCancellation clears both the last sale and any pending
// disambiguation.
func RecordCancellation(ctx domain.SessionContext) domain.SessionContext {
	ctx.LastSaleID = ""
	ctx.Pending = nil
	return ctx
}

// OfferDisambiguation builds a 1-based ordinal->sale mapping over the listed
// sales and timestamps it, so a later "la 2" can be resolved.
func OfferDisambiguation(ctx domain.SessionContext, dateISO string, orderedSaleIDs []string, shownAt time.Time) domain.SessionContext {
	ctx.Pending = &domain.Disambiguation{
		Date:    dateISO,
		SaleIDs: append([]string(nil), orderedSaleIDs...),
		ShownAt: shownAt.UTC(),
	}
	return ctx
}

// ClearDisambiguation drops the pending map without touching the last sale.
func ClearDisambiguation(ctx domain.SessionContext) domain.SessionContext {
	ctx.Pending = nil
	return ctx
}

// ResolveOrdinal matches an utterance that is nothing but a list answer
// ("la 2", "the second one") against the pending map. It returns "" when
// there is no pending map, when the map is older than ttl, when the text is
// not ordinal-shaped, or when the ordinal is out of range; the caller reports
// rather than guesses.
func ResolveOrdinal(ctx domain.SessionContext, text string, now time.Time, ttl time.Duration) string {
	if ctx.Pending == nil {
		return ""
	}
	if ttl > 0 && now.Sub(ctx.Pending.ShownAt) > ttl {
		return ""
	}
	n, ok := ParseOrdinalAnswer(text)
	if !ok || n < 1 || n > len(ctx.Pending.SaleIDs) {
		return ""
	}
	return ctx.Pending.SaleIDs[n-1]
}

var ordinalDigits = regexp.MustCompile(`\b(\d{1,2})\b`)

var ordinalWords = map[string]int{
	"primera": 1, "primero": 1, "primer": 1, "first": 1, "una": 1, "uno": 1,
	"segunda": 2, "segundo": 2, "second": 2, "dos": 2,
	"tercera": 3, "tercero": 3, "tercer": 3, "third": 3, "tres": 3,
	"cuarta": 4, "cuarto": 4, "fourth": 4, "cuatro": 4,
	"quinta": 5, "quinto": 5, "fifth": 5, "cinco": 5,
	"sexta": 6, "sexto": 6, "sixth": 6, "seis": 6,
	"septima": 7, "séptima": 7, "seventh": 7, "siete": 7,
	"octava": 8, "octavo": 8, "eighth": 8, "ocho": 8,
	"novena": 9, "noveno": 9, "ninth": 9, "nueve": 9,
	"decima": 10, "décima": 10, "tenth": 10, "diez": 10,
}

var englishSuffixOrdinal = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)\b`)

// ParseOrdinal extracts a small 1-based ordinal from text: bare digits
// ("la 2"), English suffixed forms ("the 2nd"), and Spanish/English ordinal
// words ("la segunda", "the third one").
func ParseOrdinal(text string) (int, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return 0, false
	}

	if m := englishSuffixOrdinal.FindStringSubmatch(lowered); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return n, true
		}
	}
	if m := ordinalDigits.FindStringSubmatch(lowered); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return n, true
		}
	}
	for _, word := range strings.FieldsFunc(lowered, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	}) {
		if n, ok := ordinalWords[word]; ok {
			return n, true
		}
	}
	return 0, false
}

// An utterance that is a list answer and nothing else: an optional article,
// one ordinal token, an optional "one".
var ordinalAnswer = regexp.MustCompile(`^(?:la|el|the)?\s*(?:#|n[uú]mero\s+)?([\p{L}]+|\d{1,2}(?:st|nd|rd|th)?)\s*(?:one)?\s*[.!]?$`)

// ParseOrdinalAnswer reads the whole utterance as a reply to a numbered list
// ("la 2", "3", "the second one"). Longer utterances that merely contain a
// number, a new sale being dictated for instance, do not qualify and fall
// through to normal handling.
func ParseOrdinalAnswer(text string) (int, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	m := ordinalAnswer.FindStringSubmatch(lowered)
	if m == nil {
		return 0, false
	}
	return ParseOrdinal(m[1])
}
