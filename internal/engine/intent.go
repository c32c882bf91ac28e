package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"ventasvoz/internal/session"
)

// Commands are the small set of direct bookkeeping instructions the engine
// recognizes before asking the oracle: cancelling a sale and correcting the
// last sale's total. Everything else goes through extraction.
type commandKind int

const (
	cmdNone commandKind = iota
	cmdCancel
	cmdEditTotal
)

type command struct {
	kind    commandKind
	ordinal int // explicit daily ordinal in a cancel command; 0 when absent
	total   decimal.Decimal
}

var cancelVerbs = []string{"anul", "cancel", "elimin", "borr", "delete", "remove"}

var saleNouns = []string{"venta", "sale", "ultima", "última", "last one"}

var indefiniteSale = regexp.MustCompile(`\b(una|un)\s+(venta|sale)\b`)

// Explicit daily-ordinal references are only read next to the sale noun:
// "la venta 3", "sale #2", "la segunda venta". A number elsewhere in the
// utterance ("la venta de las 12") is not a sale reference.
var saleNumberRef = regexp.MustCompile(`\b(?:venta|sale)\s*(?:#\s*)?(\d{1,2})\b`)

var saleOrdinalRef = regexp.MustCompile(`\b([\p{L}]+|\d{1,2}(?:st|nd|rd|th)?)\s+(?:venta|sale)\b`)

// Past tense only ("el total era 500", "the total was 500"): a present-tense
// "el total es 600" is usually part of a sale being dictated, not a
// correction.
var totalWas = regexp.MustCompile(`\btotal\s+(?:era|fue|was)\s*\$?\s*([0-9][0-9.,]*)`)

// "cambiá el total a 500", "corregí el total: 500"
var totalChange = regexp.MustCompile(`\b(?:cambi|corrig|correg|modific|fix|change|update)\w*\b.*\btotal\b\D*([0-9][0-9.,]*)`)

// detectCommand classifies an utterance as a direct command. It never
// guesses: an utterance that merely mentions a sale noun without a command
// verb, or a verb without a target noun, falls through to extraction.
func detectCommand(text string) (command, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return command{}, false
	}

	if m := totalWas.FindStringSubmatch(lowered); m != nil {
		if amount, ok := parseAmount(m[1]); ok {
			return command{kind: cmdEditTotal, total: amount}, true
		}
	}
	if m := totalChange.FindStringSubmatch(lowered); m != nil {
		if amount, ok := parseAmount(m[1]); ok {
			return command{kind: cmdEditTotal, total: amount}, true
		}
	}

	if hasAny(lowered, cancelVerbs) && hasAny(lowered, saleNouns) {
		return command{kind: cmdCancel, ordinal: explicitSaleOrdinal(lowered)}, true
	}

	return command{}, false
}

// explicitSaleOrdinal reads a daily ordinal out of a cancel command, or 0
// when the command names no particular sale.
func explicitSaleOrdinal(lowered string) int {
	// Drop the indefinite article so "eliminá una venta" is not read as
	// an explicit reference to sale #1.
	cleaned := indefiniteSale.ReplaceAllString(lowered, "$2")
	if m := saleNumberRef.FindStringSubmatch(cleaned); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	if m := saleOrdinalRef.FindStringSubmatch(cleaned); m != nil {
		if n, ok := session.ParseOrdinal(m[1]); ok {
			return n
		}
	}
	return 0
}

func hasAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// parseAmount reads a spoken money amount, accepting both "1200.50" and the
// Spanish "1.200,50" grouping.
var dotGrouped = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)

func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case dotGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}
