package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ventasvoz/internal/domain"
)

// ErrParse marks an oracle reply that could not be read as the expected JSON
// shape. Callers treat it as total extraction failure; a malformed reply is
// never partially trusted.
var ErrParse = errors.New("oracle reply not parseable")

// Extractor is the boundary to the language model. Implementations are
// replaceable and possibly unreliable; nothing downstream trusts the shape
// of what they return.
type Extractor interface {
	Extract(ctx context.Context, utterance string, snapshot domain.CatalogSnapshot) (domain.RawExtraction, error)
	Model() string
}

// ParseReply extracts the first JSON object from the oracle's text reply and
// decodes it. Models wrap JSON in prose or code fences often enough that
// decoding the raw body directly is not reliable.
func ParseReply(reply string) (domain.RawExtraction, error) {
	var raw domain.RawExtraction
	body := firstJSONObject(reply)
	if body == "" {
		return raw, fmt.Errorf("%w: no JSON object in reply", ErrParse)
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return raw, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return raw, nil
}

func firstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
