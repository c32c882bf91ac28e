package oracle

import (
	"context"

	"ventasvoz/internal/domain"
)

// ExtractorFunc adapts a function to the Extractor interface; tests use it to
// script oracle replies per utterance.
type ExtractorFunc func(ctx context.Context, utterance string, snapshot domain.CatalogSnapshot) (domain.RawExtraction, error)

func (f ExtractorFunc) Extract(ctx context.Context, utterance string, snapshot domain.CatalogSnapshot) (domain.RawExtraction, error) {
	return f(ctx, utterance, snapshot)
}

func (f ExtractorFunc) Model() string { return "scripted" }

// MockExtractor returns a fixed non-sale reply for every utterance. It lets
// the server run end to end without an API key; every turn is answered with
// "no transaction recognized".
type MockExtractor struct {
	model string
}

func NewMockExtractor(model string) *MockExtractor {
	if model == "" {
		model = "mock"
	}
	return &MockExtractor{model: model}
}

func (m *MockExtractor) Extract(ctx context.Context, utterance string, snapshot domain.CatalogSnapshot) (domain.RawExtraction, error) {
	return domain.RawExtraction{IsSale: false, Intent: "other"}, nil
}

func (m *MockExtractor) Model() string {
	return m.model + "-mock"
}

// Compile-time interface check
var _ Extractor = (*MockExtractor)(nil)
