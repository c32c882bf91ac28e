package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ventasvoz/internal/domain"
)

type OpenAIExtractor struct {
	apiKey string
	model  string
	client *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func NewOpenAIExtractor(model string, apiKey string) (*OpenAIExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIExtractor{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{
			// Must finish inside the server's write timeout.
			Timeout: 25 * time.Second,
		},
	}, nil
}

func (e *OpenAIExtractor) Extract(ctx context.Context, utterance string, snapshot domain.CatalogSnapshot) (domain.RawExtraction, error) {
	var zero domain.RawExtraction

	req := openAIRequest{
		Model: e.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(utterance, snapshot)},
		},
		MaxTokens:   1000,
		Temperature: 0.1,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return zero, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.apiKey))

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return zero, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return zero, fmt.Errorf("OpenAI API error %d: %s", resp.StatusCode, string(body))
	}

	var response openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return zero, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Choices) == 0 {
		return zero, fmt.Errorf("%w: no choices in response", ErrParse)
	}

	return ParseReply(response.Choices[0].Message.Content)
}

func (e *OpenAIExtractor) Model() string {
	return e.model
}

// Compile-time interface check
var _ Extractor = (*OpenAIExtractor)(nil)
