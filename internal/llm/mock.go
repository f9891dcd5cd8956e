package llm

import (
	"context"
	"strings"
)

// mockClient gives deterministic answers for offline demos and tests.
type mockClient struct{}

// NewMock returns the offline client used when USE_MOCK_LLM is set.
func NewMock() Client {
	return &mockClient{}
}

func (m *mockClient) Complete(_ context.Context, prompt string, _ Options) (string, error) {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "sentiment of:"):
		return "0.2", nil
	case strings.Contains(lower, "extract entities"):
		return `{"persons":[],"organizations":["Operations Team"],"locations":["Europe"],"other":[]}`, nil
	case strings.Contains(lower, "extract:") && strings.Contains(lower, "intent"):
		return `{"intent":"utterances","parameters":{},"entities":[]}`, nil
	case strings.Contains(lower, "respond with valid json"):
		return `{"summary":"Mock summary of the meeting","actions":["follow up"],"risks":[],"sentiment_overall":"neutral"}`, nil
	default:
		return "This is a mock answer based on the available meeting data.", nil
	}
}

func (m *mockClient) Embed(_ context.Context, text string) ([]float64, error) {
	// Fixed-length vector keyed on content length, good enough for plumbing.
	v := make([]float64, 8)
	for i := range v {
		v[i] = float64((len(text)+i)%7) / 7.0
	}
	return v, nil
}
