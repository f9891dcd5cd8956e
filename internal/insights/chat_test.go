package insights

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townhall-insights-go/internal/llm"
	"townhall-insights-go/internal/types"
)

type fakeLLM struct {
	replies map[string]string
	err     error
}

func (f *fakeLLM) Complete(_ context.Context, prompt string, _ llm.Options) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for marker, reply := range f.replies {
		if strings.Contains(prompt, marker) {
			return reply, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

func (f *fakeLLM) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("not used")
}

func TestSanitizeParameters(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{"nil values dropped", map[string]any{"department": nil}, map[string]any{}},
		{"null strings dropped", map[string]any{"region": "null", "department": "  "}, map[string]any{}},
		{"strings trimmed", map[string]any{"department": " Finance "}, map[string]any{"department": "Finance"}},
		{"topics kept as string list", map[string]any{"topics": []any{"packaging", "null", " innovation "}},
			map[string]any{"topics": []string{"packaging", "innovation"}},
		},
		{"empty topics dropped", map[string]any{"topics": []any{}}, map[string]any{}},
		{"non-topic lists dropped", map[string]any{"entities": []any{"x"}}, map[string]any{}},
		{"numbers stringified", map[string]any{"limit": float64(10)}, map[string]any{"limit": "10"}},
		{"bools stringified", map[string]any{"flag": true}, map[string]any{"flag": "true"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sanitizeParameters(tc.in))
		})
	}
}

func TestFiltersFromParameters(t *testing.T) {
	f := filtersFromParameters(map[string]any{
		"from_date":        "2025-01-01",
		"to_date":          "2025-02-01T12:00:00Z",
		"department":       "Finance",
		"region":           "EMEA",
		"topics":           []string{"packaging"},
		"sentiment_filter": "positive",
	})

	assert.Equal(t, "2025-01-01T00:00:00Z", f.FromDate)
	assert.Equal(t, "2025-02-01T12:00:00Z", f.ToDate)
	assert.Equal(t, "Finance", f.Department)
	assert.Equal(t, "EMEA", f.Region)
	assert.Equal(t, []string{"packaging"}, f.Topics)
	require.NotNil(t, f.SentimentMin)
	assert.InDelta(t, 0.1, *f.SentimentMin, 1e-9)
	assert.Nil(t, f.SentimentMax)
}

func TestSentimentBand(t *testing.T) {
	lo, hi := sentimentBand("negative")
	assert.Nil(t, lo)
	require.NotNil(t, hi)
	assert.InDelta(t, -0.1, *hi, 1e-9)

	lo, hi = sentimentBand("neutral")
	require.NotNil(t, lo)
	require.NotNil(t, hi)
	assert.InDelta(t, -0.1, *lo, 1e-9)
	assert.InDelta(t, 0.1, *hi, 1e-9)

	lo, hi = sentimentBand("anything else")
	assert.Nil(t, lo)
	assert.Nil(t, hi)
}

func TestAnswerTrendsWithData(t *testing.T) {
	store := &fakeStore{utterances: []types.Utterance{
		u("A", 0.4, "packaging"), u("B", 0.2, "packaging"),
	}}
	client := &fakeLLM{replies: map[string]string{
		"Analyze this question": `{"intent": "trends", "parameters": {"department": "Finance"}, "entities": []}`,
		"Based on the following data": "Packaging is trending up across recent townhalls.",
	}}
	router := NewRouter(NewEngine(store, nil), client)

	resp := router.Answer(context.Background(), "What topics are trending?", "")
	assert.Equal(t, "trends", resp.Intent)
	assert.Equal(t, 0.85, resp.Confidence)
	assert.Empty(t, resp.Error)
	assert.Contains(t, resp.Answer, "Packaging")
	assert.Equal(t, "Finance", store.lastFilter.Department)
	require.Len(t, resp.Sources, 1)
	assert.Contains(t, resp.Sources[0], "1 topics")
}

func TestAnswerEmptyCorpusLowConfidence(t *testing.T) {
	store := &fakeStore{}
	client := &fakeLLM{replies: map[string]string{
		"Analyze this question": `{"intent": "trends", "parameters": {}, "entities": []}`,
		"Based on the following data": "No discussion topics have been recorded yet.",
	}}
	router := NewRouter(NewEngine(store, nil), client)

	resp := router.Answer(context.Background(), "What topics are trending?", "")
	assert.Equal(t, "trends", resp.Intent)
	assert.Equal(t, 0.3, resp.Confidence)
	assert.Empty(t, resp.Error)
	assert.NotEmpty(t, resp.Answer)
}

func TestAnswerIntentExtractionFailureFallsBack(t *testing.T) {
	store := &fakeStore{utterances: []types.Utterance{u("A", 0.1, "t")}}
	calls := 0
	client := &routingLLM{route: func(prompt string) (string, error) {
		calls++
		if strings.Contains(prompt, "Analyze this question") {
			return "", errors.New("gateway timeout")
		}
		return "Here is what was said.", nil
	}}
	router := NewRouter(NewEngine(store, nil), client)

	resp := router.Answer(context.Background(), "tell me things", "")
	assert.Equal(t, "utterances", resp.Intent)
	assert.Equal(t, 0.85, resp.Confidence)
	assert.Equal(t, 2, calls)
}

func TestAnswerStorageFailureApologizes(t *testing.T) {
	store := &fakeStore{err: errors.New("index offline")}
	client := &fakeLLM{replies: map[string]string{
		"Analyze this question": `{"intent": "speakers", "parameters": {}, "entities": []}`,
	}}
	router := NewRouter(NewEngine(store, nil), client)

	resp := router.Answer(context.Background(), "who spoke most?", "")
	assert.Equal(t, 0.0, resp.Confidence)
	assert.Equal(t, "query processing failed", resp.Error)
	assert.Contains(t, resp.Answer, "apologize")
	assert.Equal(t, "speakers", resp.Intent)
}

func TestAnswerSentimentIntent(t *testing.T) {
	store := &fakeStore{utterances: []types.Utterance{
		u("A", 0.6, "t"), u("B", 0.2, "t"),
	}}
	client := &fakeLLM{replies: map[string]string{
		"Analyze this question": `{"intent": "sentiment", "parameters": {}, "entities": []}`,
		"Based on the following data": "Overall mood is positive.",
	}}
	router := NewRouter(NewEngine(store, nil), client)

	resp := router.Answer(context.Background(), "how do people feel?", "")
	assert.Equal(t, "sentiment", resp.Intent)
	assert.Equal(t, 0.4, resp.Data["average_sentiment"])
	assert.Equal(t, 2, resp.Data["total_utterances"])
}

type routingLLM struct {
	route func(prompt string) (string, error)
}

func (r *routingLLM) Complete(_ context.Context, prompt string, _ llm.Options) (string, error) {
	return r.route(prompt)
}

func (r *routingLLM) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("not used")
}

// Truncating the serialized payload must never split a multibyte rune.
func TestGenerateAnswerTruncatesOnRuneBoundary(t *testing.T) {
	var prompt string
	client := &routingLLM{route: func(p string) (string, error) {
		prompt = p
		return "ok", nil
	}}
	router := NewRouter(NewEngine(&fakeStore{}, nil), client)

	data := map[string]any{"content": strings.Repeat("é", answerDataBudget)}
	answer, err := router.generateAnswer(context.Background(), "q", "utterances", data, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Contains(t, prompt, "... (truncated)")
	assert.True(t, utf8.ValidString(prompt))
}

func TestExpandBareDate(t *testing.T) {
	assert.Equal(t, "2025-03-14T00:00:00Z", ExpandBareDate("2025-03-14"))
	assert.Equal(t, "2025-03-14T09:30:00Z", ExpandBareDate("2025-03-14T09:30:00Z"))
	assert.Equal(t, "last week", ExpandBareDate("last week"))
}
