package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townhall-insights-go/internal/config"
	"townhall-insights-go/internal/llm"
	"townhall-insights-go/internal/types"
)

type fakeLLM struct {
	complete func(prompt string) (string, error)
	embed    func(text string) ([]float64, error)
}

func (f *fakeLLM) Complete(_ context.Context, prompt string, _ llm.Options) (string, error) {
	if f.complete == nil {
		return "", errors.New("complete not stubbed")
	}
	return f.complete(prompt)
}

func (f *fakeLLM) Embed(_ context.Context, text string) ([]float64, error) {
	if f.embed == nil {
		return nil, errors.New("embed not stubbed")
	}
	return f.embed(text)
}

func newOrchestrator(client llm.Client) *Orchestrator {
	return New(&config.Config{EnrichWorkers: 4, EnrichCallTimeout: time.Second}, client)
}

func utteranceFixture(content string) types.Utterance {
	return types.Utterance{
		ID: "u-1", Speaker: "Alice", Content: content,
		Department: "Unknown", Region: "Unknown",
		Topics: []string{}, SentimentScore: 0.0,
	}
}

func TestEnrichSentimentAndEntities(t *testing.T) {
	client := &fakeLLM{complete: func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Analyze sentiment of:") {
			return "0.8", nil
		}
		return `{"persons":["Alice"],"organizations":["Finance Committee","Marketing"],"locations":["Europe","Asia"],"other":[]}`, nil
	}}

	got := newOrchestrator(client).Enrich(context.Background(), []types.Utterance{utteranceFixture("great numbers")})
	require.Len(t, got, 1)

	assert.InDelta(t, 0.8, got[0].SentimentScore, 1e-9)
	// Only the first entity of each category is consulted.
	assert.Equal(t, "Finance", got[0].Department)
	assert.Equal(t, "EMEA", got[0].Region)
}

func TestEnrichClampsSentiment(t *testing.T) {
	client := &fakeLLM{complete: func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Analyze sentiment of:") {
			return "7.3", nil
		}
		return `{}`, nil
	}}

	got := newOrchestrator(client).Enrich(context.Background(), []types.Utterance{utteranceFixture("x")})
	assert.InDelta(t, 1.0, got[0].SentimentScore, 1e-9)
}

func TestEnrichKeywordFallback(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
	}{
		{"The sentiment is positive.", 0.5},
		{"Clearly negative here", -0.5},
		{"total garbage", 0.0},
	}
	for _, tc := range tests {
		client := &fakeLLM{complete: func(prompt string) (string, error) {
			if strings.HasPrefix(prompt, "Analyze sentiment of:") {
				return tc.reply, nil
			}
			return `{}`, nil
		}}
		got := newOrchestrator(client).Enrich(context.Background(), []types.Utterance{utteranceFixture("x")})
		assert.InDelta(t, tc.want, got[0].SentimentScore, 1e-9, "reply %q", tc.reply)
	}
}

func TestEnrichKeepsDefaultsWithoutEntities(t *testing.T) {
	client := &fakeLLM{complete: func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Analyze sentiment of:") {
			return "0.1", nil
		}
		return `{"persons":[],"organizations":[],"locations":[],"other":[]}`, nil
	}}

	got := newOrchestrator(client).Enrich(context.Background(), []types.Utterance{utteranceFixture("x")})
	assert.Equal(t, "Unknown", got[0].Department)
	assert.Equal(t, "Unknown", got[0].Region)
}

func TestEnrichCollaboratorDownEverywhere(t *testing.T) {
	client := &fakeLLM{complete: func(string) (string, error) {
		return "", errors.New("service unavailable")
	}}

	in := []types.Utterance{utteranceFixture("a"), utteranceFixture("b")}
	got := newOrchestrator(client).Enrich(context.Background(), in)

	require.Len(t, got, 2)
	for _, u := range got {
		assert.Zero(t, u.SentimentScore)
		assert.Equal(t, "Unknown", u.Department)
		assert.Equal(t, "Unknown", u.Region)
	}
}

func TestEnrichPreservesOrderUnderFanOut(t *testing.T) {
	client := &fakeLLM{complete: func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Analyze sentiment of:") {
			// Score derived from content so reordering is detectable.
			return fmt.Sprintf("0.%s", prompt[len(prompt)-1:]), nil
		}
		return `{}`, nil
	}}

	in := make([]types.Utterance, 9)
	for i := range in {
		in[i] = utteranceFixture(fmt.Sprintf("utterance %d", i))
	}
	got := newOrchestrator(client).Enrich(context.Background(), in)
	require.Len(t, got, 9)
	for i, u := range got {
		assert.InDelta(t, float64(i)/10.0, u.SentimentScore, 1e-9, "index %d", i)
	}
}

func TestInferDepartmentAndRegionTables(t *testing.T) {
	assert.Equal(t, "Marketing", inferDepartment("Global Marketing Org"))
	assert.Equal(t, "Operations", inferDepartment("operations guild"))
	assert.Equal(t, "Finance", inferDepartment("FINANCE dept"))
	assert.Equal(t, "General", inferDepartment("Acme Corp"))

	assert.Equal(t, "North America", inferRegion("US East"))
	assert.Equal(t, "EMEA", inferRegion("Western Europe"))
	assert.Equal(t, "Asia Pacific", inferRegion("Asia"))
	assert.Equal(t, "Global", inferRegion("Antarctica"))
}

func TestTopicsForKeywordMatch(t *testing.T) {
	o := newOrchestrator(&fakeLLM{embed: func(string) ([]float64, error) { return nil, errors.New("down") }})

	texts := []string{"We reduced sugar in the new recipe", "Bottle packaging redesign is on track"}
	topics := o.TopicsFor(context.Background(), texts)
	assert.Equal(t, []string{"sugar_reduction", "packaging"}, topics)

	// Idempotent: same input, same output.
	assert.Equal(t, topics, o.TopicsFor(context.Background(), texts))
}

func TestTopicsForSentinel(t *testing.T) {
	o := newOrchestrator(&fakeLLM{embed: func(string) ([]float64, error) { return []float64{0}, nil }})
	assert.Equal(t, []string{GeneralDiscussion}, o.TopicsFor(context.Background(), []string{"hello there"}))
	assert.Equal(t, []string{GeneralDiscussion}, o.TopicsFor(context.Background(), nil))
}

func TestSummarize(t *testing.T) {
	o := newOrchestrator(&fakeLLM{complete: func(prompt string) (string, error) {
		assert.Contains(t, prompt, "Alice: good quarter")
		return "```json\n{\"summary\":\"Q3 recap\",\"actions\":[\"ship it\"],\"risks\":[],\"sentiment_overall\":\"positive\"}\n```", nil
	}})

	got := o.Summarize(context.Background(), []types.Utterance{{Speaker: "Alice", Content: "good quarter"}})
	assert.Equal(t, "Q3 recap", got.Summary)
	assert.Equal(t, []string{"ship it"}, got.Actions)
	assert.Equal(t, "positive", got.SentimentOverall)
}

func TestSummarizeFallbacks(t *testing.T) {
	fallback := types.FallbackSummary()

	down := newOrchestrator(&fakeLLM{complete: func(string) (string, error) { return "", errors.New("down") }})
	assert.Equal(t, fallback, down.Summarize(context.Background(), nil))

	prose := newOrchestrator(&fakeLLM{complete: func(string) (string, error) { return "no json here", nil }})
	assert.Equal(t, fallback, prose.Summarize(context.Background(), nil))
}
