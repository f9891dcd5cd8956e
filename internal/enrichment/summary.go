package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"townhall-insights-go/internal/llm"
	"townhall-insights-go/internal/types"
)

const summaryPromptTemplate = `Analyze this townhall meeting transcript and provide a JSON response with:
1. A concise summary of key discussion points
2. List of action items mentioned
3. List of risks or concerns raised
4. Overall sentiment assessment

Transcript:
%s

Respond with valid JSON in this format:
{
    "summary": "Brief summary of the meeting",
    "actions": ["action item 1", "action item 2"],
    "risks": ["risk 1", "risk 2"],
    "sentiment_overall": "positive/negative/neutral"
}`

// Summarize makes one best-effort call over the full ordered transcript.
// Any parse or transport failure yields the fixed fallback summary.
func (o *Orchestrator) Summarize(ctx context.Context, utterances []types.Utterance) types.MeetingSummary {
	lines := make([]string, 0, len(utterances))
	for _, u := range utterances {
		speaker := u.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		lines = append(lines, speaker+": "+u.Content)
	}
	prompt := fmt.Sprintf(summaryPromptTemplate, strings.Join(lines, "\n"))

	reply, err := o.client.Complete(ctx, prompt, llm.Options{Temperature: 0.3, MaxTokens: 1000})
	if err != nil {
		o.m.EnrichmentFailures.WithLabelValues("summary").Inc()
		o.log.WithError(err).Warn("meeting summary degraded to fallback")
		return types.FallbackSummary()
	}

	raw := llm.ExtractJSON(reply)
	if raw == "" {
		o.m.EnrichmentFailures.WithLabelValues("summary").Inc()
		o.log.Warn("summary reply has no JSON object")
		return types.FallbackSummary()
	}
	var summary types.MeetingSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		o.m.EnrichmentFailures.WithLabelValues("summary").Inc()
		o.log.WithError(err).Warn("summary decode failed")
		return types.FallbackSummary()
	}
	if summary.Actions == nil {
		summary.Actions = []string{}
	}
	if summary.Risks == nil {
		summary.Risks = []string{}
	}
	if summary.SentimentOverall == "" {
		summary.SentimentOverall = "neutral"
	}
	return summary
}
