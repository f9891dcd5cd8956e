package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"townhall-insights-go/internal/llm"
	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/metrics"
	"townhall-insights-go/internal/types"
)

// answerDataBudget caps the serialized aggregation payload included in the
// answer prompt.
const answerDataBudget = 3000

// Router turns free-form questions into one of the aggregate views and
// renders a prose answer over the result.
type Router struct {
	engine *Engine
	client llm.Client
	m      *metrics.Metrics
	log    *logrus.Entry
}

func NewRouter(engine *Engine, client llm.Client) *Router {
	return &Router{
		engine: engine,
		client: client,
		m:      metrics.Default,
		log:    logger.New().WithComponent("chat-router"),
	}
}

const intentPromptTemplate = `Analyze this question about townhall meeting insights and extract:
1. Intent (trends, speakers, utterances, sentiment, topics)
2. Parameters (date ranges, departments, regions, sentiment filters)
3. Specific entities mentioned

Question: "%s"

Respond with JSON:
{
    "intent": "trends|speakers|utterances|sentiment|topics",
    "parameters": {
        "from_date": "YYYY-MM-DD or null",
        "to_date": "YYYY-MM-DD or null",
        "department": "department name or null",
        "region": "region name or null",
        "topics": ["topic1", "topic2"] or [],
        "sentiment_filter": "positive|negative|neutral or null"
    },
    "entities": ["entity1", "entity2"] or []
}`

type intentResult struct {
	Intent     string         `json:"intent"`
	Parameters map[string]any `json:"parameters"`
	Entities   []string       `json:"entities"`
}

// Answer routes one question end to end: intent extraction, parameter
// sanitation, aggregation dispatch, prose rendering.
func (r *Router) Answer(ctx context.Context, question, chatContext string) types.ChatResponse {
	analysis := r.extractIntent(ctx, question)
	params := sanitizeParameters(analysis.Parameters)
	filters := filtersFromParameters(params)
	r.m.ChatRequests.WithLabelValues(analysis.Intent).Inc()
	r.log.WithFields(logrus.Fields{"intent": analysis.Intent, "parameters": params}).Info("routing chat question")

	data, sources, err := r.dispatch(ctx, analysis.Intent, filters)
	if err != nil {
		r.log.WithError(err).Error("chat aggregation failed")
		return apology(analysis.Intent)
	}

	hasData := dataPresent(analysis.Intent, data)
	answer, err := r.generateAnswer(ctx, question, analysis.Intent, data, chatContext)
	if err != nil {
		r.log.WithError(err).Error("answer generation failed")
		return apology(analysis.Intent)
	}

	confidence := 0.3
	if hasData {
		confidence = 0.85
	}
	return types.ChatResponse{
		Answer:     answer,
		Data:       data,
		Sources:    sources,
		Confidence: confidence,
		Intent:     analysis.Intent,
	}
}

func (r *Router) extractIntent(ctx context.Context, question string) intentResult {
	fallback := intentResult{Intent: "utterances", Parameters: map[string]any{}, Entities: []string{}}

	reply, err := r.client.Complete(ctx, fmt.Sprintf(intentPromptTemplate, question), llm.Options{
		Temperature: 0.1,
		MaxTokens:   500,
	})
	if err != nil {
		r.log.WithError(err).Warn("intent extraction failed, defaulting to utterances")
		return fallback
	}
	raw := llm.ExtractJSON(reply)
	if raw == "" {
		return fallback
	}
	var result intentResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fallback
	}
	switch result.Intent {
	case "trends", "speakers", "utterances", "sentiment", "topics":
	default:
		result.Intent = "utterances"
	}
	if result.Parameters == nil {
		result.Parameters = map[string]any{}
	}
	return result
}

// sanitizeParameters drops null/empty values, coerces scalars to strings,
// keeps the list-valued "topics" as non-empty strings, and drops any other
// list. Downstream predicate construction only handles homogeneous
// string-keyed string/string-list values.
func sanitizeParameters(params map[string]any) map[string]any {
	validated := map[string]any{}
	for key, value := range params {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			trimmed := strings.TrimSpace(v)
			if trimmed == "" || trimmed == "null" {
				continue
			}
			validated[key] = trimmed
		case []any:
			if key != "topics" {
				continue
			}
			var topics []string
			for _, item := range v {
				s := strings.TrimSpace(fmt.Sprint(item))
				if s != "" && s != "null" {
					topics = append(topics, s)
				}
			}
			if len(topics) > 0 {
				validated[key] = topics
			}
		case float64:
			validated[key] = strconv.FormatFloat(v, 'g', -1, 64)
		case bool:
			validated[key] = strconv.FormatBool(v)
		default:
			s := strings.TrimSpace(fmt.Sprint(v))
			if s != "" {
				validated[key] = s
			}
		}
	}
	return validated
}

// filtersFromParameters maps the sanitized parameter bag onto a FilterSpec,
// so extracted constraints actually narrow the aggregation.
func filtersFromParameters(params map[string]any) types.FilterSpec {
	var f types.FilterSpec
	if v, ok := params["from_date"].(string); ok {
		f.FromDate = ExpandBareDate(v)
	}
	if v, ok := params["to_date"].(string); ok {
		f.ToDate = ExpandBareDate(v)
	}
	if v, ok := params["department"].(string); ok {
		f.Department = v
	}
	if v, ok := params["region"].(string); ok {
		f.Region = v
	}
	if v, ok := params["topics"].([]string); ok {
		f.Topics = v
	}
	if v, ok := params["sentiment_filter"].(string); ok {
		lo, hi := sentimentBand(v)
		f.SentimentMin, f.SentimentMax = lo, hi
	}
	return f
}

// ExpandBareDate widens YYYY-MM-DD to midnight UTC so date filters from
// any surface compare against full timestamps.
func ExpandBareDate(d string) string {
	if len(d) == 10 && strings.Count(d, "-") == 2 {
		return d + "T00:00:00Z"
	}
	return d
}

// sentimentBand maps a coarse sentiment label onto score bounds aligned
// with the trend momentum thresholds.
func sentimentBand(label string) (*float64, *float64) {
	ptr := func(v float64) *float64 { return &v }
	switch strings.ToLower(label) {
	case "positive":
		return ptr(0.1), nil
	case "negative":
		return nil, ptr(-0.1)
	case "neutral":
		return ptr(-0.1), ptr(0.1)
	default:
		return nil, nil
	}
}

func (r *Router) dispatch(ctx context.Context, intent string, filters types.FilterSpec) (map[string]any, []string, error) {
	switch intent {
	case "trends", "topics":
		trends, err := r.engine.Trends(ctx, filters)
		if err != nil {
			return nil, nil, err
		}
		data := map[string]any{"trends": trends}
		return data, []string{fmt.Sprintf("Trend analysis for %d topics", len(trends))}, nil

	case "speakers":
		speakers, err := r.engine.Speakers(ctx, filters)
		if err != nil {
			return nil, nil, err
		}
		total := 0
		for _, s := range speakers {
			total += s.Mentions
		}
		data := map[string]any{"speakers": speakers}
		return data, []string{fmt.Sprintf("Analysis of %d utterances from %d speakers", total, len(speakers))}, nil

	case "sentiment":
		utterances, _, err := r.engine.Utterances(ctx, filters, aggregationFetchSize, 0)
		if err != nil {
			return nil, nil, err
		}
		scores := make([]float64, 0, len(utterances))
		for _, u := range utterances {
			scores = append(scores, u.SentimentScore)
		}
		avg := 0.0
		if len(scores) > 0 {
			avg = stat.Mean(scores, nil)
		}
		data := map[string]any{"average_sentiment": round2(avg), "total_utterances": len(utterances)}
		return data, []string{fmt.Sprintf("Sentiment analysis of %d utterances", len(utterances))}, nil

	default: // utterances
		utterances, _, err := r.engine.Utterances(ctx, filters, 50, 0)
		if err != nil {
			return nil, nil, err
		}
		data := map[string]any{"utterances": utterances}
		return data, []string{fmt.Sprintf("Found %d relevant utterances", len(utterances))}, nil
	}
}

func dataPresent(intent string, data map[string]any) bool {
	switch intent {
	case "trends", "topics":
		trends, _ := data["trends"].([]types.Trend)
		return len(trends) > 0
	case "speakers":
		speakers, _ := data["speakers"].([]types.SpeakerSummary)
		return len(speakers) > 0
	case "sentiment":
		count, _ := data["total_utterances"].(int)
		return count > 0
	default:
		utterances, _ := data["utterances"].([]types.Utterance)
		return len(utterances) > 0
	}
}

const answerPromptTemplate = `Based on the following data from townhall meetings, provide a natural, conversational answer to the user's question.

Question: "%s"
Intent: %s
Context: %s

Data:
%s

Guidelines:
- Be conversational and executive-friendly
- Include specific numbers and insights
- Keep response concise but informative
- If data is limited, mention that
- Use bullet points for multiple insights

Provide a clear, actionable response:`

func (r *Router) generateAnswer(ctx context.Context, question, intent string, data map[string]any, chatContext string) (string, error) {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal data payload: %w", err)
	}
	dataStr := string(payload)
	if len(dataStr) > answerDataBudget {
		r.log.WithField("payload_len", len(dataStr)).Warn("truncating answer data payload")
		cut := answerDataBudget
		for cut > 0 && !utf8.RuneStart(dataStr[cut]) {
			cut--
		}
		dataStr = dataStr[:cut] + "\n... (truncated)"
	}

	prompt := fmt.Sprintf(answerPromptTemplate, question, intent, chatContext, dataStr)
	answer, err := r.client.Complete(ctx, prompt, llm.Options{Temperature: 0.3, MaxTokens: 800})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func apology(intent string) types.ChatResponse {
	return types.ChatResponse{
		Answer:     "I apologize, but I encountered an error processing your question. Please try rephrasing your query.",
		Data:       map[string]any{},
		Sources:    []string{},
		Confidence: 0.0,
		Intent:     intent,
		Error:      "query processing failed",
	}
}
