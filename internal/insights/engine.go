package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"townhall-insights-go/internal/cache"
	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/storage"
	"townhall-insights-go/internal/types"
)

// aggregationFetchSize bounds how many utterances one aggregation reads.
const aggregationFetchSize = 1000

const (
	maxTrends         = 10
	maxQuotes         = 3
	quoteMaxChars     = 200
	momentumUpAbove   = 0.1
	momentumDownBelow = -0.1
)

// Engine computes the filtered and aggregate views over the utterance
// corpus. It only reads; each request works on the snapshot the storage
// collaborator returns.
type Engine struct {
	store storage.SearchStore
	cache cache.Cache
	log   *logrus.Entry
}

func NewEngine(store storage.SearchStore, c cache.Cache) *Engine {
	if c == nil {
		c = cache.Noop{}
	}
	return &Engine{
		store: store,
		cache: c,
		log:   logger.New().WithComponent("insights"),
	}
}

// Utterances returns the filtered utterance list page plus total count.
func (e *Engine) Utterances(ctx context.Context, filters types.FilterSpec, top, skip int) ([]types.Utterance, int, error) {
	return e.store.Query(ctx, filters, top, skip)
}

// Trends groups retrieved utterances by each topic they carry; one
// utterance contributes once to every topic in its set.
func (e *Engine) Trends(ctx context.Context, filters types.FilterSpec) ([]types.Trend, error) {
	if cached, ok := e.cached(ctx, "trends", filters); ok {
		var trends []types.Trend
		if json.Unmarshal(cached, &trends) == nil {
			return trends, nil
		}
	}

	utterances, _, err := e.store.Query(ctx, filters, aggregationFetchSize, 0)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	sentiments := map[string][]float64{}
	var order []string
	for _, u := range utterances {
		for _, topic := range u.Topics {
			if _, seen := counts[topic]; !seen {
				order = append(order, topic)
			}
			counts[topic]++
			sentiments[topic] = append(sentiments[topic], u.SentimentScore)
		}
	}

	trends := make([]types.Trend, 0, len(order))
	for _, topic := range order {
		avg := stat.Mean(sentiments[topic], nil)
		trends = append(trends, types.Trend{
			Name:          titleCase(strings.ReplaceAll(topic, "_", " ")),
			Description:   fmt.Sprintf("Discussion about %s", strings.ReplaceAll(topic, "_", " ")),
			MeetingsCount: counts[topic],
			AvgSentiment:  round2(avg),
			Momentum:      momentum(avg),
			NoveltyScore:  novelty(counts[topic]),
		})
	}
	sort.SliceStable(trends, func(i, j int) bool {
		return trends[i].MeetingsCount > trends[j].MeetingsCount
	})
	if len(trends) > maxTrends {
		trends = trends[:maxTrends]
	}

	e.store2cache(ctx, "trends", filters, trends)
	return trends, nil
}

// Speakers rolls utterances up by display name, case-sensitive, first-seen
// casing wins.
func (e *Engine) Speakers(ctx context.Context, filters types.FilterSpec) ([]types.SpeakerSummary, error) {
	if cached, ok := e.cached(ctx, "speakers", filters); ok {
		var speakers []types.SpeakerSummary
		if json.Unmarshal(cached, &speakers) == nil {
			return speakers, nil
		}
	}

	utterances, _, err := e.store.Query(ctx, filters, aggregationFetchSize, 0)
	if err != nil {
		return nil, err
	}

	type rollup struct {
		summary    types.SpeakerSummary
		sentiments []float64
	}
	byName := map[string]*rollup{}
	var order []string
	for _, u := range utterances {
		name := u.Speaker
		if name == "" {
			name = "Unknown"
		}
		r, ok := byName[name]
		if !ok {
			r = &rollup{summary: types.SpeakerSummary{
				SpeakerID:      speakerID(name),
				DisplayName:    name,
				Department:     u.Department,
				Region:         u.Region,
				ExemplarQuotes: []types.Quote{},
			}}
			byName[name] = r
			order = append(order, name)
		}
		r.summary.Mentions++
		r.sentiments = append(r.sentiments, u.SentimentScore)
		if len(r.summary.ExemplarQuotes) < maxQuotes {
			r.summary.ExemplarQuotes = append(r.summary.ExemplarQuotes, types.Quote{
				Quote:     truncateQuote(u.Content),
				MeetingID: u.MeetingID,
				Timestamp: u.StartTimestamp,
			})
		}
	}

	speakers := make([]types.SpeakerSummary, 0, len(order))
	for _, name := range order {
		r := byName[name]
		r.summary.AvgSentiment = round2(stat.Mean(r.sentiments, nil))
		speakers = append(speakers, r.summary)
	}
	sort.SliceStable(speakers, func(i, j int) bool {
		return speakers[i].Mentions > speakers[j].Mentions
	})

	e.store2cache(ctx, "speakers", filters, speakers)
	return speakers, nil
}

func (e *Engine) cached(ctx context.Context, view string, filters types.FilterSpec) ([]byte, bool) {
	return e.cache.Get(ctx, cacheKey(view, filters))
}

func (e *Engine) store2cache(ctx context.Context, view string, filters types.FilterSpec, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	e.cache.Set(ctx, cacheKey(view, filters), data, 0)
}

func cacheKey(view string, filters types.FilterSpec) string {
	spec, _ := json.Marshal(filters)
	return "insights:" + view + ":" + string(spec)
}

func momentum(avg float64) string {
	switch {
	case avg > momentumUpAbove:
		return "up"
	case avg < momentumDownBelow:
		return "down"
	default:
		return "flat"
	}
}

func novelty(count int) float64 {
	n := float64(count) / 10.0
	if n > 1.0 {
		return 1.0
	}
	return n
}

func speakerID(name string) string {
	return "spk-" + strings.ReplaceAll(strings.ToLower(name), " ", "")
}

// truncateQuote caps a quote at 200 visible characters plus an ellipsis
// marker for longer source text.
func truncateQuote(content string) string {
	runes := []rune(content)
	if len(runes) <= quoteMaxChars {
		return content
	}
	return string(runes[:quoteMaxChars]) + "..."
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func round2(v float64) float64 {
	if math.IsNaN(v) {
		return 0.0
	}
	return math.Round(v*100) / 100
}
