package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"townhall-insights-go/internal/config"
	"townhall-insights-go/internal/llm"
	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/metrics"
	"townhall-insights-go/internal/types"
)

// Orchestrator attaches derived signals to utterances. Every collaborator
// call is fault-isolated: a failure degrades the affected field to its
// documented default and never aborts the batch.
type Orchestrator struct {
	client      llm.Client
	workers     int
	callTimeout time.Duration
	m           *metrics.Metrics
	log         *logrus.Entry
}

func New(cfg *config.Config, client llm.Client) *Orchestrator {
	return &Orchestrator{
		client:      client,
		workers:     cfg.EnrichWorkers,
		callTimeout: cfg.EnrichCallTimeout,
		m:           metrics.Default,
		log:         logger.New().WithComponent("enrichment"),
	}
}

// Enrich runs the per-utterance pipeline (sentiment, entities,
// department/region) over a bounded worker pool, preserving input order.
// One utterance's failure never cancels sibling work.
func (o *Orchestrator) Enrich(ctx context.Context, utterances []types.Utterance) []types.Utterance {
	out := make([]types.Utterance, len(utterances))
	copy(out, utterances)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range out {
		i := i
		g.Go(func() error {
			o.enrichOne(gctx, &out[i])
			return nil
		})
	}
	// Workers only ever return nil; failures are absorbed per field.
	_ = g.Wait()
	return out
}

func (o *Orchestrator) enrichOne(ctx context.Context, u *types.Utterance) {
	score, err := o.analyzeSentiment(ctx, u.Content)
	if err != nil {
		o.m.EnrichmentFailures.WithLabelValues("sentiment").Inc()
		o.log.WithField("utterance_id", u.ID).WithError(err).Warn("sentiment degraded to default")
		score = 0.0
	}
	u.SentimentScore = clamp(score)

	entities, err := o.extractEntities(ctx, u.Content)
	if err != nil {
		o.m.EnrichmentFailures.WithLabelValues("entities").Inc()
		o.log.WithField("utterance_id", u.ID).WithError(err).Warn("entity extraction degraded to default")
		entities = types.Entities{Persons: []string{}, Organizations: []string{}, Locations: []string{}, Other: []string{}}
	}

	// Only the first entity of each category is consulted; without any the
	// field keeps its normalizer default.
	if len(entities.Organizations) > 0 {
		u.Department = inferDepartment(entities.Organizations[0])
	}
	if len(entities.Locations) > 0 {
		u.Region = inferRegion(entities.Locations[0])
	}
}

// analyzeSentiment asks for a bare number in [-1,1]. A non-numeric reply
// falls back to a coarse keyword read before the caller defaults to 0.0.
func (o *Orchestrator) analyzeSentiment(ctx context.Context, text string) (float64, error) {
	cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	reply, err := o.client.Complete(cctx, "Analyze sentiment of: "+text, llm.Options{
		System:      "You are a sentiment analysis expert. Analyze the sentiment of the given text and return only a number between -1 (very negative) and 1 (very positive). Return 0 for neutral.",
		Temperature: 0.1,
		MaxTokens:   10,
	})
	if err != nil {
		return 0, fmt.Errorf("sentiment call: %w", err)
	}

	if score, err := strconv.ParseFloat(strings.TrimSpace(reply), 64); err == nil {
		return score, nil
	}
	lower := strings.ToLower(reply)
	switch {
	case strings.Contains(lower, "positive"):
		return 0.5, nil
	case strings.Contains(lower, "negative"):
		return -0.5, nil
	default:
		return 0.0, nil
	}
}

func (o *Orchestrator) extractEntities(ctx context.Context, text string) (types.Entities, error) {
	cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	reply, err := o.client.Complete(cctx, "Extract entities from: "+text, llm.Options{
		System:      "You are an entity extraction expert. Extract entities from the given text and return a JSON object with arrays for 'persons', 'organizations', 'locations', and 'other'. Return empty arrays if no entities found.",
		Temperature: 0.1,
		MaxTokens:   200,
	})
	if err != nil {
		return types.Entities{}, fmt.Errorf("entities call: %w", err)
	}

	raw := llm.ExtractJSON(reply)
	if raw == "" {
		return types.Entities{}, fmt.Errorf("entities reply has no JSON object")
	}
	var entities types.Entities
	if err := json.Unmarshal([]byte(raw), &entities); err != nil {
		return types.Entities{}, fmt.Errorf("entities decode: %w", err)
	}
	if entities.Persons == nil {
		entities.Persons = []string{}
	}
	if entities.Organizations == nil {
		entities.Organizations = []string{}
	}
	if entities.Locations == nil {
		entities.Locations = []string{}
	}
	if entities.Other == nil {
		entities.Other = []string{}
	}
	return entities, nil
}

func inferDepartment(org string) string {
	lower := strings.ToLower(org)
	switch {
	case strings.Contains(lower, "marketing"):
		return "Marketing"
	case strings.Contains(lower, "operations"):
		return "Operations"
	case strings.Contains(lower, "finance"):
		return "Finance"
	default:
		return "General"
	}
}

func inferRegion(location string) string {
	lower := strings.ToLower(location)
	switch {
	case strings.Contains(lower, "north america"), strings.Contains(lower, "us"):
		return "North America"
	case strings.Contains(lower, "europe"), strings.Contains(lower, "emea"):
		return "EMEA"
	case strings.Contains(lower, "asia"):
		return "Asia Pacific"
	default:
		return "Global"
	}
}

func clamp(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	if score < -1.0 {
		return -1.0
	}
	return score
}
