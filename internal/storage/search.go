package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"townhall-insights-go/internal/config"
	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/metrics"
	"townhall-insights-go/internal/types"
)

// ErrStorageUnavailable marks a search collaborator failure. It is fatal to
// the enclosing request but safe to retry: upserts are idempotent by id.
var ErrStorageUnavailable = errors.New("search storage unavailable")

const apiVersion = "2023-11-01"

// SearchStore is the narrow contract over the utterance index.
type SearchStore interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, utterances []types.Utterance) error
	Query(ctx context.Context, filters types.FilterSpec, top, skip int) ([]types.Utterance, int, error)
}

// SearchClient talks to an Azure-AI-Search-compatible REST endpoint.
type SearchClient struct {
	endpoint  string
	apiKey    string
	indexName string
	hc        *http.Client
	m         *metrics.Metrics
	log       *logrus.Entry
}

func NewSearchClient(cfg *config.Config) *SearchClient {
	return &SearchClient{
		endpoint:  strings.TrimRight(cfg.SearchEndpoint, "/"),
		apiKey:    cfg.SearchAPIKey,
		indexName: cfg.SearchIndexName,
		hc:        &http.Client{Timeout: 15 * time.Second},
		m:         metrics.Default,
		log:       logger.New().WithComponent("search-storage"),
	}
}

// EnsureIndex creates or updates the utterances index schema. Safe to call
// on every ingestion.
func (c *SearchClient) EnsureIndex(ctx context.Context) error {
	schema := map[string]any{
		"name": c.indexName,
		"fields": []map[string]any{
			{"name": "id", "type": "Edm.String", "key": true, "filterable": true},
			{"name": "meeting_id", "type": "Edm.String", "filterable": true, "facetable": true},
			{"name": "meeting_date", "type": "Edm.DateTimeOffset", "filterable": true, "sortable": true},
			{"name": "speaker", "type": "Edm.String", "filterable": true, "facetable": true},
			{"name": "department", "type": "Edm.String", "filterable": true, "facetable": true},
			{"name": "region", "type": "Edm.String", "filterable": true, "facetable": true},
			{"name": "topics", "type": "Collection(Edm.String)", "searchable": true, "filterable": true, "facetable": true},
			{"name": "sentiment_score", "type": "Edm.Double", "filterable": true, "sortable": true},
			{"name": "content", "type": "Edm.String", "searchable": true},
			{"name": "start_timestamp", "type": "Edm.String", "filterable": true, "sortable": true},
			{"name": "end_timestamp", "type": "Edm.String", "filterable": true, "sortable": true},
			{"name": "duration_seconds", "type": "Edm.Double", "filterable": true, "sortable": true},
			{"name": "created_at", "type": "Edm.DateTimeOffset", "filterable": true, "sortable": true},
			{"name": "updated_at", "type": "Edm.DateTimeOffset", "filterable": true, "sortable": true},
		},
	}
	url := fmt.Sprintf("%s/indexes/%s?api-version=%s", c.endpoint, c.indexName, apiVersion)
	if err := c.doJSON(ctx, "PUT", url, schema, nil); err != nil {
		c.m.StorageErrors.WithLabelValues("ensure_index").Inc()
		return fmt.Errorf("%w: ensure index: %v", ErrStorageUnavailable, err)
	}
	return nil
}

type indexAction struct {
	Action string `json:"@search.action"`
	types.Utterance
}

// Upsert writes utterances with mergeOrUpload semantics, keyed by id.
func (c *SearchClient) Upsert(ctx context.Context, utterances []types.Utterance) error {
	if len(utterances) == 0 {
		return nil
	}
	actions := make([]indexAction, 0, len(utterances))
	for _, u := range utterances {
		actions = append(actions, indexAction{Action: "mergeOrUpload", Utterance: u})
	}
	url := fmt.Sprintf("%s/indexes/%s/docs/index?api-version=%s", c.endpoint, c.indexName, apiVersion)
	if err := c.doJSON(ctx, "POST", url, map[string]any{"value": actions}, nil); err != nil {
		c.m.StorageErrors.WithLabelValues("upsert").Inc()
		return fmt.Errorf("%w: upsert: %v", ErrStorageUnavailable, err)
	}
	c.log.WithField("count", len(utterances)).Info("stored utterances in search index")
	return nil
}

type searchRequest struct {
	Search string `json:"search,omitempty"`
	Filter string `json:"filter,omitempty"`
	Top    int    `json:"top"`
	Skip   int    `json:"skip"`
	Count  bool   `json:"count"`
}

type searchResponse struct {
	Count int               `json:"@odata.count"`
	Value []types.Utterance `json:"value"`
}

// Query retrieves utterances matching the filter predicate plus optional
// free text, with pagination.
func (c *SearchClient) Query(ctx context.Context, filters types.FilterSpec, top, skip int) ([]types.Utterance, int, error) {
	req := searchRequest{
		Search: filters.Search,
		Filter: BuildFilter(filters),
		Top:    top,
		Skip:   skip,
		Count:  true,
	}
	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", c.endpoint, c.indexName, apiVersion)
	var resp searchResponse
	if err := c.doJSON(ctx, "POST", url, req, &resp); err != nil {
		c.m.StorageErrors.WithLabelValues("query").Inc()
		return nil, 0, fmt.Errorf("%w: query: %v", ErrStorageUnavailable, err)
	}
	return resp.Value, resp.Count, nil
}

// BuildFilter turns a FilterSpec into the collaborator's predicate string.
// Each present field contributes exactly one conjunctive clause; absent
// fields contribute nothing.
func BuildFilter(f types.FilterSpec) string {
	var parts []string
	if f.FromDate != "" {
		parts = append(parts, fmt.Sprintf("meeting_date ge %s", f.FromDate))
	}
	if f.ToDate != "" {
		parts = append(parts, fmt.Sprintf("meeting_date le %s", f.ToDate))
	}
	if f.Department != "" {
		parts = append(parts, fmt.Sprintf("department eq '%s'", escapeODataString(f.Department)))
	}
	if f.Region != "" {
		parts = append(parts, fmt.Sprintf("region eq '%s'", escapeODataString(f.Region)))
	}
	if len(f.Topics) > 0 {
		clauses := make([]string, 0, len(f.Topics))
		for _, topic := range f.Topics {
			clauses = append(clauses, fmt.Sprintf("topics/any(t: t eq '%s')", escapeODataString(topic)))
		}
		parts = append(parts, "("+strings.Join(clauses, " or ")+")")
	}
	if f.SentimentMin != nil {
		parts = append(parts, fmt.Sprintf("sentiment_score ge %g", *f.SentimentMin))
	}
	if f.SentimentMax != nil {
		parts = append(parts, fmt.Sprintf("sentiment_score le %g", *f.SentimentMax))
	}
	return strings.Join(parts, " and ")
}

func escapeODataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// doJSON sends one JSON request with retry on transport and 5xx failures.
func (c *SearchClient) doJSON(ctx context.Context, method, url string, body any, target any) error {
	if c.endpoint == "" {
		return errors.New("search endpoint not configured")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 12 * time.Second
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.apiKey)

		resp, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status=%d", resp.StatusCode)
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("client error: status=%d body=%s", resp.StatusCode, string(respBody))
			return backoff.Permanent(lastErr)
		}
		if target != nil {
			if err := json.Unmarshal(respBody, target); err != nil {
				lastErr = fmt.Errorf("decode response: %w", err)
				return backoff.Permanent(lastErr)
			}
		}
		lastErr = nil
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr != nil {
			return lastErr
		}
		// Failures before the first send (e.g. an unbuildable request)
		// never touch lastErr.
		return err
	}
	return nil
}
