package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"townhall-insights-go/internal/config"
	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/metrics"
)

// Client is the narrow contract the rest of the service consumes.
// Responses come back as raw text; call sites decide whether they expect a
// bare number, a classification phrase, or JSON.
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Options bound a single completion call.
type Options struct {
	System      string
	Temperature float64
	MaxTokens   int
}

type httpClient struct {
	gatewayURL    string
	embeddingsURL string
	apiKey        string
	model         string
	embedModel    string
	hc            *http.Client
	m             *metrics.Metrics
}

// New builds the gateway-backed client. With UseMockLLM set it returns a
// deterministic offline client instead.
func New(cfg *config.Config) Client {
	if cfg.UseMockLLM {
		return NewMock()
	}
	return &httpClient{
		gatewayURL:    cfg.LLMGatewayURL,
		embeddingsURL: cfg.LLMEmbeddingsURL,
		apiKey:        cfg.LLMAPIKey,
		model:         cfg.LLMModel,
		embedModel:    cfg.LLMEmbeddingModel,
		hc:            &http.Client{Timeout: 25 * time.Second},
		m:             metrics.Default,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

func (c *httpClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	if c.gatewayURL == "" || c.apiKey == "" {
		return "", fmt.Errorf("llm gateway not configured")
	}

	log := logger.New().WithComponent("llm-client")

	msgs := []chatMessage{}
	if opts.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: opts.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})
	data, _ := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})

	started := time.Now()
	defer func() {
		c.m.LLMCallDuration.WithLabelValues("complete").Observe(time.Since(started).Seconds())
	}()

	var content string
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", c.gatewayURL, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			lastErr = fmt.Errorf("llm client error: status=%d", resp.StatusCode)
			return backoff.Permanent(lastErr)
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("llm server error: status=%d", resp.StatusCode)
			return lastErr
		}

		content = contentFromChoices(body)
		if content == "" {
			lastErr = fmt.Errorf("no content in llm response")
			return lastErr
		}
		lastErr = nil
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 45 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("llm completion failed: %w", lastErr)
	}
	return content, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (c *httpClient) Embed(ctx context.Context, text string) ([]float64, error) {
	endpoint := c.embeddingsURL
	if endpoint == "" {
		return nil, fmt.Errorf("llm embeddings not configured")
	}

	data, _ := json.Marshal(embedRequest{Model: c.embedModel, Input: text})

	started := time.Now()
	defer func() {
		c.m.LLMCallDuration.WithLabelValues("embed").Observe(time.Since(started).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embeddings error: status=%d", resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embeddings decode: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embeddings response empty")
	}
	return parsed.Data[0].Embedding, nil
}

// contentFromChoices reads openai-style choices[0].message.content.
func contentFromChoices(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	c0, _ := choices[0].(map[string]any)
	if c0 == nil {
		return ""
	}
	msg, _ := c0["message"].(map[string]any)
	if msg == nil {
		return ""
	}
	content, _ := msg["content"].(string)
	return strings.TrimSpace(content)
}

// ExtractJSON finds the first balanced JSON object in a string and returns
// it. Markdown fences are stripped first; LLMs wrap JSON in them constantly.
func ExtractJSON(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, fence := range []string{"```json", "```yaml", "```text", "```", "`json", "`"} {
		s = strings.ReplaceAll(s, fence, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}
