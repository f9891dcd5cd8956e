package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"townhall-insights-go/internal/config"
	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/metrics"
)

// BlobStore archives raw transcript bytes. Archival is best effort: callers
// log failures and move on.
type BlobStore interface {
	Put(ctx context.Context, container, key string, data []byte) error
}

// BlobClient is a thin client over an object-store REST surface.
type BlobClient struct {
	endpoint string
	apiKey   string
	hc       *http.Client
	m        *metrics.Metrics
	log      *logrus.Entry
}

func NewBlobClient(cfg *config.Config) *BlobClient {
	return &BlobClient{
		endpoint: strings.TrimRight(cfg.BlobEndpoint, "/"),
		apiKey:   cfg.BlobAPIKey,
		hc:       &http.Client{Timeout: 15 * time.Second},
		m:        metrics.Default,
		log:      logger.New().WithComponent("blob-storage"),
	}
}

// Put uploads data under container/key, creating the container first.
// Container creation is idempotent: an "already exists" conflict is fine.
func (c *BlobClient) Put(ctx context.Context, container, key string, data []byte) error {
	if c.endpoint == "" {
		return fmt.Errorf("blob endpoint not configured")
	}
	if err := c.ensureContainer(ctx, container); err != nil {
		c.m.StorageErrors.WithLabelValues("blob_container").Inc()
		return fmt.Errorf("ensure container: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", c.endpoint, container, key)
	req, err := http.NewRequestWithContext(ctx, "PUT", url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		c.m.StorageErrors.WithLabelValues("blob_put").Inc()
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.m.StorageErrors.WithLabelValues("blob_put").Inc()
		return fmt.Errorf("blob put failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	c.log.WithField("blob", container+"/"+key).Info("archived raw transcript")
	return nil
}

func (c *BlobClient) ensureContainer(ctx context.Context, container string) error {
	url := fmt.Sprintf("%s/%s?restype=container", c.endpoint, container)
	req, err := http.NewRequestWithContext(ctx, "PUT", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("container create failed: status=%d", resp.StatusCode)
	}
	return nil
}
