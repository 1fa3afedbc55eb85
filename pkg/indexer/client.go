// Package indexer provides a client for the launchpad indexer status API.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/launchpad-hq/txflow/pkg/circuitbreaker"
	"github.com/launchpad-hq/txflow/pkg/logger"
	"github.com/launchpad-hq/txflow/pkg/metrics"
	"github.com/launchpad-hq/txflow/pkg/models"
)

// IsIndexedPath is the status route of the indexer API
const IsIndexedPath = "/api/create-project/is-indexed"

// entityKeys are the fields an indexed record's identifier may come back under
var entityKeys = []string{"entityId", "id", "projectId", "poolId"}

// Client represents an indexer API client
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCircuitBreaker guards queries with breaker
func WithCircuitBreaker(breaker *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = breaker
	}
}

// New creates a new indexer API client
func New(endpoint string, logger logger.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryIndexed asks the indexer whether the record created by txHash is stored yet
func (c *Client) QueryIndexed(ctx context.Context, txHash common.Hash) (models.IndexStatus, error) {
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			metrics.IndexerQueries.WithLabelValues("circuit_open").Inc()
			return models.IndexStatus{}, err
		}
	}

	status, err := c.query(ctx, txHash)
	if err != nil {
		metrics.IndexerQueries.WithLabelValues("error").Inc()
		if c.breaker != nil && ctx.Err() == nil && c.breaker.RecordFailure() {
			c.logger.Notice("Indexer circuit breaker open after repeated failures")
		}
		return models.IndexStatus{}, err
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	if status.Indexed {
		metrics.IndexerQueries.WithLabelValues("indexed").Inc()
	} else {
		metrics.IndexerQueries.WithLabelValues("pending").Inc()
	}
	return status, nil
}

func (c *Client) query(ctx context.Context, txHash common.Hash) (models.IndexStatus, error) {
	reqURL := c.endpoint + IsIndexedPath + "?txHash=" + url.QueryEscape(txHash.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.IndexStatus{}, fmt.Errorf("failed to build indexer request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.IndexStatus{}, fmt.Errorf("failed to query indexer: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	// Read the response body regardless of status code
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.IndexStatus{}, fmt.Errorf("failed to read response body: %w", err)
	}

	// the record does not exist yet
	if resp.StatusCode == http.StatusNotFound {
		return models.IndexStatus{}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return models.IndexStatus{}, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	status, err := ParseStatus(bodyBytes)
	if err != nil {
		return models.IndexStatus{}, fmt.Errorf("failed to decode indexer response: %w, body: %s", err, string(bodyBytes))
	}
	return status, nil
}

// ParseStatus decodes the indexer response. Both flat bodies and bodies wrapped in "data" are accepted;
// without an explicit "indexed" flag a record identifier alone means the record exists.
func ParseStatus(body []byte) (models.IndexStatus, error) {
	var generic map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&generic); err != nil {
		return models.IndexStatus{}, err
	}

	if data, ok := generic["data"].(map[string]interface{}); ok {
		for key, value := range generic {
			if _, exists := data[key]; !exists && key != "data" {
				data[key] = value
			}
		}
		generic = data
	}

	var status models.IndexStatus
	for _, key := range entityKeys {
		if id := stringify(generic[key]); id != "" {
			status.EntityID = id
			break
		}
	}

	flag, hasFlag := generic["indexed"].(bool)
	if !hasFlag {
		flag, hasFlag = generic["isIndexed"].(bool)
	}
	if hasFlag {
		status.Indexed = flag
	} else {
		status.Indexed = status.EntityID != ""
	}
	return status, nil
}

func stringify(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	}
	return ""
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
