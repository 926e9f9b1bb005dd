package xref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marketscout/backend/pkg/circuitbreaker"
	"github.com/marketscout/backend/pkg/errs"
	"github.com/marketscout/backend/pkg/logger"
)

// Result is one cross-reference search hit used by the verifier to
// corroborate or flag an observation.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type Client struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

func NewClient(baseURL, apiKey string, maxResults int, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New("xref-search", circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			Logger:           log,
		}),
	}
}

// Lookup searches for mentions of a name. Failures come back as
// Upstream errors; the caller degrades to worst-case scoring instead
// of failing ingestion.
func (c *Client) Lookup(ctx context.Context, name string) ([]Result, error) {
	var results []Result

	err := c.breaker.Execute(ctx, func() error {
		var err error
		results, err = c.search(ctx, name)
		return err
	})
	if err != nil {
		return nil, errs.Upstream("cross-reference search unavailable", err)
	}

	logger.Debug("Cross-reference lookup completed",
		zap.String("name", name),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func (c *Client) search(ctx context.Context, name string) ([]Result, error) {
	params := url.Values{}
	params.Add("q", name)
	params.Add("num", fmt.Sprintf("%d", c.maxResults))
	if c.apiKey != "" {
		params.Add("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/search?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var searchResp struct {
		Results []Result `json:"results"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return searchResp.Results, nil
}
