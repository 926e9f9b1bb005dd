package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/marketscout/backend/pkg/errs"
	"github.com/marketscout/backend/pkg/logger"
	"github.com/marketscout/backend/pkg/retry"
)

// RawObservation is what a scan source hands back before verification.
// Contact and profile fields feed the verifier's completeness scoring.
type RawObservation struct {
	Type           string                 `json:"type"`
	Source         string                 `json:"source"`
	Name           string                 `json:"name"`
	Content        string                 `json:"content"`
	Phone          string                 `json:"phone"`
	Email          string                 `json:"email"`
	Website        string                 `json:"website"`
	Location       string                 `json:"location"`
	StructuredData map[string]interface{} `json:"structured_data"`
	ObservedAt     time.Time              `json:"observed_at"`
	ConfidenceHint float64                `json:"confidence_hint"`
}

// Client talks to the raw scan source. Fetching mechanics live behind
// this boundary; the core never touches the web directly.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(baseURL, apiKey string, timeout time.Duration, requestsPerMin int) *Client {
	if requestsPerMin <= 0 {
		requestsPerMin = 30
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMin)), requestsPerMin),
	}
}

// Scan runs one scan of the given type against the named sources and
// returns normalized observations. Failures surface as Upstream errors
// so ingestion can degrade instead of aborting.
func (c *Client) Scan(ctx context.Context, tenantID, scanType string, sourceIDs []string) ([]RawObservation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	logger.Info("Running scan",
		zap.String("tenant_id", tenantID),
		zap.String("scan_type", scanType),
		zap.Int("sources", len(sourceIDs)),
	)

	observations, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() ([]RawObservation, error) {
		return c.fetch(ctx, tenantID, scanType, sourceIDs)
	})
	if err != nil {
		return nil, errs.Upstream("scan source unreachable", err)
	}

	for i := range observations {
		observations[i].Content = NormalizeContent(observations[i].Content)
		if observations[i].ObservedAt.IsZero() {
			observations[i].ObservedAt = time.Now().UTC()
		}
	}

	logger.Info("Scan completed",
		zap.String("tenant_id", tenantID),
		zap.Int("observations", len(observations)),
	)
	return observations, nil
}

func (c *Client) fetch(ctx context.Context, tenantID, scanType string, sourceIDs []string) ([]RawObservation, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"tenant_id":  tenantID,
		"scan_type":  scanType,
		"source_ids": sourceIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scan", strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scan source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan response: %w", err)
	}

	var scanResp struct {
		Observations []RawObservation `json:"observations"`
	}
	if err := json.Unmarshal(body, &scanResp); err != nil {
		return nil, fmt.Errorf("failed to parse scan response: %w", err)
	}

	return scanResp.Observations, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeContent strips markup the source may have leaked through and
// collapses whitespace so downstream lexical matching sees plain text.
func NormalizeContent(content string) string {
	if strings.Contains(content, "<") && strings.Contains(content, ">") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err == nil {
			doc.Find("script, style, nav, footer, header, aside").Remove()
			content = doc.Text()
		}
	}

	content = whitespaceRe.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}
