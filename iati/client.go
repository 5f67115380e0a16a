package iati

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
)

const (
	moduleName       = "iati"
	maxFetchAttempts = 3
)

// Fetcher retrieves the raw external payload for one activity identifier.
type Fetcher interface {
	FetchActivity(ctx context.Context, identifier string) (map[string]interface{}, error)
}

// Client talks to the external registry API. Requests are rate limited
// process-wide and retried with exponential backoff before a FetchError is
// surfaced.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    <-chan time.Time
}

func NewClient() *Client {
	interval := 500 * time.Millisecond
	if ms, err := strconv.Atoi(os.Getenv("IATI_RATE_LIMIT_MS")); err == nil && ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}
	return &Client{
		baseURL:    os.Getenv("IATI_API_BASE_URL"),
		apiKey:     os.Getenv("IATI_API_KEY"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    time.Tick(interval),
	}
}

// NewFetcher returns the demo fixture source when the demo flag is set,
// otherwise the live client.
func NewFetcher() Fetcher {
	if config.IATIDemoMode() {
		return &demoFetcher{}
	}
	return NewClient()
}

func (c *Client) FetchActivity(ctx context.Context, identifier string) (map[string]interface{}, error) {
	logger := config.GetLogger()

	var lastErr error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		if attempt > 0 {
			// 2s, 4s between attempts.
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, &utils.FetchError{Source: "iati", Attempts: attempt, Err: ctx.Err()}
			}
		}

		select {
		case <-c.limiter:
		case <-ctx.Done():
			return nil, &utils.FetchError{Source: "iati", Attempts: attempt, Err: ctx.Err()}
		}

		payload, err := c.fetchOnce(ctx, identifier)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		config.LogError(logger, moduleName, "FetchActivity", "Fetch attempt failed", map[string]interface{}{
			"identifier": identifier,
			"attempt":    attempt + 1,
		}, err)
	}

	return nil, &utils.FetchError{Source: "iati", Attempts: maxFetchAttempts, Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, identifier string) (map[string]interface{}, error) {
	endpoint := fmt.Sprintf("%s/activities/%s", c.baseURL, url.PathEscape(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("registry returned invalid JSON: %w", err)
	}
	return payload, nil
}

// demoFetcher serves a fabricated but realistic payload so the compare and
// import flows can be exercised without registry access.
type demoFetcher struct{}

func (d *demoFetcher) FetchActivity(ctx context.Context, identifier string) (map[string]interface{}, error) {
	fixture := fmt.Sprintf(`{
		"iati-identifier": %q,
		"title": {"narrative": "Rural Health Systems Strengthening"},
		"description": {"narrative": "Supports township health departments with equipment, training and supervision."},
		"activity-status": {"@code": "2"},
		"collaboration-type": "1",
		"default-aid-type": "C01",
		"default-finance-type": "110",
		"default-flow-type": "10",
		"default-tied-status": "5",
		"activity-date": [
			{"@type": "1", "@iso-date": "2025-01-01"},
			{"@type": "2", "@iso-date": "2025-02-15"},
			{"@type": "3", "@iso-date": "2027-12-31"}
		],
		"sector": [
			{"@vocabulary": "1", "@code": "12220", "@percentage": 60, "narrative": "Basic health care"},
			{"@vocabulary": "1", "@code": "12281", "@percentage": 40, "narrative": "Health personnel development"}
		],
		"participating-org": [
			{"@ref": "XM-DAC-41122", "@role": "1", "@type": "40", "narrative": "UNICEF"},
			{"@ref": "MM-GOV-01", "@role": "4", "@type": "10", "narrative": "Ministry of Health and Sports"}
		],
		"transaction": [
			{
				"transaction-type": {"@code": "2"},
				"transaction-date": {"@iso-date": "2025-02-01"},
				"value": {"$": 500000, "@currency": "USD"},
				"provider-org": {"@ref": "XM-DAC-41122", "narrative": "UNICEF"}
			},
			{
				"transaction-type": {"@code": "3"},
				"transaction-date": {"@iso-date": "2025-06-15"},
				"value": {"$": 250000, "@currency": "USD"},
				"receiver-org": {"@ref": "MM-GOV-01", "narrative": "Ministry of Health and Sports"}
			}
		]
	}`, identifier)

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(fixture), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
