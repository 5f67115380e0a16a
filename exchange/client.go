package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"github.com/shopspring/decimal"
)

const (
	moduleName       = "exchange"
	maxFetchAttempts = 3
)

// ErrFutureDate rejects conversion requests for dates that have not happened.
var ErrFutureDate = errors.New("cannot convert for a future date")

// RateSource fetches one historical rate from an external provider.
type RateSource interface {
	FetchRate(ctx context.Context, from string, to string, date time.Time) (decimal.Decimal, error)
}

// HTTPRateSource talks to a frankfurter-style historical rates API. Each call
// is retried with exponential backoff before a FetchError is surfaced.
type HTTPRateSource struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPRateSource() *HTTPRateSource {
	baseURL := os.Getenv("EXCHANGE_API_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.frankfurter.app"
	}
	return &HTTPRateSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (s *HTTPRateSource) FetchRate(ctx context.Context, from string, to string, date time.Time) (decimal.Decimal, error) {
	logger := config.GetLogger()

	var lastErr error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		if attempt > 0 {
			// 2s, 4s between attempts.
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return decimal.Zero, &utils.FetchError{Source: "exchange", Attempts: attempt, Err: ctx.Err()}
			}
		}

		rate, err := s.fetchOnce(ctx, from, to, date)
		if err == nil {
			return rate, nil
		}
		lastErr = err
		config.LogError(logger, moduleName, "FetchRate", "Rate fetch attempt failed", map[string]interface{}{
			"from":    from,
			"to":      to,
			"date":    date.Format("2006-01-02"),
			"attempt": attempt + 1,
		}, err)
	}

	return decimal.Zero, &utils.FetchError{Source: "exchange", Attempts: maxFetchAttempts, Err: lastErr}
}

type rateResponse struct {
	Rates map[string]json.Number `json:"rates"`
}

func (s *HTTPRateSource) fetchOnce(ctx context.Context, from string, to string, date time.Time) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/%s?from=%s&to=%s", s.baseURL, date.Format("2006-01-02"), from, to)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, err
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed rateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("rate provider returned invalid JSON: %w", err)
	}
	raw, ok := parsed.Rates[strings.ToUpper(to)]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate provider response has no rate for %s", to)
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate provider returned unparseable rate %q: %w", raw.String(), err)
	}
	if rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("rate provider returned non-positive rate %s", rate)
	}
	return rate, nil
}

// demoRateSource returns a fixed plausible rate so conversions work offline.
type demoRateSource struct{}

func (d *demoRateSource) FetchRate(ctx context.Context, from string, to string, date time.Time) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return decimal.NewFromInt(1), nil
	}
	return decimal.NewFromFloat(0.92), nil
}

// NewRateSource returns the demo source when the demo flag is set, otherwise
// the live provider.
func NewRateSource() RateSource {
	if config.IATIDemoMode() {
		return &demoRateSource{}
	}
	return NewHTTPRateSource()
}
