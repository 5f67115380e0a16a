package exchange_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/exchange"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"github.com/shopspring/decimal"
)

func TestConvertSameCurrencyShortCircuits(t *testing.T) {
	// No rate source at all: the identity path must never reach one.
	converter := exchange.NewConverter(nil)

	amount := decimal.RequireFromString("1234.56")
	conv, err := converter.Convert(context.Background(), amount, "usd", "USD", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conv.Converted.Equal(amount) {
		t.Fatalf("converted %s, want %s", conv.Converted, amount)
	}
	if !conv.Rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("rate %s, want 1", conv.Rate)
	}
	if conv.Source != "identity" {
		t.Fatalf("source %q, want identity", conv.Source)
	}
}

func TestConvertRejectsFutureDate(t *testing.T) {
	converter := exchange.NewConverter(nil)

	_, err := converter.Convert(context.Background(), decimal.NewFromInt(100), "EUR", "USD", time.Now().Add(48*time.Hour))
	if !errors.Is(err, exchange.ErrFutureDate) {
		t.Fatalf("expected ErrFutureDate, got %v", err)
	}
}

func TestHTTPRateSourceParsesRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2025-06-15" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("from") != "EUR" || r.URL.Query().Get("to") != "USD" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"amount": 1.0, "base": "EUR", "date": "2025-06-15", "rates": {"USD": 1.0842}}`))
	}))
	defer server.Close()

	t.Setenv("EXCHANGE_API_BASE_URL", server.URL)
	source := exchange.NewHTTPRateSource()

	rate, err := source.FetchRate(context.Background(), "EUR", "USD", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("1.0842")) {
		t.Fatalf("rate %s, want 1.0842", rate)
	}
}

func TestHTTPRateSourceExhaustsRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps; skipped with -short")
	}

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "provider down", http.StatusBadGateway)
	}))
	defer server.Close()

	t.Setenv("EXCHANGE_API_BASE_URL", server.URL)
	source := exchange.NewHTTPRateSource()

	_, err := source.FetchRate(context.Background(), "EUR", "USD", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	var fetchErr *utils.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Attempts != 3 {
		t.Fatalf("attempts %d, want 3", fetchErr.Attempts)
	}
	if calls != 3 {
		t.Fatalf("provider called %d times, want 3", calls)
	}
}

func TestHTTPRateSourceRejectsMissingRate(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps; skipped with -short")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates": {}}`))
	}))
	defer server.Close()

	t.Setenv("EXCHANGE_API_BASE_URL", server.URL)
	source := exchange.NewHTTPRateSource()

	_, err := source.FetchRate(context.Background(), "EUR", "XXX", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatalf("expected error for missing rate")
	}
}
