package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/models"
	"github.com/shopspring/decimal"
)

// Conversion is the result of one historical currency conversion, including
// where the rate came from.
type Conversion struct {
	FromCurrency string          `json:"from"`
	ToCurrency   string          `json:"to"`
	Date         string          `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Converted    decimal.Decimal `json:"convertedAmount"`
	Rate         decimal.Decimal `json:"rate"`
	Source       string          `json:"source"`
}

// Converter resolves historical rates through a two-level cache (redis, then
// the database) before going to the external provider.
type Converter struct {
	source RateSource
	now    func() time.Time
}

func NewConverter(source RateSource) *Converter {
	return &Converter{source: source, now: time.Now}
}

func redisRateKey(from string, to string, date time.Time) string {
	return fmt.Sprintf("exchange-rate:%s:%s:%s", from, to, date.Format("2006-01-02"))
}

// Convert converts an amount between currencies at a historical date.
// Same-currency conversions short-circuit with rate 1 and no I/O of any kind.
// Future dates are rejected outright. Cached rates older than the freshness
// window are refetched; a fetch failure surfaces as a typed error, never as a
// silent default.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from string, to string, date time.Time) (*Conversion, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	date = date.Truncate(24 * time.Hour)

	if from == to {
		return &Conversion{
			FromCurrency: from,
			ToCurrency:   to,
			Date:         date.Format("2006-01-02"),
			Amount:       amount,
			Converted:    amount,
			Rate:         decimal.NewFromInt(1),
			Source:       "identity",
		}, nil
	}

	now := c.now()
	if date.After(now) {
		return nil, ErrFutureDate
	}

	rate, source, err := c.resolveRate(ctx, from, to, date, now)
	if err != nil {
		return nil, err
	}

	return &Conversion{
		FromCurrency: from,
		ToCurrency:   to,
		Date:         date.Format("2006-01-02"),
		Amount:       amount,
		Converted:    amount.Mul(rate).Round(2),
		Rate:         rate,
		Source:       source,
	}, nil
}

func (c *Converter) resolveRate(ctx context.Context, from string, to string, date time.Time, now time.Time) (decimal.Decimal, string, error) {
	logger := config.GetLogger()

	// Memory cache first.
	var cached models.ExchangeRateCache
	if hit, err := config.GetRedisObject(redisRateKey(from, to, date), &cached); err == nil && hit && cached.Fresh(now) {
		return cached.Rate, "cache", nil
	}

	// Then the database cache; stale entries fall through to a refetch.
	entry, err := models.GetCachedRate(ctx, from, to, date)
	if err != nil {
		return decimal.Zero, "", err
	}
	if entry != nil && entry.Fresh(now) {
		if err := config.SetRedisObject(redisRateKey(from, to, date), entry, models.RateCacheFreshness); err != nil {
			config.LogError(logger, moduleName, "resolveRate", "Failed to prime redis rate cache", nil, err)
		}
		return entry.Rate, "cache", nil
	}

	rate, err := c.source.FetchRate(ctx, from, to, date)
	if err != nil {
		return decimal.Zero, "", err
	}

	fetched := &models.ExchangeRateCache{
		FromCurrency: from,
		ToCurrency:   to,
		RateDate:     date,
		Rate:         rate,
		Source:       "api",
		FetchedAt:    now,
	}
	if err := models.UpsertExchangeRate(ctx, fetched); err != nil {
		// The conversion itself succeeded; a cache write failure only costs a
		// future refetch.
		config.LogError(logger, moduleName, "resolveRate", "Failed to cache fetched rate", map[string]string{
			"from": from, "to": to, "date": date.Format("2006-01-02"),
		}, err)
	}
	if err := config.SetRedisObject(redisRateKey(from, to, date), fetched, models.RateCacheFreshness); err != nil {
		config.LogError(logger, moduleName, "resolveRate", "Failed to prime redis rate cache", nil, err)
	}

	return rate, "fetch", nil
}

// ConvertToUSD is the import engine's best-effort path for transaction value
// enrichment.
func (c *Converter) ConvertToUSD(ctx context.Context, amount decimal.Decimal, currency string, date time.Time) (*Conversion, error) {
	return c.Convert(ctx, amount, currency, "USD", date)
}
