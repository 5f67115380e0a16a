package models

import (
	"context"
	"errors"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateCacheFreshness is how long a cached exchange rate entry stays usable
// before the converter refetches it.
const RateCacheFreshness = 7 * 24 * time.Hour

// ExchangeRateCache stores one historical rate per (from, to, date). Refetches
// of the same key overwrite in place rather than accumulating rows.
type ExchangeRateCache struct {
	ID           int             `gorm:"primary_key" json:"id"`
	FromCurrency string          `gorm:"uniqueIndex:idx_rate_key,priority:1;size:3;not null" json:"from_currency"`
	ToCurrency   string          `gorm:"uniqueIndex:idx_rate_key,priority:2;size:3;not null" json:"to_currency"`
	RateDate     time.Time       `gorm:"uniqueIndex:idx_rate_key,priority:3;type:date;not null" json:"rate_date"`
	Rate         decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"rate"`
	Source       string          `gorm:"size:50" json:"source"`
	FetchedAt    time.Time       `json:"fetched_at"`
}

func (e *ExchangeRateCache) Fresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) <= RateCacheFreshness
}

// UpsertExchangeRate writes the rate for the key, replacing any existing row.
func UpsertExchangeRate(ctx context.Context, entry *ExchangeRateCache) error {
	db := config.GetDB()
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "from_currency"}, {Name: "to_currency"}, {Name: "rate_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "source", "fetched_at"}),
	}).Create(entry).Error
}

func GetCachedRate(ctx context.Context, from string, to string, date time.Time) (*ExchangeRateCache, error) {
	db := config.GetDB()
	var entry ExchangeRateCache
	err := db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ? AND rate_date = ?", from, to, date.Format("2006-01-02")).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
