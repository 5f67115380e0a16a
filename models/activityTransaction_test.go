package models_test

import (
	"testing"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/models"
	"github.com/shopspring/decimal"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTransactionFingerprint(t *testing.T) {
	base := models.TransactionFingerprint("3", date("2025-06-15"), decimal.RequireFromString("250000"), "USD")

	cases := []struct {
		name     string
		typeCode string
		date     string
		value    string
		currency string
		same     bool
	}{
		{"identical", "3", "2025-06-15", "250000", "USD", true},
		{"trailing zeros do not matter", "3", "2025-06-15", "250000.00", "USD", true},
		{"currency case does not matter", "3", "2025-06-15", "250000", "usd", true},
		{"different type", "2", "2025-06-15", "250000", "USD", false},
		{"different date", "3", "2025-07-15", "250000", "USD", false},
		{"different value", "3", "2025-06-15", "250001", "USD", false},
		{"different currency", "3", "2025-06-15", "250000", "EUR", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := models.TransactionFingerprint(tc.typeCode, date(tc.date), decimal.RequireFromString(tc.value), tc.currency)
			if (got == base) != tc.same {
				t.Fatalf("fingerprint %q vs base %q: same=%v, want %v", got, base, got == base, tc.same)
			}
		})
	}
}

func TestMissingTransactionsIsAdditive(t *testing.T) {
	june := date("2025-06-15")
	july := date("2025-07-15")

	existing := []*models.ActivityTransaction{
		{Type: "3", TransactionDate: june, Value: decimal.RequireFromString("250000"), Currency: "USD"},
	}

	incoming := []models.CanonicalTransaction{
		// Already present, value spelled with trailing zeros.
		{Type: "3", Date: &june, Value: decimal.RequireFromString("250000.00"), Currency: "USD"},
		// New.
		{Type: "3", Date: &july, Value: decimal.RequireFromString("300000"), Currency: "USD"},
	}

	missing := models.MissingTransactions(existing, incoming)
	if len(missing) != 1 {
		t.Fatalf("expected 1 missing transaction, got %d", len(missing))
	}
	if !missing[0].Date.Equal(july) {
		t.Fatalf("wrong transaction selected: %+v", missing[0])
	}
}

func TestMissingTransactionsDeduplicatesWithinBatch(t *testing.T) {
	june := date("2025-06-15")
	incoming := []models.CanonicalTransaction{
		{Type: "3", Date: &june, Value: decimal.RequireFromString("100"), Currency: "USD"},
		{Type: "3", Date: &june, Value: decimal.RequireFromString("100.0"), Currency: "usd"},
	}

	missing := models.MissingTransactions(nil, incoming)
	if len(missing) != 1 {
		t.Fatalf("expected in-batch duplicate to collapse, got %d rows", len(missing))
	}
}

func TestMissingTransactionsSkipsUndatedRows(t *testing.T) {
	incoming := []models.CanonicalTransaction{
		{Type: "3", Value: decimal.RequireFromString("100"), Currency: "USD"},
	}
	if got := models.MissingTransactions(nil, incoming); len(got) != 0 {
		t.Fatalf("expected undated transaction to be skipped, got %d rows", len(got))
	}
}

func TestMissingTransactionsReimportSelectsNothing(t *testing.T) {
	june := date("2025-06-15")
	july := date("2025-07-15")
	snapshot := []models.CanonicalTransaction{
		{Type: "2", Date: &june, Value: decimal.RequireFromString("500000"), Currency: "USD"},
		{Type: "3", Date: &july, Value: decimal.RequireFromString("250000"), Currency: "USD"},
	}

	first := models.MissingTransactions(nil, snapshot)
	if len(first) != 2 {
		t.Fatalf("first import should take both, got %d", len(first))
	}

	existing := make([]*models.ActivityTransaction, 0, len(first))
	for _, c := range first {
		existing = append(existing, &models.ActivityTransaction{
			Type: c.Type, TransactionDate: *c.Date, Value: c.Value, Currency: c.Currency,
		})
	}

	second := models.MissingTransactions(existing, snapshot)
	if len(second) != 0 {
		t.Fatalf("re-import of the same snapshot should select nothing, got %d", len(second))
	}
}
