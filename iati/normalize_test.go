package iati_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/LeighHMitchell/AIMS-sub014/iati"
	"github.com/LeighHMitchell/AIMS-sub014/models"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"github.com/shopspring/decimal"
)

func pctDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("bad test payload: %v", err)
	}
	return payload
}

func TestNormalizeRejectsMissingIdentifier(t *testing.T) {
	_, err := iati.Normalize(decode(t, `{"title": "No identifier here"}`))
	var nErr *utils.NormalizationError
	if !errors.As(err, &nErr) {
		t.Fatalf("expected NormalizationError, got %v", err)
	}

	if _, err := iati.Normalize(nil); err == nil {
		t.Fatalf("expected error for nil payload")
	}
}

func TestNormalizeNarrativeShapes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{"bare string", `{"iati-identifier": "X", "title": "Plain title"}`, "Plain title"},
		{"object with narrative", `{"iati-identifier": "X", "title": {"narrative": "Wrapped title"}}`, "Wrapped title"},
		{"list takes first", `{"iati-identifier": "X", "title": {"narrative": ["First", "Second"]}}`, "First"},
		{"list of objects", `{"iati-identifier": "X", "title": [{"narrative": "Nested first"}, {"narrative": "Nested second"}]}`, "Nested first"},
		{"missing", `{"iati-identifier": "X"}`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			activity, err := iati.Normalize(decode(t, tc.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if activity.Title != tc.want {
				t.Fatalf("got %q, want %q", activity.Title, tc.want)
			}
		})
	}
}

func TestNormalizeStatusCodeShapes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    models.ActivityStatus
	}{
		{"attribute form", `{"iati-identifier": "X", "activity-status": {"@code": "2"}}`, models.ActivityStatusImplementation},
		{"bare string", `{"iati-identifier": "X", "activity-status": "4"}`, models.ActivityStatusClosed},
		{"bare number", `{"iati-identifier": "X", "activity-status": 1}`, models.ActivityStatusPipeline},
		{"unknown code stays empty", `{"iati-identifier": "X", "activity-status": "99"}`, ""},
		{"attribute wins over plain key", `{"iati-identifier": "X", "activity-status": {"@code": "6", "code": "1"}}`, models.ActivityStatusSuspended},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			activity, err := iati.Normalize(decode(t, tc.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if activity.Status != tc.want {
				t.Fatalf("got %q, want %q", activity.Status, tc.want)
			}
		})
	}
}

func TestNormalizeActivityDates(t *testing.T) {
	payload := decode(t, `{
		"iati-identifier": "X",
		"activity-date": [
			{"@type": "1", "@iso-date": "2025-01-01"},
			{"@type": "2", "@iso-date": "2025-02-15T00:00:00Z"},
			{"@type": "3", "@iso-date": "2027-12-31"},
			{"@type": "9", "@iso-date": "2030-01-01"},
			{"@type": "4", "@iso-date": "not a date"}
		]
	}`)

	activity, err := iati.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := activity.ScalarValue(models.FieldPlannedStart); got != "2025-01-01" {
		t.Fatalf("planned start: got %q", got)
	}
	if got := activity.ScalarValue(models.FieldActualStart); got != "2025-02-15" {
		t.Fatalf("actual start with time component: got %q", got)
	}
	if got := activity.ScalarValue(models.FieldPlannedEnd); got != "2027-12-31" {
		t.Fatalf("planned end: got %q", got)
	}
	if activity.ActualEndDate != nil {
		t.Fatalf("unparseable date should stay nil, got %v", activity.ActualEndDate)
	}
}

func TestNormalizeSingularElementBecomesList(t *testing.T) {
	payload := decode(t, `{
		"iati-identifier": "X",
		"sector": {"@vocabulary": "1", "@code": "12220", "@percentage": 100, "narrative": "Basic health"},
		"participating-org": {"@ref": "XM-DAC-41122", "@role": "1", "narrative": "UNICEF"},
		"transaction": {
			"transaction-type": {"@code": "3"},
			"transaction-date": {"@iso-date": "2025-06-15"},
			"value": {"$": 250000, "@currency": "USD"}
		}
	}`)

	activity, err := iati.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(activity.Sectors) != 1 {
		t.Fatalf("sectors: got %d", len(activity.Sectors))
	}
	if activity.Sectors[0].Code != "12220" || !activity.Sectors[0].Percentage.Equal(pctDecimal(t, "100")) {
		t.Fatalf("sector: %+v", activity.Sectors[0])
	}

	if len(activity.ParticipatingOrgs) != 1 {
		t.Fatalf("orgs: got %d", len(activity.ParticipatingOrgs))
	}
	if activity.ParticipatingOrgs[0].Role != models.OrgRoleFunding {
		t.Fatalf("org role: %q", activity.ParticipatingOrgs[0].Role)
	}

	if len(activity.Transactions) != 1 {
		t.Fatalf("transactions: got %d", len(activity.Transactions))
	}
	txn := activity.Transactions[0]
	if txn.Type != "3" || txn.Currency != "USD" || !txn.Value.Equal(pctDecimal(t, "250000")) {
		t.Fatalf("transaction: %+v", txn)
	}
	if txn.Date == nil || txn.Date.Format("2006-01-02") != "2025-06-15" {
		t.Fatalf("transaction date: %v", txn.Date)
	}
}

func TestNormalizeTransactionValueShapes(t *testing.T) {
	payload := decode(t, `{
		"iati-identifier": "X",
		"transaction": [
			{"transaction-type": "3", "transaction-date": "2025-01-01", "value": 1234.56, "@currency": "EUR"},
			{"transaction-type": "3", "transaction-date": "2025-01-02", "value": {"text": "99.50", "@currency": "gbp"}},
			{"transaction-type": "3", "transaction-date": "2025-01-03", "value": {"$": 500}}
		]
	}`)

	activity, err := iati.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(activity.Transactions) != 3 {
		t.Fatalf("got %d transactions", len(activity.Transactions))
	}

	if !activity.Transactions[0].Value.Equal(pctDecimal(t, "1234.56")) || activity.Transactions[0].Currency != "EUR" {
		t.Fatalf("bare number value: %+v", activity.Transactions[0])
	}
	if !activity.Transactions[1].Value.Equal(pctDecimal(t, "99.50")) || activity.Transactions[1].Currency != "GBP" {
		t.Fatalf("text value with currency attr: %+v", activity.Transactions[1])
	}
	if !activity.Transactions[2].Value.Equal(pctDecimal(t, "500")) || activity.Transactions[2].Currency != "" {
		t.Fatalf("value without currency: %+v", activity.Transactions[2])
	}
}

func TestNormalizeProviderAndReceiver(t *testing.T) {
	payload := decode(t, `{
		"iati-identifier": "X",
		"transaction": {
			"transaction-type": "2",
			"transaction-date": "2025-01-01",
			"value": 100,
			"provider-org": {"@ref": "XM-DAC-41122", "narrative": "UNICEF"},
			"receiver-org": "Ministry of Health"
		}
	}`)

	activity, err := iati.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	txn := activity.Transactions[0]
	if txn.ProviderRef != "XM-DAC-41122" || txn.ProviderName != "UNICEF" {
		t.Fatalf("provider: %+v", txn)
	}
	if txn.ReceiverRef != "" || txn.ReceiverName != "Ministry of Health" {
		t.Fatalf("receiver: %+v", txn)
	}
}
