package workflow_test

import (
	"testing"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/iati"
	"github.com/LeighHMitchell/AIMS-sub014/models"
	"github.com/LeighHMitchell/AIMS-sub014/workflow"
	"github.com/shopspring/decimal"
)

func fieldRow(t *testing.T, report *workflow.ComparisonReport, field string) workflow.FieldDifference {
	t.Helper()
	for _, f := range report.Fields {
		if f.Field == field {
			return f
		}
	}
	t.Fatalf("report has no row for field %q", field)
	return workflow.FieldDifference{}
}

func collectionRow(t *testing.T, report *workflow.ComparisonReport, field string) workflow.CollectionDifference {
	t.Helper()
	for _, c := range report.Collections {
		if c.Field == field {
			return c
		}
	}
	t.Fatalf("report has no row for collection %q", field)
	return workflow.CollectionDifference{}
}

func TestBuildComparisonReportScalars(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	local := &models.CanonicalActivity{
		Identifier:       "XM-1",
		Title:            "Old title",
		Status:           models.ActivityStatusPipeline,
		PlannedStartDate: &start,
	}
	external := &models.CanonicalActivity{
		Identifier:       "XM-1",
		Title:            "New title",
		Status:           models.ActivityStatusPipeline,
		PlannedStartDate: &start,
	}

	report := workflow.BuildComparisonReport(7, local, external, time.Now())

	if report.ActivityId != 7 || report.ExternalIdentifier != "XM-1" {
		t.Fatalf("report header: %+v", report)
	}

	title := fieldRow(t, report, models.FieldTitle)
	if !title.Differs || title.LocalValue != "Old title" || title.ExternalValue != "New title" {
		t.Fatalf("title row: %+v", title)
	}
	if fieldRow(t, report, models.FieldStatus).Differs {
		t.Fatalf("equal status should not differ")
	}
	if fieldRow(t, report, models.FieldPlannedStart).Differs {
		t.Fatalf("equal dates should not differ")
	}
	if report.DiffCount() != 1 {
		t.Fatalf("expected exactly one difference, got %d", report.DiffCount())
	}
}

func TestBuildComparisonReportNullEmptyEquivalence(t *testing.T) {
	local := &models.CanonicalActivity{Identifier: "XM-1", Title: "T"}
	external := &models.CanonicalActivity{Identifier: "XM-1", Title: "T", Description: ""}

	report := workflow.BuildComparisonReport(1, local, external, time.Now())

	// Nil date on one side, unset on the other: both render "" and never differ.
	if fieldRow(t, report, models.FieldActualEnd).Differs {
		t.Fatalf("two absent dates should not differ")
	}
	if fieldRow(t, report, models.FieldDescription).Differs {
		t.Fatalf("empty string vs empty string should not differ")
	}
	if report.DiffCount() != 0 {
		t.Fatalf("expected no differences, got %d", report.DiffCount())
	}
}

func TestBuildComparisonReportAbsentVersusPresent(t *testing.T) {
	end := time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC)
	local := &models.CanonicalActivity{Identifier: "XM-1", Title: "T"}
	external := &models.CanonicalActivity{Identifier: "XM-1", Title: "T", PlannedEndDate: &end}

	report := workflow.BuildComparisonReport(1, local, external, time.Now())
	row := fieldRow(t, report, models.FieldPlannedEnd)
	if !row.Differs || row.LocalValue != "" || row.ExternalValue != "2027-12-31" {
		t.Fatalf("absent vs present date: %+v", row)
	}
}

func TestBuildComparisonReportCollectionCounts(t *testing.T) {
	june := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	july := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("250000")

	local := &models.CanonicalActivity{
		Identifier: "XM-1", Title: "T",
		Transactions: []models.CanonicalTransaction{
			{Type: "3", Date: &june, Value: amount, Currency: "USD"},
		},
	}
	external := &models.CanonicalActivity{
		Identifier: "XM-1", Title: "T",
		Transactions: []models.CanonicalTransaction{
			{Type: "3", Date: &june, Value: amount, Currency: "USD"},
			{Type: "3", Date: &july, Value: amount, Currency: "USD"},
		},
		Sectors: []models.CanonicalSector{
			{Code: "12220", Percentage: decimal.RequireFromString("100")},
		},
	}

	report := workflow.BuildComparisonReport(1, local, external, time.Now())

	txns := collectionRow(t, report, models.FieldTransactions)
	if !txns.Differs || txns.LocalCount != 1 || txns.ExternalCount != 2 {
		t.Fatalf("transactions row: %+v", txns)
	}

	sectors := collectionRow(t, report, models.FieldSectors)
	if !sectors.Differs || sectors.LocalCount != 0 || sectors.ExternalCount != 1 {
		t.Fatalf("sectors row: %+v", sectors)
	}

	orgs := collectionRow(t, report, models.FieldParticipatingOrgs)
	if orgs.Differs {
		t.Fatalf("empty org collections should not differ: %+v", orgs)
	}
}

func TestBuildComparisonReportCoversRegistry(t *testing.T) {
	local := &models.CanonicalActivity{Identifier: "XM-1", Title: "T"}
	external := &models.CanonicalActivity{Identifier: "XM-1", Title: "T"}

	report := workflow.BuildComparisonReport(1, local, external, time.Now())

	for _, fm := range iati.Registry() {
		if fm.Collection {
			collectionRow(t, report, fm.InternalKey)
			continue
		}
		fieldRow(t, report, fm.InternalKey)
	}
	if id := fieldRow(t, report, models.FieldIdentifier); id.Differs {
		t.Fatalf("equal identifiers should not differ: %+v", id)
	}
}

func TestComparisonReportAnyDiffers(t *testing.T) {
	june := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	local := &models.CanonicalActivity{Identifier: "XM-1", Title: "Old title"}
	external := &models.CanonicalActivity{
		Identifier: "XM-1", Title: "New title",
		Transactions: []models.CanonicalTransaction{
			{Type: "3", Date: &june, Value: decimal.RequireFromString("100"), Currency: "USD"},
		},
	}

	report := workflow.BuildComparisonReport(1, local, external, time.Now())

	cases := []struct {
		name   string
		fields []string
		want   bool
	}{
		{name: "differing scalar enrolled", fields: []string{models.FieldTitle}, want: true},
		{name: "differing collection enrolled", fields: []string{models.FieldTransactions}, want: true},
		{name: "only equal fields enrolled", fields: []string{models.FieldStatus, models.FieldDescription}, want: false},
		{name: "empty enrollment", fields: nil, want: false},
		{name: "unknown field ignored", fields: []string{"budget"}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := report.AnyDiffers(tc.fields); got != tc.want {
				t.Fatalf("AnyDiffers(%v) = %v, want %v", tc.fields, got, tc.want)
			}
		})
	}
}
