package workflow

import (
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/iati"
	"github.com/LeighHMitchell/AIMS-sub014/models"
)

// FieldDifference is one row of a comparison report.
type FieldDifference struct {
	Field         string `json:"field"`
	LocalValue    string `json:"localValue"`
	ExternalValue string `json:"externalValue"`
	Differs       bool   `json:"differs"`
}

// CollectionDifference compares collections by element count only. Deep
// element diffing is deliberately out: the import paths are replace-wholesale
// or additive, so counts are what the user acts on.
type CollectionDifference struct {
	Field         string `json:"field"`
	LocalCount    int    `json:"localCount"`
	ExternalCount int    `json:"externalCount"`
	Differs       bool   `json:"differs"`
}

// ComparisonReport is the full field-by-field diff between the local record
// and the external snapshot, in registry order.
type ComparisonReport struct {
	ActivityId         int                       `json:"activityId"`
	ExternalIdentifier string                    `json:"externalIdentifier"`
	Fields             []FieldDifference         `json:"fields"`
	Collections        []CollectionDifference    `json:"collections"`
	Local              *models.CanonicalActivity `json:"local"`
	External           *models.CanonicalActivity `json:"external"`
	ComparedAt         time.Time                 `json:"comparedAt"`
}

// DiffCount returns how many fields and collections differ.
func (r *ComparisonReport) DiffCount() int {
	n := 0
	for _, f := range r.Fields {
		if f.Differs {
			n++
		}
	}
	for _, c := range r.Collections {
		if c.Differs {
			n++
		}
	}
	return n
}

// AnyDiffers reports whether any of the named fields differs in the report.
// Field names outside the report are ignored.
func (r *ComparisonReport) AnyDiffers(fields []string) bool {
	names := make(map[string]bool, len(fields))
	for _, f := range fields {
		names[f] = true
	}
	for _, f := range r.Fields {
		if f.Differs && names[f.Field] {
			return true
		}
	}
	for _, c := range r.Collections {
		if c.Differs && names[c.Field] {
			return true
		}
	}
	return false
}

// scalarDiffers applies null/empty equivalence: a nil date and an empty string
// both render "" and two empty renderings never differ.
func scalarDiffers(local string, external string) bool {
	if local == "" && external == "" {
		return false
	}
	return local != external
}

// BuildComparisonReport diffs two canonical records, walking the field
// registry so the registry stays the single source of the compared field set.
// Pure; storage and sync stamping happen in CompareActivity.
func BuildComparisonReport(activityId int, local *models.CanonicalActivity, external *models.CanonicalActivity, at time.Time) *ComparisonReport {
	report := &ComparisonReport{
		ActivityId:         activityId,
		ExternalIdentifier: external.Identifier,
		Local:              local,
		External:           external,
		ComparedAt:         at,
	}

	for _, fm := range iati.Registry() {
		if fm.Collection {
			lc := local.CollectionCount(fm.InternalKey)
			ec := external.CollectionCount(fm.InternalKey)
			report.Collections = append(report.Collections, CollectionDifference{
				Field:         fm.InternalKey,
				LocalCount:    lc,
				ExternalCount: ec,
				Differs:       lc != ec,
			})
			continue
		}

		lv := local.ScalarValue(fm.InternalKey)
		ev := external.ScalarValue(fm.InternalKey)
		report.Fields = append(report.Fields, FieldDifference{
			Field:         fm.InternalKey,
			LocalValue:    lv,
			ExternalValue: ev,
			Differs:       scalarDiffers(lv, ev),
		})
	}

	return report
}
