package iati

import (
	"fmt"

	"github.com/LeighHMitchell/AIMS-sub014/models"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
)

// FieldMapping declares how one internal field corresponds to the external
// payload. Transform converts the canonical external value into the internal
// string representation; Reverse goes back. Both are pure.
type FieldMapping struct {
	InternalKey string
	ExternalKey string
	Required    bool
	Collection  bool
	Description string
	Transform   func(value string) string
	Reverse     func(value string) string
}

func identity(value string) string { return value }

func statusCodeToEnum(value string) string {
	return string(models.ParseActivityStatusCode(value))
}

func statusEnumToCode(value string) string {
	return models.ActivityStatus(value).StatusCode()
}

// registry is the single declarative source of field correspondence, in
// display order. Adding a field here is all the differencer and the import
// boundary need.
var registry = []FieldMapping{
	{InternalKey: models.FieldIdentifier, ExternalKey: "iati-identifier", Required: true,
		Description: "Globally unique activity identifier", Transform: identity, Reverse: identity},
	{InternalKey: models.FieldTitle, ExternalKey: "title", Required: true,
		Description: "Activity title", Transform: identity, Reverse: identity},
	{InternalKey: models.FieldDescription, ExternalKey: "description",
		Description: "Activity description", Transform: identity, Reverse: identity},
	{InternalKey: models.FieldStatus, ExternalKey: "activity-status",
		Description: "Lifecycle status", Transform: statusCodeToEnum, Reverse: statusEnumToCode},
	{InternalKey: models.FieldPlannedStart, ExternalKey: "activity-date-start-planned",
		Description: "Planned start date", Transform: identity, Reverse: identity},
	{InternalKey: models.FieldActualStart, ExternalKey: "activity-date-start-actual",
		Description: "Actual start date", Transform: identity, Reverse: identity},
	{InternalKey: models.FieldPlannedEnd, ExternalKey: "activity-date-end-planned",
		Description: "Planned end date", Transform: identity, Reverse: identity},
	{InternalKey: models.FieldActualEnd, ExternalKey: "activity-date-end-actual",
		Description: "Actual end date", Transform: identity, Reverse: identity},
	{InternalKey: models.FieldDefaultAidType, ExternalKey: "default-aid-type",
		Description: "Default aid type code", Transform: identity, Reverse: identity},
	{InternalKey: models.FieldDefaultFinance, ExternalKey: "default-finance-type",
		Description: "Default finance type code", Transform: identity, Reverse: identity},
	{InternalKey: models.FieldDefaultFlowType, ExternalKey: "default-flow-type",
		Description: "Default flow type code", Transform: identity, Reverse: identity},
	{InternalKey: models.FieldDefaultTiedStatus, ExternalKey: "default-tied-status",
		Description: "Default tied status code", Transform: identity, Reverse: identity},
	{InternalKey: models.FieldCollaborationType, ExternalKey: "collaboration-type",
		Description: "Collaboration type code", Transform: identity, Reverse: identity},

	{InternalKey: models.FieldSectors, ExternalKey: "sector", Collection: true,
		Description: "Sector allocation lines"},
	{InternalKey: models.FieldParticipatingOrgs, ExternalKey: "participating-org", Collection: true,
		Description: "Participating organizations with roles"},
	{InternalKey: models.FieldTransactions, ExternalKey: "transaction", Collection: true,
		Description: "Financial transactions"},
}

// Registry returns the mappings in display order.
func Registry() []FieldMapping {
	out := make([]FieldMapping, len(registry))
	copy(out, registry)
	return out
}

var knownFields = func() map[string]bool {
	m := make(map[string]bool, len(registry))
	for _, fm := range registry {
		m[fm.InternalKey] = true
	}
	return m
}()

// KnownField reports whether the internal field name exists in the registry.
func KnownField(name string) bool {
	return knownFields[name]
}

// ValidateFieldSelection rejects a selection containing any field the registry
// does not know, before any lock or transaction is taken.
func ValidateFieldSelection(fields []string) error {
	for _, name := range fields {
		if !KnownField(name) {
			return fmt.Errorf("%w: %q", utils.ErrUnknownField, name)
		}
	}
	return nil
}

// ValidatePayload checks the canonical form for the required fields. All
// missing fields are reported together, not just the first one found.
func ValidatePayload(activity *models.CanonicalActivity) error {
	var missing []string
	for _, fm := range registry {
		if !fm.Required {
			continue
		}
		if activity.ScalarValue(fm.InternalKey) == "" {
			missing = append(missing, fm.InternalKey)
		}
	}
	if len(missing) > 0 {
		return &utils.PayloadValidationError{MissingRequiredFields: missing}
	}
	return nil
}

// MapExternalToInternal renders the scalar fields of the canonical form as a
// map keyed by internal field name, transforms applied. Collections are not
// included; they move through their own paths.
func MapExternalToInternal(activity *models.CanonicalActivity) map[string]string {
	out := make(map[string]string)
	for _, fm := range registry {
		if fm.Collection {
			continue
		}
		out[fm.InternalKey] = activity.ScalarValue(fm.InternalKey)
	}
	return out
}

// MapInternalToExternal renders internal scalar values back into external
// representation, keyed by external key. Reverse transforms applied.
func MapInternalToExternal(values map[string]string) map[string]string {
	out := make(map[string]string)
	for _, fm := range registry {
		if fm.Collection {
			continue
		}
		value, ok := values[fm.InternalKey]
		if !ok {
			continue
		}
		if fm.Reverse != nil {
			value = fm.Reverse(value)
		}
		out[fm.ExternalKey] = value
	}
	return out
}
