package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrImportInProgress is returned when the per-activity import lock cannot be
// obtained within the bound; the caller should retry, not queue.
var ErrImportInProgress = errors.New("import already in progress for this activity")

// ErrUnknownField is wrapped with the offending field name at the import boundary.
var ErrUnknownField = errors.New("unknown field name")

// NormalizationError means the external payload had no extractable identifier.
// Fatal for that compare/import call; never retried automatically.
type NormalizationError struct {
	Reason string
}

func (e *NormalizationError) Error() string {
	return "normalization failed: " + e.Reason
}

// PayloadValidationError lists every required field the external payload left
// empty, so one round-trip surfaces all of them.
type PayloadValidationError struct {
	MissingRequiredFields []string
}

func (e *PayloadValidationError) Error() string {
	return fmt.Sprintf("payload validation failed: missing required fields %v", e.MissingRequiredFields)
}

// AllocationValidationError aborts the sector step of an import entirely.
type AllocationValidationError struct {
	Problems []string
}

func (e *AllocationValidationError) Error() string {
	return fmt.Sprintf("allocation validation failed: %v", e.Problems)
}

// ResolutionError means an organization could neither be resolved nor created.
type ResolutionError struct {
	Ref  string
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve organization (ref=%q name=%q): %v", e.Ref, e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// FetchError is surfaced after bounded retries against an external source are
// exhausted. It is never masked as a default value.
type FetchError struct {
	Source   string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed after %d attempts: %v", e.Source, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
