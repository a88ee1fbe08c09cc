package export

import "strings"

// Class buckets an export failure for operator triage. Classification only
// decides retry eligibility and the label on the report; no recovery strategy
// differs beyond retry-vs-not.
type Class string

const (
	ClassTimeout          Class = "timeout"
	ClassAccessDenied     Class = "access_denied"
	ClassFileLocked       Class = "file_locked"
	ClassMemoryError      Class = "memory_error"
	ClassRevitAPIError    Class = "revit_api_error"
	ClassValidationFailed Class = "validation_failed"
	ClassNoPrintSet       Class = "no_printset"
	ClassNoSheets         Class = "no_sheets"
)

// Classify maps an error's message to a Class by substring matching. Anything
// unrecognized counts as a host API error.
func Classify(err error) Class {
	if err == nil {
		return ClassRevitAPIError
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return ClassTimeout
	case strings.Contains(msg, "access denied") || strings.Contains(msg, "permission"):
		return ClassAccessDenied
	case strings.Contains(msg, "file is locked") || strings.Contains(msg, "being used by another"):
		return ClassFileLocked
	case strings.Contains(msg, "out of memory") || strings.Contains(msg, "outofmemory"):
		return ClassMemoryError
	default:
		return ClassRevitAPIError
	}
}

// Transient reports whether a failure of this class is worth retrying.
func (c Class) Transient() bool {
	return c == ClassFileLocked || c == ClassMemoryError
}
