package types

import "fmt"

// RefinementViolationError reports a value that fails its declared type's
// predicate. It carries the offending value, the violated constraint, and
// a suggested in-range replacement so callers can repair the statement
// without inspecting source.
type RefinementViolationError struct {
	// Type is the refined type whose predicate failed.
	Type TypeExpr

	// Value is the offending runtime value.
	Value any

	// Constraint describes the violated bound, e.g. "150 exceeds maximum 100".
	Constraint string

	// Suggestion proposes a fix, e.g. "use a value between 0 and 100".
	Suggestion string
}

// Error implements the error interface.
func (e *RefinementViolationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("refinement violation for %s: %s (%s)", e.Type, e.Constraint, e.Suggestion)
	}
	return fmt.Sprintf("refinement violation for %s: %s", e.Type, e.Constraint)
}

func violationf(t TypeExpr, value any, suggestion string, format string, args ...any) *RefinementViolationError {
	return &RefinementViolationError{
		Type:       t,
		Value:      value,
		Constraint: fmt.Sprintf(format, args...),
		Suggestion: suggestion,
	}
}
