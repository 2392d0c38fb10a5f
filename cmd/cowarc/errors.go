// errors.go defines the error reported when a container invariant breaks.
//
// Example output:
//
//	stress worker 3: write granted on Shared cell
//
//	Suggestion: Check that Clone bumps the inner count before returning
package main

import "fmt"

// InvariantError reports a container invariant observed to be broken.
//
// Fields:
//   - Step: Where the violation was seen ("clone", "stress worker 3", ...)
//   - Message: What was observed
//   - Suggestion: Optional hint for tracking it down
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type InvariantError struct {
	Step       string // Step or worker that observed the violation
	Message    string // What went wrong
	Suggestion string // Optional suggestion (empty if none)
}

// Error implements the error interface.
//
// Format: step: message, with "Suggestion: ..." on a separate paragraph
// when present.
func (e *InvariantError) Error() string {
	result := fmt.Sprintf("%s: %s", e.Step, e.Message)
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// newInvariantError builds an InvariantError; suggestion may be empty.
func newInvariantError(step, msg, suggestion string) *InvariantError {
	return &InvariantError{
		Step:       step,
		Message:    msg,
		Suggestion: suggestion,
	}
}
