package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig indicates invalid evaluator configuration.
var ErrInvalidConfig = errors.New("invalid evaluator configuration")

// RuleError reports a structurally invalid rule definition.
type RuleError struct {
	RuleID   string
	Problems []string
	Cause    error
}

// Error returns the error message.
func (e *RuleError) Error() string {
	id := e.RuleID
	if id == "" {
		id = "<unnamed>"
	}
	msg := fmt.Sprintf("rule %s: %s", id, strings.Join(e.Problems, "; "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuleError) Unwrap() error {
	return e.Cause
}

// MatchError records a per-record matcher failure. Matchers never return it to the
// caller; it is logged and counted, and the record is skipped.
type MatchError struct {
	RuleID      string
	RecordIndex int
	Cause       error
}

// Error returns the error message.
func (e *MatchError) Error() string {
	return fmt.Sprintf("rule %s record %d: %v", e.RuleID, e.RecordIndex, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *MatchError) Unwrap() error {
	return e.Cause
}
