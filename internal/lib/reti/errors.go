package reti

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is wrapped into any error resulting from an entity simply not
	// existing on chain - missing box, unknown app, empty result.  Callers test
	// with errors.Is.
	ErrNotFound = errors.New("not found on chain")

	ErrCantFetchValidators = errors.New("couldn't fetch num of validators from global state of validator application")
	ErrCantFetchPoolKey    = errors.New("couldn't fetch poolkey data")
)

// ValidationError means the caller's context was incomplete before any network
// call was made - missing signing keys, zero ids, etc.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// simFailureToError classifies a simulate group failure message.  Failures from
// reads of state that simply isn't there (box/app lookups) become ErrNotFound;
// everything else surfaces as-is.
func simFailureToError(msg string) error {
	if strings.Contains(msg, "box not found") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "invalid Box reference") {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return errors.New(msg)
}
