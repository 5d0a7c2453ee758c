/*
errors.go - Centralized error types for the calculation engine

PURPOSE:
  All error classification in one place. The engine distinguishes four
  conditions and only one of them is ever an error to the caller's eyes:

  1. Absence (no previous period, no record, no project): nil values,
     folded into warnings.
  2. Malformed data (unparseable amount, corrupted payload): logged,
     value treated as zero.
  3. Timeout (per-query or overall): treated exactly like absence.
  4. Unexpected failure (store connectivity): caught at the public entry
     points and converted into a failed/fallback result.

SEE ALSO:
  - carryforward.go: Converts unexpected failures into fallback results
  - store.go: Query deadline wrapping
*/
package engine

import (
	"context"
	"errors"
)

var (
	// ErrPeriodNotFound is returned by the resolver when the requested
	// current period does not exist. Distinct from the no-previous-period
	// case, which is not an error.
	ErrPeriodNotFound = errors.New("reporting period not found")

	// ErrStoreFailure wraps unexpected store-level failures so callers can
	// distinguish them from absence.
	ErrStoreFailure = errors.New("store query failed")
)

// IsTimeout reports whether err is a query or overall deadline expiry.
// Timeouts degrade to absent data and are never surfaced as errors.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// IsAbsence reports whether err represents expected missing data.
func IsAbsence(err error) bool {
	return err == nil || errors.Is(err, ErrPeriodNotFound) || IsTimeout(err)
}
