/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.

ERROR CATEGORIES:
  1. Row errors - bad cell values or unknown employees; recovered as skips
  2. Infrastructure errors - directory/storage failures; abort the batch
  3. Input-shape errors - empty batches, reported before row processing

USAGE:
  Callers classify with errors.Is:

    if reconcile.IsRowError(err) {
        // skip the row, keep the batch going
    }

SEE ALSO:
  - engine.go: applies this taxonomy per row
  - store/sqlite: maps constraint violations to ErrDuplicateEntry
*/
package reconcile

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidIdentifier is returned when the employee-code cell is absent,
	// blank, or not a non-negative integer.
	ErrInvalidIdentifier = errors.New("invalid employee identifier")

	// ErrInvalidDate is returned when the date cell cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidTime is returned when a required time cell cannot be parsed.
	ErrInvalidTime = errors.New("invalid time")

	// ErrNoPunchTimes is returned when the punch field is empty or all of its
	// tokens are blank.
	ErrNoPunchTimes = errors.New("no punch times")

	// ErrUnknownFormat is returned when a row matches none of the known
	// spreadsheet formats.
	ErrUnknownFormat = errors.New("unknown row format")

	// ErrEmployeeNotFound is returned when no employee carries the row's
	// mapped identifier.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrDuplicateEntry is returned by repositories when an insert collides
	// with the (employee, date) uniqueness constraint. The engine treats it
	// as "someone got there first" and retries the row as an update.
	ErrDuplicateEntry = errors.New("duplicate attendance entry")

	// ErrNoRows is returned when a batch contains zero rows.
	ErrNoRows = errors.New("no rows to reconcile")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// RowError annotates a row-level failure with its position in the batch.
type RowError struct {
	Index int // zero-based position in the submitted batch
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRowError reports whether err is recoverable at the row level. Anything
// else coming out of normalization or the injected capabilities is an
// infrastructure failure and aborts the whole batch.
func IsRowError(err error) bool {
	return errors.Is(err, ErrInvalidIdentifier) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidTime) ||
		errors.Is(err, ErrNoPunchTimes) ||
		errors.Is(err, ErrUnknownFormat) ||
		errors.Is(err, ErrEmployeeNotFound)
}
