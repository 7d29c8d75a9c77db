/*
Package reconcile provides the core attendance reconciliation engine.

PURPOSE:
  This package turns loosely-structured spreadsheet rows into a per-employee,
  per-day attendance ledger. It normalizes heterogeneous date/time
  representations, resolves rows to known employees through an injected
  directory, and upserts attendance entries against the (employee, date)
  uniqueness constraint while producing per-batch statistics and a detailed
  per-row outcome report.

KEY CONCEPTS IN THIS FILE (types.go):
  - RawRow: one spreadsheet row as a column-label -> cell-value mapping
  - CanonicalRecord: the normalized, validated form of one row
  - Date / TimeOfDay: calendar date and wall-clock time, no timezone math
  - Employee: directory record owned outside this package (read-only here)
  - Entry: the persisted attendance ledger row
  - Outcome / Stats / Result: per-row and per-batch reporting

DESIGN PRINCIPLES:
  1. One-directional flow: raw row -> canonical record -> entry -> outcome
  2. Precision: decimal.Decimal for worked hours, never float arithmetic
  3. Row failures never abort a batch; only infrastructure failures do
  4. Stats are folded through an explicit value accumulator, not shared state

SEE ALSO:
  - format.go: row formats and field parsing
  - engine.go: batch processing and upsert semantics
  - errors.go: error taxonomy
*/
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW ROW - One spreadsheet row, untyped
// =============================================================================

// RawRow maps a column label to its raw cell value. Values are strings for
// text cells and float64 for numeric cells; absent cells have no key.
type RawRow map[string]any

// =============================================================================
// DATE - Calendar date (no time-of-day, no timezone)
// =============================================================================

// Date is a calendar date. The embedded time is always UTC midnight.
type Date struct {
	Time time.Time
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }
func (d Date) IsZero() bool          { return d.Time.IsZero() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// =============================================================================
// TIME OF DAY - Wall-clock time detached from any date
// =============================================================================

// TimeOfDay is a wall-clock time. The calendar date a punch was parsed from
// is discarded; only the clock reading matters for attendance.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// Seconds returns the offset from midnight in seconds.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// =============================================================================
// EMPLOYEE - Directory record (externally owned, read-only here)
// =============================================================================

// Employee is a directory record. EmployeeID is the internal key the ledger
// references; MappedID is the code spreadsheets use for the same person and
// may be absent for employees that never appear in uploads.
type Employee struct {
	ID         int64
	EmployeeID string
	FirstName  string
	MiddleName string
	LastName   string
	MappedID   *int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FullName joins first, optional middle, and last name with single spaces.
func (e Employee) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.FirstName, e.MiddleName, e.LastName} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// =============================================================================
// CANONICAL RECORD - Normalized form of one row
// =============================================================================

// CanonicalRecord is the validated representation of one spreadsheet row.
// CheckIn/CheckOut are nil when the source row carried no usable value.
// TotalHours is invalid (absent) unless both punches are present; it may be
// negative when check-out precedes check-in (overnight rows are stored as
// the source reports them, without day-rollover correction).
type CanonicalRecord struct {
	MappedID   int
	Date       Date
	CheckIn    *TimeOfDay
	CheckOut   *TimeOfDay
	TotalHours decimal.NullDecimal
}

// =============================================================================
// ENTRY - Persisted attendance ledger row
// =============================================================================

// Entry is one attendance ledger row. At most one entry exists per
// (EmployeeID, Date) pair; that pair never changes once written.
type Entry struct {
	ID         int64
	EmployeeID string
	Date       Date
	CheckIn    *TimeOfDay
	CheckOut   *TimeOfDay
	TotalHours decimal.NullDecimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// BATCH REPORTING
// =============================================================================

// Action records what the upsert did for a row.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Outcome is the per-row result for every row that was not skipped.
type Outcome struct {
	MappedID   int
	EmployeeID string
	Name       string
	Date       Date
	CheckIn    *TimeOfDay
	CheckOut   *TimeOfDay
	TotalHours decimal.NullDecimal
	Action     Action
}

// Stats counts row outcomes for one batch. Values are immutable; Apply and
// Skip return a new accumulator.
type Stats struct {
	Created int
	Updated int
	Skipped int
}

// Apply returns the stats with the given action counted.
func (s Stats) Apply(a Action) Stats {
	switch a {
	case ActionCreated:
		s.Created++
	case ActionUpdated:
		s.Updated++
	}
	return s
}

// Skip returns the stats with one more skipped row.
func (s Stats) Skip() Stats {
	s.Skipped++
	return s
}

// Total returns the number of rows accounted for.
func (s Stats) Total() int { return s.Created + s.Updated + s.Skipped }

// Result is the outcome of reconciling one batch. len(Records) always equals
// Stats.Created + Stats.Updated, and Stats.Total() equals the submitted row
// count.
type Result struct {
	Stats   Stats
	Records []Outcome
}
