/*
format.go - Row formats and field parsing

PURPOSE:
  Converts one RawRow into a CanonicalRecord. Attendance exports come in two
  known shapes, and each is modeled as a named format whose Normalize is a
  pure RawRow -> CanonicalRecord-or-error function:

  FormatFlat:  mapped_id | Date | Check In | Check Out
               One punch pair per row, already split into columns.

  FormatPunch: Personnel ID | Record Date | Punch Time
               Punch Time packs a whole day's punches into one
               semicolon-delimited cell ("08:00; 12:00; 13:00; 17:00").
               The first token is check-in, the last is check-out.

COLUMN MATCHING:
  Labels are matched exactly (case- and space-sensitive) against what the
  source systems emit. Detection happens per row, so mixed-format batches
  normalize correctly; the two formats have disjoint headers.

LENIENCY:
  Mirrors the upstream exports' behavior:
  - Flat rows with an unparseable Check In/Check Out keep the row and drop
    the value.
  - Punch rows require a parseable first punch; an unparseable last punch
    only drops the check-out.

SEE ALSO:
  - engine.go: consumes NormalizeRow per batch row
  - types.go: CanonicalRecord, Date, TimeOfDay
*/
package reconcile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Column labels as the source systems emit them.
const (
	colMappedID    = "mapped_id"
	colDate        = "Date"
	colCheckIn     = "Check In"
	colCheckOut    = "Check Out"
	colPersonnelID = "Personnel ID"
	colRecordDate  = "Record Date"
	colPunchTime   = "Punch Time"
)

// =============================================================================
// FORMAT - Closed set of known row shapes
// =============================================================================

// Format identifies one of the known spreadsheet row shapes.
type Format string

const (
	FormatFlat  Format = "flat"
	FormatPunch Format = "punch"
)

// DetectFormat picks the format a row belongs to from the columns present.
func DetectFormat(row RawRow) (Format, error) {
	if _, ok := row[colPersonnelID]; ok {
		return FormatPunch, nil
	}
	if _, ok := row[colPunchTime]; ok {
		return FormatPunch, nil
	}
	if _, ok := row[colMappedID]; ok {
		return FormatFlat, nil
	}
	return "", ErrUnknownFormat
}

// Normalize converts a row of this format into a CanonicalRecord.
func (f Format) Normalize(row RawRow) (CanonicalRecord, error) {
	switch f {
	case FormatFlat:
		return normalizeFlat(row)
	case FormatPunch:
		return normalizePunch(row)
	default:
		return CanonicalRecord{}, ErrUnknownFormat
	}
}

// NormalizeRow detects the row's format and normalizes it.
func NormalizeRow(row RawRow) (CanonicalRecord, error) {
	format, err := DetectFormat(row)
	if err != nil {
		return CanonicalRecord{}, err
	}
	return format.Normalize(row)
}

func normalizeFlat(row RawRow) (CanonicalRecord, error) {
	mappedID, err := ExtractExternalID(row[colMappedID])
	if err != nil {
		return CanonicalRecord{}, err
	}

	date, err := ParseDate(row[colDate])
	if err != nil {
		return CanonicalRecord{}, err
	}

	checkIn := parseOptionalTime(row[colCheckIn])
	checkOut := parseOptionalTime(row[colCheckOut])

	return CanonicalRecord{
		MappedID:   mappedID,
		Date:       date,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		TotalHours: ComputeTotalHours(checkIn, checkOut),
	}, nil
}

func normalizePunch(row RawRow) (CanonicalRecord, error) {
	mappedID, err := ExtractExternalID(row[colPersonnelID])
	if err != nil {
		return CanonicalRecord{}, err
	}

	date, err := ParseDate(row[colRecordDate])
	if err != nil {
		return CanonicalRecord{}, err
	}

	punches, err := SplitPunchTimes(row[colPunchTime])
	if err != nil {
		return CanonicalRecord{}, err
	}

	first, err := ParseTimeOfDay(punches[0])
	if err != nil {
		return CanonicalRecord{}, err
	}
	checkIn := &first
	checkOut := parseOptionalTime(punches[len(punches)-1])

	return CanonicalRecord{
		MappedID:   mappedID,
		Date:       date,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		TotalHours: ComputeTotalHours(checkIn, checkOut),
	}, nil
}

// =============================================================================
// FIELD PARSING
// =============================================================================

// ExtractExternalID reads an employee code cell. The value must be a
// non-negative integer once trimmed; "42", " 42 ", and a numeric cell 42.0
// all yield 42.
func ExtractExternalID(value any) (int, error) {
	var f float64
	switch v := value.(type) {
	case nil:
		return 0, ErrInvalidIdentifier
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case float64:
		f = v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, ErrInvalidIdentifier
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported cell type %T", ErrInvalidIdentifier, value)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidIdentifier, f)
	}
	return int(f), nil
}

// dateLayouts covers the date renderings seen across attendance exports.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDate accepts a date-like cell and returns its calendar date. String
// cells are tried against known layouts; numeric cells are treated as Excel
// serial dates. Any time-of-day component is discarded.
func ParseDate(value any) (Date, error) {
	switch v := value.(type) {
	case float64:
		return dateFromSerial(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Date{}, ErrInvalidDate
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return DateOf(t), nil
			}
		}
		// Numeric text in a realistic serial range is an unformatted Excel
		// date cell, not a year.
		if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 20000 && serial <= 80000 {
			return dateFromSerial(serial)
		}
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	default:
		return Date{}, ErrInvalidDate
	}
}

func dateFromSerial(serial float64) (Date, error) {
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return Date{}, fmt.Errorf("%w: serial %v", ErrInvalidDate, serial)
	}
	return DateOf(t), nil
}

// clockLayouts covers the time renderings seen across attendance exports.
var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
}

// ParseTimeOfDay accepts a time-like cell and returns its wall-clock reading.
// Numeric cells are treated as Excel day fractions (0.5 is noon).
func ParseTimeOfDay(value any) (TimeOfDay, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 || v >= 1 {
			return TimeOfDay{}, fmt.Errorf("%w: day fraction %v", ErrInvalidTime, v)
		}
		secs := int(math.Round(v * 86400))
		return TimeOfDay{Hour: secs / 3600, Minute: secs / 60 % 60, Second: secs % 60}, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return TimeOfDay{}, ErrInvalidTime
		}
		for _, layout := range clockLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
			}
		}
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	default:
		return TimeOfDay{}, ErrInvalidTime
	}
}

// parseOptionalTime is the lenient variant: unparseable or absent cells
// become nil instead of failing the row.
func parseOptionalTime(value any) *TimeOfDay {
	t, err := ParseTimeOfDay(value)
	if err != nil {
		return nil
	}
	return &t
}

// SplitPunchTimes splits a semicolon-delimited punch cell into trimmed,
// non-empty tokens in their original order.
func SplitPunchTimes(value any) ([]string, error) {
	var raw string
	switch v := value.(type) {
	case nil:
		return nil, ErrNoPunchTimes
	case string:
		raw = v
	case float64:
		raw = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		raw = fmt.Sprintf("%v", v)
	}

	var tokens []string
	for _, part := range strings.Split(raw, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	if len(tokens) == 0 {
		return nil, ErrNoPunchTimes
	}
	return tokens, nil
}

// ComputeTotalHours returns the elapsed hours between the punches, rounded
// to two decimal places. Absent when either punch is missing. Negative when
// check-out precedes check-in; the source systems report overnight rows this
// way and the value is stored as-is rather than corrected.
func ComputeTotalHours(checkIn, checkOut *TimeOfDay) decimal.NullDecimal {
	if checkIn == nil || checkOut == nil {
		return decimal.NullDecimal{}
	}
	diff := int64(checkOut.Seconds() - checkIn.Seconds())
	hours := decimal.NewFromInt(diff).Div(decimal.NewFromInt(3600)).Round(2)
	return decimal.NullDecimal{Decimal: hours, Valid: true}
}
