package ingest_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/ingest"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// buildWorkbook writes the given rows to the first sheet of a fresh workbook
// and returns the serialized bytes.
func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

// =============================================================================
// WORKBOOK DECODING TESTS
// =============================================================================

func TestRows_FlatHeader(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"mapped_id", "Date", "Check In", "Check Out"},
		{"42", "2025-03-10", "08:00", "17:00"},
		{"7", "2025-03-11", "09:00", "18:00"},
	})

	rows, err := ingest.Rows(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "42", rows[0]["mapped_id"])
	assert.Equal(t, "2025-03-10", rows[0]["Date"])
	assert.Equal(t, "08:00", rows[0]["Check In"])
	assert.Equal(t, "17:00", rows[0]["Check Out"])
	assert.Equal(t, "7", rows[1]["mapped_id"])
}

func TestRows_TitleRowAboveHeader(t *testing.T) {
	// GIVEN: An export with a report title above the column labels
	// WHEN: Decoding the workbook
	// THEN: The header is located below the title and the title row is not data

	buf := buildWorkbook(t, [][]any{
		{"Attendance Report - March 2025"},
		{"Personnel ID", "Record Date", "Punch Time"},
		{"7", "2025-03-10", "08:00; 17:00"},
	})

	rows, err := ingest.Rows(buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0]["Personnel ID"])
	assert.Equal(t, "08:00; 17:00", rows[0]["Punch Time"])
}

func TestRows_BlankCellsOmitted(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"mapped_id", "Date", "Check In", "Check Out"},
		{"42", "2025-03-10", "", "17:00"},
	})

	rows, err := ingest.Rows(buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, hasCheckIn := rows[0]["Check In"]
	assert.False(t, hasCheckIn, "blank cells must be absent keys, not empty strings")
	assert.Equal(t, "17:00", rows[0]["Check Out"])
}

func TestRows_EmptyRowsDropped(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"mapped_id", "Date"},
		{"42", "2025-03-10"},
		{"", ""},
		{"7", "2025-03-11"},
	})

	rows, err := ingest.Rows(buf)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRows_HeaderOnly(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"mapped_id", "Date", "Check In", "Check Out"},
	})

	_, err := ingest.Rows(buf)
	assert.ErrorIs(t, err, ingest.ErrEmptyWorkbook)
}

func TestRows_EmptySheet(t *testing.T) {
	buf := buildWorkbook(t, nil)

	_, err := ingest.Rows(buf)
	assert.ErrorIs(t, err, ingest.ErrEmptyWorkbook)
}

func TestRows_NotAWorkbook(t *testing.T) {
	_, err := ingest.Rows(strings.NewReader("this is not a zip archive"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ingest.ErrEmptyWorkbook)
}
