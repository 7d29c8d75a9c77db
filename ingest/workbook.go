/*
Package ingest decodes uploaded spreadsheet workbooks into raw rows for
reconciliation.

PURPOSE:
  Turns an .xlsx upload into a sequence of reconcile.RawRow. Only the first
  worksheet is read. Some exports put a report title above the header line,
  so the header row is located by looking for known column labels instead of
  assuming row one.

CELL HANDLING:
  Cells arrive as strings from the workbook reader. Blank cells are omitted
  from the row map (an absent key, matching how the reconciler distinguishes
  "missing" from "invalid"), and rows with no populated cells are dropped.

SEE ALSO:
  - reconcile/format.go: column labels and normalization
  - api/handlers.go: upload endpoint
*/
package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/warp/attendance-engine/reconcile"
	"github.com/xuri/excelize/v2"
)

// ErrEmptyWorkbook is returned when the workbook has no data rows.
var ErrEmptyWorkbook = errors.New("no rows found in workbook")

// knownLabels are the column labels emitted by the supported exports; a row
// containing any of them is the header.
var knownLabels = map[string]struct{}{
	"mapped_id":    {},
	"Date":         {},
	"Check In":     {},
	"Check Out":    {},
	"Personnel ID": {},
	"Record Date":  {},
	"Punch Time":   {},
}

// headerScanDepth bounds how far down a title block can push the header.
const headerScanDepth = 3

// Rows reads the first worksheet and returns one RawRow per data row below
// the header. Returns ErrEmptyWorkbook when no data rows remain.
func Rows(r io.Reader) ([]reconcile.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptyWorkbook
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}

	headerIdx := headerRow(rows)
	header := make([]string, len(rows[headerIdx]))
	for i, label := range rows[headerIdx] {
		header[i] = strings.TrimSpace(label)
	}

	var out []reconcile.RawRow
	for _, row := range rows[headerIdx+1:] {
		rr := reconcile.RawRow{}
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if strings.TrimSpace(cell) == "" {
				continue
			}
			rr[header[i]] = cell
		}
		if len(rr) > 0 {
			out = append(out, rr)
		}
	}

	if len(out) == 0 {
		return nil, ErrEmptyWorkbook
	}
	return out, nil
}

// headerRow returns the index of the first row carrying a known column
// label, or 0 when none is found within the scan depth.
func headerRow(rows [][]string) int {
	depth := headerScanDepth
	if len(rows) < depth {
		depth = len(rows)
	}
	for i := 0; i < depth; i++ {
		for _, cell := range rows[i] {
			if _, ok := knownLabels[strings.TrimSpace(cell)]; ok {
				return i
			}
		}
	}
	return 0
}
