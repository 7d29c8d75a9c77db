/*
engine.go - Batch reconciliation over injected directory and storage

PURPOSE:
  Processes an ordered batch of raw rows end-to-end: normalize, resolve the
  employee, upsert the attendance entry, and report. The engine owns the
  control flow and the error taxonomy; the directory and repository are
  capabilities injected by the caller.

PER-ROW PIPELINE (short-circuits to "skip" on first failure):
  1. Normalize the row (format.go)
  2. Resolve the mapped id through the EmployeeDirectory
  3. Upsert the entry keyed by (employee internal id, date)
  4. Record the outcome and fold the stats accumulator

ORDERING:
  Rows are processed strictly in submission order, one at a time. A later
  row for the same (employee, date) pair overwrites the earlier one - last
  row wins - so rows are never fanned out or reordered.

UPSERT RACE:
  The engine does not assume exclusive ownership of the ledger. When its
  insert loses to a concurrent writer the repository reports
  ErrDuplicateEntry, and the engine re-reads the entry and retries the row
  as an update instead of failing it.

FAILURE SEMANTICS:
  Row-level problems (bad cells, unknown employees) are counted as skips and
  never surface. Directory or repository errors abort the whole batch with a
  single wrapped error and no partial result.

SEE ALSO:
  - format.go: normalization
  - store/memory.go: in-memory capabilities for tests and dev
  - store/sqlite (module root): production capabilities
*/
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// =============================================================================
// INJECTED CAPABILITIES
// =============================================================================

// EmployeeDirectory resolves spreadsheet employee codes to directory records.
type EmployeeDirectory interface {
	// FindByMappedID returns (nil, nil) when no employee carries the code.
	FindByMappedID(ctx context.Context, mappedID int) (*Employee, error)
}

// Repository persists attendance entries keyed by (employee internal id,
// date). The backing storage must enforce that key's uniqueness.
type Repository interface {
	// Find returns (nil, nil) when no entry exists for the key.
	Find(ctx context.Context, employeeID string, date Date) (*Entry, error)

	// Insert writes a new entry. Returns ErrDuplicateEntry when the
	// (employee, date) key already exists.
	Insert(ctx context.Context, entry Entry) (*Entry, error)

	// Update overwrites check-in, check-out, and total hours of the entry
	// with the given id, bumping its updated timestamp. Employee and date
	// are never touched.
	Update(ctx context.Context, id int64, entry Entry) (*Entry, error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine reconciles row batches against the attendance ledger.
type Engine struct {
	directory EmployeeDirectory
	repo      Repository
	log       *zap.Logger
}

// NewEngine wires an engine to its capabilities. A nil logger disables
// logging.
func NewEngine(directory EmployeeDirectory, repo Repository, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{directory: directory, repo: repo, log: log}
}

// Reconcile processes rows in order and returns batch statistics plus one
// outcome per created or updated entry. Row-level failures become skips;
// infrastructure failures abort the batch with no partial result. An empty
// batch returns ErrNoRows.
func (e *Engine) Reconcile(ctx context.Context, rows []RawRow) (*Result, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	stats := Stats{}
	records := make([]Outcome, 0, len(rows))

	for i, row := range rows {
		record, err := NormalizeRow(row)
		if err != nil {
			if !IsRowError(err) {
				return nil, fmt.Errorf("row %d normalization failed: %w", i, err)
			}
			stats = stats.Skip()
			e.log.Debug("row skipped", zap.Int("row", i), zap.Error(&RowError{Index: i, Err: err}))
			continue
		}

		employee, err := e.directory.FindByMappedID(ctx, record.MappedID)
		if err != nil {
			return nil, fmt.Errorf("employee lookup failed: %w", err)
		}
		if employee == nil {
			stats = stats.Skip()
			e.log.Debug("row skipped",
				zap.Int("row", i),
				zap.Int("mapped_id", record.MappedID),
				zap.Error(&RowError{Index: i, Err: ErrEmployeeNotFound}))
			continue
		}

		entry, action, err := e.upsert(ctx, employee.EmployeeID, record)
		if err != nil {
			return nil, err
		}

		stats = stats.Apply(action)
		records = append(records, Outcome{
			MappedID:   record.MappedID,
			EmployeeID: employee.EmployeeID,
			Name:       employee.FullName(),
			Date:       entry.Date,
			CheckIn:    entry.CheckIn,
			CheckOut:   entry.CheckOut,
			TotalHours: entry.TotalHours,
			Action:     action,
		})
	}

	e.log.Info("batch reconciled",
		zap.Int("rows", len(rows)),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped))

	return &Result{Stats: stats, Records: records}, nil
}

// upsert writes the record under the (employee, date) key. An insert losing
// the uniqueness race to a concurrent writer is retried as an update of the
// winner's entry.
func (e *Engine) upsert(ctx context.Context, employeeID string, record CanonicalRecord) (*Entry, Action, error) {
	fields := Entry{
		EmployeeID: employeeID,
		Date:       record.Date,
		CheckIn:    record.CheckIn,
		CheckOut:   record.CheckOut,
		TotalHours: record.TotalHours,
	}

	existing, err := e.repo.Find(ctx, employeeID, record.Date)
	if err != nil {
		return nil, "", fmt.Errorf("attendance lookup failed: %w", err)
	}

	if existing == nil {
		inserted, err := e.repo.Insert(ctx, fields)
		if err == nil {
			return inserted, ActionCreated, nil
		}
		if !errors.Is(err, ErrDuplicateEntry) {
			return nil, "", fmt.Errorf("attendance insert failed: %w", err)
		}

		// Lost the race: a concurrent batch wrote this key between our
		// existence check and the insert. Re-read and fall through to update.
		existing, err = e.repo.Find(ctx, employeeID, record.Date)
		if err != nil {
			return nil, "", fmt.Errorf("attendance lookup failed after conflict: %w", err)
		}
		if existing == nil {
			return nil, "", fmt.Errorf("attendance entry missing after conflict for %s on %s: %w",
				employeeID, record.Date, ErrDuplicateEntry)
		}
	}

	updated, err := e.repo.Update(ctx, existing.ID, fields)
	if err != nil {
		return nil, "", fmt.Errorf("attendance update failed: %w", err)
	}
	return updated, ActionUpdated, nil
}
