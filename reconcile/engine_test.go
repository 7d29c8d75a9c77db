package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/reconcile/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*reconcile.Engine, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	mem.AddEmployee(employee("EMP-001", "Ada", "Lovelace", 42))
	mem.AddEmployee(employee("EMP-002", "Grace", "Hopper", 7))

	return reconcile.NewEngine(mem, mem, nil), mem
}

func employee(employeeID, first, last string, mappedID int) reconcile.Employee {
	return reconcile.Employee{
		EmployeeID: employeeID,
		FirstName:  first,
		LastName:   last,
		MappedID:   &mappedID,
	}
}

func flatRow(mappedID, date, checkIn, checkOut string) reconcile.RawRow {
	row := reconcile.RawRow{"mapped_id": mappedID, "Date": date}
	if checkIn != "" {
		row["Check In"] = checkIn
	}
	if checkOut != "" {
		row["Check Out"] = checkOut
	}
	return row
}

// =============================================================================
// BATCH SEMANTICS TESTS
// =============================================================================

func TestReconcile_EmptyBatch(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Reconcile(context.Background(), nil)
	assert.ErrorIs(t, err, reconcile.ErrNoRows)

	_, err = engine.Reconcile(context.Background(), []reconcile.RawRow{})
	assert.ErrorIs(t, err, reconcile.ErrNoRows)
}

func TestReconcile_StatsAccountForEveryRow(t *testing.T) {
	// GIVEN: A batch mixing valid rows, a malformed row, and an unknown employee
	// WHEN: Reconciling it
	// THEN: created + updated + skipped equals the row count and records match

	engine, _ := newTestEngine(t)

	rows := []reconcile.RawRow{
		flatRow("42", "2025-03-10", "08:00", "17:00"),
		flatRow("7", "2025-03-10", "09:00", "18:00"),
		flatRow("", "2025-03-10", "08:00", "17:00"),    // blank id -> skip
		flatRow("999", "2025-03-10", "08:00", "17:00"), // unknown employee -> skip
		flatRow("42", "soon", "08:00", "17:00"),        // bad date -> skip
	}

	result, err := engine.Reconcile(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stats.Created)
	assert.Equal(t, 0, result.Stats.Updated)
	assert.Equal(t, 3, result.Stats.Skipped)
	assert.Equal(t, len(rows), result.Stats.Total())
	assert.Len(t, result.Records, result.Stats.Created+result.Stats.Updated)
}

func TestReconcile_UnknownEmployeeWritesNothing(t *testing.T) {
	engine, mem := newTestEngine(t)

	result, err := engine.Reconcile(context.Background(), []reconcile.RawRow{
		flatRow("999", "2025-03-10", "08:00", "17:00"),
	})
	require.NoError(t, err)

	assert.Equal(t, reconcile.Stats{Skipped: 1}, result.Stats)
	assert.Empty(t, result.Records)
	assert.Empty(t, mem.Entries())
}

func TestReconcile_DuplicateKeyLastRowWins(t *testing.T) {
	// GIVEN: Two rows for the same employee and date with different punches
	// WHEN: Reconciling the batch
	// THEN: The first creates, the second updates, and the second's values persist

	engine, mem := newTestEngine(t)

	result, err := engine.Reconcile(context.Background(), []reconcile.RawRow{
		flatRow("42", "2025-03-10", "08:00", "17:00"),
		flatRow("42", "2025-03-10", "08:30", "16:30"),
	})
	require.NoError(t, err)

	assert.Equal(t, reconcile.Stats{Created: 1, Updated: 1}, result.Stats)
	require.Len(t, result.Records, 2)
	assert.Equal(t, reconcile.ActionCreated, result.Records[0].Action)
	assert.Equal(t, reconcile.ActionUpdated, result.Records[1].Action)

	entries := mem.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "08:30:00", entries[0].CheckIn.String())
	assert.Equal(t, "16:30:00", entries[0].CheckOut.String())
	require.True(t, entries[0].TotalHours.Valid)
	assert.True(t, entries[0].TotalHours.Decimal.Equal(decimal.RequireFromString("8")))
}

func TestReconcile_ReprocessingIsIdempotent(t *testing.T) {
	// GIVEN: A batch that was already reconciled once
	// WHEN: Reconciling the identical batch again
	// THEN: Every row updates instead of creating, and the ledger size is unchanged

	engine, mem := newTestEngine(t)

	rows := []reconcile.RawRow{
		flatRow("42", "2025-03-10", "08:00", "17:00"),
		flatRow("7", "2025-03-11", "09:00", "18:00"),
	}

	first, err := engine.Reconcile(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Stats{Created: 2}, first.Stats)

	second, err := engine.Reconcile(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Stats{Updated: 2}, second.Stats)
	assert.Len(t, mem.Entries(), 2)
}

func TestReconcile_OutcomeCarriesEmployeeName(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Reconcile(context.Background(), []reconcile.RawRow{
		flatRow("42", "2025-03-10", "08:00", "17:00"),
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	outcome := result.Records[0]
	assert.Equal(t, 42, outcome.MappedID)
	assert.Equal(t, "EMP-001", outcome.EmployeeID)
	assert.Equal(t, "Ada Lovelace", outcome.Name)
	assert.Equal(t, "2025-03-10", outcome.Date.String())
}

func TestReconcile_MixedFormatsInOneBatch(t *testing.T) {
	engine, mem := newTestEngine(t)

	result, err := engine.Reconcile(context.Background(), []reconcile.RawRow{
		flatRow("42", "2025-03-10", "08:00", "17:00"),
		{
			"Personnel ID": "7",
			"Record Date":  "2025-03-10",
			"Punch Time":   "09:00; 12:30; 13:15; 18:00",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, reconcile.Stats{Created: 2}, result.Stats)
	assert.Len(t, mem.Entries(), 2)
}

// =============================================================================
// FAILURE SEMANTICS TESTS
// =============================================================================

// failingRepo wraps Memory and fails a configurable operation.
type failingRepo struct {
	*store.Memory
	findErr   error
	insertErr error
}

func (f *failingRepo) Find(ctx context.Context, employeeID string, date reconcile.Date) (*reconcile.Entry, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Memory.Find(ctx, employeeID, date)
}

func (f *failingRepo) Insert(ctx context.Context, entry reconcile.Entry) (*reconcile.Entry, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return f.Memory.Insert(ctx, entry)
}

func TestReconcile_InfrastructureFailureAbortsBatch(t *testing.T) {
	// GIVEN: A repository whose reads fail outright
	// WHEN: Reconciling a batch with valid rows
	// THEN: The batch aborts with no partial result instead of counting skips

	mem := store.NewMemory()
	mem.AddEmployee(employee("EMP-001", "Ada", "Lovelace", 42))

	boom := errors.New("disk on fire")
	engine := reconcile.NewEngine(mem, &failingRepo{Memory: mem, findErr: boom}, nil)

	result, err := engine.Reconcile(context.Background(), []reconcile.RawRow{
		flatRow("42", "2025-03-10", "08:00", "17:00"),
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, boom)
}

// racingRepo sneaks a conflicting entry into the backing store right before
// every insert, simulating a concurrent batch winning the uniqueness race.
type racingRepo struct {
	*store.Memory
	raced bool
}

func (r *racingRepo) Insert(ctx context.Context, entry reconcile.Entry) (*reconcile.Entry, error) {
	if !r.raced {
		r.raced = true
		rival := entry
		rival.CheckIn = &reconcile.TimeOfDay{Hour: 7}
		if _, err := r.Memory.Insert(ctx, rival); err != nil {
			return nil, err
		}
	}
	return r.Memory.Insert(ctx, entry)
}

func TestReconcile_InsertConflictRetriedAsUpdate(t *testing.T) {
	// GIVEN: A concurrent writer claims the (employee, date) key between the
	//        engine's existence check and its insert
	// WHEN: Reconciling the row
	// THEN: The row is retried as an update and counted as updated, not failed

	mem := store.NewMemory()
	mem.AddEmployee(employee("EMP-001", "Ada", "Lovelace", 42))

	engine := reconcile.NewEngine(mem, &racingRepo{Memory: mem}, nil)

	result, err := engine.Reconcile(context.Background(), []reconcile.RawRow{
		flatRow("42", "2025-03-10", "08:00", "17:00"),
	})
	require.NoError(t, err)

	assert.Equal(t, reconcile.Stats{Updated: 1}, result.Stats)

	entries := mem.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "08:00:00", entries[0].CheckIn.String(), "engine's row should win the retry")
}
