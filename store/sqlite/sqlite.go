/*
Package sqlite provides a SQLite-backed implementation of the storage
capabilities.

PURPOSE:
  Implements reconcile.EmployeeDirectory and reconcile.Repository using
  SQLite. In production, the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

KEY TABLES:
  employees:   Directory records with the spreadsheet mapping code
  timesheets:  One attendance entry per (employee_id, date)

UNIQUENESS:
  idx_unique_timesheet_day enforces the reconciliation key: at most one
  timesheet row per (employee_id, date). Inserts that collide with it are
  surfaced as reconcile.ErrDuplicateEntry so the engine can retry the row as
  an update. This holds across concurrent batches; the database, not the
  engine, is the arbiter.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := reconcile.NewEngine(store, store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - reconcile/engine.go: capability interfaces
  - reconcile/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/reconcile"
)

// Store implements the storage capabilities using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees (directory records)
	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		middle_name TEXT,
		last_name TEXT NOT NULL,
		mapped_id INTEGER UNIQUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Lookup path for reconciliation (spreadsheet code -> employee)
	CREATE INDEX IF NOT EXISTS idx_employees_mapped_id
		ON employees(mapped_id) WHERE mapped_id IS NOT NULL;

	-- Timesheets (the attendance ledger)
	CREATE TABLE IF NOT EXISTS timesheets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL REFERENCES employees(employee_id),
		date TEXT NOT NULL,
		check_in TEXT,
		check_out TEXT,
		total_hours TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: the reconciliation key. At most one entry per employee+day;
	-- concurrent batches racing on the same key resolve here.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_timesheet_day
		ON timesheets(employee_id, date);

	CREATE INDEX IF NOT EXISTS idx_timesheets_date
		ON timesheets(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEE DIRECTORY (reconcile.EmployeeDirectory interface)
// =============================================================================

var _ reconcile.EmployeeDirectory = (*Store)(nil)

// FindByMappedID resolves a spreadsheet employee code to a directory record.
// Returns (nil, nil) when no employee carries the code.
func (s *Store) FindByMappedID(ctx context.Context, mappedID int) (*reconcile.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, employee_id, first_name, middle_name, last_name, mapped_id, created_at, updated_at
		 FROM employees WHERE mapped_id = ?`,
		mappedID,
	)
	return scanEmployee(row)
}

// SaveEmployee inserts or updates a directory record keyed by employee_id.
func (s *Store) SaveEmployee(ctx context.Context, e reconcile.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (employee_id, first_name, middle_name, last_name, mapped_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			first_name = excluded.first_name,
			middle_name = excluded.middle_name,
			last_name = excluded.last_name,
			mapped_id = excluded.mapped_id,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, query,
		e.EmployeeID, e.FirstName, nullString(e.MiddleName), e.LastName, nullInt(e.MappedID), now, now,
	)
	return err
}

// GetEmployee retrieves an employee by its internal identifier.
// Returns (nil, nil) when absent.
func (s *Store) GetEmployee(ctx context.Context, employeeID string) (*reconcile.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, employee_id, first_name, middle_name, last_name, mapped_id, created_at, updated_at
		 FROM employees WHERE employee_id = ?`,
		employeeID,
	)
	return scanEmployee(row)
}

// ListEmployees returns all directory records ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]reconcile.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, employee_id, first_name, middle_name, last_name, mapped_id, created_at, updated_at
		 FROM employees ORDER BY last_name, first_name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []reconcile.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *e)
	}
	return employees, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*reconcile.Employee, error) {
	var (
		e          reconcile.Employee
		middleName sql.NullString
		mappedID   sql.NullInt64
		createdAt  string
		updatedAt  string
	)

	err := row.Scan(&e.ID, &e.EmployeeID, &e.FirstName, &middleName, &e.LastName, &mappedID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan employee: %w", err)
	}

	e.MiddleName = middleName.String
	if mappedID.Valid {
		m := int(mappedID.Int64)
		e.MappedID = &m
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &e, nil
}

// =============================================================================
// ATTENDANCE REPOSITORY (reconcile.Repository interface)
// =============================================================================

var _ reconcile.Repository = (*Store)(nil)

const timesheetColumns = `id, employee_id, date, check_in, check_out, total_hours, created_at, updated_at`

// Find returns the entry for (employee, date), or (nil, nil) when absent.
func (s *Store) Find(ctx context.Context, employeeID string, date reconcile.Date) (*reconcile.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+timesheetColumns+` FROM timesheets WHERE employee_id = ? AND date = ?`,
		employeeID, date.String(),
	)
	return scanEntry(row)
}

// Insert writes a new entry. A collision on the (employee_id, date) unique
// index is reported as reconcile.ErrDuplicateEntry.
func (s *Store) Insert(ctx context.Context, entry reconcile.Entry) (*reconcile.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO timesheets (employee_id, date, check_in, check_out, total_hours, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.EmployeeID,
		entry.Date.String(),
		nullClock(entry.CheckIn),
		nullClock(entry.CheckOut),
		nullHours(entry.TotalHours),
		now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, reconcile.ErrDuplicateEntry
		}
		return nil, fmt.Errorf("failed to insert timesheet: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read timesheet id: %w", err)
	}
	return s.findByID(ctx, id)
}

// Update overwrites the punch fields of an existing entry and bumps its
// updated timestamp. Employee and date are never changed.
func (s *Store) Update(ctx context.Context, id int64, entry reconcile.Entry) (*reconcile.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE timesheets SET check_in = ?, check_out = ?, total_hours = ?, updated_at = ? WHERE id = ?`,
		nullClock(entry.CheckIn),
		nullClock(entry.CheckOut),
		nullHours(entry.TotalHours),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update timesheet: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("no timesheet with id %d", id)
	}
	return s.findByID(ctx, id)
}

func (s *Store) findByID(ctx context.Context, id int64) (*reconcile.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+timesheetColumns+` FROM timesheets WHERE id = ?`, id,
	)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("no timesheet with id %d", id)
	}
	return entry, nil
}

func scanEntry(row rowScanner) (*reconcile.Entry, error) {
	var (
		e          reconcile.Entry
		dateStr    string
		checkIn    sql.NullString
		checkOut   sql.NullString
		totalHours sql.NullString
		createdAt  string
		updatedAt  string
	)

	err := row.Scan(&e.ID, &e.EmployeeID, &dateStr, &checkIn, &checkOut, &totalHours, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan timesheet: %w", err)
	}

	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timesheet date %q: %w", dateStr, err)
	}
	e.Date = reconcile.DateOf(t)

	if e.CheckIn, err = clockFromNull(checkIn); err != nil {
		return nil, err
	}
	if e.CheckOut, err = clockFromNull(checkOut); err != nil {
		return nil, err
	}
	if totalHours.Valid {
		d, err := decimal.NewFromString(totalHours.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse total hours %q: %w", totalHours.String, err)
		}
		e.TotalHours = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &e, nil
}

// =============================================================================
// TIMESHEET QUERIES (read API)
// =============================================================================

// TimesheetRecord is an attendance entry joined with its employee's name.
type TimesheetRecord struct {
	reconcile.Entry
	EmployeeName string
}

// ListTimesheets returns every entry, newest date first, with the employee's
// full name joined in.
func (s *Store) ListTimesheets(ctx context.Context) ([]TimesheetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT t.id, t.employee_id, t.date, t.check_in, t.check_out, t.total_hours,
		       t.created_at, t.updated_at, e.first_name, e.middle_name, e.last_name
		FROM timesheets t
		JOIN employees e ON e.employee_id = t.employee_id
		ORDER BY t.date DESC, t.created_at DESC
	`
	return s.queryTimesheets(ctx, query)
}

// ListTimesheetsByEmployee returns one employee's entries, newest date first.
func (s *Store) ListTimesheetsByEmployee(ctx context.Context, employeeID string) ([]TimesheetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT t.id, t.employee_id, t.date, t.check_in, t.check_out, t.total_hours,
		       t.created_at, t.updated_at, e.first_name, e.middle_name, e.last_name
		FROM timesheets t
		JOIN employees e ON e.employee_id = t.employee_id
		WHERE t.employee_id = ?
		ORDER BY t.date DESC
	`
	return s.queryTimesheets(ctx, query, employeeID)
}

func (s *Store) queryTimesheets(ctx context.Context, query string, args ...any) ([]TimesheetRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timesheets: %w", err)
	}
	defer rows.Close()

	var records []TimesheetRecord
	for rows.Next() {
		var (
			rec        TimesheetRecord
			dateStr    string
			checkIn    sql.NullString
			checkOut   sql.NullString
			totalHours sql.NullString
			createdAt  string
			updatedAt  string
			firstName  string
			middleName sql.NullString
			lastName   string
		)

		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &dateStr, &checkIn, &checkOut, &totalHours,
			&createdAt, &updatedAt, &firstName, &middleName, &lastName); err != nil {
			return nil, fmt.Errorf("failed to scan timesheet: %w", err)
		}

		t, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timesheet date %q: %w", dateStr, err)
		}
		rec.Date = reconcile.DateOf(t)

		if rec.CheckIn, err = clockFromNull(checkIn); err != nil {
			return nil, err
		}
		if rec.CheckOut, err = clockFromNull(checkOut); err != nil {
			return nil, err
		}
		if totalHours.Valid {
			d, err := decimal.NewFromString(totalHours.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse total hours %q: %w", totalHours.String, err)
			}
			rec.TotalHours = decimal.NullDecimal{Decimal: d, Valid: true}
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		rec.EmployeeName = reconcile.Employee{
			FirstName:  firstName,
			MiddleName: middleName.String,
			LastName:   lastName,
		}.FullName()

		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"timesheets", "employees"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullClock(t *reconcile.TimeOfDay) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.String(), Valid: true}
}

func nullHours(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func clockFromNull(v sql.NullString) (*reconcile.TimeOfDay, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := reconcile.ParseTimeOfDay(v.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse clock value %q: %w", v.String, err)
	}
	return &t, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
