// Package store provides in-memory implementations of the reconcile
// capabilities for testing and development.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp/attendance-engine/reconcile"
)

// =============================================================================
// MEMORY STORE - In-memory directory + repository (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	employees map[int]reconcile.Employee
	entries   map[entryKey]reconcile.Entry
	nextID    int64
}

type entryKey struct {
	EmployeeID string
	Date       string
}

func NewMemory() *Memory {
	return &Memory{
		employees: make(map[int]reconcile.Employee),
		entries:   make(map[entryKey]reconcile.Entry),
	}
}

// AddEmployee registers a directory record. Employees without a mapped id
// are ignored; nothing in an upload can ever resolve to them.
func (m *Memory) AddEmployee(e reconcile.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.MappedID != nil {
		m.employees[*e.MappedID] = e
	}
}

func (m *Memory) FindByMappedID(_ context.Context, mappedID int) (*reconcile.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[mappedID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) Find(_ context.Context, employeeID string, date reconcile.Date) (*reconcile.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[entryKey{EmployeeID: employeeID, Date: date.String()}]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *Memory) Insert(_ context.Context, entry reconcile.Entry) (*reconcile.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := entryKey{EmployeeID: entry.EmployeeID, Date: entry.Date.String()}
	if _, ok := m.entries[k]; ok {
		return nil, reconcile.ErrDuplicateEntry
	}

	m.nextID++
	entry.ID = m.nextID
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	m.entries[k] = entry
	return &entry, nil
}

func (m *Memory) Update(_ context.Context, id int64, entry reconcile.Entry) (*reconcile.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, existing := range m.entries {
		if existing.ID != id {
			continue
		}
		existing.CheckIn = entry.CheckIn
		existing.CheckOut = entry.CheckOut
		existing.TotalHours = entry.TotalHours
		existing.UpdatedAt = time.Now().UTC()
		m.entries[k] = existing
		return &existing, nil
	}
	return nil, fmt.Errorf("no attendance entry with id %d", id)
}

// Entries returns a copy of every stored entry, for assertions.
func (m *Memory) Entries() []reconcile.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]reconcile.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out
}
