/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// UPLOAD TYPES
// =============================================================================

// UploadResponse is returned after processing an uploaded workbook.
type UploadResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Summary SummaryDTO  `json:"summary"`
	Records []RecordDTO `json:"records"`
}

// SummaryDTO carries the per-batch counts.
type SummaryDTO struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// RecordDTO is the per-row outcome for every created or updated entry.
type RecordDTO struct {
	MappedID   int      `json:"mapped_id"`
	EmployeeID string   `json:"employee_id"`
	Name       string   `json:"name"`
	Date       string   `json:"date"`
	CheckIn    *string  `json:"check_in"`
	CheckOut   *string  `json:"check_out"`
	TotalHours *float64 `json:"total_hours"`
	Action     string   `json:"action"`
}

// =============================================================================
// TIMESHEET TYPES
// =============================================================================

// TimesheetDTO represents one ledger entry in list responses.
type TimesheetDTO struct {
	ID           int64    `json:"id"`
	EmployeeID   string   `json:"employee_id"`
	EmployeeName string   `json:"employee_name"`
	Date         string   `json:"date"`
	CheckIn      *string  `json:"check_in"`
	CheckOut     *string  `json:"check_out"`
	TotalHours   *float64 `json:"total_hours"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// EmployeeTimesheetDTO is a single entry in a per-employee listing; the
// employee identity lives on the wrapper, not each row.
type EmployeeTimesheetDTO struct {
	ID         int64    `json:"id"`
	Date       string   `json:"date"`
	CheckIn    *string  `json:"check_in"`
	CheckOut   *string  `json:"check_out"`
	TotalHours *float64 `json:"total_hours"`
}

// EmployeeTimesheetsResponse wraps one employee's entries.
type EmployeeTimesheetsResponse struct {
	EmployeeID   string                 `json:"employee_id"`
	EmployeeName string                 `json:"employee_name"`
	Timesheets   []EmployeeTimesheetDTO `json:"timesheets"`
}

// =============================================================================
// EMPLOYEE TYPES
// =============================================================================

// EmployeeDTO represents a directory record in API responses.
type EmployeeDTO struct {
	EmployeeID string `json:"employee_id"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	MappedID   *int   `json:"mapped_id"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create or update an employee.
type CreateEmployeeRequest struct {
	EmployeeID string `json:"employee_id"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name"`
	MappedID   *int   `json:"mapped_id"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN -> DTO MAPPING
// =============================================================================

func outcomeDTO(o reconcile.Outcome) RecordDTO {
	return RecordDTO{
		MappedID:   o.MappedID,
		EmployeeID: o.EmployeeID,
		Name:       o.Name,
		Date:       o.Date.String(),
		CheckIn:    clockString(o.CheckIn),
		CheckOut:   clockString(o.CheckOut),
		TotalHours: hoursFloat(o.TotalHours),
		Action:     string(o.Action),
	}
}

func timesheetDTO(r sqlite.TimesheetRecord) TimesheetDTO {
	return TimesheetDTO{
		ID:           r.ID,
		EmployeeID:   r.EmployeeID,
		EmployeeName: r.EmployeeName,
		Date:         r.Date.String(),
		CheckIn:      clockString(r.CheckIn),
		CheckOut:     clockString(r.CheckOut),
		TotalHours:   hoursFloat(r.TotalHours),
		CreatedAt:    r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func employeeDTO(e reconcile.Employee) EmployeeDTO {
	return EmployeeDTO{
		EmployeeID: e.EmployeeID,
		FirstName:  e.FirstName,
		MiddleName: e.MiddleName,
		LastName:   e.LastName,
		MappedID:   e.MappedID,
		CreatedAt:  e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func clockString(t *reconcile.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

func hoursFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f, _ := d.Decimal.Float64()
	return &f
}
