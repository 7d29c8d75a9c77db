/*
handlers.go - HTTP API handlers for the attendance reconciliation service

PURPOSE:
  Exposes the reconciliation engine and the attendance ledger via REST.
  Handles HTTP request/response, JSON serialization, and delegates to the
  domain logic.

ENDPOINTS:
  Timesheets:
    POST   /api/timesheets/upload          Upload a workbook and reconcile it
    GET    /api/timesheets                 List all entries (newest first)
    GET    /api/timesheets/employee/{id}   List one employee's entries

  Employees:
    GET    /api/employees                  List directory records
    POST   /api/employees                  Create/update a directory record
    GET    /api/employees/{id}             Get one directory record

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Missing file, empty workbook, invalid input
  - 404: Resource not found
  - 500: Batch-fatal reconciliation or storage errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - reconcile/engine.go: The logic these handlers front
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/ingest"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/store/sqlite"
)

// maxUploadBytes bounds in-memory multipart parsing.
const maxUploadBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *reconcile.Engine
	log    *zap.Logger
}

// NewHandler creates a handler over the given store. A nil logger disables
// logging.
func NewHandler(store *sqlite.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:  store,
		Engine: reconcile.NewEngine(store, store, log.Named("reconcile")),
		log:    log,
	}
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// UploadTimesheet accepts a multipart workbook upload, reconciles it, and
// returns the batch summary plus per-row outcomes.
func (h *Handler) UploadTimesheet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded", err)
		return
	}
	defer file.Close()

	h.log.Info("processing timesheet upload", zap.String("filename", header.Filename))

	rows, err := ingest.Rows(file)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyWorkbook) {
			writeError(w, http.StatusBadRequest, "No rows found in Excel file", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read Excel file", err)
		return
	}

	result, err := h.Engine.Reconcile(r.Context(), rows)
	if err != nil {
		if errors.Is(err, reconcile.ErrNoRows) {
			writeError(w, http.StatusBadRequest, "No rows found in Excel file", nil)
			return
		}
		h.log.Error("batch reconciliation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process timesheet", err)
		return
	}

	records := make([]RecordDTO, len(result.Records))
	for i, o := range result.Records {
		records[i] = outcomeDTO(o)
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success: true,
		Message: "Timesheet processed successfully",
		Summary: SummaryDTO{
			Created: result.Stats.Created,
			Updated: result.Stats.Updated,
			Skipped: result.Stats.Skipped,
		},
		Records: records,
	})
}

// ListTimesheets returns every ledger entry with employee names joined in.
func (h *Handler) ListTimesheets(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListTimesheets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch timesheets", err)
		return
	}

	dtos := make([]TimesheetDTO, len(records))
	for i, rec := range records {
		dtos[i] = timesheetDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployeeTimesheets returns one employee's entries, 404 when none exist.
func (h *Handler) GetEmployeeTimesheets(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	records, err := h.Store.ListTimesheetsByEmployee(r.Context(), employeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch timesheets", err)
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "No timesheets found for this employee", nil)
		return
	}

	dtos := make([]EmployeeTimesheetDTO, len(records))
	for i, rec := range records {
		dtos[i] = EmployeeTimesheetDTO{
			ID:         rec.ID,
			Date:       rec.Date.String(),
			CheckIn:    clockString(rec.CheckIn),
			CheckOut:   clockString(rec.CheckOut),
			TotalHours: hoursFloat(rec.TotalHours),
		}
	}

	writeJSON(w, http.StatusOK, EmployeeTimesheetsResponse{
		EmployeeID:   employeeID,
		EmployeeName: records[0].EmployeeName,
		Timesheets:   dtos,
	})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all directory records.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = employeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates or updates a directory record.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if strings.TrimSpace(req.EmployeeID) == "" ||
		strings.TrimSpace(req.FirstName) == "" ||
		strings.TrimSpace(req.LastName) == "" {
		writeError(w, http.StatusBadRequest, "employee_id, first_name, and last_name are required", nil)
		return
	}

	employee := reconcile.Employee{
		EmployeeID: strings.TrimSpace(req.EmployeeID),
		FirstName:  strings.TrimSpace(req.FirstName),
		MiddleName: strings.TrimSpace(req.MiddleName),
		LastName:   strings.TrimSpace(req.LastName),
		MappedID:   req.MappedID,
	}

	if err := h.Store.SaveEmployee(r.Context(), employee); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}

	saved, err := h.Store.GetEmployee(r.Context(), employee.EmployeeID)
	if err != nil || saved == nil {
		writeError(w, http.StatusInternalServerError, "Failed to read back employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, employeeDTO(*saved))
}

// GetEmployee returns a single directory record.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	employee, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if employee == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, employeeDTO(*employee))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
