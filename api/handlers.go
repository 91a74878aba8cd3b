/*
handlers.go - HTTP API handlers for the leave ledger

PURPOSE:
  Exposes the leave ledger facade via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                         List all employees
    POST   /api/employees                         Register employee
    GET    /api/employees/{id}                    Get employee details
    GET    /api/employees/{id}/balance            Balance snapshot (?year=)
    GET    /api/employees/{id}/grant              Statutory grant preview (?as_of=)
    POST   /api/employees/{id}/leave              Record approved leave

  Leave:
    POST   /api/leave/{eventID}/reverse           Reverse a recorded leave

  Admin:
    POST   /api/admin/rollover                    Run year-end rollover
    GET    /api/admin/rollover/runs               Recorded outcomes (?year=)
    POST   /api/admin/grants                      Manual grant tranche

  Compliance & expiry:
    GET    /api/compliance/{year}                 Five-day obligation report
    GET    /api/expiring                          Upcoming expirations (?window=, ?year=)

  Annual ledger:
    GET    /api/ledger/{year}                     Ledger rows as JSON
    GET    /api/ledger/{year}/csv                 Statutory CSV export

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Employee/event not found
  - 409: Insufficient balance, double reversal
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hrkit/leave-ledger/ledger"
	"github.com/hrkit/leave-ledger/report"
	"github.com/hrkit/leave-ledger/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// RolloverAuditor persists year-end run outcomes so operators can inspect
// and retry failures. The sqlite store implements it; nil disables auditing.
type RolloverAuditor interface {
	SaveRolloverRuns(ctx context.Context, report ledger.RolloverReport) error
	ListRolloverRuns(ctx context.Context, fiscalYear int) ([]sqlite.RolloverRun, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Facade *ledger.Facade
	Audit  RolloverAuditor
	Clock  ledger.Clock
}

// NewHandler creates a new handler around the facade. audit may be nil.
func NewHandler(facade *ledger.Facade, audit RolloverAuditor) *Handler {
	return &Handler{
		Facade: facade,
		Audit:  audit,
		Clock:  ledger.SystemClock{},
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Facade.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee registers a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	hireDate, err := ledger.ParseDate(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date, expected YYYY-MM-DD", err)
		return
	}

	emp := ledger.Employee{
		ID:       ledger.EmployeeID(req.ID),
		Name:     req.Name,
		HireDate: hireDate,
	}
	if err := h.Facade.RegisterEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to register employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := ledger.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Facade.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// GetBalance returns the employee's balance snapshot for a fiscal year.
// Defaults to the current fiscal year when ?year= is absent.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := ledger.EmployeeID(chi.URLParam(r, "id"))

	year, ok := h.fiscalYearParam(w, r)
	if !ok {
		return
	}

	snap, err := h.Facade.Balance(r.Context(), id, year)
	if err != nil {
		writeDomainError(w, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(snap))
}

// GetGrantRecommendation previews the statutory grant for an employee at a
// date (?as_of=YYYY-MM-DD, default today).
func (h *Handler) GetGrantRecommendation(w http.ResponseWriter, r *http.Request) {
	id := ledger.EmployeeID(chi.URLParam(r, "id"))

	asOf := h.Clock.Today()
	if s := r.URL.Query().Get("as_of"); s != "" {
		var err error
		if asOf, err = ledger.ParseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of, expected YYYY-MM-DD", err)
			return
		}
	}

	days, err := h.Facade.GrantRecommendation(r.Context(), id, asOf)
	if err != nil {
		writeDomainError(w, "Failed to compute grant", err)
		return
	}
	writeJSON(w, http.StatusOK, GrantRecommendationDTO{
		EmployeeID: string(id),
		AsOf:       asOf.String(),
		Days:       days,
	})
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// RecordLeave records an approved leave deduction for an employee.
func (h *Handler) RecordLeave(w http.ResponseWriter, r *http.Request) {
	id := ledger.EmployeeID(chi.URLParam(r, "id"))

	var req RecordLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	useDate, err := ledger.ParseDate(req.UseDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid use_date, expected YYYY-MM-DD", err)
		return
	}

	ev, err := h.Facade.RecordApprovedLeave(r.Context(), id, useDate, ledger.NewDays(req.Amount), req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to record leave", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUsageEventDTO(ev))
}

// ReverseLeave reverses a previously recorded leave event.
func (h *Handler) ReverseLeave(w http.ResponseWriter, r *http.Request) {
	eventID := ledger.UsageEventID(chi.URLParam(r, "eventID"))

	if err := h.Facade.ReverseLeave(r.Context(), eventID); err != nil {
		writeDomainError(w, "Failed to reverse leave", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reversed"})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerRollover runs the year-end rollover for a fiscal year. Partial
// failures return 207 with per-employee outcomes.
func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	var req RolloverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FiscalYear == 0 {
		writeError(w, http.StatusBadRequest, "fiscal_year is required", nil)
		return
	}

	rep, err := h.Facade.RunYearEndRollover(r.Context(), req.FiscalYear)
	if err != nil && !errors.Is(err, ledger.ErrRolloverPartialFailure) {
		writeError(w, http.StatusInternalServerError, "Rollover failed", err)
		return
	}

	if h.Audit != nil {
		if auditErr := h.Audit.SaveRolloverRuns(r.Context(), rep); auditErr != nil {
			writeError(w, http.StatusInternalServerError, "Failed to record rollover outcomes", auditErr)
			return
		}
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, toRolloverReportDTO(rep))
}

// ListRolloverRuns returns recorded year-end outcomes for a fiscal year.
func (h *Handler) ListRolloverRuns(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeError(w, http.StatusNotFound, "Rollover auditing is not enabled", nil)
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year, expected integer", err)
		return
	}

	runs, err := h.Audit.ListRolloverRuns(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rollover runs", err)
		return
	}
	if runs == nil {
		runs = []sqlite.RolloverRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// CreateGrant records a manual grant tranche outside the rollover cycle.
func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	var req GrantTrancheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	grantDate, err := ledger.ParseDate(req.GrantDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid grant_date, expected YYYY-MM-DD", err)
		return
	}

	amount := ledger.NewDays(req.Days)
	tranche := &ledger.GrantTranche{
		EmployeeID: ledger.EmployeeID(req.EmployeeID),
		FiscalYear: ledger.FiscalYearOf(grantDate),
		GrantDate:  grantDate,
		Granted:    amount,
		Remaining:  amount,
	}
	if err := h.Facade.GrantTrancheDirect(r.Context(), tranche); err != nil {
		writeDomainError(w, "Failed to create grant", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"tranche_id": string(tranche.ID)})
}

// =============================================================================
// COMPLIANCE & EXPIRY HANDLERS
// =============================================================================

// GetComplianceReport returns the five-day obligation status of every
// employee for a fiscal year.
func (h *Handler) GetComplianceReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fiscal year", err)
		return
	}

	records, err := h.Facade.ComplianceReport(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build compliance report", err)
		return
	}

	dtos := make([]ComplianceRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toComplianceRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetExpiring returns employees with balances expiring within the window
// (?window=days, default 30; ?year= limits the scan to one grant cohort).
func (h *Handler) GetExpiring(w http.ResponseWriter, r *http.Request) {
	window := ledger.DefaultExpiryWindowDays
	if s := r.URL.Query().Get("window"); s != "" {
		var err error
		if window, err = strconv.Atoi(s); err != nil || window <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid window, expected positive integer days", err)
			return
		}
	}

	fiscalYear := 0
	if s := r.URL.Query().Get("year"); s != "" {
		var err error
		if fiscalYear, err = strconv.Atoi(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year, expected integer", err)
			return
		}
	}

	alerts, err := h.Facade.ExpiringSoon(r.Context(), fiscalYear, window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to scan expirations", err)
		return
	}

	dtos := make([]ExpiryAlertDTO, len(alerts))
	for i, a := range alerts {
		dtos[i] = toExpiryAlertDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ANNUAL LEDGER HANDLERS
// =============================================================================

// GetAnnualLedger returns the annual ledger rows as JSON.
func (h *Handler) GetAnnualLedger(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fiscal year", err)
		return
	}

	rows, err := h.Facade.AnnualLedger(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build annual ledger", err)
		return
	}

	dtos := make([]LedgerRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toLedgerRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportAnnualLedgerCSV streams the statutory CSV export.
func (h *Handler) ExportAnnualLedgerCSV(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fiscal year", err)
		return
	}

	rows, err := h.Facade.AnnualLedger(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build annual ledger", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="annual-leave-ledger-%d.csv"`, year))
	if err := report.WriteLedgerCSV(w, rows); err != nil {
		// Headers already sent; nothing sensible left to do but log via
		// the middleware's panic-free path.
		return
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) fiscalYearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	if s := r.URL.Query().Get("year"); s != "" {
		year, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year, expected integer", err)
			return 0, false
		}
		return year, true
	}
	return ledger.FiscalYearOf(h.Clock.Today()), true
}

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

// writeDomainError maps domain sentinels to HTTP status codes. Anything
// that is neither a missing record nor bad client input is a 500.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsClientError(err):
		status := http.StatusConflict
		if errors.Is(err, ledger.ErrInvalidAmount) {
			status = http.StatusBadRequest
		}
		writeError(w, status, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
