/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients, plus conversion helpers
  from domain types. Domain types never cross the HTTP boundary directly:
  dates serialize as "2006-01-02" strings and day amounts as JSON numbers,
  regardless of the decimal representation used internally.

SEE ALSO:
  - handlers.go: Handlers producing/consuming these DTOs
*/
package api

import (
	"github.com/hrkit/leave-ledger/ledger"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO is the API representation of an employee.
type EmployeeDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HireDate string `json:"hire_date"`
}

// CreateEmployeeRequest registers a new employee.
type CreateEmployeeRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HireDate string `json:"hire_date"` // YYYY-MM-DD
}

func toEmployeeDTO(e ledger.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:       string(e.ID),
		Name:     e.Name,
		HireDate: e.HireDate.String(),
	}
}

// =============================================================================
// BALANCE
// =============================================================================

// BalanceDTO summarizes one fiscal-year cohort plus the spendable total.
type BalanceDTO struct {
	EmployeeID    string  `json:"employee_id"`
	FiscalYear    int     `json:"fiscal_year"`
	AsOf          string  `json:"as_of"`
	Granted       float64 `json:"granted"`
	Used          float64 `json:"used"`
	Expired       float64 `json:"expired"`
	CohortBalance float64 `json:"cohort_balance"`
	TotalBalance  float64 `json:"total_balance"`
}

func toBalanceDTO(s ledger.BalanceSnapshot) BalanceDTO {
	return BalanceDTO{
		EmployeeID:    string(s.EmployeeID),
		FiscalYear:    s.FiscalYear,
		AsOf:          s.AsOf.String(),
		Granted:       daysFloat(s.Granted),
		Used:          daysFloat(s.Used),
		Expired:       daysFloat(s.Expired),
		CohortBalance: daysFloat(s.CohortBalance),
		TotalBalance:  daysFloat(s.TotalBalance),
	}
}

// GrantRecommendationDTO is the statutory grant for an employee at a date.
type GrantRecommendationDTO struct {
	EmployeeID string `json:"employee_id"`
	AsOf       string `json:"as_of"`
	Days       int    `json:"days"`
}

// =============================================================================
// LEAVE USAGE
// =============================================================================

// RecordLeaveRequest records an approved leave deduction.
type RecordLeaveRequest struct {
	UseDate string  `json:"use_date"` // YYYY-MM-DD
	Amount  float64 `json:"amount"`   // whole or half days
	Reason  string  `json:"reason,omitempty"`
}

// TrancheDebitDTO attributes part of a usage event to one tranche.
type TrancheDebitDTO struct {
	TrancheID string  `json:"tranche_id"`
	Amount    float64 `json:"amount"`
}

// UsageEventDTO is the API representation of a recorded deduction.
type UsageEventDTO struct {
	ID         string            `json:"id"`
	EmployeeID string            `json:"employee_id"`
	UseDate    string            `json:"use_date"`
	Amount     float64           `json:"amount"`
	Reason     string            `json:"reason,omitempty"`
	Debits     []TrancheDebitDTO `json:"debits"`
	ReversedAt *string           `json:"reversed_at,omitempty"`
}

func toUsageEventDTO(ev ledger.UsageEvent) UsageEventDTO {
	debits := make([]TrancheDebitDTO, len(ev.Debits))
	for i, d := range ev.Debits {
		debits[i] = TrancheDebitDTO{
			TrancheID: string(d.TrancheID),
			Amount:    daysFloat(d.Amount),
		}
	}

	dto := UsageEventDTO{
		ID:         string(ev.ID),
		EmployeeID: string(ev.EmployeeID),
		UseDate:    ev.UseDate.String(),
		Amount:     daysFloat(ev.Amount),
		Reason:     ev.Reason,
		Debits:     debits,
	}
	if ev.ReversedAt != nil {
		s := ev.ReversedAt.String()
		dto.ReversedAt = &s
	}
	return dto
}

// =============================================================================
// ADMIN
// =============================================================================

// GrantTrancheRequest creates a manual grant outside the rollover cycle
// (mid-year hires, negotiated extras).
type GrantTrancheRequest struct {
	EmployeeID string  `json:"employee_id"`
	GrantDate  string  `json:"grant_date"` // YYYY-MM-DD
	Days       float64 `json:"days"`
}

// RolloverRequest triggers the year-end batch for one fiscal year.
type RolloverRequest struct {
	FiscalYear int `json:"fiscal_year"`
}

// RolloverResultDTO is one employee's outcome within a batch run.
type RolloverResultDTO struct {
	EmployeeID string  `json:"employee_id"`
	Granted    float64 `json:"granted"`
	Expired    float64 `json:"expired"`
	Error      string  `json:"error,omitempty"`
}

// RolloverReportDTO summarizes a batch run.
type RolloverReportDTO struct {
	FiscalYear int                 `json:"fiscal_year"`
	Results    []RolloverResultDTO `json:"results"`
	Failed     []string            `json:"failed,omitempty"`
}

func toRolloverReportDTO(r ledger.RolloverReport) RolloverReportDTO {
	dto := RolloverReportDTO{FiscalYear: r.FiscalYear}
	for _, res := range r.Results {
		rd := RolloverResultDTO{
			EmployeeID: string(res.EmployeeID),
			Granted:    daysFloat(res.Granted),
			Expired:    daysFloat(res.Expired),
		}
		if res.Err != nil {
			rd.Error = res.Err.Error()
		}
		dto.Results = append(dto.Results, rd)
	}
	for _, id := range r.Failed() {
		dto.Failed = append(dto.Failed, string(id))
	}
	return dto
}

// =============================================================================
// COMPLIANCE & EXPIRY
// =============================================================================

// ComplianceRecordDTO is one employee's five-day obligation status.
type ComplianceRecordDTO struct {
	EmployeeID            string  `json:"employee_id"`
	FiscalYear            int     `json:"fiscal_year"`
	Status                string  `json:"status"`
	DaysGranted           float64 `json:"days_granted"`
	DaysUsed              float64 `json:"days_used"`
	DaysRemainingToComply float64 `json:"days_remaining_to_comply"`
}

func toComplianceRecordDTO(r ledger.ComplianceRecord) ComplianceRecordDTO {
	return ComplianceRecordDTO{
		EmployeeID:            string(r.EmployeeID),
		FiscalYear:            r.FiscalYear,
		Status:                string(r.Status),
		DaysGranted:           daysFloat(r.DaysGranted),
		DaysUsed:              daysFloat(r.DaysUsed),
		DaysRemainingToComply: daysFloat(r.DaysRemainingToComply),
	}
}

// ExpiringTrancheDTO is one tranche inside an expiry alert.
type ExpiringTrancheDTO struct {
	TrancheID    string  `json:"tranche_id"`
	FiscalYear   int     `json:"fiscal_year"`
	AtRiskAmount float64 `json:"at_risk_amount"`
	ExpiryDate   string  `json:"expiry_date"`
	DaysToExpiry int     `json:"days_to_expiry"`
	Severity     string  `json:"severity"`
}

// ExpiryAlertDTO is one employee's upcoming-expiration alert.
type ExpiryAlertDTO struct {
	EmployeeID   string               `json:"employee_id"`
	AtRiskAmount float64              `json:"at_risk_amount"`
	Severity     string               `json:"severity"`
	Tranches     []ExpiringTrancheDTO `json:"tranches"`
}

func toExpiryAlertDTO(a ledger.ExpiryAlert) ExpiryAlertDTO {
	dto := ExpiryAlertDTO{
		EmployeeID:   string(a.EmployeeID),
		AtRiskAmount: daysFloat(a.AtRiskAmount),
		Severity:     string(a.Severity),
	}
	for _, t := range a.Tranches {
		dto.Tranches = append(dto.Tranches, ExpiringTrancheDTO{
			TrancheID:    string(t.TrancheID),
			FiscalYear:   t.FiscalYear,
			AtRiskAmount: daysFloat(t.AtRiskAmount),
			ExpiryDate:   t.ExpiryDate.String(),
			DaysToExpiry: t.DaysToExpiry,
			Severity:     string(t.Severity),
		})
	}
	return dto
}

// =============================================================================
// ANNUAL LEDGER
// =============================================================================

// LedgerRowDTO is one row of the annual ledger in JSON form. The CSV export
// at /api/ledger/{year}/csv carries the statutory Japanese headers.
type LedgerRowDTO struct {
	EmployeeID string   `json:"employee_id"`
	Name       string   `json:"name"`
	GrantDate  string   `json:"grant_date"`
	Granted    float64  `json:"granted"`
	UsageDates []string `json:"usage_dates"`
	Used       float64  `json:"used"`
	Remaining  float64  `json:"remaining"`
	FiscalYear int      `json:"fiscal_year"`
}

func toLedgerRowDTO(r ledger.LedgerRow) LedgerRowDTO {
	dates := make([]string, len(r.UsageDates))
	for i, d := range r.UsageDates {
		dates[i] = d.String()
	}
	return LedgerRowDTO{
		EmployeeID: string(r.EmployeeID),
		Name:       r.Name,
		GrantDate:  r.GrantDate.String(),
		Granted:    daysFloat(r.Granted),
		UsageDates: dates,
		Used:       daysFloat(r.Used),
		Remaining:  daysFloat(r.Remaining),
		FiscalYear: r.FiscalYear,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON error envelope for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func daysFloat(d ledger.Days) float64 {
	return d.Decimal().InexactFloat64()
}
