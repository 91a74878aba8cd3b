/*
compliance.go - 5-day rule compliance classification

PURPOSE:
  Derives the statutory compliance status per employee per fiscal year.
  Employees granted 10 or more days must use at least 5 within the year;
  the checker classifies progress toward that floor.

CLASSIFICATION (pure function of granted and used):
  UNKNOWN        no ledger record for the employee/year
  NOT_APPLICABLE granted < 10
  COMPLIANT      granted >= 10 and used >= 5
  AT_RISK        granted >= 10 and 3 <= used < 5
  NON_COMPLIANT  granted >= 10 and used < 3

There is no persisted state machine: the record is recomputed on demand,
and alerts are immutable values handed to the caller, never retained here.
*/
package ledger

import "context"

// =============================================================================
// COMPLIANCE STATUS
// =============================================================================

type ComplianceStatus string

const (
	ComplianceUnknown       ComplianceStatus = "UNKNOWN"
	ComplianceNotApplicable ComplianceStatus = "NOT_APPLICABLE"
	ComplianceCompliant     ComplianceStatus = "COMPLIANT"
	ComplianceAtRisk        ComplianceStatus = "AT_RISK"
	ComplianceNonCompliant  ComplianceStatus = "NON_COMPLIANT"
)

// Statutory thresholds for the 5-day rule.
var (
	ruleAppliesFrom = NewDaysFromInt(10) // granted at or above this: rule applies
	requiredUsage   = NewDaysFromInt(5)  // must use at least this within the year
	atRiskFloor     = NewDaysFromInt(3)  // below this: non-compliant outright
)

// ComplianceRecord is the derived status for one employee and fiscal year.
type ComplianceRecord struct {
	EmployeeID            EmployeeID
	FiscalYear            int
	Status                ComplianceStatus
	DaysGranted           Days
	DaysUsed              Days
	DaysRemainingToComply Days // max(0, 5 - used); zero when not applicable
}

// ComplianceAlert is the immutable event emitted for NON_COMPLIANT records.
// The caller owns delivery and any durable alert history.
type ComplianceAlert struct {
	EmployeeID            EmployeeID
	FiscalYear            int
	DaysUsed              Days
	DaysRemainingToComply Days
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Classify maps (granted, used) to a status. Pure; no store access.
func Classify(granted, used Days) ComplianceStatus {
	if granted.LessThan(ruleAppliesFrom) {
		return ComplianceNotApplicable
	}
	switch {
	case used.GreaterThan(requiredUsage) || used.Equal(requiredUsage):
		return ComplianceCompliant
	case used.GreaterThan(atRiskFloor) || used.Equal(atRiskFloor):
		return ComplianceAtRisk
	default:
		return ComplianceNonCompliant
	}
}

// daysRemainingToComply returns max(0, 5 - used).
func daysRemainingToComply(used Days) Days {
	remaining := requiredUsage.Sub(used)
	if remaining.IsNegative() {
		return ZeroDays()
	}
	return remaining
}

// =============================================================================
// COMPLIANCE CHECKER
// =============================================================================

type ComplianceChecker struct {
	store Store
}

func NewComplianceChecker(store Store) *ComplianceChecker {
	return &ComplianceChecker{store: store}
}

// Check derives the record for one employee and fiscal year.
//
// Granted counts statutory grant tranches opened in the year; adjustment
// tranches created by reversals are excluded so they cannot inflate the
// 5-day rule base. Used counts non-reversed usage events dated within the
// fiscal year.
func (c *ComplianceChecker) Check(ctx context.Context, id EmployeeID, fiscalYear int) (ComplianceRecord, *ComplianceAlert, error) {
	tranches, err := c.store.TranchesByEmployee(ctx, id)
	if err != nil {
		return ComplianceRecord{}, nil, err
	}

	granted := ZeroDays()
	found := false
	for _, t := range tranches {
		if t.FiscalYear != fiscalYear || t.Kind != TrancheGrant {
			continue
		}
		granted = granted.Add(t.Granted)
		found = true
	}

	record := ComplianceRecord{
		EmployeeID:            id,
		FiscalYear:            fiscalYear,
		DaysGranted:           granted,
		DaysUsed:              ZeroDays(),
		DaysRemainingToComply: ZeroDays(),
	}

	if !found {
		record.Status = ComplianceUnknown
		return record, nil, nil
	}

	events, err := c.store.UsageEventsInRange(ctx, id, FiscalYearStart(fiscalYear), FiscalYearEnd(fiscalYear))
	if err != nil {
		return ComplianceRecord{}, nil, err
	}
	used := ZeroDays()
	for _, ev := range events {
		if ev.IsReversed() {
			continue
		}
		used = used.Add(ev.Amount)
	}
	record.DaysUsed = used

	record.Status = Classify(granted, used)
	if record.Status == ComplianceCompliant || record.Status == ComplianceAtRisk || record.Status == ComplianceNonCompliant {
		record.DaysRemainingToComply = daysRemainingToComply(used)
	}

	if record.Status != ComplianceNonCompliant {
		return record, nil, nil
	}
	alert := &ComplianceAlert{
		EmployeeID:            id,
		FiscalYear:            fiscalYear,
		DaysUsed:              used,
		DaysRemainingToComply: record.DaysRemainingToComply,
	}
	return record, alert, nil
}
