/*
carryover.go - Fiscal-year rollover

PURPOSE:
  Runs once per fiscal-year transition for every employee:
  1. Expire tranches whose two-year window elapsed by the new grant date
  2. Grant the new year's tranche from the statutory table
  3. Enforce the 40-day accumulation ceiling (surplus expires, oldest first)
  4. Emit a BalanceSnapshot for auditing

FAILURE HANDLING:
  Each employee's rollover is its own store transaction. A failure skips
  that employee with a recorded error and the batch continues; the result
  reports per-employee outcomes rather than a single boolean.
*/
package ledger

import (
	"context"
	"fmt"
	"log"
)

// =============================================================================
// ROLLOVER RESULTS
// =============================================================================

// RolloverResult is one employee's outcome from a year-end run.
type RolloverResult struct {
	EmployeeID EmployeeID
	Granted    Days
	Expired    Days // window expiry plus ceiling surplus
	Snapshot   BalanceSnapshot
	Err        error
}

// RolloverReport aggregates a batch run.
type RolloverReport struct {
	FiscalYear int
	Results    []RolloverResult
}

// Failed returns the employees whose rollover did not complete.
func (r RolloverReport) Failed() []EmployeeID {
	var failed []EmployeeID
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res.EmployeeID)
		}
	}
	return failed
}

// =============================================================================
// CARRYOVER PROCESSOR
// =============================================================================

type CarryoverProcessor struct {
	store  TxStore
	grants *GrantCalculator
}

func NewCarryoverProcessor(store TxStore, grants *GrantCalculator) *CarryoverProcessor {
	return &CarryoverProcessor{store: store, grants: grants}
}

// Run processes the transition into the given fiscal year for every
// employee. Returns the per-employee report; the error is
// ErrRolloverPartialFailure when at least one employee failed.
func (p *CarryoverProcessor) Run(ctx context.Context, newFiscalYear int) (RolloverReport, error) {
	employees, err := p.store.ListEmployees(ctx)
	if err != nil {
		return RolloverReport{FiscalYear: newFiscalYear}, err
	}

	report := RolloverReport{FiscalYear: newFiscalYear}
	for _, emp := range employees {
		res := p.rolloverEmployee(ctx, emp, newFiscalYear)
		if res.Err != nil {
			log.Printf("rollover FY%d: employee %s skipped: %v", newFiscalYear, emp.ID, res.Err)
		}
		report.Results = append(report.Results, res)
	}

	if failed := report.Failed(); len(failed) > 0 {
		return report, &RolloverError{FiscalYear: newFiscalYear, Failed: failed}
	}
	return report, nil
}

// RolloverEmployee processes a single employee (used by Run and exposed for
// operator retries after a partial failure).
func (p *CarryoverProcessor) RolloverEmployee(ctx context.Context, id EmployeeID, newFiscalYear int) (RolloverResult, error) {
	emp, err := p.store.GetEmployee(ctx, id)
	if err != nil {
		return RolloverResult{EmployeeID: id, Err: err}, err
	}
	if emp == nil {
		err := fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
		return RolloverResult{EmployeeID: id, Err: err}, err
	}
	res := p.rolloverEmployee(ctx, *emp, newFiscalYear)
	return res, res.Err
}

func (p *CarryoverProcessor) rolloverEmployee(ctx context.Context, emp Employee, newFiscalYear int) RolloverResult {
	res := RolloverResult{EmployeeID: emp.ID, Granted: ZeroDays(), Expired: ZeroDays()}
	grantDate := FiscalYearStart(newFiscalYear)

	res.Err = p.store.WithTx(ctx, func(s Store) error {
		// 1. Close out tranches whose window elapsed.
		expired, err := ApplyExpiry(ctx, s, emp.ID, grantDate)
		if err != nil {
			return err
		}
		res.Expired = res.Expired.Add(expired)

		// 2. New year's statutory grant. Skipped if one already exists so a
		// re-run after a partial failure cannot double-grant.
		granted, err := hasGrantForYear(ctx, s, emp.ID, newFiscalYear)
		if err != nil {
			return err
		}
		days := p.grants.GrantedDaysAt(emp, grantDate)
		if days > 0 && !granted {
			tranche := &GrantTranche{
				EmployeeID: emp.ID,
				FiscalYear: newFiscalYear,
				Kind:       TrancheGrant,
				GrantDate:  grantDate,
				ExpiryDate: StatutoryExpiry(grantDate),
				Granted:    NewDaysFromInt(days),
				Remaining:  NewDaysFromInt(days),
				Expired:    ZeroDays(),
			}
			if err := s.AddTranche(ctx, tranche); err != nil {
				return err
			}
			res.Granted = tranche.Granted
		}

		// 3. Accumulation ceiling. Surplus expires from the oldest open
		// tranches first; it must land in the expired total, never vanish.
		capped, err := p.enforceCeiling(ctx, s, emp.ID, grantDate)
		if err != nil {
			return err
		}
		res.Expired = res.Expired.Add(capped)

		// 4. Audit snapshot for the new year.
		snap, err := SnapshotFor(ctx, s, emp.ID, newFiscalYear, grantDate)
		if err != nil {
			return err
		}
		res.Snapshot = snap
		return nil
	})

	return res
}

// hasGrantForYear reports whether a statutory grant tranche already exists
// for the fiscal year. Adjustment tranches do not count.
func hasGrantForYear(ctx context.Context, s Store, id EmployeeID, fiscalYear int) (bool, error) {
	tranches, err := s.TranchesByEmployee(ctx, id)
	if err != nil {
		return false, err
	}
	for _, t := range tranches {
		if t.FiscalYear == fiscalYear && t.Kind == TrancheGrant {
			return true, nil
		}
	}
	return false, nil
}

// enforceCeiling trims total open balance down to MaxAccumulatedDays.
// Returns the amount pushed into expired.
func (p *CarryoverProcessor) enforceCeiling(ctx context.Context, s Store, id EmployeeID, asOf Date) (Days, error) {
	open, err := s.OpenTranches(ctx, id, asOf)
	if err != nil {
		return ZeroDays(), err
	}

	total := ZeroDays()
	for _, t := range open {
		total = total.Add(t.Remaining)
	}
	surplus := total.Sub(MaxAccumulatedDays)
	if !surplus.IsPositive() {
		return ZeroDays(), nil
	}

	// OpenTranches is ordered grant date ascending: oldest first, which is
	// the balance nearest its legal window.
	trimmed := ZeroDays()
	for _, t := range open {
		if !surplus.IsPositive() {
			break
		}
		cut := t.Remaining.Min(surplus)
		if err := s.ExpireTranche(ctx, t.ID, cut); err != nil {
			return ZeroDays(), err
		}
		surplus = surplus.Sub(cut)
		trimmed = trimmed.Add(cut)
	}
	return trimmed, nil
}
