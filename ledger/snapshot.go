/*
snapshot.go - Derived balance views

PURPOSE:
  Computes the per-employee, per-fiscal-year BalanceSnapshot from tranches.
  Snapshots are derived views, never a source of truth: they are recomputed
  from the tranche set on demand and emitted for auditing at rollover.

ACCOUNTING IDENTITY:
  For every tranche: granted = used + expired + remaining, by construction.
  Summing over a fiscal-year cohort gives the snapshot invariant
  granted = used + expired + balance.
*/
package ledger

import "context"

// =============================================================================
// BALANCE SNAPSHOT - Computed per employee per fiscal-year cohort
// =============================================================================

// BalanceSnapshot aggregates one fiscal year's tranche cohort plus the
// employee's total open balance across all cohorts.
type BalanceSnapshot struct {
	EmployeeID EmployeeID
	FiscalYear int
	AsOf       Date

	// Cohort totals: tranches opened in this fiscal year.
	Granted Days
	Used    Days
	Expired Days

	// Remaining in this cohort's tranches.
	CohortBalance Days

	// Total remaining across ALL open tranches (what the employee can spend).
	TotalBalance Days
}

// Balanced reports whether the cohort identity granted = used + expired +
// balance holds. It always should; exposed for audits and tests.
func (s BalanceSnapshot) Balanced() bool {
	return s.Granted.Equal(s.Used.Add(s.Expired).Add(s.CohortBalance))
}

// ComputeSnapshot derives the snapshot for one employee and fiscal year from
// the full tranche set.
func ComputeSnapshot(tranches []GrantTranche, employeeID EmployeeID, fiscalYear int, asOf Date) BalanceSnapshot {
	snap := BalanceSnapshot{
		EmployeeID:    employeeID,
		FiscalYear:    fiscalYear,
		AsOf:          asOf,
		Granted:       ZeroDays(),
		Used:          ZeroDays(),
		Expired:       ZeroDays(),
		CohortBalance: ZeroDays(),
		TotalBalance:  ZeroDays(),
	}

	for _, t := range tranches {
		if t.IsOpen(asOf) {
			snap.TotalBalance = snap.TotalBalance.Add(t.Remaining)
		}
		if t.FiscalYear != fiscalYear {
			continue
		}
		snap.Granted = snap.Granted.Add(t.Granted)
		snap.Used = snap.Used.Add(t.Used())
		snap.Expired = snap.Expired.Add(t.Expired)
		if asOf.BeforeOrEqual(t.ExpiryDate) {
			snap.CohortBalance = snap.CohortBalance.Add(t.Remaining)
		} else {
			// Window elapsed but ApplyExpiry has not run yet: the remainder
			// reads as expired, never as balance.
			snap.Expired = snap.Expired.Add(t.Remaining)
		}
	}
	return snap
}

// SnapshotFor loads the employee's tranches and derives the snapshot.
func SnapshotFor(ctx context.Context, store Store, id EmployeeID, fiscalYear int, asOf Date) (BalanceSnapshot, error) {
	tranches, err := store.TranchesByEmployee(ctx, id)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	return ComputeSnapshot(tranches, id, fiscalYear, asOf), nil
}
