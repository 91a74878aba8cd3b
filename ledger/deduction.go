/*
deduction.go - LIFO deduction and compensating reversal

PURPOSE:
  Applies an approved leave request against an employee's open tranches and
  undoes a previous deduction via a compensating reversal.

ORDERING RULE:
  Tranches are consumed most-recently-granted FIRST (LIFO). Within equal
  grant dates, ordering is stable by insertion order. Oldest-first would
  minimize forfeiture of soon-to-expire days; the LIFO policy is the recorded
  business behavior and is preserved here exactly. See DESIGN.md before
  changing it.

ATOMICITY:
  The walk and the debits run inside one store transaction. If the open
  tranches cannot cover the requested amount, nothing is committed and the
  caller gets InsufficientBalanceError with the shortfall.

REVERSAL:
  Each debited tranche is re-credited by its recorded amount — but only if
  the tranche is still open. Credits against an expired tranche become a
  zero-duration adjustment tranche (granted and expired in the same breath),
  so reversed days never silently reappear past their legal window.
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
)

// =============================================================================
// DEDUCTION ENGINE
// =============================================================================

type DeductionEngine struct {
	store TxStore
}

func NewDeductionEngine(store TxStore) *DeductionEngine {
	return &DeductionEngine{store: store}
}

// ValidateAmount rejects zero, negative, and non-half-day amounts before the
// store is touched.
func ValidateAmount(amount Days) error {
	if !amount.IsPositive() {
		return &InvalidAmountError{Amount: amount, Reason: "must be positive"}
	}
	if !amount.IsHalfDayMultiple() {
		return &InvalidAmountError{Amount: amount, Reason: "must be a multiple of half a day"}
	}
	return nil
}

// Apply deducts the event's amount from the employee's open tranches as of
// the use date and returns the event with its attribution list filled in.
// All-or-nothing: on InsufficientBalance no tranche is debited.
func (e *DeductionEngine) Apply(ctx context.Context, ev UsageEvent) (UsageEvent, error) {
	if err := ValidateAmount(ev.Amount); err != nil {
		return UsageEvent{}, err
	}

	result := ev
	err := e.store.WithTx(ctx, func(s Store) error {
		open, err := s.OpenTranches(ctx, ev.EmployeeID, ev.UseDate)
		if err != nil {
			return err
		}

		debits, shortfall := planDebits(open, ev.Amount)
		if shortfall.IsPositive() {
			available := ev.Amount.Sub(shortfall)
			return &InsufficientBalanceError{
				EmployeeID: ev.EmployeeID,
				Requested:  ev.Amount,
				Available:  available,
				Shortfall:  shortfall,
			}
		}

		for _, d := range debits {
			if err := s.DebitTranche(ctx, d.TrancheID, d.Amount); err != nil {
				return err
			}
		}

		result.Debits = debits
		return s.SaveUsageEvent(ctx, result)
	})
	if err != nil {
		return UsageEvent{}, err
	}
	return result, nil
}

// planDebits walks the pool most-recently-granted first, taking
// min(remaining, still needed) from each tranche. Returns the attribution
// list and any uncovered remainder.
func planDebits(pool []GrantTranche, amount Days) ([]TrancheDebit, Days) {
	ordered := make([]GrantTranche, len(pool))
	copy(ordered, pool)

	// LIFO: newest grant date first; stable by Seq for equal dates.
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].GrantDate.Equal(ordered[j].GrantDate) {
			return ordered[i].GrantDate.After(ordered[j].GrantDate)
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	var debits []TrancheDebit
	needed := amount
	for _, t := range ordered {
		if !needed.IsPositive() {
			break
		}
		take := t.Remaining.Min(needed)
		if !take.IsPositive() {
			continue
		}
		debits = append(debits, TrancheDebit{TrancheID: t.ID, Amount: take})
		needed = needed.Sub(take)
	}
	return debits, needed
}

// Reverse applies a compensating credit for a previously-recorded usage
// event. Tranches that expired since the deduction get their credit as a
// zero-duration adjustment tranche instead of a live balance.
func (e *DeductionEngine) Reverse(ctx context.Context, eventID UsageEventID, asOf Date) error {
	return e.store.WithTx(ctx, func(s Store) error {
		ev, err := s.GetUsageEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return fmt.Errorf("%w: %s", ErrUsageEventNotFound, eventID)
		}
		if ev.IsReversed() {
			return fmt.Errorf("%w: %s", ErrAlreadyReversed, eventID)
		}

		tranches, err := s.TranchesByEmployee(ctx, ev.EmployeeID)
		if err != nil {
			return err
		}
		byID := make(map[TrancheID]GrantTranche, len(tranches))
		for _, t := range tranches {
			byID[t.ID] = t
		}

		for _, d := range ev.Debits {
			t, ok := byID[d.TrancheID]
			if !ok {
				return fmt.Errorf("%w: %s", ErrTrancheNotFound, d.TrancheID)
			}

			if asOf.BeforeOrEqual(t.ExpiryDate) {
				if err := s.CreditTranche(ctx, t.ID, d.Amount); err != nil {
					return err
				}
				continue
			}

			// The original tranche lapsed. The credit lands as an
			// already-expired adjustment so the cohort ledger stays balanced
			// without reviving the days.
			adj := &GrantTranche{
				EmployeeID: ev.EmployeeID,
				FiscalYear: FiscalYearOf(asOf),
				Kind:       TrancheAdjustment,
				GrantDate:  asOf,
				ExpiryDate: asOf,
				Granted:    d.Amount,
				Remaining:  ZeroDays(),
				Expired:    d.Amount,
			}
			if err := s.AddTranche(ctx, adj); err != nil {
				return err
			}
		}

		return s.MarkReversed(ctx, eventID, asOf)
	})
}
