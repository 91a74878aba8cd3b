/*
store.go - Persistence interface for employees, tranches, and usage events

PURPOSE:
  Defines the interface between the ledger engine and the database. The
  engine owns the business rules; the store owns durability and the atomic
  read-modify-write boundary.

MUTATION DISCIPLINE:
  Tranche amounts move in one direction per operation:
  - DebitTranche:  remaining -= amount (never below zero)
  - CreditTranche: remaining += amount (never above granted)
  - ExpireTranche: remaining -> expired (idempotent once drained)
  UsageEvents are append-only; the only post-creation write is MarkReversed.

ATOMICITY:
  TxStore.WithTx gives the engine an all-or-nothing boundary: a failed
  deduction must never leave a tranche partially debited. Implementations
  back this with a database transaction (sqlite) or snapshot/rollback
  (memory).

IMPLEMENTATIONS:
  - store/sqlite: production store, WAL mode
  - store/memory: in-memory store for tests and dev
*/
package ledger

import "context"

// =============================================================================
// STORE - Persistence collaborator
// =============================================================================

type Store interface {
	// Employees
	SaveEmployee(ctx context.Context, emp Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)

	// Tranches
	// AddTranche persists a new tranche and assigns its Seq. Rejects
	// negative granted amounts.
	AddTranche(ctx context.Context, tranche *GrantTranche) error

	// TranchesByEmployee returns all tranches for an employee ordered by
	// grant date ascending, then Seq ascending.
	TranchesByEmployee(ctx context.Context, id EmployeeID) ([]GrantTranche, error)

	// OpenTranches returns tranches with remaining > 0 and asOf <= expiry,
	// same ordering as TranchesByEmployee. The candidate pool for deduction.
	OpenTranches(ctx context.Context, id EmployeeID, asOf Date) ([]GrantTranche, error)

	// DebitTranche reduces remaining by amount. Fails if the tranche is
	// unknown or the debit would drive remaining negative.
	DebitTranche(ctx context.Context, id TrancheID, amount Days) error

	// CreditTranche restores remaining by amount (reversal path).
	CreditTranche(ctx context.Context, id TrancheID, amount Days) error

	// ExpireTranche moves amount from the tranche's remaining into its
	// expired total. Fails if amount exceeds remaining. The ceiling trim
	// expires partial amounts; window expiry drains the full remainder.
	ExpireTranche(ctx context.Context, id TrancheID, amount Days) error

	// Usage events
	SaveUsageEvent(ctx context.Context, ev UsageEvent) error
	GetUsageEvent(ctx context.Context, id UsageEventID) (*UsageEvent, error)

	// UsageEventsInRange returns events with from <= UseDate <= to, ordered
	// by use date ascending.
	UsageEventsInRange(ctx context.Context, id EmployeeID, from, to Date) ([]UsageEvent, error)

	// MarkReversed stamps the event with the reversal date. Fails with
	// ErrAlreadyReversed if already stamped.
	MarkReversed(ctx context.Context, id UsageEventID, at Date) error
}

// TxStore wraps Store with an atomic read-modify-write boundary.
// If fn returns an error the transaction is rolled back; otherwise committed.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// STORE-LEVEL OPERATIONS SHARED BY ENGINE COMPONENTS
// =============================================================================

// ApplyExpiry closes out every tranche of the employee whose window has
// elapsed as of the given date, returning the total amount moved to expired.
// Idempotent: re-running over already-expired tranches is a no-op.
func ApplyExpiry(ctx context.Context, store Store, id EmployeeID, asOf Date) (Days, error) {
	tranches, err := store.TranchesByEmployee(ctx, id)
	if err != nil {
		return ZeroDays(), err
	}

	total := ZeroDays()
	for _, t := range tranches {
		if !asOf.After(t.ExpiryDate) || !t.Remaining.IsPositive() {
			continue
		}
		if err := store.ExpireTranche(ctx, t.ID, t.Remaining); err != nil {
			return ZeroDays(), err
		}
		total = total.Add(t.Remaining)
	}
	return total, nil
}

// OpenBalance sums remaining across open tranches as of the given date.
func OpenBalance(ctx context.Context, store Store, id EmployeeID, asOf Date) (Days, error) {
	open, err := store.OpenTranches(ctx, id, asOf)
	if err != nil {
		return ZeroDays(), err
	}
	total := ZeroDays()
	for _, t := range open {
		total = total.Add(t.Remaining)
	}
	return total, nil
}
