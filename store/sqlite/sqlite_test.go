package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrkit/leave-ledger/ledger"
	"github.com/hrkit/leave-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedEmployee(t *testing.T, store *sqlite.Store, id string) ledger.Employee {
	t.Helper()
	emp := ledger.Employee{
		ID:       ledger.EmployeeID(id),
		Name:     "Test " + id,
		HireDate: ledger.NewDate(2020, time.April, 1),
	}
	require.NoError(t, store.SaveEmployee(context.Background(), emp))
	return emp
}

func newTranche(emp string, grantDate ledger.Date, days float64) *ledger.GrantTranche {
	amount := ledger.NewDays(days)
	return &ledger.GrantTranche{
		EmployeeID: ledger.EmployeeID(emp),
		FiscalYear: ledger.FiscalYearOf(grantDate),
		Kind:       ledger.TrancheGrant,
		GrantDate:  grantDate,
		ExpiryDate: ledger.StatutoryExpiry(grantDate),
		Granted:    amount,
		Remaining:  amount,
		Expired:    ledger.ZeroDays(),
	}
}

// =============================================================================
// EMPLOYEE PERSISTENCE
// =============================================================================

func TestSQLiteStore_EmployeeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	emp := ledger.Employee{
		ID:       "emp-1",
		Name:     "山田 太郎",
		HireDate: ledger.NewDate(2019, time.October, 1),
	}
	require.NoError(t, store.SaveEmployee(ctx, emp))

	got, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, emp.ID, got.ID)
	assert.Equal(t, emp.Name, got.Name)
	assert.True(t, emp.HireDate.Equal(got.HireDate))

	missing, err := store.GetEmployee(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_SaveEmployee_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedEmployee(t, store, "emp-1")
	require.NoError(t, store.SaveEmployee(ctx, ledger.Employee{
		ID: "emp-1", Name: "Renamed", HireDate: ledger.NewDate(2020, time.April, 1),
	}))

	employees, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "Renamed", employees[0].Name)
}

// =============================================================================
// TRANCHE PERSISTENCE
// =============================================================================

func TestSQLiteStore_TrancheRoundTripAndOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	later := newTranche("emp-1", ledger.NewDate(2025, time.April, 1), 10.5)
	earlier := newTranche("emp-1", ledger.NewDate(2024, time.April, 1), 11)
	require.NoError(t, store.AddTranche(ctx, later))
	require.NoError(t, store.AddTranche(ctx, earlier))
	assert.NotEmpty(t, later.ID)
	assert.NotEqual(t, later.Seq, earlier.Seq)

	tranches, err := store.TranchesByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, tranches, 2)
	assert.Equal(t, earlier.ID, tranches[0].ID, "grant date ascending")
	assert.Equal(t, ledger.TrancheGrant, tranches[0].Kind)
	assert.True(t, tranches[1].Granted.Equal(ledger.NewDays(10.5)), "half days survive the round trip")
	assert.True(t, tranches[1].ExpiryDate.Equal(ledger.NewDate(2027, time.April, 1)))
}

func TestSQLiteStore_OpenTranches_FiltersExpiredAndDrained(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	open := newTranche("emp-1", ledger.NewDate(2024, time.April, 1), 10)
	expired := newTranche("emp-1", ledger.NewDate(2022, time.April, 1), 10)
	drained := newTranche("emp-1", ledger.NewDate(2024, time.October, 1), 2)
	require.NoError(t, store.AddTranche(ctx, open))
	require.NoError(t, store.AddTranche(ctx, expired))
	require.NoError(t, store.AddTranche(ctx, drained))
	require.NoError(t, store.DebitTranche(ctx, drained.ID, ledger.NewDays(2)))

	tranches, err := store.OpenTranches(ctx, "emp-1", ledger.NewDate(2024, time.December, 1))
	require.NoError(t, err)
	require.Len(t, tranches, 1)
	assert.Equal(t, open.ID, tranches[0].ID)
}

func TestSQLiteStore_DebitCreditExpire(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	tr := newTranche("emp-1", ledger.NewDate(2025, time.April, 1), 10)
	require.NoError(t, store.AddTranche(ctx, tr))

	require.NoError(t, store.DebitTranche(ctx, tr.ID, ledger.NewDays(3.5)))
	err := store.DebitTranche(ctx, tr.ID, ledger.NewDays(7))
	assert.True(t, errors.Is(err, ledger.ErrInsufficientBalance))

	require.NoError(t, store.CreditTranche(ctx, tr.ID, ledger.NewDays(1)))
	require.NoError(t, store.ExpireTranche(ctx, tr.ID, ledger.NewDays(2)))

	tranches, err := store.TranchesByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, tranches, 1)
	assert.True(t, tranches[0].Remaining.Equal(ledger.NewDays(5.5)))
	assert.True(t, tranches[0].Expired.Equal(ledger.NewDays(2)))

	err = store.DebitTranche(ctx, "tr-404", ledger.NewDays(1))
	assert.True(t, errors.Is(err, ledger.ErrTrancheNotFound))
}

// =============================================================================
// USAGE EVENTS
// =============================================================================

func TestSQLiteStore_UsageEventRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	tr := newTranche("emp-1", ledger.NewDate(2025, time.April, 1), 10)
	require.NoError(t, store.AddTranche(ctx, tr))

	ev := ledger.UsageEvent{
		ID:         "use-1",
		EmployeeID: "emp-1",
		UseDate:    ledger.NewDate(2025, time.June, 10),
		Amount:     ledger.NewDays(1.5),
		Reason:     "hospital visit",
		Debits: []ledger.TrancheDebit{
			{TrancheID: tr.ID, Amount: ledger.NewDays(1.5)},
		},
	}
	require.NoError(t, store.SaveUsageEvent(ctx, ev))

	got, err := store.GetUsageEvent(ctx, "use-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(ledger.NewDays(1.5)))
	assert.Equal(t, "hospital visit", got.Reason)
	require.Len(t, got.Debits, 1)
	assert.Equal(t, tr.ID, got.Debits[0].TrancheID)
	assert.False(t, got.IsReversed())
}

func TestSQLiteStore_MarkReversed_Once(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	require.NoError(t, store.SaveUsageEvent(ctx, ledger.UsageEvent{
		ID: "use-1", EmployeeID: "emp-1",
		UseDate: ledger.NewDate(2025, time.June, 10), Amount: ledger.NewDays(1),
	}))

	at := ledger.NewDate(2025, time.July, 1)
	require.NoError(t, store.MarkReversed(ctx, "use-1", at))

	got, err := store.GetUsageEvent(ctx, "use-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsReversed())
	assert.True(t, got.ReversedAt.Equal(at))

	err = store.MarkReversed(ctx, "use-1", at)
	assert.True(t, errors.Is(err, ledger.ErrAlreadyReversed))

	err = store.MarkReversed(ctx, "use-404", at)
	assert.True(t, errors.Is(err, ledger.ErrUsageEventNotFound))
}

func TestSQLiteStore_UsageEventsInRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	for i, day := range []int{5, 15, 25} {
		require.NoError(t, store.SaveUsageEvent(ctx, ledger.UsageEvent{
			ID:         ledger.UsageEventID(fmt.Sprintf("use-%d", i)),
			EmployeeID: "emp-1",
			UseDate:    ledger.NewDate(2025, time.June, day),
			Amount:     ledger.NewDays(1),
		}))
	}

	events, err := store.UsageEventsInRange(ctx, "emp-1",
		ledger.NewDate(2025, time.June, 10), ledger.NewDate(2025, time.June, 30))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].UseDate.Before(events[1].UseDate))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLiteStore_WithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	tr := newTranche("emp-1", ledger.NewDate(2025, time.April, 1), 10)
	require.NoError(t, store.AddTranche(ctx, tr))

	boom := fmt.Errorf("boom")
	err := store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.DebitTranche(ctx, tr.ID, ledger.NewDays(4)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	tranches, err := store.TranchesByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, tranches[0].Remaining.Equal(ledger.NewDays(10)), "debit rolled back")
}

func TestSQLiteStore_WithTx_DeductionEngineEndToEnd(t *testing.T) {
	// The deduction engine drives the same store through its transaction
	// boundary; this pins the wiring between engine and SQL transactions.

	store := newTestStore(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	tr := newTranche("emp-1", ledger.NewDate(2025, time.April, 1), 10)
	require.NoError(t, store.AddTranche(ctx, tr))

	engine := ledger.NewDeductionEngine(store)
	ev, err := engine.Apply(ctx, ledger.UsageEvent{
		ID: "use-1", EmployeeID: "emp-1",
		UseDate: ledger.NewDate(2025, time.June, 10), Amount: ledger.NewDays(2),
	})
	require.NoError(t, err)
	require.Len(t, ev.Debits, 1)

	_, err = engine.Apply(ctx, ledger.UsageEvent{
		ID: "use-2", EmployeeID: "emp-1",
		UseDate: ledger.NewDate(2025, time.June, 11), Amount: ledger.NewDays(20),
	})
	assert.True(t, errors.Is(err, ledger.ErrInsufficientBalance))

	tranches, err := store.TranchesByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, tranches[0].Remaining.Equal(ledger.NewDays(8)), "failed deduction left no trace")
}

// =============================================================================
// ROLLOVER RUN AUDIT
// =============================================================================

func TestSQLiteStore_RolloverRuns_SaveAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	report := ledger.RolloverReport{
		FiscalYear: 2025,
		Results: []ledger.RolloverResult{
			{EmployeeID: "emp-a", Granted: ledger.NewDays(20), Expired: ledger.NewDays(3)},
			{EmployeeID: "emp-b", Granted: ledger.ZeroDays(), Expired: ledger.ZeroDays(), Err: fmt.Errorf("boom")},
		},
	}
	require.NoError(t, store.SaveRolloverRuns(ctx, report))

	runs, err := store.ListRolloverRuns(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "emp-a", runs[0].EmployeeID)
	assert.Equal(t, "20", runs[0].Granted)
	assert.Empty(t, runs[0].Error)
	assert.Equal(t, "boom", runs[1].Error)

	// A retry overwrites the failed attempt.
	report.Results[1].Err = nil
	report.Results[1].Granted = ledger.NewDays(10)
	require.NoError(t, store.SaveRolloverRuns(ctx, report))

	runs, err = store.ListRolloverRuns(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Empty(t, runs[1].Error)
	assert.Equal(t, "10", runs[1].Granted)
}
