package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrkit/leave-ledger/ledger"
	"github.com/hrkit/leave-ledger/store/memory"
)

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

func TestMemoryStore_TrancheOrdering(t *testing.T) {
	// GIVEN: Tranches inserted out of grant-date order
	// WHEN: Listing them
	// THEN: Sorted by grant date, insertion order breaking ties

	store := memory.New()
	ctx := context.Background()

	later := newTranche("emp-1", ledger.NewDate(2025, time.April, 1), 10)
	earlier := newTranche("emp-1", ledger.NewDate(2024, time.April, 1), 11)
	sameDayFirst := newTranche("emp-1", ledger.NewDate(2024, time.April, 1), 2)

	require.NoError(t, store.AddTranche(ctx, later))
	require.NoError(t, store.AddTranche(ctx, earlier))
	require.NoError(t, store.AddTranche(ctx, sameDayFirst))

	tranches, err := store.TranchesByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, tranches, 3)
	assert.Equal(t, earlier.ID, tranches[0].ID)
	assert.Equal(t, sameDayFirst.ID, tranches[1].ID, "same grant date keeps insertion order")
	assert.Equal(t, later.ID, tranches[2].ID)
}

func TestMemoryStore_DebitGuard(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	tr := newTranche("emp-1", ledger.NewDate(2025, time.April, 1), 3)
	require.NoError(t, store.AddTranche(ctx, tr))

	err := store.DebitTranche(ctx, tr.ID, ledger.NewDays(4))
	assert.True(t, errors.Is(err, ledger.ErrInsufficientBalance))

	require.NoError(t, store.DebitTranche(ctx, tr.ID, ledger.NewDays(3)))
	err = store.DebitTranche(ctx, tr.ID, ledger.NewDays(0.5))
	assert.True(t, errors.Is(err, ledger.ErrInsufficientBalance))
}

func TestMemoryStore_CreditGuard_NeverExceedsGranted(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	tr := newTranche("emp-1", ledger.NewDate(2025, time.April, 1), 3)
	require.NoError(t, store.AddTranche(ctx, tr))
	require.NoError(t, store.DebitTranche(ctx, tr.ID, ledger.NewDays(1)))

	require.NoError(t, store.CreditTranche(ctx, tr.ID, ledger.NewDays(1)))
	assert.Error(t, store.CreditTranche(ctx, tr.ID, ledger.NewDays(1)))
}

func TestMemoryStore_ExpireTranche_Partial(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	tr := newTranche("emp-1", ledger.NewDate(2025, time.April, 1), 10)
	require.NoError(t, store.AddTranche(ctx, tr))

	require.NoError(t, store.ExpireTranche(ctx, tr.ID, ledger.NewDays(4)))

	tranches, err := store.TranchesByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, tranches, 1)
	assert.True(t, tranches[0].Remaining.Equal(ledger.NewDays(6)))
	assert.True(t, tranches[0].Expired.Equal(ledger.NewDays(4)))

	assert.Error(t, store.ExpireTranche(ctx, tr.ID, ledger.NewDays(7)), "cannot expire more than remaining")
}

func TestMemoryStore_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that debits a tranche and then fails
	// WHEN: WithTx returns the error
	// THEN: The debit is undone

	store := memory.New()
	ctx := context.Background()

	tr := newTranche("emp-1", ledger.NewDate(2025, time.April, 1), 10)
	require.NoError(t, store.AddTranche(ctx, tr))

	boom := fmt.Errorf("boom")
	err := store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.DebitTranche(ctx, tr.ID, ledger.NewDays(5)); err != nil {
			return err
		}
		if err := s.SaveUsageEvent(ctx, ledger.UsageEvent{
			ID: "use-1", EmployeeID: "emp-1",
			UseDate: ledger.NewDate(2025, time.May, 1), Amount: ledger.NewDays(5),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	tranches, err := store.TranchesByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, tranches[0].Remaining.Equal(ledger.NewDays(10)), "debit rolled back")

	ev, err := store.GetUsageEvent(ctx, "use-1")
	require.NoError(t, err)
	assert.Nil(t, ev, "event rolled back")
}

func TestMemoryStore_WithTx_RollsBackEmployeeWrites(t *testing.T) {
	// GIVEN: A transaction that saves an employee and then fails
	// WHEN: WithTx returns the error
	// THEN: The employee write is undone along with everything else

	store := memory.New()
	ctx := context.Background()

	boom := fmt.Errorf("boom")
	err := store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.SaveEmployee(ctx, ledger.Employee{
			ID: "emp-tx", Name: "山田 太郎",
			HireDate: ledger.NewDate(2022, time.April, 1),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	emp, err := store.GetEmployee(ctx, "emp-tx")
	require.NoError(t, err)
	assert.Nil(t, emp, "employee write rolled back")

	employees, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Empty(t, employees)
}

func TestMemoryStore_WithTx_CommitsOnSuccess(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	tr := newTranche("emp-1", ledger.NewDate(2025, time.April, 1), 10)
	require.NoError(t, store.AddTranche(ctx, tr))

	err := store.WithTx(ctx, func(s ledger.Store) error {
		return s.DebitTranche(ctx, tr.ID, ledger.NewDays(2))
	})
	require.NoError(t, err)

	tranches, err := store.TranchesByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, tranches[0].Remaining.Equal(ledger.NewDays(8)))
}

func TestMemoryStore_MarkReversed_Once(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	ev := ledger.UsageEvent{
		ID: "use-1", EmployeeID: "emp-1",
		UseDate: ledger.NewDate(2025, time.May, 1), Amount: ledger.NewDays(1),
	}
	require.NoError(t, store.SaveUsageEvent(ctx, ev))

	at := ledger.NewDate(2025, time.June, 1)
	require.NoError(t, store.MarkReversed(ctx, "use-1", at))

	err := store.MarkReversed(ctx, "use-1", at)
	assert.True(t, errors.Is(err, ledger.ErrAlreadyReversed))

	err = store.MarkReversed(ctx, "use-404", at)
	assert.True(t, errors.Is(err, ledger.ErrUsageEventNotFound))
}

func TestMemoryStore_UsageEventsInRange(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	for i, day := range []int{10, 20, 30} {
		require.NoError(t, store.SaveUsageEvent(ctx, ledger.UsageEvent{
			ID:         ledger.UsageEventID(fmt.Sprintf("use-%d", i)),
			EmployeeID: "emp-1",
			UseDate:    ledger.NewDate(2025, time.June, day),
			Amount:     ledger.NewDays(1),
		}))
	}

	events, err := store.UsageEventsInRange(ctx, "emp-1",
		ledger.NewDate(2025, time.June, 15), ledger.NewDate(2025, time.June, 30))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].UseDate.Before(events[1].UseDate), "ordered by use date")
}
