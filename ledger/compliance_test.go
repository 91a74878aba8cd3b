package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrkit/leave-ledger/ledger"
)

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestClassify_FiveDayObligation(t *testing.T) {
	// The obligation applies from 10 granted days: 5+ used is compliant,
	// 3-4.5 is at risk, under 3 is non-compliant.

	cases := []struct {
		granted float64
		used    float64
		want    ledger.ComplianceStatus
	}{
		{8, 0, ledger.ComplianceNotApplicable},
		{9.5, 5, ledger.ComplianceNotApplicable},
		{10, 0, ledger.ComplianceNonCompliant},
		{12, 0, ledger.ComplianceNonCompliant},
		{12, 2.5, ledger.ComplianceNonCompliant},
		{12, 3, ledger.ComplianceAtRisk},
		{12, 4, ledger.ComplianceAtRisk},
		{12, 4.5, ledger.ComplianceAtRisk},
		{12, 5, ledger.ComplianceCompliant},
		{10, 5, ledger.ComplianceCompliant},
		{20, 12, ledger.ComplianceCompliant},
	}
	for _, tc := range cases {
		got := ledger.Classify(ledger.NewDays(tc.granted), ledger.NewDays(tc.used))
		assert.Equal(t, tc.want, got, "granted=%v used=%v", tc.granted, tc.used)
	}
}

// =============================================================================
// CHECKER TESTS
// =============================================================================

func TestComplianceChecker_NoTranches_Unknown(t *testing.T) {
	// GIVEN: An employee with no grant history for the year
	// WHEN: Checking compliance
	// THEN: Status is UNKNOWN, no alert

	store := newTestStore(t)
	seedEmployee(t, store, "emp-1", ledger.NewDate(2020, time.April, 1))

	checker := ledger.NewComplianceChecker(store)
	record, alert, err := checker.Check(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	assert.Equal(t, ledger.ComplianceUnknown, record.Status)
	assert.Nil(t, alert)
}

func TestComplianceChecker_NonCompliant_EmitsAlert(t *testing.T) {
	// GIVEN: A 12-day grant and 2 days used in the fiscal year
	// WHEN: Checking compliance
	// THEN: NON_COMPLIANT with an alert carrying the 3 days still required

	store := newTestStore(t)
	seedEmployee(t, store, "emp-1", ledger.NewDate(2020, time.April, 1))
	seedGrant(t, store, "emp-1", ledger.NewDate(2025, time.April, 1), 12)

	engine := ledger.NewDeductionEngine(store)
	_, err := engine.Apply(context.Background(), usageEvent("emp-1", ledger.NewDate(2025, time.June, 2), 2, "use-1"))
	require.NoError(t, err)

	checker := ledger.NewComplianceChecker(store)
	record, alert, err := checker.Check(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	assert.Equal(t, ledger.ComplianceNonCompliant, record.Status)
	assert.True(t, record.DaysGranted.Equal(ledger.NewDays(12)))
	assert.True(t, record.DaysUsed.Equal(ledger.NewDays(2)))
	assert.True(t, record.DaysRemainingToComply.Equal(ledger.NewDays(3)))

	require.NotNil(t, alert)
	assert.Equal(t, ledger.EmployeeID("emp-1"), alert.EmployeeID)
	assert.True(t, alert.DaysRemainingToComply.Equal(ledger.NewDays(3)))
}

func TestComplianceChecker_CompliantAndAtRisk_NoAlert(t *testing.T) {
	store := newTestStore(t)
	seedEmployee(t, store, "emp-1", ledger.NewDate(2020, time.April, 1))
	seedGrant(t, store, "emp-1", ledger.NewDate(2025, time.April, 1), 12)

	engine := ledger.NewDeductionEngine(store)
	_, err := engine.Apply(context.Background(), usageEvent("emp-1", ledger.NewDate(2025, time.May, 1), 4, "use-1"))
	require.NoError(t, err)

	checker := ledger.NewComplianceChecker(store)

	record, alert, err := checker.Check(context.Background(), "emp-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, ledger.ComplianceAtRisk, record.Status)
	assert.Nil(t, alert, "AT_RISK does not alert")

	_, err = engine.Apply(context.Background(), usageEvent("emp-1", ledger.NewDate(2025, time.July, 7), 1, "use-2"))
	require.NoError(t, err)

	record, alert, err = checker.Check(context.Background(), "emp-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, ledger.ComplianceCompliant, record.Status)
	assert.Nil(t, alert)
	assert.True(t, record.DaysRemainingToComply.IsZero())
}

func TestComplianceChecker_ReversedUsage_NotCounted(t *testing.T) {
	// GIVEN: 5 days used, satisfying the obligation, then reversed
	// WHEN: Checking compliance again
	// THEN: Used drops back and the status degrades

	store := newTestStore(t)
	seedEmployee(t, store, "emp-1", ledger.NewDate(2020, time.April, 1))
	seedGrant(t, store, "emp-1", ledger.NewDate(2025, time.April, 1), 12)

	engine := ledger.NewDeductionEngine(store)
	_, err := engine.Apply(context.Background(), usageEvent("emp-1", ledger.NewDate(2025, time.May, 1), 5, "use-1"))
	require.NoError(t, err)

	checker := ledger.NewComplianceChecker(store)
	record, _, err := checker.Check(context.Background(), "emp-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, ledger.ComplianceCompliant, record.Status)

	require.NoError(t, engine.Reverse(context.Background(), "use-1", ledger.NewDate(2025, time.June, 1)))

	record, _, err = checker.Check(context.Background(), "emp-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, ledger.ComplianceNonCompliant, record.Status)
	assert.True(t, record.DaysUsed.IsZero())
}

func TestComplianceChecker_AdjustmentTranches_ExcludedFromGranted(t *testing.T) {
	// GIVEN: A 9.5-day grant plus an adjustment tranche from a reversal
	// WHEN: Checking compliance
	// THEN: The adjustment does not push granted over the 10-day threshold

	store := newTestStore(t)
	seedEmployee(t, store, "emp-1", ledger.NewDate(2020, time.April, 1))
	seedGrant(t, store, "emp-1", ledger.NewDate(2025, time.April, 1), 9.5)

	adj := &ledger.GrantTranche{
		EmployeeID: "emp-1",
		FiscalYear: 2025,
		Kind:       ledger.TrancheAdjustment,
		GrantDate:  ledger.NewDate(2025, time.May, 1),
		ExpiryDate: ledger.NewDate(2025, time.May, 1),
		Granted:    ledger.NewDays(2),
		Remaining:  ledger.ZeroDays(),
		Expired:    ledger.NewDays(2),
	}
	require.NoError(t, store.AddTranche(context.Background(), adj))

	checker := ledger.NewComplianceChecker(store)
	record, alert, err := checker.Check(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	assert.Equal(t, ledger.ComplianceNotApplicable, record.Status)
	assert.True(t, record.DaysGranted.Equal(ledger.NewDays(9.5)))
	assert.Nil(t, alert)
}
