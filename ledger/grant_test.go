package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/hrkit/leave-ledger/ledger"
)

// =============================================================================
// STATUTORY GRANT TABLE TESTS
// =============================================================================

func TestGrantCalculator_StatutoryTable(t *testing.T) {
	// GIVEN: The Labor Standards Act grant table
	// WHEN: Looking up grants across the full seniority range
	// THEN: Each seniority maps to its statutory day count

	calc := ledger.NewGrantCalculator()

	cases := []struct {
		seniority float64
		want      int
	}{
		{0, 0},
		{0.25, 0},
		{0.4, 0}, // just below the first tier
		{0.5, 10},
		{1.0, 10},
		{1.4, 10},
		{1.5, 11},
		{2.5, 12},
		{3.0, 12}, // between tiers takes the lower
		{3.5, 14},
		{4.5, 16},
		{5.5, 18},
		{6.5, 20},
		{7.0, 20},
		{10.0, 20}, // caps at 20
		{40.0, 20},
	}
	for _, tc := range cases {
		got := calc.GrantedDays(decimal.NewFromFloat(tc.seniority))
		assert.Equal(t, tc.want, got, "seniority %.2f years", tc.seniority)
	}
}

func TestGrantCalculator_NegativeSeniority_ZeroDays(t *testing.T) {
	calc := ledger.NewGrantCalculator()
	assert.Equal(t, 0, calc.GrantedDays(decimal.NewFromFloat(-1.0)))
}

// =============================================================================
// SENIORITY FROM HIRE DATE
// =============================================================================

func TestGrantCalculator_GrantedDaysAt_FromHireDate(t *testing.T) {
	// GIVEN: An employee hired October 1, 2024
	// WHEN: Evaluating the grant at the April 1, 2025 reference date
	// THEN: Six months of service earns the first-tier 10 days

	calc := ledger.NewGrantCalculator()
	emp := ledger.Employee{
		ID:       "emp-1",
		Name:     "山田 太郎",
		HireDate: ledger.NewDate(2024, time.October, 1),
	}

	assert.Equal(t, 10, calc.GrantedDaysAt(emp, ledger.NewDate(2025, time.April, 1)))

	// One day short of six months earns nothing.
	assert.Equal(t, 0, calc.GrantedDaysAt(emp, ledger.NewDate(2025, time.March, 31)))
}

func TestEmployee_SeniorityYears(t *testing.T) {
	emp := ledger.Employee{HireDate: ledger.NewDate(2020, time.April, 1)}

	assert.True(t, emp.SeniorityYears(ledger.NewDate(2020, time.October, 1)).Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, emp.SeniorityYears(ledger.NewDate(2025, time.April, 1)).Equal(decimal.NewFromInt(5)))

	// Before the hire date seniority is zero, not negative.
	assert.True(t, emp.SeniorityYears(ledger.NewDate(2019, time.April, 1)).IsZero())
}

// =============================================================================
// FISCAL YEAR HELPERS
// =============================================================================

func TestFiscalYearOf(t *testing.T) {
	assert.Equal(t, 2025, ledger.FiscalYearOf(ledger.NewDate(2025, time.April, 1)))
	assert.Equal(t, 2025, ledger.FiscalYearOf(ledger.NewDate(2026, time.March, 31)))
	assert.Equal(t, 2024, ledger.FiscalYearOf(ledger.NewDate(2025, time.March, 31)))
}

func TestStatutoryExpiry_TwoYears(t *testing.T) {
	grant := ledger.NewDate(2025, time.April, 1)
	assert.True(t, ledger.StatutoryExpiry(grant).Equal(ledger.NewDate(2027, time.April, 1)))
}
