/*
grant.go - Statutory grant calculation

PURPOSE:
  Computes the statutory paid-leave grant from seniority. The Labor
  Standards Act table is fixed: a full-time employee is granted 10 days at
  6 months of service, rising to 20 days at 6.5 years and capping there.

CONTRACT:
  GrantedDays(seniorityYears) -> int
  - Pure and deterministic, no error conditions
  - Below 0.5 years: 0 days
  - At or above 6.5 years: 20 days
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// GRANT CALCULATOR
// =============================================================================

// grantTier is one row of the statutory table: the lowest seniority that
// earns the tier's day count.
type grantTier struct {
	threshold decimal.Decimal
	days      int
}

// statutoryGrantTable is monotonic in both columns. Lookup takes the highest
// tier whose threshold the seniority meets or exceeds.
var statutoryGrantTable = []grantTier{
	{decimal.NewFromFloat(0.5), 10},
	{decimal.NewFromFloat(1.5), 11},
	{decimal.NewFromFloat(2.5), 12},
	{decimal.NewFromFloat(3.5), 14},
	{decimal.NewFromFloat(4.5), 16},
	{decimal.NewFromFloat(5.5), 18},
	{decimal.NewFromFloat(6.5), 20},
}

// GrantCalculator maps seniority to the statutory grant.
type GrantCalculator struct{}

func NewGrantCalculator() *GrantCalculator { return &GrantCalculator{} }

// GrantedDays returns the statutory grant for the given seniority in years
// (fractional). Returns 0 below the first tier and caps at the last.
func (GrantCalculator) GrantedDays(seniorityYears decimal.Decimal) int {
	days := 0
	for _, tier := range statutoryGrantTable {
		if seniorityYears.GreaterThanOrEqual(tier.threshold) {
			days = tier.days
		}
	}
	return days
}

// GrantedDaysAt is a convenience for the common call site: seniority
// evaluated from an employee's hire date at a grant date.
func (c GrantCalculator) GrantedDaysAt(emp Employee, grantDate Date) int {
	return c.GrantedDays(emp.SeniorityYears(grantDate))
}
