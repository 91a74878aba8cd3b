/*
Package report renders the statutory annual leave ledger (年次有給休暇管理簿)
as CSV.

The column set and header strings are a regulatory contract: employers must
keep this register per employee per fiscal year, and downstream HR tooling
parses the headers verbatim. Do not localize, reorder, or rename them.
*/
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/hrkit/leave-ledger/ledger"
)

// LedgerHeaders is the exact header row of the annual ledger export.
var LedgerHeaders = []string{
	"社員番号", // employee number
	"氏名",   // name
	"基準日",  // grant reference date
	"付与日数", // days granted
	"取得日",  // dates taken
	"取得日数", // days taken
	"残日数",  // days remaining
	"年度",   // fiscal year
}

// usageDateSeparator joins multiple taken dates inside one CSV cell.
const usageDateSeparator = ";"

// WriteLedgerCSV writes the header row followed by one row per employee.
func WriteLedgerCSV(w io.Writer, rows []ledger.LedgerRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(LedgerHeaders); err != nil {
		return fmt.Errorf("failed to write ledger headers: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(ledgerRecord(row)); err != nil {
			return fmt.Errorf("failed to write ledger row for %s: %w", row.EmployeeID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// RenderLedgerCSV returns the full CSV document as a string.
func RenderLedgerCSV(rows []ledger.LedgerRow) (string, error) {
	var sb strings.Builder
	if err := WriteLedgerCSV(&sb, rows); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func ledgerRecord(row ledger.LedgerRow) []string {
	dates := make([]string, 0, len(row.UsageDates))
	for _, d := range row.UsageDates {
		dates = append(dates, d.String())
	}

	return []string{
		string(row.EmployeeID),
		row.Name,
		row.GrantDate.String(),
		row.Granted.String(),
		strings.Join(dates, usageDateSeparator),
		row.Used.String(),
		row.Remaining.String(),
		fmt.Sprintf("%d", row.FiscalYear),
	}
}
