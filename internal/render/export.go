package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ledger/internal/ledger"
)

// Sheet names and the transaction header used by the workbook export.
const (
	TransactionsSheet = "Transactions"
	SummarySheet      = "Summary"
)

var workbookHeader = []string{"ID", "Date", "Name", "Type", "Category", "Amount"}

// Workbook builds an xlsx file holding every transaction and a totals sheet.
// The caller closes the returned file.
func (r *Renderer) Workbook(snap ledger.Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), TransactionsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("amount style: %w", err)
	}

	for i, h := range workbookHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(TransactionsSheet, cell, h)
	}
	f.SetCellStyle(TransactionsSheet, "A1", "F1", headerStyle)

	for i, tx := range snap.Transactions {
		row := i + 2
		values := []interface{}{tx.ID, tx.Date.String(), tx.Name, string(tx.Type), tx.Category, tx.Amount.InexactFloat64()}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(TransactionsSheet, cell, v)
		}
	}
	if n := len(snap.Transactions); n > 0 {
		f.SetCellStyle(TransactionsSheet, "F2", fmt.Sprintf("F%d", n+1), amountStyle)
	}
	f.SetColWidth(TransactionsSheet, "C", "C", 30)

	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	summary := [][]interface{}{
		{"Total income", snap.Totals.TotalIncome.InexactFloat64()},
		{"Total expenses", snap.Totals.TotalExpense.InexactFloat64()},
		{"Net balance", snap.Totals.NetBalance.InexactFloat64()},
		{"Currency", r.currency.Code},
	}
	for i, line := range summary {
		f.SetCellValue(SummarySheet, fmt.Sprintf("A%d", i+1), line[0])
		f.SetCellValue(SummarySheet, fmt.Sprintf("B%d", i+1), line[1])
	}
	f.SetCellStyle(SummarySheet, "A1", "A4", headerStyle)
	f.SetCellStyle(SummarySheet, "B1", "B3", amountStyle)
	f.SetColWidth(SummarySheet, "A", "A", 18)

	return f, nil
}

// WriteWorkbook streams the workbook for snap to w.
func (r *Renderer) WriteWorkbook(w io.Writer, snap ledger.Snapshot) error {
	f, err := r.Workbook(snap)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ReadWorkbook reads candidates back from the transactions sheet of a
// workbook written by Workbook. Ids are not carried over.
func ReadWorkbook(rd io.Reader) ([]ledger.Candidate, error) {
	f, err := excelize.OpenReader(rd)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(TransactionsSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int, len(workbookHeader))
	for i, h := range rows[0] {
		cols[strings.TrimSpace(h)] = i
	}
	for _, h := range workbookHeader[1:] {
		if _, ok := cols[h]; !ok {
			return nil, fmt.Errorf("read sheet: missing column %q", h)
		}
	}

	cell := func(row []string, name string) string {
		if i := cols[name]; i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var out []ledger.Candidate
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		out = append(out, ledger.Candidate{
			Name:     cell(row, "Name"),
			Amount:   normalizeNumber(cell(row, "Amount")),
			Type:     cell(row, "Type"),
			Category: cell(row, "Category"),
			Date:     cell(row, "Date"),
		})
	}
	return out, nil
}

// normalizeNumber strips the thousands separators of a formatted cell.
func normalizeNumber(s string) string {
	plain := strings.ReplaceAll(s, ",", "")
	if _, err := strconv.ParseFloat(plain, 64); err == nil {
		return plain
	}
	return s
}
