package core

import "slices"

// Totals is the summary shown above the transaction list.
type Totals struct {
	NetBalance   Amount `json:"netBalance"`
	TotalIncome  Amount `json:"totalIncome"`
	TotalExpense Amount `json:"totalExpense"`
}

// ComputeTotals recomputes every figure from scratch. An empty list yields
// zeros.
func ComputeTotals(txs []Transaction) Totals {
	t := Totals{NetBalance: Zero, TotalIncome: Zero, TotalExpense: Zero}
	for _, tx := range txs {
		switch tx.Type {
		case Income:
			t.TotalIncome = t.TotalIncome.Add(tx.Amount)
		case Expense:
			t.TotalExpense = t.TotalExpense.Add(tx.Amount)
		default:
			continue
		}
		t.NetBalance = t.NetBalance.Add(tx.Signed())
	}
	return t
}

// SortByDateDesc orders transactions most recent first. Equal dates keep
// their relative order and zero (unparseable) dates go last.
func SortByDateDesc(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		az, bz := a.Date.IsZero(), b.Date.IsZero()
		switch {
		case az && bz:
			return 0
		case az:
			return 1
		case bz:
			return -1
		}
		return b.Date.Compare(a.Date.Time)
	})
}
