package core

import "time"

// MonthPoint is one month of the trend chart.
type MonthPoint struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"` // 1-12
	Income   Amount `json:"income"`
	Expenses Amount `json:"expenses"`
	Savings  Amount `json:"savings"`
}

// TrendMonths is the length of the trend series.
const TrendMonths = 12

// MonthlySeries aggregates txs into the TrendMonths calendar months ending
// with the month of end, oldest first. Savings is income minus expenses.
// Transactions outside the window or without a date are ignored.
func MonthlySeries(txs []Transaction, end time.Time) []MonthPoint {
	first := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(TrendMonths - 1), 0)

	points := make([]MonthPoint, TrendMonths)
	for i := range points {
		m := first.AddDate(0, i, 0)
		points[i] = MonthPoint{Year: m.Year(), Month: int(m.Month()), Income: Zero, Expenses: Zero}
	}

	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		idx := (tx.Date.Year()-first.Year())*12 + int(tx.Date.Month()) - int(first.Month())
		if idx < 0 || idx >= TrendMonths {
			continue
		}
		switch tx.Type {
		case Income:
			points[idx].Income = points[idx].Income.Add(tx.Amount)
		case Expense:
			points[idx].Expenses = points[idx].Expenses.Add(tx.Amount)
		}
	}

	for i := range points {
		points[i].Savings = points[i].Income.Sub(points[i].Expenses)
	}
	return points
}
