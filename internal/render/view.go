// Package render turns ledger snapshots into what people look at: the
// widget view model, the trend chart, CLI tables and spreadsheet exports.
package render

import (
	"ledger/internal/core"
	"ledger/internal/ledger"
)

// DisplayDateLayout matches the widget's short date, e.g. "5 Jan 2024".
const DisplayDateLayout = "2 Jan 2006"

// Row is one transaction prepared for display.
type Row struct {
	ID            int64
	Name          string
	Income        bool
	Amount        string // signed, e.g. "+₹50,000"
	Category      string
	CategoryLabel string
	Icon          string
	Date          string // YYYY-MM-DD
	DateLabel     string
}

// View is everything the widget shows for one snapshot.
type View struct {
	Version      uint64
	Transactions []Row
	Count        int // all transactions, not only the rows shown
	NetBalance   string
	TotalIncome  string
	TotalExpense string
	NetNegative  bool
}

// Empty reports whether the ledger has no transactions at all.
func (v View) Empty() bool { return v.Count == 0 }

// Renderer formats snapshots with a fixed currency.
type Renderer struct {
	currency Currency
}

// New creates a renderer for cur.
func New(cur Currency) *Renderer {
	return &Renderer{currency: cur}
}

// Currency returns the renderer's currency.
func (r *Renderer) Currency() Currency { return r.currency }

// BuildView shows at most limit of the snapshot's transactions, most recent
// first. A limit below one means ledger.DefaultRecentLimit.
func (r *Renderer) BuildView(snap ledger.Snapshot, limit int) View {
	if limit < 1 {
		limit = ledger.DefaultRecentLimit
	}
	recent := snap.Recent(limit)

	rows := make([]Row, len(recent))
	for i, tx := range recent {
		rows[i] = r.row(tx)
	}

	return View{
		Version:      snap.Version,
		Transactions: rows,
		Count:        len(snap.Transactions),
		NetBalance:   r.currency.Format(snap.Totals.NetBalance),
		TotalIncome:  r.currency.Format(snap.Totals.TotalIncome),
		TotalExpense: r.currency.Format(snap.Totals.TotalExpense),
		NetNegative:  snap.Totals.NetBalance.IsNegative(),
	}
}

func (r *Renderer) row(tx core.Transaction) Row {
	return Row{
		ID:            tx.ID,
		Name:          tx.Name,
		Income:        tx.Type == core.Income,
		Amount:        r.currency.FormatSigned(tx),
		Category:      tx.Category,
		CategoryLabel: CategoryLabel(tx.Category),
		Icon:          CategoryIcon(tx.Category),
		Date:          tx.Date.String(),
		DateLabel:     DateLabel(tx.Date),
	}
}

// DateLabel formats d for display; dates that never parsed are shown as stored.
func DateLabel(d core.Date) string {
	if d.IsZero() {
		return d.String()
	}
	return d.Format(DisplayDateLayout)
}
