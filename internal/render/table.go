package render

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"ledger/internal/ledger"
)

// TableOptions controls the CLI table.
type TableOptions struct {
	Limit int  // rows to show; below one shows everything
	Color bool // colour amounts by type
}

// Table writes the snapshot's transactions and totals as a text table.
func (r *Renderer) Table(w io.Writer, snap ledger.Snapshot, opts TableOptions) {
	txs := snap.Transactions
	if opts.Limit > 0 {
		txs = snap.Recent(opts.Limit)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Date", "Name", "Category", "Amount"})

	for _, tx := range txs {
		row := r.row(tx)
		amount := row.Amount
		if opts.Color {
			if row.Income {
				amount = text.FgGreen.Sprint(amount)
			} else {
				amount = text.FgRed.Sprint(amount)
			}
		}
		t.AppendRow(table.Row{row.ID, row.DateLabel, row.Name, row.CategoryLabel, amount})
	}

	t.AppendSeparator()
	t.AppendFooter(table.Row{"", "", "", "Income", r.currency.Format(snap.Totals.TotalIncome)})
	t.AppendFooter(table.Row{"", "", "", "Expenses", r.currency.Format(snap.Totals.TotalExpense)})
	t.AppendFooter(table.Row{"", "", "", "Balance", r.bold(opts.Color, r.currency.Format(snap.Totals.NetBalance))})

	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.Render()
}

// Totals writes a two-column summary table.
func (r *Renderer) Totals(w io.Writer, snap ledger.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendRows([]table.Row{
		{"Total income", r.currency.Format(snap.Totals.TotalIncome)},
		{"Total expenses", r.currency.Format(snap.Totals.TotalExpense)},
		{"Net balance", r.currency.Format(snap.Totals.NetBalance)},
		{"Transactions", len(snap.Transactions)},
	})
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()
}

func (r *Renderer) bold(on bool, s string) string {
	if !on {
		return s
	}
	return text.Bold.Sprint(s)
}
