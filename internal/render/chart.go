package render

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"ledger/internal/core"
)

// Series colours, shared with the stylesheet.
var (
	ColorIncome   = drawing.ColorFromHex("34c38f")
	ColorExpenses = drawing.ColorFromHex("f46a6a")
	ColorSavings  = drawing.ColorFromHex("3498db")
)

// ChartOptions sizes the trend chart.
type ChartOptions struct {
	Width  int
	Height int
	Title  string
}

// DefaultChartOptions fits the widget's chart card.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{Width: 800, Height: 360, Title: "Monthly Overview"}
}

// TrendChart writes points as an SVG line chart with income, expenses and
// savings series.
func (r *Renderer) TrendChart(w io.Writer, points []core.MonthPoint, opts ChartOptions) error {
	if len(points) == 0 {
		return fmt.Errorf("trend chart: no points")
	}

	xs := make([]float64, len(points))
	income := make([]float64, len(points))
	expenses := make([]float64, len(points))
	savings := make([]float64, len(points))
	ticks := make([]chart.Tick, len(points))

	for i, p := range points {
		xs[i] = float64(i)
		income[i] = p.Income.InexactFloat64()
		expenses[i] = p.Expenses.InexactFloat64()
		savings[i] = p.Savings.InexactFloat64()
		label := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC).Format("Jan 06")
		ticks[i] = chart.Tick{Value: float64(i), Label: label}
	}

	lo, hi := valueRange(income, expenses, savings)

	graph := chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return r.currency.FormatFloat(f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			lineSeries("Income", xs, income, ColorIncome),
			lineSeries("Expenses", xs, expenses, ColorExpenses),
			lineSeries("Savings", xs, savings, ColorSavings),
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("render trend chart: %w", err)
	}
	return nil
}

func lineSeries(name string, xs, ys []float64, color drawing.Color) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: 2,
			DotColor:    color,
			DotWidth:    3,
		},
	}
}

// valueRange always includes zero and is never empty, so an all-zero
// ledger still renders.
func valueRange(series ...[]float64) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, s := range series {
		for _, v := range s {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}
