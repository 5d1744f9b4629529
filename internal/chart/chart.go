// Package chart renders the dashboard charts as PNG images.
package chart

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"cashbook/internal/aggregate"
	"cashbook/internal/core"
)

const (
	defaultWidth = 800
	minHeight    = 300
)

var (
	categoryColors = map[core.Category]drawing.Color{
		core.Income:            drawing.ColorFromHex("4CAF50"),
		core.Expense:           drawing.ColorFromHex("f44336"),
		core.Savings:           drawing.ColorFromHex("2196F3"),
		core.CreditCardPayment: drawing.ColorFromHex("FF9800"),
	}
	netColor         = drawing.ColorFromHex("9C27B0")
	placeholderColor = drawing.ColorFromHex("e0e0e0")
)

// OverviewHeight grows with the grand total: 300px plus 50px per thousand, at most 500px.
func OverviewHeight(total float64) int {
	if total <= 0 {
		return minHeight
	}
	return clampHeight(minHeight+(total/1000)*50, 500)
}

// MonthlyHeight grows with the largest value and the number of months, at most 600px.
func MonthlyHeight(s aggregate.Series) int {
	if !s.HasData() {
		return minHeight
	}
	return clampHeight(minHeight+(s.Max()/1000)*30+float64(len(s.Labels))*20, 600)
}

func clampHeight(h float64, maxHeight int) int {
	return int(math.Max(minHeight, math.Min(float64(maxHeight), h)))
}

// Renderer draws charts with amounts labelled through a currency formatter.
type Renderer struct {
	formatter *core.CurrencyFormatter
	width     int
}

func NewRenderer(formatter *core.CurrencyFormatter) *Renderer {
	if formatter == nil {
		formatter = core.DefaultCurrencyFormatter()
	}
	return &Renderer{formatter: formatter, width: defaultWidth}
}

// Overview renders the category totals as a donut. An empty ledger gets a
// single grey placeholder slice.
func (r *Renderer) Overview(totals core.Totals) ([]byte, error) {
	var values []chart.Value
	for _, c := range core.Categories() {
		amount := totals.Get(c)
		if amount.Cents <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s (%.1f%%)", c.Label(), r.formatter.Format(amount), aggregate.Share(totals, c)),
			Value: amount.Float64(),
			Style: chart.Style{FillColor: categoryColors[c], StrokeColor: drawing.ColorWhite, StrokeWidth: 2},
		})
	}
	if len(values) == 0 {
		values = []chart.Value{{
			Label: "No transactions yet",
			Value: 1,
			Style: chart.Style{FillColor: placeholderColor, StrokeColor: drawing.ColorWhite},
		}}
	}

	height := OverviewHeight(totals.Sum().Float64())
	graph := chart.DonutChart{
		Title:  "Overview",
		Width:  r.width,
		Height: height,
		Values: values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("overview chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Monthly renders the rolling window: one line per category and a thicker net line.
func (r *Renderer) Monthly(window []aggregate.MonthBucket) ([]byte, error) {
	if len(window) == 0 {
		return nil, fmt.Errorf("need at least 1 month, got 0")
	}
	s := aggregate.WindowSeries(window)

	// Custom ticks decide the x-range, so unlabeled ticks at both padded
	// edges keep a single month renderable.
	xMin, xMax := -0.5, float64(len(window))-0.5
	xValues := make([]float64, len(window))
	ticks := make([]chart.Tick, 0, len(window)+2)
	ticks = append(ticks, chart.Tick{Value: xMin})
	for i, label := range s.Labels {
		xValues[i] = float64(i)
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: label})
	}
	ticks = append(ticks, chart.Tick{Value: xMax})

	series := make([]chart.Series, 0, len(core.Categories())+1)
	for _, c := range core.Categories() {
		series = append(series, chart.ContinuousSeries{
			Name: c.Label(),
			Style: chart.Style{
				StrokeColor: categoryColors[c],
				StrokeWidth: 2,
				DotColor:    categoryColors[c],
				DotWidth:    4,
			},
			XValues: xValues,
			YValues: s.ByCategory[c],
		})
	}
	series = append(series, chart.ContinuousSeries{
		Name: "Net Amount",
		Style: chart.Style{
			StrokeColor: netColor,
			StrokeWidth: 3,
			DotColor:    netColor,
			DotWidth:    6,
		},
		XValues: xValues,
		YValues: s.Net,
	})

	yMin := 0.0
	for _, v := range s.Net {
		yMin = math.Min(yMin, v)
	}

	graph := chart.Chart{
		Title:  "Monthly Breakdown",
		Width:  r.width,
		Height: MonthlyHeight(s),
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Range: &chart.ContinuousRange{Min: xMin, Max: xMax},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: yMin * 1.1, Max: s.Max() * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return r.formatter.Format(core.Money{Cents: int64(math.Round(f * 100))})
				}
				return ""
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("monthly chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}
