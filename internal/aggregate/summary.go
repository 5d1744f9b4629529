package aggregate

import (
	"time"

	"cashbook/internal/core"
)

// Summary bundles everything a dashboard needs from one snapshot.
type Summary struct {
	Totals core.Totals
	Net    core.Money
	Months []MonthBucket // most recent first
	Window []MonthBucket // oldest first
}

// Summarize computes totals, month groups and the rolling window in one call.
func (e Engine) Summarize(txs []core.Transaction, reference time.Time, width int) Summary {
	totals := TotalsByCategory(txs)
	return Summary{
		Totals: totals,
		Net:    NetBalance(totals),
		Months: SortedMonths(e.GroupByMonth(txs)),
		Window: e.RollingWindow(txs, reference, width),
	}
}

// Series is the rolling window flattened into chart-ready columns.
type Series struct {
	Keys       []core.MonthKey
	Labels     []string
	ByCategory map[core.Category][]float64
	Net        []float64
}

// WindowSeries converts window buckets into parallel value slices, in whole units.
func WindowSeries(window []MonthBucket) Series {
	s := Series{
		Keys:       make([]core.MonthKey, len(window)),
		Labels:     make([]string, len(window)),
		ByCategory: make(map[core.Category][]float64, 4),
		Net:        make([]float64, len(window)),
	}
	for _, c := range core.Categories() {
		s.ByCategory[c] = make([]float64, len(window))
	}
	for i, b := range window {
		s.Keys[i] = b.Key
		s.Labels[i] = b.Key.ShortLabel()
		for _, c := range core.Categories() {
			s.ByCategory[c][i] = b.Totals.Get(c).Float64()
		}
		s.Net[i] = b.Net.Float64()
	}
	return s
}

// Max returns the largest value across category and net series, at least 1.
func (s Series) Max() float64 {
	maxValue := 1.0
	for _, values := range s.ByCategory {
		for _, v := range values {
			if v > maxValue {
				maxValue = v
			}
		}
	}
	for _, v := range s.Net {
		if v > maxValue {
			maxValue = v
		}
	}
	return maxValue
}

// HasData reports whether any category value in the window is positive.
func (s Series) HasData() bool {
	for _, values := range s.ByCategory {
		for _, v := range values {
			if v > 0 {
				return true
			}
		}
	}
	return false
}
