// Package aggregate derives balances from a ledger snapshot.
//
// Every function here is pure: it reads the transactions it is given, never
// mutates them and never consults the wall clock. Month membership is decided by
// each transaction's own timestamp, read in the engine's location.
package aggregate

import (
	"sort"
	"time"

	"cashbook/internal/core"
)

// DefaultWindowWidth is the number of months in the trend chart.
const DefaultWindowWidth = 6

// MonthBucket is the slice of the ledger falling in one calendar month.
type MonthBucket struct {
	Key          core.MonthKey
	Transactions []core.Transaction // ledger order
	Totals       core.Totals
	Net          core.Money
}

// NewestFirst returns the bucket's transactions ordered by descending timestamp.
func (b MonthBucket) NewestFirst() []core.Transaction {
	out := make([]core.Transaction, len(b.Transactions))
	copy(out, b.Transactions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Empty reports whether no transaction fell in the month.
func (b MonthBucket) Empty() bool {
	return len(b.Transactions) == 0
}

// Engine groups transactions into calendar months of Location.
// The zero value uses time.Local, matching the way users read their own dates.
type Engine struct {
	Location *time.Location
}

// New returns an engine bucketing months in loc.
func New(loc *time.Location) Engine {
	return Engine{Location: loc}
}

func (e Engine) location() *time.Location {
	if e.Location == nil {
		return time.Local
	}
	return e.Location
}

// TotalsByCategory sums amounts per category. Absent categories stay zero.
func TotalsByCategory(txs []core.Transaction) core.Totals {
	var totals core.Totals
	for _, t := range txs {
		totals.Add(t.Category, t.Amount)
	}
	return totals
}

// NetBalance is Income - Expense - Savings - CreditCardPayment.
func NetBalance(totals core.Totals) core.Money {
	return totals.Net()
}

// GroupByMonth partitions txs by calendar month. Each transaction lands in
// exactly one bucket; buckets carry their own totals and net.
func (e Engine) GroupByMonth(txs []core.Transaction) map[core.MonthKey]MonthBucket {
	loc := e.location()
	groups := make(map[core.MonthKey]MonthBucket)
	for _, t := range txs {
		key := core.MonthKeyOf(t.Timestamp, loc)
		b := groups[key]
		b.Key = key
		b.Transactions = append(b.Transactions, t)
		b.Totals.Add(t.Category, t.Amount)
		groups[key] = b
	}
	for key, b := range groups {
		b.Net = b.Totals.Net()
		groups[key] = b
	}
	return groups
}

// SortedMonthKeys returns the keys of groups, most recent first.
func SortedMonthKeys(groups map[core.MonthKey]MonthBucket) []core.MonthKey {
	keys := make([]core.MonthKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[j].Before(keys[i])
	})
	return keys
}

// SortedMonths returns the buckets of groups, most recent first.
func SortedMonths(groups map[core.MonthKey]MonthBucket) []MonthBucket {
	keys := SortedMonthKeys(groups)
	out := make([]MonthBucket, len(keys))
	for i, k := range keys {
		out[i] = groups[k]
	}
	return out
}

// WindowKeys lists the width calendar months ending at reference's month, oldest first.
func (e Engine) WindowKeys(reference time.Time, width int) []core.MonthKey {
	if width <= 0 {
		width = DefaultWindowWidth
	}
	last := core.MonthKeyOf(reference, e.location())
	keys := make([]core.MonthKey, width)
	for i := 0; i < width; i++ {
		keys[i] = last.AddMonths(i - (width - 1))
	}
	return keys
}

// RollingWindow returns exactly width buckets ending at reference's month,
// oldest first. Months without transactions are zero-filled, never omitted.
// A width of zero or less selects DefaultWindowWidth.
func (e Engine) RollingWindow(txs []core.Transaction, reference time.Time, width int) []MonthBucket {
	keys := e.WindowKeys(reference, width)
	window := make([]MonthBucket, len(keys))
	index := make(map[core.MonthKey]int, len(keys))
	for i, k := range keys {
		window[i].Key = k
		index[k] = i
	}

	loc := e.location()
	for _, t := range txs {
		i, ok := index[core.MonthKeyOf(t.Timestamp, loc)]
		if !ok {
			continue
		}
		window[i].Transactions = append(window[i].Transactions, t)
		window[i].Totals.Add(t.Category, t.Amount)
	}
	for i := range window {
		window[i].Net = window[i].Totals.Net()
	}
	return window
}

// Share is the percentage of the grand total held by category c, 0 when empty.
func Share(totals core.Totals, c core.Category) float64 {
	sum := totals.Sum()
	if sum.Cents == 0 {
		return 0
	}
	return float64(totals.Get(c).Cents) * 100 / float64(sum.Cents)
}

var defaultEngine Engine

// GroupByMonth groups in the local time zone.
func GroupByMonth(txs []core.Transaction) map[core.MonthKey]MonthBucket {
	return defaultEngine.GroupByMonth(txs)
}

// RollingWindow builds the window in the local time zone.
func RollingWindow(txs []core.Transaction, reference time.Time, width int) []MonthBucket {
	return defaultEngine.RollingWindow(txs, reference, width)
}
