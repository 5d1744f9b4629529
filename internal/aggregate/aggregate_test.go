package aggregate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashbook/internal/core"
)

var utc = New(time.UTC)

func tx(id string, c core.Category, units int64, ts time.Time) core.Transaction {
	return core.Transaction{ID: id, Category: c, Description: id, Amount: core.Units(units), Timestamp: ts}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func sampleLedger() []core.Transaction {
	return []core.Transaction{
		tx("salary", core.Income, 50000, day(2025, time.March, 1)),
		tx("rent", core.Expense, 15000, day(2025, time.March, 2)),
		tx("fund", core.Savings, 10000, day(2025, time.February, 10)),
		tx("card", core.CreditCardPayment, 8000, day(2024, time.December, 28)),
		tx("groceries", core.Expense, 5000, day(2024, time.November, 3)),
		tx("freelance", core.Income, 15000, day(2024, time.October, 30)),
	}
}

func TestTotalsByCategory_Scenario(t *testing.T) {
	ledger := []core.Transaction{
		tx("a", core.Income, 50000, day(2025, time.March, 1)),
		tx("b", core.Expense, 15000, day(2025, time.March, 1)),
		tx("c", core.Savings, 10000, day(2025, time.March, 1)),
		tx("d", core.CreditCardPayment, 8000, day(2025, time.March, 1)),
	}

	totals := TotalsByCategory(ledger)

	assert.Equal(t, core.Units(50000), totals.Get(core.Income))
	assert.Equal(t, core.Units(15000), totals.Get(core.Expense))
	assert.Equal(t, core.Units(10000), totals.Get(core.Savings))
	assert.Equal(t, core.Units(8000), totals.Get(core.CreditCardPayment))
	assert.Equal(t, core.Units(17000), NetBalance(totals))
}

func TestTotalsByCategory_Conservation(t *testing.T) {
	ledger := sampleLedger()

	var want core.Money
	for _, entry := range ledger {
		want = want.Add(entry.Amount)
	}

	assert.Equal(t, want, TotalsByCategory(ledger).Sum())
}

func TestNetBalance_Negative(t *testing.T) {
	ledger := []core.Transaction{
		tx("in", core.Income, 100, day(2025, time.January, 1)),
		tx("out", core.Expense, 80, day(2025, time.January, 2)),
		tx("save", core.Savings, 30, day(2025, time.January, 3)),
		tx("card", core.CreditCardPayment, 5, day(2025, time.January, 4)),
	}

	net := NetBalance(TotalsByCategory(ledger))

	assert.Equal(t, core.Units(-15), net)
	assert.True(t, net.IsNegative())
}

func TestEmptyLedger(t *testing.T) {
	totals := TotalsByCategory(nil)
	for _, c := range core.Categories() {
		assert.True(t, totals.Get(c).IsZero(), "category %s", c)
	}
	assert.True(t, NetBalance(totals).IsZero())
	assert.Empty(t, utc.GroupByMonth(nil))

	window := utc.RollingWindow(nil, day(2025, time.April, 15), DefaultWindowWidth)
	require.Len(t, window, 6)
	for _, b := range window {
		assert.True(t, b.Empty())
		assert.Equal(t, core.Totals{}, b.Totals)
		assert.True(t, b.Net.IsZero())
	}
}

func TestGroupByMonth_Partition(t *testing.T) {
	ledger := sampleLedger()

	groups := utc.GroupByMonth(ledger)

	seen := make(map[string]int)
	for key, b := range groups {
		assert.Equal(t, key, b.Key)
		for _, entry := range b.Transactions {
			seen[entry.ID]++
		}
	}
	require.Len(t, seen, len(ledger))
	for id, n := range seen {
		assert.Equal(t, 1, n, "transaction %s", id)
	}
}

func TestGroupByMonth_BucketTotals(t *testing.T) {
	groups := utc.GroupByMonth(sampleLedger())

	march := groups[core.MonthKey{Year: 2025, Month: time.March}]
	assert.Len(t, march.Transactions, 2)
	assert.Equal(t, core.Units(50000), march.Totals.Get(core.Income))
	assert.Equal(t, core.Units(15000), march.Totals.Get(core.Expense))
	assert.Equal(t, core.Units(35000), march.Net)

	dec := groups[core.MonthKey{Year: 2024, Month: time.December}]
	assert.Equal(t, core.Units(-8000), dec.Net)
}

func TestGroupByMonth_TwoMonths(t *testing.T) {
	ledger := []core.Transaction{
		tx("jan", core.Income, 10, day(2025, time.January, 31)),
		tx("feb", core.Expense, 5, day(2025, time.February, 1)),
	}

	groups := utc.GroupByMonth(ledger)

	require.Len(t, groups, 2)
	for _, b := range groups {
		assert.Len(t, b.Transactions, 1)
	}
}

func TestGroupByMonth_Idempotent(t *testing.T) {
	ledger := sampleLedger()
	before := append([]core.Transaction(nil), ledger...)

	first := utc.GroupByMonth(ledger)
	second := utc.GroupByMonth(ledger)

	assert.Equal(t, first, second)
	assert.Equal(t, TotalsByCategory(ledger), TotalsByCategory(ledger))
	assert.Equal(t, before, ledger, "input must not be mutated")
}

func TestGroupByMonth_UsesEngineLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	late := time.Date(2025, time.January, 31, 20, 0, 0, 0, time.UTC)

	utcGroups := utc.GroupByMonth([]core.Transaction{tx("x", core.Income, 1, late)})
	istGroups := New(ist).GroupByMonth([]core.Transaction{tx("x", core.Income, 1, late)})

	assert.Contains(t, utcGroups, core.MonthKey{Year: 2025, Month: time.January})
	assert.Contains(t, istGroups, core.MonthKey{Year: 2025, Month: time.February})
}

func TestSortedMonthKeys_Descending(t *testing.T) {
	keys := SortedMonthKeys(utc.GroupByMonth(sampleLedger()))

	got := make([]string, len(keys))
	for i, k := range keys {
		got[i] = k.String()
	}
	assert.Equal(t, []string{"2025-03", "2025-02", "2024-12", "2024-11", "2024-10"}, got)
}

func TestMonthBucket_NewestFirst(t *testing.T) {
	b := utc.GroupByMonth(sampleLedger())[core.MonthKey{Year: 2025, Month: time.March}]

	ordered := b.NewestFirst()

	require.Len(t, ordered, 2)
	assert.Equal(t, "rent", ordered[0].ID)
	assert.Equal(t, "salary", b.Transactions[0].ID, "bucket keeps ledger order")
}

func TestRollingWindow_SpansYearBoundary(t *testing.T) {
	window := utc.RollingWindow(sampleLedger(), day(2025, time.April, 10), 6)

	require.Len(t, window, 6)
	want := []string{"2024-11", "2024-12", "2025-01", "2025-02", "2025-03", "2025-04"}
	for i, b := range window {
		assert.Equal(t, want[i], b.Key.String())
	}

	assert.Equal(t, core.Units(5000), window[0].Totals.Get(core.Expense))
	assert.Equal(t, core.Units(8000), window[1].Totals.Get(core.CreditCardPayment))
	assert.True(t, window[2].Empty(), "January has no transactions but stays in the window")
	assert.Equal(t, core.Units(-10000), window[3].Net)
	assert.Equal(t, core.Units(35000), window[4].Net)
	assert.True(t, window[5].Empty())
}

func TestRollingWindow_ExcludesOutsideMonths(t *testing.T) {
	window := utc.RollingWindow(sampleLedger(), day(2025, time.April, 10), 6)

	for _, b := range window {
		for _, got := range b.Transactions {
			assert.NotEqual(t, "freelance", got.ID, "October 2024 is outside the window")
		}
	}
}

func TestRollingWindow_ContiguousForAnyWidth(t *testing.T) {
	for width := 1; width <= 30; width++ {
		t.Run(fmt.Sprintf("width_%d", width), func(t *testing.T) {
			window := utc.RollingWindow(sampleLedger(), day(2025, time.February, 1), width)

			require.Len(t, window, width)
			assert.Equal(t, core.MonthKey{Year: 2025, Month: time.February}, window[width-1].Key)
			for i := 1; i < width; i++ {
				assert.Equal(t, window[i-1].Key.AddMonths(1), window[i].Key)
			}
		})
	}
}

func TestRollingWindow_DefaultWidth(t *testing.T) {
	assert.Len(t, utc.RollingWindow(nil, day(2025, time.January, 1), 0), DefaultWindowWidth)
	assert.Len(t, utc.RollingWindow(nil, day(2025, time.January, 1), -3), DefaultWindowWidth)
}

func TestShare(t *testing.T) {
	totals := TotalsByCategory([]core.Transaction{
		tx("a", core.Income, 75, day(2025, time.January, 1)),
		tx("b", core.Expense, 25, day(2025, time.January, 1)),
	})

	assert.InDelta(t, 75.0, Share(totals, core.Income), 1e-9)
	assert.InDelta(t, 0.0, Share(totals, core.Savings), 1e-9)
	assert.Zero(t, Share(core.Totals{}, core.Income))
}
