package http

import (
	"fmt"
	"time"

	"cashbook/internal/aggregate"
	"cashbook/internal/chart"
	"cashbook/internal/core"
)

const transactionDateLayout = "02 Jan 2006, 15:04"

var categoryIcons = map[core.Category]string{
	core.Income:            "💰",
	core.Expense:           "💸",
	core.Savings:           "💾",
	core.CreditCardPayment: "💳",
}

var formTitles = map[core.Category]string{
	core.Income:            "Add Income",
	core.Expense:           "Add Expense",
	core.Savings:           "Add Savings",
	core.CreditCardPayment: "Pay Credit Card Bill",
}

type totalView struct {
	Category string
	Label    string
	Amount   string
	Share    string
}

type formView struct {
	Category string
	Title    string
	Icon     string
}

type transactionView struct {
	ID          string
	Category    string
	Icon        string
	Description string
	Date        string
	Amount      string
}

type monthView struct {
	Key          string
	Label        string
	Net          string
	NetIcon      string
	NetClass     string
	Totals       []totalView
	Transactions []transactionView
}

type chartView struct {
	Src    string
	Height int
	Alt    string
}

type dashboardView struct {
	CashInHand      string
	CashInHandClass string
	Totals          []totalView
	Forms           []formView
	Months          []monthView
	Overview        chartView
	Monthly         chartView
	WindowWidth     int
	Revision        uint64
}

func signClass(m core.Money) string {
	if m.IsNegative() {
		return "negative"
	}
	return "positive"
}

func newDashboardView(summary aggregate.Summary, revision uint64, width int, loc *time.Location, f *core.CurrencyFormatter) dashboardView {
	v := dashboardView{
		CashInHand:      f.Format(summary.Net),
		CashInHandClass: signClass(summary.Net),
		WindowWidth:     width,
		Revision:        revision,
	}

	for _, c := range core.Categories() {
		v.Totals = append(v.Totals, totalView{
			Category: c.String(),
			Label:    c.Label(),
			Amount:   f.Format(summary.Totals.Get(c)),
			Share:    fmt.Sprintf("%.1f%%", aggregate.Share(summary.Totals, c)),
		})
		v.Forms = append(v.Forms, formView{
			Category: c.String(),
			Title:    formTitles[c],
			Icon:     categoryIcons[c],
		})
	}

	for _, b := range summary.Months {
		v.Months = append(v.Months, newMonthView(b, loc, f))
	}

	series := aggregate.WindowSeries(summary.Window)
	v.Overview = chartView{
		Src:    fmt.Sprintf("/charts/overview.png?rev=%d", revision),
		Height: chart.OverviewHeight(summary.Totals.Sum().Float64()),
		Alt:    "Share of income, expenses, savings and credit card bills",
	}
	v.Monthly = chartView{
		Src:    fmt.Sprintf("/charts/monthly.png?rev=%d&width=%d", revision, width),
		Height: chart.MonthlyHeight(series),
		Alt:    fmt.Sprintf("Totals for the last %d months", width),
	}
	return v
}

func newMonthView(b aggregate.MonthBucket, loc *time.Location, f *core.CurrencyFormatter) monthView {
	mv := monthView{
		Key:      b.Key.String(),
		Label:    b.Key.Label(),
		Net:      f.Format(b.Net.Abs()),
		NetIcon:  "💰",
		NetClass: signClass(b.Net),
	}
	if b.Net.IsNegative() {
		mv.NetIcon = "💸"
	}
	for _, c := range core.Categories() {
		mv.Totals = append(mv.Totals, totalView{
			Category: c.String(),
			Label:    c.Label(),
			Amount:   f.Format(b.Totals.Get(c)),
		})
	}
	for _, t := range b.NewestFirst() {
		mv.Transactions = append(mv.Transactions, newTransactionView(t, loc, f))
	}
	return mv
}

func newTransactionView(t core.Transaction, loc *time.Location, f *core.CurrencyFormatter) transactionView {
	sign := "-"
	if !t.Category.Outflow() {
		sign = "+"
	}
	ts := t.Timestamp
	if loc != nil {
		ts = ts.In(loc)
	}
	return transactionView{
		ID:          t.ID,
		Category:    t.Category.String(),
		Icon:        categoryIcons[t.Category],
		Description: t.Description,
		Date:        ts.Format(transactionDateLayout),
		Amount:      sign + f.Format(t.Amount),
	}
}
