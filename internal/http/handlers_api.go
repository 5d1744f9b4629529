package http

import (
	"errors"
	"net/http"
	"time"

	"cashbook/internal/aggregate"
	"cashbook/internal/core"
)

type transactionResponse struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Timestamp   time.Time `json:"timestamp"`
	Month       string    `json:"month"`
}

type totalsResponse map[string]int64

type summaryResponse struct {
	Totals      totalsResponse     `json:"totals_cents"`
	Shares      map[string]float64 `json:"shares"`
	NetCents    int64              `json:"net_cents"`
	CashInHand  string             `json:"cash_in_hand"`
	Count       int                `json:"transaction_count"`
	Revision    uint64             `json:"revision"`
	GeneratedAt time.Time          `json:"generated_at"`
}

type monthResponse struct {
	Month        string                `json:"month"`
	Label        string                `json:"label"`
	Totals       totalsResponse        `json:"totals_cents"`
	NetCents     int64                 `json:"net_cents"`
	Transactions []transactionResponse `json:"transactions,omitempty"`
}

type windowResponse struct {
	Width    int             `json:"width"`
	Revision uint64          `json:"revision"`
	Months   []monthResponse `json:"months"`
}

func newTransactionResponse(t core.Transaction, month core.MonthKey) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Category:    t.Category.String(),
		Description: t.Description,
		AmountCents: t.Amount.Cents,
		Timestamp:   t.Timestamp,
		Month:       month.String(),
	}
}

func newTotalsResponse(totals core.Totals) totalsResponse {
	out := make(totalsResponse, 4)
	for _, c := range core.Categories() {
		out[c.String()] = totals.Get(c).Cents
	}
	return out
}

func newMonthResponse(b aggregate.MonthBucket, withTransactions bool) monthResponse {
	m := monthResponse{
		Month:    b.Key.String(),
		Label:    b.Key.Label(),
		Totals:   newTotalsResponse(b.Totals),
		NetCents: b.Net.Cents,
	}
	if withTransactions {
		for _, t := range b.NewestFirst() {
			m.Transactions = append(m.Transactions, newTransactionResponse(t, b.Key))
		}
	}
	return m
}

// handleAPISummary returns category totals and the signed cash in hand.
func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	txs, revision := s.ledger.Snapshot()
	totals := aggregate.TotalsByCategory(txs)
	net := aggregate.NetBalance(totals)

	shares := make(map[string]float64, 4)
	for _, c := range core.Categories() {
		shares[c.String()] = aggregate.Share(totals, c)
	}

	writeJSON(w, r, http.StatusOK, summaryResponse{
		Totals:      newTotalsResponse(totals),
		Shares:      shares,
		NetCents:    net.Cents,
		CashInHand:  s.formatter.Format(net),
		Count:       len(txs),
		Revision:    revision,
		GeneratedAt: s.now(),
	})
}

// handleAPIMonths returns every month with activity, most recent first.
func (s *Server) handleAPIMonths(w http.ResponseWriter, r *http.Request) {
	txs, _ := s.ledger.Snapshot()
	months := aggregate.SortedMonths(s.engine.GroupByMonth(txs))

	out := make([]monthResponse, 0, len(months))
	for _, b := range months {
		out = append(out, newMonthResponse(b, true))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleAPIWindow returns the rolling window ending at the current month, oldest first.
func (s *Server) handleAPIWindow(w http.ResponseWriter, r *http.Request) {
	width, err := ParseWindowWidth(r.URL.Query(), s.width)
	if errors.Is(err, ErrInvalidWindowWidth) {
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	txs, revision := s.ledger.Snapshot()
	window := s.engine.RollingWindow(txs, s.now(), width)

	resp := windowResponse{Width: width, Revision: revision, Months: make([]monthResponse, 0, len(window))}
	for _, b := range window {
		resp.Months = append(resp.Months, newMonthResponse(b, false))
	}
	writeJSON(w, r, http.StatusOK, resp)
}
