package memory

import (
	"context"
	"fmt"
	"sync"

	"cashbook/internal/core"
	"cashbook/internal/sheets"
)

var (
	_ sheets.TransactionExporter = (*Exporter)(nil)
	_ sheets.TransactionReader   = (*Exporter)(nil)
)

// Exporter keeps exported rows in memory. Used when no spreadsheet is
// configured and in tests.
type Exporter struct {
	mu   sync.Mutex
	rows []core.Transaction
	ids  map[string]struct{}
}

func New() *Exporter {
	return &Exporter{ids: make(map[string]struct{})}
}

// ExportTransactions stores the rows and returns a synthetic range reference.
func (e *Exporter) ExportTransactions(_ context.Context, txs []core.Transaction) (string, error) {
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			return "", fmt.Errorf("export %s: %w", t.ID, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	first := len(e.rows) + 1
	for _, t := range txs {
		e.rows = append(e.rows, t)
		e.ids[t.ID] = struct{}{}
	}
	return fmt.Sprintf("mem:%d-%d", first, len(e.rows)), nil
}

func (e *Exporter) ExportedIDs(_ context.Context) (map[string]struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]struct{}, len(e.ids))
	for id := range e.ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (e *Exporter) ReadTransactions(_ context.Context) ([]core.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Transaction(nil), e.rows...), nil
}

// Len reports how many rows were exported.
func (e *Exporter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rows)
}
