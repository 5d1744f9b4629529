package sheets

import (
	"context"
	"time"

	"cashbook/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter appends ledger records to an external spreadsheet.
	TransactionExporter interface {
		// ExportTransactions appends one row per transaction and returns a reference
		// to the written range.
		ExportTransactions(ctx context.Context, txs []core.Transaction) (ref string, err error)
		// ExportedIDs returns the identifiers already present in the export target.
		ExportedIDs(ctx context.Context) (map[string]struct{}, error)
	}

	// TransactionReader reads exported rows back as ledger records.
	TransactionReader interface {
		ReadTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	// Sheet is an export target that can also be read back.
	Sheet interface {
		TransactionExporter
		TransactionReader
	}
)

// Header is the first row of the export sheet.
var Header = []any{"Date", "Month", "Category", "Description", "Amount", "ID"}

// TimestampLayout is how the Date column is written.
const TimestampLayout = "2006-01-02 15:04:05"

// Row renders t as an export row, with dates expressed in loc.
func Row(t core.Transaction, loc *time.Location) []any {
	if loc == nil {
		loc = time.Local
	}
	ts := t.Timestamp.In(loc)
	return []any{
		ts.Format(TimestampLayout),
		core.MonthKeyOf(ts, loc).String(),
		t.Category.Label(),
		t.Description,
		t.Amount.Float64(),
		t.ID,
	}
}
