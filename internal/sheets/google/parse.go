package google

import (
	"fmt"
	"strings"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/sheets"
)

func parseIDColumn(values [][]any) map[string]struct{} {
	ids := make(map[string]struct{}, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" || strings.EqualFold(id, "ID") {
			continue
		}
		ids[id] = struct{}{}
	}
	return ids
}

// parseTransactionRows converts Date | Month | Category | Description | Amount | ID rows.
// The header row and blank rows are skipped; any other unreadable row fails the whole read.
func parseTransactionRows(values [][]any, loc *time.Location) ([]core.Transaction, error) {
	if loc == nil {
		loc = time.Local
	}
	out := make([]core.Transaction, 0, len(values))
	for i, row := range values {
		cols := toStrings(row)
		if isBlank(cols) {
			continue
		}
		if i == 0 && strings.EqualFold(cols[0], "Date") {
			continue
		}
		if len(cols) < len(sheets.Header) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", i+1, len(sheets.Header), len(cols))
		}

		ts, err := time.ParseInLocation(sheets.TimestampLayout, cols[0], loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: date %q: %w", i+1, cols[0], err)
		}
		category, err := parseCategoryCell(cols[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		amount, err := parseAmountCell(row[4])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if cols[5] == "" {
			return nil, fmt.Errorf("row %d: missing id", i+1)
		}

		out = append(out, core.Transaction{
			ID:          cols[5],
			Category:    category,
			Description: cols[3],
			Amount:      amount,
			Timestamp:   ts,
		})
	}
	return out, nil
}

// parseCategoryCell accepts both display labels and wire names.
func parseCategoryCell(s string) (core.Category, error) {
	for _, c := range core.Categories() {
		if strings.EqualFold(s, c.Label()) {
			return c, nil
		}
	}
	return core.ParseCategory(s)
}

func parseAmountCell(v any) (core.Money, error) {
	switch n := v.(type) {
	case float64:
		return core.MoneyFromFloat(n)
	case int:
		return core.Units(int64(n)), nil
	case int64:
		return core.Units(n), nil
	default:
		return core.ParseAmount(strings.TrimSpace(fmt.Sprint(v)))
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}
