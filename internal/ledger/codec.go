package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cashbook/internal/core"
)

// CurrentVersion is the envelope version written by Encode.
const CurrentVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported ledger version")
	ErrMalformedRecord    = errors.New("malformed ledger record")
)

type envelope struct {
	Version      int      `json:"version"`
	Transactions []record `json:"transactions"`
}

type record struct {
	ID          string        `json:"id"`
	Category    core.Category `json:"category"`
	Description string        `json:"description"`
	Amount      amount        `json:"amount"`
	Timestamp   time.Time     `json:"timestamp"`
	Month       int           `json:"month"`
	Year        int           `json:"year"`
}

// legacyRecord is the unversioned browser format: a bare array with
// millisecond ids, a "type" field and an ISO "date".
type legacyRecord struct {
	ID          json.RawMessage `json:"id"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Amount      amount          `json:"amount"`
	Date        time.Time       `json:"date"`
}

// amount is written as a bare JSON number in currency units.
type amount core.Money

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(core.Money(a).Decimal().StringFixed(2)), nil
}

func (a *amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	m, err := core.MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*a = amount(m)
	return nil
}

// Encode serializes the full sequence into the current envelope.
func Encode(txs []core.Transaction) ([]byte, error) {
	env := envelope{Version: CurrentVersion, Transactions: make([]record, 0, len(txs))}
	for _, t := range txs {
		ts := t.Timestamp.UTC()
		env.Transactions = append(env.Transactions, record{
			ID:          t.ID,
			Category:    t.Category,
			Description: t.Description,
			Amount:      amount(t.Amount),
			Timestamp:   ts,
			Month:       int(ts.Month()),
			Year:        ts.Year(),
		})
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return data, nil
}

// Decode parses either the versioned envelope or the legacy bare array.
// Every record must be valid; a single bad record rejects the whole blob.
func Decode(data []byte) ([]core.Transaction, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrMalformedRecord)
	}
	if trimmed[0] == '[' {
		return decodeLegacy(trimmed)
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	if env.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}

	txs := make([]core.Transaction, 0, len(env.Transactions))
	for i, r := range env.Transactions {
		t := core.Transaction{
			ID:          r.ID,
			Category:    r.Category,
			Description: r.Description,
			Amount:      core.Money(r.Amount),
			Timestamp:   r.Timestamp,
		}
		if err := checkRecord(t); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func decodeLegacy(data []byte) ([]core.Transaction, error) {
	var recs []legacyRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode legacy ledger: %w", err)
	}

	txs := make([]core.Transaction, 0, len(recs))
	for i, r := range recs {
		category, err := core.ParseCategory(r.Type)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		t := core.Transaction{
			ID:          strings.Trim(string(r.ID), `"`),
			Category:    category,
			Description: r.Description,
			Amount:      core.Money(r.Amount),
			Timestamp:   r.Date,
		}
		if err := checkRecord(t); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func checkRecord(t core.Transaction) error {
	if t.ID == "" || t.ID == "null" {
		return fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrMalformedRecord)
	}
	return t.Validate()
}
