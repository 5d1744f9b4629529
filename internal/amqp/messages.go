package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"cashbook/internal/core"
)

// TransactionRecordedMessage announces a transaction that reached the ledger.
// It carries the full record so consumers never need to read the ledger blob.
type TransactionRecordedMessage struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Timestamp   time.Time `json:"timestamp"`
	PublishedAt time.Time `json:"published_at"`
}

// NewTransactionRecordedMessage builds the event for t.
func NewTransactionRecordedMessage(t core.Transaction) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		ID:          t.ID,
		Category:    t.Category.String(),
		Description: t.Description,
		AmountCents: t.Amount.Cents,
		Timestamp:   t.Timestamp,
		PublishedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Transaction converts the message back into a validated domain record.
func (m *TransactionRecordedMessage) Transaction() (core.Transaction, error) {
	category, err := core.ParseCategory(m.Category)
	if err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		ID:          m.ID,
		Category:    category,
		Description: m.Description,
		Amount:      core.Money{Cents: m.AmountCents},
		Timestamp:   m.Timestamp,
	}
	if t.ID == "" {
		return core.Transaction{}, fmt.Errorf("message without transaction id")
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// TransactionRecordedMessageFromJSON creates a message from JSON bytes
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
