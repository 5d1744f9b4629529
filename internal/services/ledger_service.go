package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
	"cashbook/internal/log"
)

// Publisher announces transactions that reached the ledger.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, t core.Transaction) error
}

// LedgerService is the single mutation entry point used by the adapters.
type LedgerService struct {
	store     *ledger.Store
	publisher Publisher
	logger    *log.Logger
	events    *log.EventLogger
}

// NewLedgerService wires the store with an optional publisher (nil disables events).
func NewLedgerService(store *ledger.Store, publisher Publisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Default()
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
		events:    log.NewEventLogger(logger),
	}
}

// RecordTransaction appends a transaction and publishes it. Validation errors
// come back unchanged; a persist failure returns the in-memory record together
// with an error wrapping ledger.ErrPersist. Publish failures are only logged.
func (s *LedgerService) RecordTransaction(ctx context.Context, category core.Category, description string, amount core.Money) (core.Transaction, error) {
	t, revision, err := s.store.AppendWithRevision(ctx, category, description, amount)
	if err != nil {
		if errors.Is(err, ledger.ErrPersist) {
			s.logger.ErrorContext(ctx, "Transaction kept in memory but not persisted",
				log.FieldTransactionID, t.ID,
				log.FieldError, err)
			return t, err
		}
		return core.Transaction{}, fmt.Errorf("record %s: %w", category, err)
	}

	s.events.TransactionRecorded(ctx, t.ID, t.Category.String(), t.Description, t.Amount.Cents, revision)

	if err := s.publish(ctx, t); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction recorded message",
			log.FieldOperation, log.OpPublish,
			log.FieldTransactionID, t.ID,
			log.FieldError, err)
	}

	return t, nil
}

func (s *LedgerService) RecordIncome(ctx context.Context, description string, amount core.Money) (core.Transaction, error) {
	return s.RecordTransaction(ctx, core.Income, description, amount)
}

func (s *LedgerService) RecordExpense(ctx context.Context, description string, amount core.Money) (core.Transaction, error) {
	return s.RecordTransaction(ctx, core.Expense, description, amount)
}

func (s *LedgerService) RecordSavings(ctx context.Context, description string, amount core.Money) (core.Transaction, error) {
	return s.RecordTransaction(ctx, core.Savings, description, amount)
}

func (s *LedgerService) RecordCreditCardPayment(ctx context.Context, description string, amount core.Money) (core.Transaction, error) {
	return s.RecordTransaction(ctx, core.CreditCardPayment, description, amount)
}

func (s *LedgerService) publish(ctx context.Context, t core.Transaction) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping transaction event")
		return nil
	}
	return s.publisher.PublishTransactionRecorded(ctx, t)
}

// Snapshot returns the ledger in insertion order with its revision.
func (s *LedgerService) Snapshot() ([]core.Transaction, uint64) {
	return s.store.SnapshotWithRevision()
}

// Import replaces the whole ledger.
func (s *LedgerService) Import(ctx context.Context, txs []core.Transaction) error {
	return s.store.Import(ctx, txs)
}

type sampleEntry struct {
	category    core.Category
	description string
	units       int64
}

var sampleEntries = []sampleEntry{
	{core.Income, "Salary", 50000},
	{core.Expense, "Rent", 15000},
	{core.Expense, "Groceries", 5000},
	{core.Savings, "Emergency Fund", 10000},
	{core.CreditCardPayment, "Credit Card Bill", 8000},
	{core.Income, "Freelance Work", 15000},
	{core.Expense, "Utilities", 3000},
	{core.Savings, "Investment", 5000},
}

// SampleTransactions builds the demo ledger, one entry per day going back from now.
func SampleTransactions(now time.Time) []core.Transaction {
	txs := make([]core.Transaction, 0, len(sampleEntries))
	for i, e := range sampleEntries {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		txs = append(txs, core.Transaction{
			ID:          id.String(),
			Category:    e.category,
			Description: e.description,
			Amount:      core.Units(e.units),
			Timestamp:   now.AddDate(0, 0, -i),
		})
	}
	return txs
}

// SeedSampleData fills an empty ledger with demo transactions. It returns the
// number of records added, zero when the ledger already had data.
func (s *LedgerService) SeedSampleData(ctx context.Context, now time.Time) (int, error) {
	if s.store.Len() > 0 {
		return 0, nil
	}
	txs := SampleTransactions(now)
	if err := s.store.Import(ctx, txs); err != nil {
		return 0, fmt.Errorf("seed sample data: %w", err)
	}
	s.logger.InfoContext(ctx, "Seeded sample data", log.FieldCount, len(txs))
	return len(txs), nil
}
