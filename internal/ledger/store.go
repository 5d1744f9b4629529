// Package ledger owns the ordered, append-only transaction sequence and its
// persisted blob.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cashbook/internal/core"
	"cashbook/internal/log"
)

var (
	// ErrBlobNotFound is returned by Blob.Read when nothing was ever written.
	ErrBlobNotFound = errors.New("ledger blob not found")
	// ErrCorruptPersistedState marks a blob that exists but cannot be decoded.
	ErrCorruptPersistedState = errors.New("corrupt persisted state")
	// ErrPersist wraps a failed blob write after the in-memory state changed.
	ErrPersist = errors.New("persist ledger")
)

// Blob is the single opaque value the ledger is saved to.
type Blob interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Store is safe for concurrent use.
type Store struct {
	blob   Blob
	now    func() time.Time
	newID  func() string
	logger *log.Logger

	mu       sync.RWMutex
	txs      []core.Transaction
	revision uint64
}

type Option func(*Store)

// WithClock overrides the time source used to stamp new transactions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc overrides the identifier generator.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func New(blob Blob, opts ...Option) *Store {
	s := &Store{
		blob:   blob,
		now:    time.Now,
		newID:  newTransactionID,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	return s
}

func newTransactionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load replaces the in-memory ledger with the persisted one. It never fails:
// a missing, unreadable or undecodable blob yields an empty ledger.
func (s *Store) Load(ctx context.Context) []core.Transaction {
	txs := s.read(ctx)

	s.mu.Lock()
	s.txs = txs
	s.revision++
	rev := s.revision
	out := cloneTransactions(s.txs)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldCount, len(out),
		log.FieldRevision, rev)
	return out
}

func (s *Store) read(ctx context.Context) []core.Transaction {
	data, err := s.blob.Read(ctx)
	if errors.Is(err, ErrBlobNotFound) {
		s.logger.InfoContext(ctx, "No persisted ledger, starting empty", log.FieldOperation, log.OpLoad)
		return nil
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read persisted ledger, starting empty",
			log.FieldOperation, log.OpLoad,
			log.FieldError, err)
		return nil
	}

	txs, err := Decode(data)
	if err != nil {
		s.logger.WarnContext(ctx, "Persisted ledger is unreadable, starting empty",
			log.FieldOperation, log.OpLoad,
			log.FieldError, fmt.Errorf("%w: %w", ErrCorruptPersistedState, err))
		return nil
	}
	return txs
}

// Append validates, stamps and appends a new transaction, then persists the
// whole ledger. Invalid input leaves both the ledger and the blob untouched.
// When only the write fails the record is still returned, together with an
// error wrapping ErrPersist.
func (s *Store) Append(ctx context.Context, category core.Category, description string, amount core.Money) (core.Transaction, error) {
	t, _, err := s.AppendWithRevision(ctx, category, description, amount)
	return t, err
}

// AppendWithRevision is Append that also reports the revision the new record
// produced, read under the same lock as the append.
func (s *Store) AppendWithRevision(ctx context.Context, category core.Category, description string, amount core.Money) (core.Transaction, uint64, error) {
	if !category.Valid() {
		return core.Transaction{}, 0, core.ErrInvalidCategory
	}
	if err := amount.Validate(); err != nil {
		return core.Transaction{}, 0, err
	}

	t := core.Transaction{
		ID:          s.newID(),
		Category:    category,
		Description: description,
		Amount:      amount,
		Timestamp:   s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs = append(s.txs, t)
	s.revision++

	if err := s.persistLocked(ctx); err != nil {
		return t, s.revision, err
	}

	s.logger.DebugContext(ctx, "Transaction appended",
		log.FieldOperation, log.OpAppend,
		log.FieldTransactionID, t.ID,
		log.FieldCategory, t.Category.String(),
		log.FieldAmountCents, t.Amount.Cents,
		log.FieldRevision, s.revision)
	return t, s.revision, nil
}

// Snapshot returns a copy of the ledger in insertion order.
func (s *Store) Snapshot() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTransactions(s.txs)
}

// SnapshotWithRevision returns the ledger copy and the revision it belongs to.
func (s *Store) SnapshotWithRevision() ([]core.Transaction, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTransactions(s.txs), s.revision
}

// Len reports how many transactions the ledger holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// Revision changes whenever the ledger contents change.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Persist writes the full sequence to the blob.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// Import replaces the whole ledger. Every record is checked first; nothing
// changes unless all of them are valid and identifiers are unique.
func (s *Store) Import(ctx context.Context, txs []core.Transaction) error {
	seen := make(map[string]struct{}, len(txs))
	for i, t := range txs {
		if err := checkRecord(t); err != nil {
			return fmt.Errorf("import record %d: %w", i, err)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("import record %d: %w: duplicate id %q", i, ErrMalformedRecord, t.ID)
		}
		seen[t.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs = cloneTransactions(txs)
	s.revision++

	if err := s.persistLocked(ctx); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Ledger imported",
		log.FieldOperation, log.OpImport,
		log.FieldCount, len(s.txs),
		log.FieldRevision, s.revision)
	return nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := Encode(s.txs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := s.blob.Write(ctx, data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist ledger",
			log.FieldOperation, log.OpPersist,
			log.FieldCount, len(s.txs),
			log.FieldError, err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func cloneTransactions(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	return out
}
