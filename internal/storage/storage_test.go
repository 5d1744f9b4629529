package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
	"cashbook/internal/log"
)

func blobContract(t *testing.T, blob ledger.Blob) {
	t.Helper()
	ctx := context.Background()

	_, err := blob.Read(ctx)
	require.ErrorIs(t, err, ledger.ErrBlobNotFound)

	require.NoError(t, blob.Write(ctx, []byte(`first`)))
	require.NoError(t, blob.Write(ctx, []byte(`second`)))

	got, err := blob.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestMemoryBlob(t *testing.T) {
	blobContract(t, NewMemoryBlob())
}

func TestMemoryBlob_CopiesData(t *testing.T) {
	b := NewMemoryBlob()
	data := []byte("abc")
	require.NoError(t, b.Write(context.Background(), data))
	data[0] = 'x'

	got, err := b.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileBlob(t *testing.T) {
	b, err := NewFileBlob(filepath.Join(t.TempDir(), "nested", "ledger.json"))
	require.NoError(t, err)
	blobContract(t, b)
}

func TestFileBlob_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBlob(filepath.Join(dir, "ledger.json"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Write(context.Background(), []byte("{}")))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ledger.json", entries[0].Name())
}

func TestFileBlob_CanceledContext(t *testing.T) {
	b, err := NewFileBlob(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, b.Write(ctx, []byte("{}")), context.Canceled)
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "cashbook.db"), log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteBlob(t *testing.T) {
	blobContract(t, newTestSQLiteStore(t).Blob("expenseTrackerData"))
}

func TestSQLiteStore_KeysAreIndependent(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "b", []byte("2")))
	require.NoError(t, s.Delete(ctx, "a"))

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ledger.ErrBlobNotFound)
	got, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", string(got))
	assert.NoError(t, s.HealthCheck(ctx))
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cashbook.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path, log.Discard())
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "k", []byte("v")))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path, log.Discard())
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestLedgerOverSQLite(t *testing.T) {
	blob := newTestSQLiteStore(t).Blob("expenseTrackerData")
	ctx := context.Background()

	store := ledger.New(blob, ledger.WithLogger(log.Discard()))
	store.Load(ctx)
	_, err := store.Append(ctx, core.Income, "Salary", core.Units(50000))
	require.NoError(t, err)
	_, err = store.Append(ctx, core.Expense, "Rent", core.Units(15000))
	require.NoError(t, err)

	reloaded := ledger.New(blob, ledger.WithLogger(log.Discard())).Load(ctx)
	require.Len(t, reloaded, 2)
	assert.Equal(t, "Salary", reloaded[0].Description)
	assert.Equal(t, "Rent", reloaded[1].Description)
}
