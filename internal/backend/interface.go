package backend

import (
	"context"

	"cashbook/internal/ledger"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// HealthFunc reports whether the backing store is reachable.
type HealthFunc func(ctx context.Context) error

// BackendResult contains the ledger blob and optional lifecycle hooks
type BackendResult struct {
	Blob    ledger.Blob
	Health  HealthFunc
	Cleanup CleanupFunc
}

// Close runs Cleanup if one was provided.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	BlobKey      string

	// File specific
	LedgerFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	FileBackend   BackendType = "file"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, FileBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
