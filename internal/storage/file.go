package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"cashbook/internal/ledger"
)

// FileBlob stores the ledger as a single JSON file. Writes go to a temp file
// in the same directory and are renamed into place.
type FileBlob struct {
	path string
	mu   sync.Mutex
}

func NewFileBlob(path string) (*FileBlob, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &FileBlob{path: path}, nil
}

func (b *FileBlob) Path() string { return b.path }

func (b *FileBlob) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ledger.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}
	return data, nil
}

func (b *FileBlob) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}
