package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore keeps attachments as files on the local filesystem. Handles
// are random UUIDs with the original extension appended so the media kind
// survives the round trip.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a new LocalStore at the given base path.
// It creates the directory if it does not exist.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("intake: create base directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Save streams the attachment to a temp file, then renames it into place.
func (s *LocalStore) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	handle := uuid.New().String() + filepath.Ext(filename)
	finalPath := filepath.Join(s.basePath, handle)

	tmp, err := os.CreateTemp(s.basePath, ".tmp-"+handle+"-*")
	if err != nil {
		return "", fmt.Errorf("intake: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("intake: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("intake: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, finalPath); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("intake: rename temp file: %w", err)
	}
	return handle, nil
}

// Open returns the attachment content for reading.
// Returns ErrNotFound if the handle does not exist.
func (s *LocalStore) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	// Handles are generated by Save; reject anything path-shaped.
	if filepath.Base(handle) != handle {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.basePath, handle))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("intake: open file: %w", err)
	}
	return f, nil
}

// Remove deletes an attachment file.
// Returns nil if the attachment does not exist (idempotent).
func (s *LocalStore) Remove(_ context.Context, handle string) error {
	if filepath.Base(handle) != handle {
		return nil
	}
	err := os.Remove(filepath.Join(s.basePath, handle))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("intake: remove file: %w", err)
	}
	return nil
}
