package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Blob is the storage boundary for serialized bundles. Keys are caller
// chosen names such as "orders/1f8a.bundle.json", using forward slashes;
// writing an existing key replaces it.
type Blob interface {
	// Write persists data under key.
	Write(ctx context.Context, key string, data []byte) error
	// Read retrieves the data stored under key.
	Read(ctx context.Context, key string) ([]byte, error)
	// Exists checks whether key holds data.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// FileStore is a filesystem backed implementation of Blob.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a bundle store rooted at the specified directory.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("archive: failed to ensure bundle dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// keyPath validates key and resolves it under baseDir. Absolute keys and
// parent traversal are rejected rather than normalized.
func (s *FileStore) keyPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("archive: empty blob key")
	}
	clean := path.Clean(key)
	if path.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("archive: invalid blob key: %s", key)
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), nil
}

func (s *FileStore) Write(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("archive: failed to ensure key dir: %w", err)
	}

	// Write to temp, then rename
	tmpPath := p + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("archive: failed to write blob: %w", err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("archive: failed to commit blob: %w", err)
	}
	return nil
}

func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("archive: blob not found: %s", key)
		}
		return nil, err
	}
	return data, nil
}

func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.keyPath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("archive: failed to delete blob: %w", err)
	}
	return nil
}
