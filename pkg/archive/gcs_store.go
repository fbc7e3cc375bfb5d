//go:build gcp

package archive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStore implements Blob using Google Cloud Storage. Bundles are stored
// under their key below an optional prefix.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string // Optional key prefix (e.g., "bundles/")
}

// GCSStoreConfig holds configuration for GCSStore.
type GCSStoreConfig struct {
	Bucket string
	Prefix string // Optional key prefix
}

// NewGCSStore creates a new GCS-backed bundle store. The client uses
// Application Default Credentials.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *GCSStore) objectPath(key string) string {
	return s.prefix + key
}

func (s *GCSStore) Write(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("archive: empty blob key")
	}
	obj := s.client.Bucket(s.bucket).Object(s.objectPath(key))

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("archive: gcs write failed for %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive: gcs close failed for %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Read(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("archive: empty blob key")
	}
	obj := s.client.Bucket(s.bucket).Object(s.objectPath(key))

	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("archive: blob not found: %s", key)
		}
		return nil, fmt.Errorf("archive: gcs get failed for %s: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}

func (s *GCSStore) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("archive: empty blob key")
	}
	obj := s.client.Bucket(s.bucket).Object(s.objectPath(key))

	_, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("archive: gcs attrs error: %w", err)
	}
	return true, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("archive: empty blob key")
	}
	obj := s.client.Bucket(s.bucket).Object(s.objectPath(key))

	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("archive: gcs delete failed for %s: %w", key, err)
	}
	return nil
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
