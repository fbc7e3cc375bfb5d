package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// BlobType represents the type of bundle storage backend.
type BlobType string

const (
	BlobTypeFS  BlobType = "fs"
	BlobTypeS3  BlobType = "s3"
	BlobTypeGCS BlobType = "gcs"
)

// NewBlobFromEnv creates a bundle store based on environment variables.
//
// Environment variables:
//   - KEEL_BLOB_STORAGE_TYPE: "fs" (default), "s3", or "gcs"
//   - KEEL_DATA_DIR: Base directory for filesystem store (default: "data")
//
// For S3:
//   - KEEL_S3_REGION or AWS_REGION
//   - KEEL_S3_BUCKET (required)
//   - KEEL_S3_ENDPOINT (optional, for MinIO/LocalStack)
//   - KEEL_S3_PREFIX (optional)
//
// For GCS:
//   - KEEL_GCS_BUCKET (required)
//   - KEEL_GCS_PREFIX (optional)
func NewBlobFromEnv(ctx context.Context) (Blob, error) {
	blobType := BlobType(os.Getenv("KEEL_BLOB_STORAGE_TYPE"))
	if blobType == "" {
		blobType = BlobTypeFS
	}

	switch blobType {
	case BlobTypeFS:
		return newFileBlobFromEnv()
	case BlobTypeS3:
		return newS3BlobFromEnv(ctx)
	case BlobTypeGCS:
		return newGCSBlobFromEnv(ctx)
	default:
		return nil, fmt.Errorf("archive: unsupported blob storage type: %s", blobType)
	}
}

func newFileBlobFromEnv() (Blob, error) {
	dataDir := os.Getenv("KEEL_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	return NewFileStore(filepath.Join(dataDir, "bundles"))
}

func newS3BlobFromEnv(ctx context.Context) (Blob, error) {
	bucket := os.Getenv("KEEL_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("archive: KEEL_S3_BUCKET is required for S3 storage")
	}

	region := os.Getenv("KEEL_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	cfg := S3StoreConfig{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("KEEL_S3_ENDPOINT"),
		Prefix:   os.Getenv("KEEL_S3_PREFIX"),
	}

	return NewS3Store(ctx, cfg)
}
