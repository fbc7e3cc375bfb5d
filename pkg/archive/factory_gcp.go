//go:build gcp

package archive

import (
	"context"
	"fmt"
	"os"
)

func newGCSBlobFromEnv(ctx context.Context) (Blob, error) {
	bucket := os.Getenv("KEEL_GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("archive: KEEL_GCS_BUCKET is required for GCS storage")
	}

	cfg := GCSStoreConfig{
		Bucket: bucket,
		Prefix: os.Getenv("KEEL_GCS_PREFIX"),
	}

	return NewGCSStore(ctx, cfg)
}
