//go:build !gcp

package archive

import (
	"context"
	"fmt"
)

func newGCSBlobFromEnv(ctx context.Context) (Blob, error) {
	return nil, fmt.Errorf("archive: GCS storage is not enabled in this build (use -tags gcp)")
}
