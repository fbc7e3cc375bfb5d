// Package records defines the storage contract beneath the event store and
// provides the in-memory reference implementation plus shared decorators.
// Concrete database backends live in the sqlrecord and redisrecord
// subpackages.
package records

import (
	"context"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// Store is the persistence boundary for sequenced items.
//
// AppendItems must be atomic per batch: if any (originator id, position)
// already exists, the whole batch is rejected without partial effect and
// surfaces a ConcurrencyError. That single property is the system's only
// mutual-exclusion mechanism; nothing above it locks. Backend failures that
// are not uniqueness violations surface as DatastoreError, never
// interpreted further up.
type Store interface {
	AppendItems(ctx context.Context, items []sequenced.Item) error

	// GetItems returns the originator's items strictly ordered by position
	// within the bounds of r (descending when r.Desc), never skipping or
	// duplicating positions it holds.
	GetItems(ctx context.Context, originatorID uuid.UUID, r sequenced.Range) ([]sequenced.Item, error)

	// LastItem returns the item at the highest position, or nil when the
	// stream is empty.
	LastItem(ctx context.Context, originatorID uuid.UUID) (*sequenced.Item, error)
}
