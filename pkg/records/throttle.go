package records

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// Throttled rate-limits every call to a wrapped Store with a shared token
// bucket. Bulk verification and export scans go through this so they cannot
// starve a production backend.
type Throttled struct {
	next    Store
	limiter *rate.Limiter
}

// Throttle wraps next with a token bucket of rps tokens per second and the
// given burst size.
func Throttle(next Store, rps float64, burst int) *Throttled {
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *Throttled) AppendItems(ctx context.Context, items []sequenced.Item) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return &sequenced.DatastoreError{Op: "append_items", Err: err}
	}
	return t.next.AppendItems(ctx, items)
}

func (t *Throttled) GetItems(ctx context.Context, originatorID uuid.UUID, r sequenced.Range) ([]sequenced.Item, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &sequenced.DatastoreError{Op: "get_items", Err: err}
	}
	return t.next.GetItems(ctx, originatorID, r)
}

func (t *Throttled) LastItem(ctx context.Context, originatorID uuid.UUID) (*sequenced.Item, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &sequenced.DatastoreError{Op: "last_item", Err: err}
	}
	return t.next.LastItem(ctx, originatorID)
}
