// Package snapshots implements the two snapshot deployment schemes: a
// parallel sequence of self-hashed records, or snapshots chained into the
// originator's own event stream. The repository is constructed with the
// scheme in effect; nothing is inferred from stored data.
package snapshots

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/eventstore"
	"github.com/Mindburn-Labs/keel/pkg/mapper"
	"github.com/Mindburn-Labs/keel/pkg/records"
	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// Strategy captures and retrieves entity state snapshots. Latest returns
// nil when no snapshot exists at or before the bound; that is the normal
// replay-from-scratch path, not an error.
type Strategy interface {
	Take(ctx context.Context, originatorID uuid.UUID, entityTopic string, state []byte, version int64) error
	Latest(ctx context.Context, originatorID uuid.UUID, lteVersion *int64) (*sequenced.Snapshot, error)

	// ConsumesPosition reports whether a capture occupies a position of
	// the entity's own stream rather than a parallel sequence. The
	// repository uses it to keep a just-captured entity current.
	ConsumesPosition() bool
}

// Separate keeps snapshots in a parallel sequence keyed by the same
// originator id, one record per captured version. Each record is anchored
// to the genesis sentinel so it is independently tamper-evident; gaps
// between captured versions are expected here. The backing store must be
// distinct from the event stream's store, typically a second table or key
// prefix.
type Separate struct {
	records records.Store
	mapper  *mapper.Mapper
	logger  *slog.Logger
}

// SeparateOption configures a Separate strategy.
type SeparateOption func(*Separate)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) SeparateOption {
	return func(s *Separate) { s.logger = l }
}

// NewSeparate builds the parallel-sequence strategy over its own records
// backend.
func NewSeparate(rs records.Store, m *mapper.Mapper, opts ...SeparateOption) *Separate {
	s := &Separate{
		records: rs,
		mapper:  m,
		logger:  slog.Default().With("component", "snapshots"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Take writes one snapshot record at the captured version. Capturing the
// same version twice surfaces the backend's ConcurrencyError.
func (s *Separate) Take(ctx context.Context, originatorID uuid.UUID, entityTopic string, state []byte, version int64) error {
	snap := sequenced.Snapshot{
		ID:             originatorID,
		Position:       version,
		EntityTopic:    entityTopic,
		State:          state,
		TakenAtVersion: version,
	}
	it, err := s.mapper.ToItem(snap, sequenced.GenesisHash)
	if err != nil {
		return err
	}
	if err := s.records.AppendItems(ctx, []sequenced.Item{it}); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "snapshot taken",
		"originator_id", originatorID,
		"version", version,
		"scheme", "separate",
	)
	return nil
}

// ConsumesPosition reports that separate captures live outside the
// entity's stream.
func (s *Separate) ConsumesPosition() bool { return false }

// Latest returns the most recent snapshot at or before the bound, nil
// when none exists.
func (s *Separate) Latest(ctx context.Context, originatorID uuid.UUID, lteVersion *int64) (*sequenced.Snapshot, error) {
	items, err := s.records.GetItems(ctx, originatorID, sequenced.Range{
		LTE:   lteVersion,
		Limit: 1,
		Desc:  true,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	ev, err := s.mapper.FromItem(items[0], sequenced.GenesisHash)
	if err != nil {
		return nil, err
	}
	snap, ok := ev.(*sequenced.Snapshot)
	if !ok {
		return nil, &sequenced.MappingError{
			Topic: items[0].Topic,
			Err:   fmt.Errorf("snapshot sequence holds %T", ev),
		}
	}
	return snap, nil
}

// chainedScanPage bounds how many trailing items each backwards scan step
// reads while looking for the distinguished snapshot topic.
const chainedScanPage = 64

// Chained appends snapshots through the event store at the next position
// of the same sequence, so the stream's hash chain covers them. A
// snapshot therefore occupies a stream position of its own.
type Chained struct {
	store eventstore.EventStore
}

// NewChained builds the same-sequence strategy over an event store.
func NewChained(es eventstore.EventStore) *Chained {
	return &Chained{store: es}
}

// Take appends the snapshot at version+1 with the usual optimistic
// concurrency check against the stream head.
func (c *Chained) Take(ctx context.Context, originatorID uuid.UUID, entityTopic string, state []byte, version int64) error {
	snap := sequenced.Snapshot{
		ID:             originatorID,
		Position:       version + 1,
		EntityTopic:    entityTopic,
		State:          state,
		TakenAtVersion: version,
	}
	return c.store.Append(ctx, []sequenced.Event{snap}, version)
}

// ConsumesPosition reports that chained captures occupy a stream
// position of their own.
func (c *Chained) ConsumesPosition() bool { return true }

// Latest scans the stream backwards in pages for the snapshot topic,
// bounded at lteVersion. The chain is re-verified by the event store as
// part of each read.
func (c *Chained) Latest(ctx context.Context, originatorID uuid.UUID, lteVersion *int64) (*sequenced.Snapshot, error) {
	upper := lteVersion
	for {
		events, err := c.store.GetDomainEvents(ctx, originatorID, sequenced.Range{
			LTE:   upper,
			Limit: chainedScanPage,
			Desc:  true,
		})
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			return nil, nil
		}
		// Descending reads arrive newest-first, so the first match is the
		// most recent snapshot within the bound.
		for _, ev := range events {
			if snap, ok := ev.(*sequenced.Snapshot); ok {
				return snap, nil
			}
		}
		oldest := events[len(events)-1].OriginatorVersion()
		if oldest == 0 || len(events) < chainedScanPage {
			return nil, nil
		}
		upper = sequenced.Pos(oldest - 1)
	}
}
