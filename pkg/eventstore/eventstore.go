// Package eventstore implements the append and replay surface of keel.
// It maps domain events to sequenced items, chains their hashes, enforces
// optimistic concurrency against the stream head, and re-verifies the
// chain link by link on every read.
package eventstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/mapper"
	"github.com/Mindburn-Labs/keel/pkg/records"
	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// EventStore is the stream-level contract the repository and snapshot
// layers are built on.
type EventStore interface {
	// Append maps events to items at positions expectedVersion+1 onward,
	// chains them from the stream head, and writes the whole batch
	// atomically. A stream head other than expectedVersion yields a
	// ConcurrencyError and leaves the stream unchanged.
	Append(ctx context.Context, events []sequenced.Event, expectedVersion int64) error

	// GetDomainEvents reads items in position order within the bounds of r,
	// verifies the hash chain while walking, and maps each item back to its
	// domain event. The first broken link yields a DataIntegrityError.
	GetDomainEvents(ctx context.Context, originatorID uuid.UUID, r sequenced.Range) ([]sequenced.Event, error)

	// CurrentVersion returns the position of the stream head, -1 when the
	// stream holds no items.
	CurrentVersion(ctx context.Context, originatorID uuid.UUID) (int64, error)
}

// Store is the concrete event store over a records backend.
type Store struct {
	records records.Store
	mapper  *mapper.Mapper
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New builds an event store over the given backend and mapper.
func New(rs records.Store, m *mapper.Mapper, opts ...Option) *Store {
	s := &Store{
		records: rs,
		mapper:  m,
		logger:  slog.Default().With("component", "eventstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append writes events as one atomic batch at positions
// expectedVersion+1, expectedVersion+2 and so on. The batch must share a
// single originator and carry exactly those versions; the stream head is
// checked before mapping so a stale expectedVersion fails fast, and the
// backend's uniqueness rejection remains the authoritative backstop for
// races that slip past the check.
func (s *Store) Append(ctx context.Context, events []sequenced.Event, expectedVersion int64) error {
	if len(events) == 0 {
		return nil
	}

	originatorID := events[0].OriginatorID()
	for i, ev := range events {
		if ev.OriginatorID() != originatorID {
			return fmt.Errorf("append: event %d originator %s does not match batch originator %s: %w",
				i, ev.OriginatorID(), originatorID, sequenced.ErrMapping)
		}
		if want := expectedVersion + 1 + int64(i); ev.OriginatorVersion() != want {
			return fmt.Errorf("append: event %d carries version %d, want %d: %w",
				i, ev.OriginatorVersion(), want, sequenced.ErrMapping)
		}
	}

	last, err := s.records.LastItem(ctx, originatorID)
	if err != nil {
		return err
	}
	storedVersion := int64(-1)
	prevHash := sequenced.GenesisHash
	if last != nil {
		storedVersion = last.Position
		prevHash = last.EventHash
	}
	if storedVersion != expectedVersion {
		return &sequenced.ConcurrencyError{
			OriginatorID: originatorID,
			Position:     expectedVersion + 1,
		}
	}

	items := make([]sequenced.Item, 0, len(events))
	for _, ev := range events {
		it, err := s.mapper.ToItem(ev, prevHash)
		if err != nil {
			return err
		}
		items = append(items, it)
		prevHash = it.EventHash
	}

	if err := s.records.AppendItems(ctx, items); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "events appended",
		"originator_id", originatorID,
		"count", len(items),
		"head", items[len(items)-1].Position,
	)
	return nil
}

// GetDomainEvents reads the stream within the bounds of r and maps each
// item back, verifying the chain as it walks. The anchor for the first
// returned item is r.StartHash when supplied, the genesis sentinel when
// the read starts at position 0, and the item's stored predecessor hash
// otherwise. Gaps between returned positions are integrity failures.
func (s *Store) GetDomainEvents(ctx context.Context, originatorID uuid.UUID, r sequenced.Range) ([]sequenced.Event, error) {
	items, err := s.records.GetItems(ctx, originatorID, r)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	asc := items
	if r.Desc {
		asc = make([]sequenced.Item, len(items))
		for i, it := range items {
			asc[len(items)-1-i] = it
		}
	}

	prevHash := r.StartHash
	if prevHash == "" && asc[0].Position == 0 {
		prevHash = sequenced.GenesisHash
	}

	events := make([]sequenced.Event, 0, len(asc))
	lastPos := int64(0)
	for i, it := range asc {
		if i > 0 && it.Position != lastPos+1 {
			return nil, &sequenced.DataIntegrityError{
				OriginatorID: originatorID,
				Position:     it.Position,
				Reason:       fmt.Sprintf("position gap after %d", lastPos),
			}
		}
		ev, err := s.mapper.FromItem(it, prevHash)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
		prevHash = it.EventHash
		lastPos = it.Position
	}

	if r.Desc {
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
	}
	return events, nil
}

// CurrentVersion returns the stream head position, -1 for an empty stream.
func (s *Store) CurrentVersion(ctx context.Context, originatorID uuid.UUID) (int64, error) {
	last, err := s.records.LastItem(ctx, originatorID)
	if err != nil {
		return 0, err
	}
	if last == nil {
		return -1, nil
	}
	return last.Position, nil
}
