// Package repository reconstructs entities by snapshot lookup and event
// replay, and saves their pending events with optimistic concurrency.
// Reconstruction runs SNAPSHOT_LOOKUP then EVENT_REPLAY: the latest
// snapshot at or before the requested bound seeds state and version, and
// every later event is applied in ascending order, advancing the version
// to the event's position.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/eventstore"
	"github.com/Mindburn-Labs/keel/pkg/sequenced"
	"github.com/Mindburn-Labs/keel/pkg/snapshots"
)

// Entity is the persistence contract a replayable type satisfies. The
// aggregate package provides an embeddable base covering the identity and
// pending-event bookkeeping; SnapshotState and SetSnapshotState belong to
// the concrete type because only it knows its serialized shape.
type Entity interface {
	OriginatorID() uuid.UUID
	Version() int64
	Apply(ev sequenced.Event) error
	PendingEvents() []sequenced.Event
	ClearPending()
	SnapshotState() ([]byte, error)
	SetSnapshotState(id uuid.UUID, state []byte, version int64) error
}

// NotFoundError means no snapshot and no events exist for the id.
type NotFoundError struct {
	OriginatorID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entity %s not found", e.OriginatorID)
}

func (e *NotFoundError) Unwrap() error { return sequenced.ErrNotFound }

// DiscardedError means the stream ends with a discard marker; the entity
// is treated as absent.
type DiscardedError struct {
	OriginatorID uuid.UUID
}

func (e *DiscardedError) Error() string {
	return fmt.Sprintf("entity %s is discarded", e.OriginatorID)
}

func (e *DiscardedError) Unwrap() error { return sequenced.ErrNotFound }

// Repository loads and saves one entity type.
type Repository[T Entity] struct {
	store       eventstore.EventStore
	snapshots   snapshots.Strategy
	policy      snapshots.Policy
	factory     func() T
	entityTopic string
	logger      *slog.Logger
}

// Option configures a Repository.
type Option[T Entity] func(*Repository[T])

// WithPolicy installs a snapshot policy consulted after each save.
func WithPolicy[T Entity](p snapshots.Policy) Option[T] {
	return func(r *Repository[T]) { r.policy = p }
}

// WithEntityTopic records the entity topic stored in snapshot payloads.
func WithEntityTopic[T Entity](topic string) Option[T] {
	return func(r *Repository[T]) { r.entityTopic = topic }
}

// WithLogger overrides the default logger.
func WithLogger[T Entity](l *slog.Logger) Option[T] {
	return func(r *Repository[T]) { r.logger = l }
}

// New builds a repository over an event store and snapshot strategy. A
// nil strategy disables snapshots entirely; loads then replay from
// scratch. The factory returns a fresh zero entity to replay into.
func New[T Entity](es eventstore.EventStore, strategy snapshots.Strategy, factory func() T, opts ...Option[T]) *Repository[T] {
	r := &Repository[T]{
		store:     es,
		snapshots: strategy,
		policy:    snapshots.Never(),
		factory:   factory,
		logger:    slog.Default().With("component", "repository"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get reconstructs the entity at the head of its stream. It fails with a
// NotFoundError when nothing exists for the id and with a DiscardedError
// when the stream ends in a discard marker.
func (r *Repository[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	return r.load(ctx, id, nil)
}

// GetVersion reconstructs the entity as of the given version, reflecting
// only events at positions up to and including it.
func (r *Repository[T]) GetVersion(ctx context.Context, id uuid.UUID, version int64) (T, error) {
	return r.load(ctx, id, sequenced.Pos(version))
}

func (r *Repository[T]) load(ctx context.Context, id uuid.UUID, bound *int64) (T, error) {
	var zero T
	entity := r.factory()
	version := int64(-1)

	if r.snapshots != nil {
		snap, err := r.snapshots.Latest(ctx, id, bound)
		if err != nil {
			return zero, err
		}
		if snap != nil {
			if err := entity.SetSnapshotState(snap.ID, snap.State, snap.Position); err != nil {
				return zero, fmt.Errorf("restore snapshot at %d: %w", snap.Position, err)
			}
			version = snap.Position
		}
	}

	events, err := r.store.GetDomainEvents(ctx, id, sequenced.Range{
		GTE: sequenced.Pos(version + 1),
		LTE: bound,
	})
	if err != nil {
		return zero, err
	}
	if version < 0 && len(events) == 0 {
		return zero, &NotFoundError{OriginatorID: id}
	}

	discarded := false
	for _, ev := range events {
		// Chained deployments leave snapshot items inside the stream;
		// restoring from one is equivalent to having applied everything
		// before it.
		if snap, ok := ev.(*sequenced.Snapshot); ok {
			if err := entity.SetSnapshotState(snap.ID, snap.State, snap.Position); err != nil {
				return zero, fmt.Errorf("restore snapshot at %d: %w", snap.Position, err)
			}
			continue
		}
		if err := entity.Apply(ev); err != nil {
			return zero, err
		}
		d, ok := ev.(sequenced.Discarder)
		discarded = ok && d.Discarded()
	}
	if discarded {
		return zero, &DiscardedError{OriginatorID: id}
	}
	return entity, nil
}

// Save appends the entity's pending events with expectedVersion set to
// the version the entity held before they were triggered. A
// ConcurrencyError propagates unchanged; the caller re-fetches and
// retries. On success pending events are cleared and the snapshot policy
// is consulted; a policy-driven capture failure is logged, not returned,
// because the events themselves have already landed.
func (r *Repository[T]) Save(ctx context.Context, entity T) error {
	pending := entity.PendingEvents()
	if len(pending) == 0 {
		return nil
	}
	expected := entity.Version() - int64(len(pending))
	if err := r.store.Append(ctx, pending, expected); err != nil {
		return err
	}
	entity.ClearPending()

	if r.snapshots != nil && r.policy.ShouldSnapshot(entity.Version(), len(pending)) {
		if err := r.TakeSnapshot(ctx, entity); err != nil {
			r.logger.WarnContext(ctx, "policy snapshot failed",
				"originator_id", entity.OriginatorID(),
				"version", entity.Version(),
				"error", err,
			)
		}
	}
	return nil
}

// TakeSnapshot captures the entity's current state through the
// configured strategy. The entity must be fully saved first. Under a
// scheme whose captures occupy a stream position the entity is advanced
// past its own snapshot so it stays current for further saves.
func (r *Repository[T]) TakeSnapshot(ctx context.Context, entity T) error {
	if r.snapshots == nil {
		return errors.New("no snapshot strategy configured")
	}
	if len(entity.PendingEvents()) > 0 {
		return errors.New("entity has unsaved events")
	}
	state, err := entity.SnapshotState()
	if err != nil {
		return err
	}
	version := entity.Version()
	if err := r.snapshots.Take(ctx, entity.OriginatorID(), r.entityTopic, state, version); err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "snapshot captured",
		"originator_id", entity.OriginatorID(),
		"version", version,
	)
	if r.snapshots.ConsumesPosition() {
		return entity.SetSnapshotState(entity.OriginatorID(), state, version+1)
	}
	return nil
}
