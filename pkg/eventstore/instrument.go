package eventstore

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/observability"
	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// instrumented decorates an EventStore with spans, RED metrics, and
// failure logging.
type instrumented struct {
	next     EventStore
	provider *observability.Provider
	logger   *slog.Logger
}

// Instrument wraps es so every operation is traced and measured through
// the given provider. Failures are logged with their originator.
func Instrument(es EventStore, p *observability.Provider) EventStore {
	return &instrumented{
		next:     es,
		provider: p,
		logger:   slog.Default().With("component", "eventstore"),
	}
}

func (s *instrumented) Append(ctx context.Context, events []sequenced.Event, expectedVersion int64) error {
	var originatorID uuid.UUID
	if len(events) > 0 {
		originatorID = events[0].OriginatorID()
	}
	ctx, finish := s.provider.TrackOperation(ctx, "eventstore.append",
		observability.StreamOperation(originatorID, len(events))...)

	err := s.next.Append(ctx, events, expectedVersion)
	finish(err)
	if err != nil {
		s.logger.ErrorContext(ctx, "append failed",
			"originator_id", originatorID,
			"expected_version", expectedVersion,
			"error", err,
		)
	}
	return err
}

func (s *instrumented) GetDomainEvents(ctx context.Context, originatorID uuid.UUID, r sequenced.Range) ([]sequenced.Event, error) {
	from := int64(0)
	if r.GTE != nil {
		from = *r.GTE
	}
	ctx, finish := s.provider.TrackOperation(ctx, "eventstore.read",
		observability.ReplayOperation(originatorID, from)...)

	events, err := s.next.GetDomainEvents(ctx, originatorID, r)
	finish(err)
	if err != nil {
		s.logger.ErrorContext(ctx, "read failed",
			"originator_id", originatorID,
			"error", err,
		)
	}
	return events, err
}

func (s *instrumented) CurrentVersion(ctx context.Context, originatorID uuid.UUID) (int64, error) {
	ctx, finish := s.provider.TrackOperation(ctx, "eventstore.head",
		observability.AttrOriginatorID.String(originatorID.String()))

	version, err := s.next.CurrentVersion(ctx, originatorID)
	finish(err)
	if err != nil {
		s.logger.ErrorContext(ctx, "head lookup failed",
			"originator_id", originatorID,
			"error", err,
		)
	}
	return version, err
}
