package observability

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Keel-specific semantic convention attributes.
var (
	// Stream attributes
	AttrOriginatorID = attribute.Key("keel.originator.id")
	AttrPosition     = attribute.Key("keel.position")
	AttrBatchSize    = attribute.Key("keel.batch.size")
	AttrTopic        = attribute.Key("keel.topic")

	// Replay attributes
	AttrReplayFrom   = attribute.Key("keel.replay.from")
	AttrReplayEvents = attribute.Key("keel.replay.events")

	// Snapshot attributes
	AttrSnapshotScheme  = attribute.Key("keel.snapshot.scheme")
	AttrSnapshotVersion = attribute.Key("keel.snapshot.version")

	// Archive attributes
	AttrBundleID    = attribute.Key("keel.bundle.id")
	AttrBundleItems = attribute.Key("keel.bundle.items")
)

// StreamOperation creates attributes for event store operations on one stream.
func StreamOperation(originatorID uuid.UUID, batchSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrOriginatorID.String(originatorID.String()),
		AttrBatchSize.Int(batchSize),
	}
}

// ReplayOperation creates attributes for stream replays.
func ReplayOperation(originatorID uuid.UUID, fromPosition int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrOriginatorID.String(originatorID.String()),
		AttrReplayFrom.Int64(fromPosition),
	}
}

// SnapshotOperation creates attributes for snapshot reads and writes.
func SnapshotOperation(originatorID uuid.UUID, scheme string, version int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrOriginatorID.String(originatorID.String()),
		AttrSnapshotScheme.String(scheme),
		AttrSnapshotVersion.Int64(version),
	}
}

// ArchiveOperation creates attributes for bundle export and verification.
func ArchiveOperation(bundleID string, items int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrBundleID.String(bundleID),
		AttrBundleItems.Int(items),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus sets the span status based on error.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
