package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/records"
	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// Exporter builds bundles from a record store. Export reads below the
// mapper, so bundles carry items exactly as stored, encrypted state
// included.
type Exporter struct {
	records records.Store
	signer  *Signer
	logger  *slog.Logger
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithSigner makes the exporter sign every manifest it emits. Without a
// signer, bundles are exported unsigned and Verify accepts them only with
// a nil public key.
func WithSigner(s *Signer) ExporterOption {
	return func(e *Exporter) { e.signer = s }
}

// WithLogger overrides the default component logger.
func WithLogger(l *slog.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = l }
}

// NewExporter creates an exporter over the given record store.
func NewExporter(rs records.Store, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		records: rs,
		logger:  slog.Default().With("component", "archive"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export reads the originator's full stream, re-verifies its hash chain
// anchored at genesis, and emits the bundle. A stream that fails
// verification is refused with a DataIntegrityError; an empty stream is
// refused with ErrNotFound.
func (e *Exporter) Export(ctx context.Context, originatorID uuid.UUID) (*Bundle, error) {
	items, err := e.records.GetItems(ctx, originatorID, sequenced.Range{})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("archive: stream %s has no items: %w", originatorID, sequenced.ErrNotFound)
	}
	if err := sequenced.VerifyChain(items, sequenced.GenesisHash); err != nil {
		return nil, err
	}

	last := items[len(items)-1]
	m := Manifest{
		Format:        FormatVersion,
		OriginatorID:  originatorID,
		FirstPosition: items[0].Position,
		LastPosition:  last.Position,
		Count:         len(items),
		HeadHash:      last.EventHash,
		CreatedAt:     time.Now().UTC(),
	}

	if e.signer != nil {
		payload, err := signingPayload(m)
		if err != nil {
			return nil, fmt.Errorf("archive: canonicalize manifest: %w", err)
		}
		sig, err := e.signer.Sign(payload)
		if err != nil {
			return nil, fmt.Errorf("archive: sign manifest: %w", err)
		}
		m.Signature = sig
		m.SignatureKeyID = e.signer.PublicKey()
	}

	e.logger.DebugContext(ctx, "exported bundle",
		"originator_id", originatorID,
		"items", len(items),
		"head_hash", m.HeadHash,
		"signed", e.signer != nil)

	return &Bundle{Manifest: m, Items: items}, nil
}
