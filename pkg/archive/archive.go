// Package archive exports verified stream slices as signed, portable
// bundles. A bundle pairs the originator's sequenced items with a manifest
// that pins the stream identity, the position range, and the head hash, so
// a bundle can be proven intact long after it left the store. Bundles are
// written to and read from pluggable blob storage.
package archive

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/canonical"
	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// FormatVersion is stamped into every manifest this package writes.
const FormatVersion = "1.0.0"

// formatAccepted gates which manifest formats Verify will read. Readers
// accept any 1.x bundle; a major bump means the layout changed.
const formatAccepted = "^1"

var (
	// ErrFormat is returned when a bundle declares a format this build
	// cannot read.
	ErrFormat = errors.New("archive: unsupported bundle format")
	// ErrSignature is returned when the manifest signature is missing or
	// does not verify against the supplied public key.
	ErrSignature = errors.New("archive: signature verification failed")
	// ErrManifest is returned when the manifest disagrees with the items it
	// claims to describe.
	ErrManifest = errors.New("archive: manifest does not match items")
)

// Manifest describes one exported stream and binds the bundle to its hash
// chain. Signature, when present, is a hex encoded Ed25519 signature over
// the canonical encoding of the manifest with the signature fields cleared.
// SignatureKeyID carries the signer's public key for operator reference;
// verification trusts only the key the caller supplies.
type Manifest struct {
	Format         string    `json:"format"`
	OriginatorID   uuid.UUID `json:"originator_id"`
	FirstPosition  int64     `json:"first_position"`
	LastPosition   int64     `json:"last_position"`
	Count          int       `json:"count"`
	HeadHash       string    `json:"head_hash"`
	CreatedAt      time.Time `json:"created_at"`
	Signature      string    `json:"signature,omitempty"`
	SignatureKeyID string    `json:"signature_key_id,omitempty"`
}

// Bundle is a self contained export of one originator's items.
type Bundle struct {
	Manifest Manifest         `json:"manifest"`
	Items    []sequenced.Item `json:"items"`
}

// signingPayload returns the canonical manifest bytes with the signature
// fields cleared, so a signature never covers itself. m is a copy.
func signingPayload(m Manifest) ([]byte, error) {
	m.Signature = ""
	m.SignatureKeyID = ""
	return canonical.Marshal(m)
}

// Verify checks a bundle end to end: the format gate, agreement between
// manifest and items, the hash chain, the head hash, and the manifest
// signature. A nil public key skips the signature check, for bundles
// exported unsigned. Chain breaks surface as DataIntegrityError.
func Verify(b *Bundle, pub ed25519.PublicKey) error {
	if b == nil {
		return errors.New("archive: nil bundle")
	}

	v, err := semver.NewVersion(b.Manifest.Format)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrFormat, b.Manifest.Format)
	}
	accepted, err := semver.NewConstraint(formatAccepted)
	if err != nil {
		return fmt.Errorf("archive: invalid format constraint: %w", err)
	}
	if !accepted.Check(v) {
		return fmt.Errorf("%w: %s (this build reads %s)", ErrFormat, b.Manifest.Format, formatAccepted)
	}

	if len(b.Items) == 0 {
		return fmt.Errorf("%w: bundle has no items", ErrManifest)
	}
	if b.Manifest.Count != len(b.Items) {
		return fmt.Errorf("%w: manifest counts %d items, bundle holds %d", ErrManifest, b.Manifest.Count, len(b.Items))
	}
	first, last := b.Items[0], b.Items[len(b.Items)-1]
	if b.Manifest.FirstPosition != first.Position || b.Manifest.LastPosition != last.Position {
		return fmt.Errorf("%w: manifest spans %d..%d, items span %d..%d",
			ErrManifest, b.Manifest.FirstPosition, b.Manifest.LastPosition, first.Position, last.Position)
	}
	for _, it := range b.Items {
		if it.OriginatorID != b.Manifest.OriginatorID {
			return fmt.Errorf("%w: item at position %d belongs to %s", ErrManifest, it.Position, it.OriginatorID)
		}
	}

	// A bundle starting at position 0 must anchor at genesis; a mid-stream
	// slice trusts its first stored link and is verified internally.
	if err := sequenced.VerifyChain(b.Items, ""); err != nil {
		return err
	}
	if last.EventHash != b.Manifest.HeadHash {
		return fmt.Errorf("%w: manifest head hash %s, chain head %s", ErrManifest, b.Manifest.HeadHash, last.EventHash)
	}

	if pub == nil {
		return nil
	}
	if b.Manifest.Signature == "" {
		return fmt.Errorf("%w: manifest is unsigned", ErrSignature)
	}
	sig, err := hex.DecodeString(b.Manifest.Signature)
	if err != nil {
		return fmt.Errorf("%w: invalid signature hex: %v", ErrSignature, err)
	}
	payload, err := signingPayload(b.Manifest)
	if err != nil {
		return fmt.Errorf("archive: canonicalize manifest: %w", err)
	}
	if !ed25519.Verify(pub, payload, sig) {
		return ErrSignature
	}
	return nil
}

// WriteBundle serializes b and writes it under key. The encoding is
// indented JSON so stored bundles stay inspectable with standard tools.
func WriteBundle(ctx context.Context, blob Blob, key string, b *Bundle) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: marshal bundle: %w", err)
	}
	return blob.Write(ctx, key, data)
}

// ReadBundle loads and decodes the bundle stored under key. The bundle is
// returned as stored; callers decide whether and how to Verify it.
func ReadBundle(ctx context.Context, blob Blob, key string) (*Bundle, error) {
	data, err := blob.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("archive: unmarshal bundle: %w", err)
	}
	return &b, nil
}
