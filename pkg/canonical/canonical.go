// Package canonical provides RFC 8785 (JSON Canonicalization Scheme)
// encoding and SHA-256 digests so that event hashing is deterministic
// across writers, platforms, and JSON libraries.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// HashPrefix marks the digest algorithm in stored hash strings.
const HashPrefix = "sha256:"

// Marshal returns the RFC 8785 canonical JSON encoding of v. Struct tags
// are respected; object keys are sorted by UTF-16 code units; HTML escaping
// is disabled. NaN and Inf are not representable and fail the pre-marshal.
func Marshal(v any) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	out, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform: %w", err)
	}
	return out, nil
}

// Hash returns the SHA-256 digest of the canonical encoding of v,
// formatted as "sha256:<hex>".
func Hash(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the SHA-256 digest of raw bytes as "sha256:<hex>".
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(sum[:])
}

// NormalizeString applies Unicode NFC normalization. Topic strings pass
// through this before entering hash input so that visually identical
// spellings hash identically.
func NormalizeString(s string) string {
	return norm.NFC.String(s)
}
