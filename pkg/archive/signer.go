package archive

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Signer signs bundle manifests with an Ed25519 key. Signatures and public
// keys travel hex encoded.
type Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
}

// NewSigner generates a fresh Ed25519 key pair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("archive: key generation failed: %w", err)
	}
	return &Signer{privKey: priv, pubKey: pub}, nil
}

// NewSignerFromKey wraps an existing private key.
func NewSignerFromKey(priv ed25519.PrivateKey) *Signer {
	return &Signer{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
	}
}

// NewSignerFromSeedHex builds a signer from a hex encoded 32 byte Ed25519
// seed, the form signing keys are configured as.
func NewSignerFromSeedHex(seedHex string) (*Signer, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("archive: invalid signing key hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("archive: signing key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return NewSignerFromKey(ed25519.NewKeyFromSeed(seed)), nil
}

func (s *Signer) Sign(data []byte) (string, error) {
	return hex.EncodeToString(ed25519.Sign(s.privKey, data)), nil
}

func (s *Signer) PublicKey() string {
	return hex.EncodeToString(s.pubKey)
}

func (s *Signer) PublicKeyBytes() ed25519.PublicKey {
	return s.pubKey
}

// ParsePublicKey decodes a hex encoded Ed25519 public key, the form
// verification keys are exchanged as.
func ParsePublicKey(pubHex string) (ed25519.PublicKey, error) {
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("archive: invalid public key hex: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("archive: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return ed25519.PublicKey(pub), nil
}
