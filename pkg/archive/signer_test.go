package archive

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"
)

func TestSignerSignAndVerify(t *testing.T) {
	signer, err := NewSigner()
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	data := []byte("manifest bytes")
	sigHex, err := signer.Sign(data)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if len(sigHex) != hex.EncodedLen(ed25519.SignatureSize) {
		t.Errorf("signature hex length %d, want %d", len(sigHex), hex.EncodedLen(ed25519.SignatureSize))
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		t.Fatalf("signature is not hex: %v", err)
	}
	if !ed25519.Verify(signer.PublicKeyBytes(), data, sig) {
		t.Error("signature does not verify against the signer's key")
	}
	if ed25519.Verify(signer.PublicKeyBytes(), []byte("other bytes"), sig) {
		t.Error("signature verified against different data")
	}
}

func TestNewSignerFromSeedHex(t *testing.T) {
	seed := strings.Repeat("ab", ed25519.SeedSize)

	s1, err := NewSignerFromSeedHex(seed)
	if err != nil {
		t.Fatalf("NewSignerFromSeedHex failed: %v", err)
	}
	s2, err := NewSignerFromSeedHex(seed)
	if err != nil {
		t.Fatalf("NewSignerFromSeedHex failed: %v", err)
	}
	if s1.PublicKey() != s2.PublicKey() {
		t.Error("same seed produced different keys")
	}

	pub, err := ParsePublicKey(s1.PublicKey())
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}
	if !bytes.Equal(pub, s1.PublicKeyBytes()) {
		t.Error("ParsePublicKey round trip lost the key")
	}
}

func TestNewSignerFromSeedHexRejectsBadInput(t *testing.T) {
	if _, err := NewSignerFromSeedHex("not-hex"); err == nil {
		t.Error("accepted non-hex seed")
	}
	if _, err := NewSignerFromSeedHex("abcd"); err == nil {
		t.Error("accepted short seed")
	}
}

func TestParsePublicKeyRejectsBadInput(t *testing.T) {
	if _, err := ParsePublicKey("not-hex"); err == nil {
		t.Error("accepted non-hex key")
	}
	if _, err := ParsePublicKey("abcd"); err == nil {
		t.Error("accepted short key")
	}
}
