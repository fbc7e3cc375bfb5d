// Package cipher provides authenticated symmetric encryption for serialized
// event payloads. Both implementations prefix the random nonce to the
// ciphertext, so a stored State value is nonce || sealed bytes, and both
// authenticate, so tampering fails decryption before any hash check runs.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher encrypts serialized payloads before storage and decrypts them on
// read. Implementations must be safe for concurrent use.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

type aead struct {
	impl stdcipher.AEAD
}

// NewAESGCM returns an AES-256-GCM cipher. The key must be 32 bytes.
func NewAESGCM(key []byte) (Cipher, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes for AES-256")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &aead{impl: gcm}, nil
}

// NewXChaCha returns an XChaCha20-Poly1305 cipher with the same wire layout
// as the AES-GCM one. The key must be 32 bytes.
func NewXChaCha(key []byte) (Cipher, error) {
	impl, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &aead{impl: impl}, nil
}

func (c *aead) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.impl.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return c.impl.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *aead) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < c.impl.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:c.impl.NonceSize()], ciphertext[c.impl.NonceSize():]
	plaintext, err := c.impl.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
