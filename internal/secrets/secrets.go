// Package secrets encrypts device credentials before they reach the database.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Box seals and opens short secrets with a key derived from the
// application secret. Ciphertexts are base64 with the nonce prefixed.
type Box struct {
	key [32]byte
}

func NewBox(secret string) *Box {
	return &Box{key: sha256.Sum256([]byte(secret))}
}

// Seal encrypts plaintext. An empty plaintext stays empty so absent
// credentials remain distinguishable in the registry.
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := chacha20poly1305.NewX(b.key[:])
	if err != nil {
		return "", err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (b *Box) Open(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("malformed credential: %w", err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("malformed credential: too short")
	}

	aead, err := chacha20poly1305.NewX(b.key[:])
	if err != nil {
		return "", err
	}

	nonce, sealed := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("credential decryption failed: %w", err)
	}
	return string(plain), nil
}
