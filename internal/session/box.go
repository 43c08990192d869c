package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/nicolaspernoud/atrium/internal/gwerrors"
)

// Box provides a small (encrypt, decrypt) module in place of a
// language-specific private-cookie-jar abstraction: every cookie value in
// transit is opaque, authenticated ciphertext. It is built once from
// Config.cookie_key and is safe for concurrent use by many request
// goroutines.
type Box struct {
	aead cipher.AEAD
}

// NewBox derives a 32-byte AEAD key from the configured cookie_key (of
// arbitrary length) via SHA-256, and builds a ChaCha20-Poly1305 sealer.
func NewBox(cookieKey string) (*Box, error) {
	if cookieKey == "" {
		return nil, fmt.Errorf("cookie key must not be empty")
	}
	key := sha256.Sum256([]byte(cookieKey))
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("building cookie cipher: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Encrypt seals plaintext behind a fresh random nonce and returns it
// base64url-encoded (no padding), safe to use directly as a cookie value.
func (b *Box) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := b.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt, returning gwerrors.ErrAuthCookieUndecryptable
// on any malformed or tampered input.
func (b *Box) Decrypt(value string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, gwerrors.ErrAuthCookieUndecryptable
	}
	n := b.aead.NonceSize()
	if len(raw) < n {
		return nil, gwerrors.ErrAuthCookieUndecryptable
	}
	nonce, ciphertext := raw[:n], raw[n:]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, gwerrors.ErrAuthCookieUndecryptable
	}
	return plaintext, nil
}

// EncryptToken serializes and encrypts a UserToken for use as a cookie
// value.
func (b *Box) EncryptToken(t *UserToken) (string, error) {
	data, err := marshalToken(t)
	if err != nil {
		return "", err
	}
	return b.Encrypt(data)
}

// DecryptToken reverses EncryptToken, without checking expiration — callers
// apply checkExpires as part of the extraction chain so every mode enforces
// it uniformly.
func (b *Box) DecryptToken(value string) (*UserToken, error) {
	data, err := b.Decrypt(value)
	if err != nil {
		return nil, err
	}
	return unmarshalToken(data)
}
