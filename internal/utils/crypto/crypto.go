// Package crypto encrypts credentials at rest. SMTP passwords go through
// Encrypt/Decrypt in gorm hooks so plaintext never reaches the database.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrNotInitialized is returned when Encrypt/Decrypt run before
	// InitializeKeys.
	ErrNotInitialized = errors.New("crypto: keys not initialized")

	mu   sync.RWMutex
	aead cipher.AEAD
)

// keySalt is a fixed application salt for key derivation. Rotating it
// invalidates every stored ciphertext, so it never changes within a major
// version.
var keySalt = []byte("tern.credentials.v1")

// InitializeKeys derives the AES-256-GCM key from the configured secret.
// Must be called once at startup before any model hooks fire.
func InitializeKeys(secret string) error {
	if secret == "" {
		return errors.New("crypto: empty secret")
	}
	key := pbkdf2.Key([]byte(secret), keySalt, 4096, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("crypto: cipher init: %w", err)
	}
	g, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("crypto: gcm init: %w", err)
	}
	mu.Lock()
	aead = g
	mu.Unlock()
	return nil
}

// Encrypt returns the base64 of nonce||ciphertext for the given plaintext.
func Encrypt(plaintext string) (string, error) {
	mu.RLock()
	g := aead
	mu.RUnlock()
	if g == nil {
		return "", ErrNotInitialized
	}
	nonce := make([]byte, g.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := g.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encoded string) (string, error) {
	mu.RLock()
	g := aead
	mu.RUnlock()
	if g == nil {
		return "", ErrNotInitialized
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("crypto: decode: %w", err)
	}
	if len(raw) < g.NonceSize() {
		return "", errors.New("crypto: ciphertext too short")
	}
	nonce, ciphertext := raw[:g.NonceSize()], raw[g.NonceSize():]
	plain, err := g.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt: %w", err)
	}
	return string(plain), nil
}
