// Package vault provides at-rest wrapping of opaque secrets (OAuth access
// and refresh tokens) using a key derived deterministically from the
// deployment secret. The vault knows nothing about token semantics; it
// only sees plaintext and ciphertext strings.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// algoAESGCM tags the wire format so a future rotation (e.g. a different
// cipher or a KMS-wrapped key) can add a new tag without breaking rows
// written under this one.
const algoAESGCM byte = 0x01

const nonceSize = 12

var (
	// ErrUnknownAlgo is returned when Unwrap encounters a ciphertext tagged
	// with an algorithm this build does not know how to open.
	ErrUnknownAlgo = errors.New("vault: unknown algorithm tag")
	// ErrMalformed is returned when the ciphertext is shorter than the
	// minimum algorithm tag plus nonce.
	ErrMalformed = errors.New("vault: malformed ciphertext")
)

// Vault wraps and unwraps opaque plaintext strings using an AES-256-GCM AEAD
// keyed from a deployment secret.
type Vault struct {
	gcm cipher.AEAD
}

// New derives a 256-bit key from secret (via SHA-256) and constructs a
// Vault. secret must be non-empty; callers should fail startup otherwise.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("vault: empty deployment secret")
	}
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}
	return &Vault{gcm: gcm}, nil
}

// Wrap encrypts plaintext into a self-describing, base64-encoded ciphertext
// suitable for storage in a text column. A wrap failure is fatal for the
// current request — callers should surface it as an internal error, never
// fall back to storing plaintext.
func (v *Vault) Wrap(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := v.gcm.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, 1+nonceSize+len(sealed))
	out = append(out, algoAESGCM)
	out = append(out, nonce...)
	out = append(out, sealed...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Unwrap decrypts a ciphertext previously produced by Wrap. Plaintext must
// never be logged by callers.
func (v *Vault) Unwrap(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("vault: decode: %w", err)
	}

	if len(raw) < 1+nonceSize {
		return "", ErrMalformed
	}

	algo := raw[0]
	if algo != algoAESGCM {
		return "", ErrUnknownAlgo
	}

	nonce := raw[1 : 1+nonceSize]
	sealed := raw[1+nonceSize:]

	plaintext, err := v.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("vault: open: %w", err)
	}

	return string(plaintext), nil
}
