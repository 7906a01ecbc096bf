// Package secrets generates random secrets and derives salted password
// digests. It is the only place in the application that touches the raw
// credential material.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	secretLength = 32

	hashIterations = 4096
	hashKeyLength  = 32
)

// RandomSecret produces a cryptographically random base64-encoded string.
// It is used both for per-user salts and for session tokens.
func RandomSecret() (string, error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("error while random secret generation: %w", err)
	}

	return base64.URLEncoding.EncodeToString(buf), nil
}

// Hash derives a deterministic one-way digest from the salt and the
// plaintext. The same salt/plaintext pair always yields the same digest;
// any difference in either input yields an unrelated-looking digest.
func Hash(salt, plaintext string) string {
	digest := pbkdf2.Key(
		[]byte(plaintext),
		[]byte(salt),
		hashIterations,
		hashKeyLength,
		sha256.New,
	)

	return hex.EncodeToString(digest)
}
