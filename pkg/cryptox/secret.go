package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/Abraxas-365/gatekit/pkg/errx"
)

// SecretSize is the entropy of a generated secret in bytes (256 bits).
const SecretSize = 32

// GenerateSecret produces a cryptographically secure random secret encoded
// as base64url without padding (43 chars). The raw value is handed to the
// caller for one-time delivery and must never be persisted; storage holds
// only its digest (see HashSecret).
func GenerateSecret() (string, error) {
	buf := make([]byte, SecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", errx.Wrap(err, "failed to generate secret", errx.TypeInternal)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSecret returns the SHA-256 digest of a secret, base64url encoded.
// Deterministic, so a stored digest can be matched against a submitted
// secret without the raw value ever touching storage.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SecureCompare reports whether two digests are equal without leaking the
// mismatch position through timing.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
