package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Prefix identifies 209 Works keys in logs and support tickets. It is
// cosmetic: the stored identity is a hash of the secret that follows it.
const Prefix = "209w_"

const secretLength = 32

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Hasher turns a key secret into its stored digest. Kept behind an
// interface so the algorithm can be upgraded without touching callers.
type Hasher interface {
	Hash(secret string) string
}

type SHA256Hasher struct{}

func (SHA256Hasher) Hash(secret string) string {
	digest := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(digest[:])
}

// Generate returns a new raw API key of the form 209w_<32 alphanumeric>.
func Generate() (string, error) {
	secret, err := randomAlphanumeric(secretLength)
	if err != nil {
		return "", err
	}
	return Prefix + secret, nil
}

// GenerateSecret returns a raw shared secret with the given prefix, used
// for webhook signing secrets.
func GenerateSecret(prefix string) (string, error) {
	secret, err := randomAlphanumeric(secretLength)
	if err != nil {
		return "", err
	}
	return prefix + secret, nil
}

// Secret strips the identifying prefix from a raw key. The remainder is
// what gets hashed and looked up.
func Secret(rawKey string) string {
	return strings.TrimPrefix(rawKey, Prefix)
}

func randomAlphanumeric(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
