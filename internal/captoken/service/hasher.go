package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"storegate/internal/captoken/models"
)

// hashSalt is the HKDF salt for the token-hash key. It is a domain separator,
// not a secret; the secrecy lives in the configured master secret.
var hashSalt = []byte("storegate/captoken/v1")

// Hasher computes the stored form of a capability token. The hash must be
// deterministic because Validate looks tokens up by it, so per-row random
// salts are ruled out; instead a keyed HMAC with an HKDF-derived key makes
// offline dictionary work useless without the master secret.
type Hasher struct {
	key []byte
}

// NewHasher derives the hashing key from the configured master secret.
func NewHasher(masterSecret string) (*Hasher, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("token hash secret is required")
	}
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(masterSecret), hashSalt, []byte("token-hash"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive token hash key: %w", err)
	}
	return &Hasher{key: key}, nil
}

// Hash maps a plaintext token to its stored hash.
func (h *Hasher) Hash(p models.Plaintext) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(p.Reveal()))
	return hex.EncodeToString(mac.Sum(nil))
}
