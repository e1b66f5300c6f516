package secrets

import (
	"crypto/rand"
	"encoding/base64"

	dErrors "storegate/pkg/domain-errors"
)

// tokenBytes gives 256 bits of entropy, the floor for bearer capability tokens.
const tokenBytes = 32

// Generate creates a cryptographically secure random secret.
// Returns a URL-safe base64 string suitable for embedding in a link path segment.
func Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
