package core

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

func randomToken(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on the supported platforms.
		panic("core: random source unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// NewObjectID mints a record identity: 16 random bytes in unpadded
// URL-safe base64, 22 characters.
func NewObjectID() string {
	return randomToken(16)
}

// NewSessionToken mints an opaque session credential. Longer than record
// identities since it acts as a bearer secret.
func NewSessionToken() string {
	return randomToken(24)
}

// NewGlowID mints a glow identity. Glows use UUIDs rather than the short
// object-id form.
func NewGlowID() string {
	return uuid.NewString()
}
