package util

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// NewID returns a random hex identifier, prefixed as "<prefix>_" when set.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewToken returns a URL-safe secret suitable for a recipient signing link.
func NewToken() string {
	bytes := make([]byte, 24)
	_, _ = rand.Read(bytes)
	return base64.RawURLEncoding.EncodeToString(bytes)
}
