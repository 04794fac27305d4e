package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const stateTokenSize = 32

// NewStateToken returns 32 random bytes encoded as unpadded base64url.
func NewStateToken() (string, error) {
	return NewOpaqueToken(stateTokenSize)
}

// NewOpaqueToken returns size random bytes encoded as unpadded base64url.
func NewOpaqueToken(size int) (string, error) {
	if size < 16 {
		return "", errors.New("opaque token too short")
	}
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
