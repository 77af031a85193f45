package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TokenLength is the length of tokens returned by GenerateToken.
const TokenLength = 43

// GenerateToken returns an opaque URL-safe token carrying 256 bits of entropy.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
