package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

const idBytes = 32

// GenerateID returns a new opaque session id with 256 bits of entropy.
func GenerateID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
