// Package crypto provides the payload encryptor and random-value helpers
// used by the signed cross-app envelope and CSRF token issuance.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"io"
)

// RandomBytes returns length cryptographically random bytes.
func RandomBytes(length int) ([]byte, error) {
	b := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomToken returns a hex-encoded random token of byteLen random bytes
// (2*byteLen hex characters). Used for nonces and CSRF tokens.
func RandomToken(byteLen int) (string, error) {
	b, err := RandomBytes(byteLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
