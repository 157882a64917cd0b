package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DeviceFingerprint holds the browser/environment characteristics a client
// reports about itself. It is a defense-in-depth signal of "which device",
// not cryptographic proof; refresh tokens are bound to its hash so a token
// lifted onto a different device stops rotating.
type DeviceFingerprint struct {
	UserAgent        string `json:"user_agent"`
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
	Language         string `json:"language"`
	Platform         string `json:"platform"`
}

// HashFingerprint returns the SHA-256 hex digest of the canonical fingerprint
// fields. Identical fingerprints always hash identically; changing any field
// changes the digest. Fields are length-prefixed in the canonical form, so a
// delimiter character inside one field cannot shift material into the next.
func HashFingerprint(fp DeviceFingerprint) string {
	h := sha256.New()
	for _, field := range []string{
		fp.UserAgent, fp.ScreenResolution, fp.Timezone, fp.Language, fp.Platform,
	} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	return hex.EncodeToString(h.Sum(nil))
}
