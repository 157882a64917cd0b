package security

import "time"

// NewTestTokenProvider returns a TokenProvider over a freshly generated
// ECDSA key pair with short TTLs. For unit tests only.
func NewTestTokenProvider() (*TokenProvider, error) {
	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(kp.Private, kp.Public, "test-issuer", "test-audience", 15*time.Minute, 24*time.Hour), nil
}
