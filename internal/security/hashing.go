package security

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a bcrypt hash of password at the given cost, clamped
// to bcrypt's supported range (cost <= 0 means the bcrypt default). Callers
// must not log or persist plaintext passwords.
func HashPassword(password []byte, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	b, err := bcrypt.GenerateFromPassword(password, cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ComparePassword verifies password against the stored bcrypt hash in
// constant time. Returns nil on match.
func ComparePassword(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}
