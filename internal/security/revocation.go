package security

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// revocationCapacity bounds the revocation set. Entries past the token TTL
// expire on their own; the capacity cap keeps a burst of revocations from
// growing the set without limit.
const revocationCapacity = 8192

// RevocationSet tracks revoked token ids (jti). Entries expire after the
// token TTL, since a revoked token is harmless once it has expired anyway.
type RevocationSet struct {
	mu      sync.Mutex
	revoked *expirable.LRU[string, struct{}]
}

// NewRevocationSet returns a RevocationSet whose entries expire after ttl.
func NewRevocationSet(ttl time.Duration) *RevocationSet {
	return &RevocationSet{
		revoked: expirable.NewLRU[string, struct{}](revocationCapacity, nil, ttl),
	}
}

// Revoke marks the jti revoked for the ttl window. Revoking an empty jti is
// a no-op.
func (r *RevocationSet) Revoke(jti string) {
	if jti == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked.Add(jti, struct{}{})
}

// IsRevoked reports whether the jti is currently revoked.
func (r *RevocationSet) IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked.Get(jti)
	return ok
}
