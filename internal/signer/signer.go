// Package signer produces and verifies HMAC-signed message envelopes with
// replay protection. Every envelope carries a fresh nonce and a millisecond
// timestamp; verification rejects tampered, stale, future-dated, or replayed
// messages. The cross-app sync service wraps all channel traffic in these
// envelopes.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sasarjan/authsync/internal/crypto"
)

var (
	// ErrSecretTooShort is returned when the shared secret is under MinSecretLen bytes.
	ErrSecretTooShort = errors.New("signer: secret must be at least 32 characters")
	// ErrUnsupportedAlgorithm is returned for algorithms outside the SHA-256 family.
	ErrUnsupportedAlgorithm = errors.New("signer: unsupported algorithm")
)

// MinSecretLen is the minimum shared-secret length in bytes.
const MinSecretLen = 32

const (
	defaultTTL             = 5 * time.Minute
	defaultMaxNonceEntries = 4096
	nonceBytes             = 16
)

// SignedMessage wraps an arbitrary JSON payload with an HMAC signature,
// a millisecond timestamp, and a single-use nonce.
type SignedMessage struct {
	Message   json.RawMessage `json:"message"`
	Signature string          `json:"signature"`
	Timestamp int64           `json:"timestamp"`
	Nonce     string          `json:"nonce"`
}

// Config configures a Signer.
type Config struct {
	// Secret is the shared HMAC secret; at least MinSecretLen bytes.
	Secret string
	// Algorithm is one of "sha256", "sha384", "sha512". Empty means sha256.
	Algorithm string
	// TTL is how long an envelope stays verifiable and how long nonces are
	// remembered. Zero means 5m.
	TTL time.Duration
	// MaxNonceEntries bounds the replay cache. Zero means 4096. Oldest
	// entries are evicted first; with a full cache an evicted nonce could be
	// replayed, so size this above the expected message volume per TTL.
	MaxNonceEntries int
}

// Signer signs and verifies envelopes. Obtain instances via New so that all
// holders of the same secret+algorithm share one replay cache.
type Signer struct {
	secret    []byte
	algorithm string
	newHash   func() hash.Hash
	ttl       time.Duration

	mu     sync.Mutex
	nonces *expirable.LRU[string, struct{}]

	nowF func() time.Time
}

var (
	factoryMu sync.Mutex
	factory   = map[string]*Signer{}
)

// New returns the Signer for the given secret+algorithm, creating it on first
// use. Repeated calls with an identical secret and algorithm return the same
// instance, so the in-memory nonce cache is shared; a different secret yields
// an independent instance. Misconfiguration (short secret, unknown algorithm)
// fails here, never at sign/verify time.
func New(cfg Config) (*Signer, error) {
	if len(cfg.Secret) < MinSecretLen {
		return nil, ErrSecretTooShort
	}
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = "sha256"
	}
	var newHash func() hash.Hash
	switch algorithm {
	case "sha256":
		newHash = sha256.New
	case "sha384":
		newHash = sha512.New384
	case "sha512":
		newHash = sha512.New
	default:
		return nil, ErrUnsupportedAlgorithm
	}

	key := algorithm + "\x00" + cfg.Secret
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if s, ok := factory[key]; ok {
		return s, nil
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	maxEntries := cfg.MaxNonceEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxNonceEntries
	}
	s := &Signer{
		secret:    []byte(cfg.Secret),
		algorithm: algorithm,
		newHash:   newHash,
		ttl:       ttl,
		nonces:    expirable.NewLRU[string, struct{}](maxEntries, nil, ttl),
		nowF:      time.Now,
	}
	factory[key] = s
	return s, nil
}

// ResetFactory discards all cached Signer instances. The next New call with
// any config constructs fresh. For test isolation and app teardown only.
func ResetFactory() {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factory = map[string]*Signer{}
}

// Sign wraps message in a signed envelope with a fresh nonce and the current
// timestamp. Two calls with the same message produce distinct envelopes.
func (s *Signer) Sign(message json.RawMessage) (*SignedMessage, error) {
	nonce, err := crypto.RandomToken(nonceBytes)
	if err != nil {
		return nil, err
	}
	ts := s.nowF().UnixMilli()
	return &SignedMessage{
		Message:   message,
		Signature: s.compute(message, ts, nonce),
		Timestamp: ts,
		Nonce:     nonce,
	}, nil
}

// Verify checks the envelope and records its nonce. Checks run in order, each
// a short-circuit failure: structure, signature (constant time), timestamp
// window (future timestamps rejected), nonce uniqueness. A true result
// consumes the nonce; presenting the identical envelope again returns false.
func (s *Signer) Verify(sm *SignedMessage) bool {
	if sm == nil || len(sm.Message) == 0 || sm.Signature == "" || sm.Nonce == "" || sm.Timestamp == 0 {
		return false
	}
	want, err := hex.DecodeString(sm.Signature)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(s.compute(sm.Message, sm.Timestamp, sm.Nonce))
	if err != nil {
		return false
	}
	if !hmac.Equal(got, want) {
		return false
	}
	now := s.nowF().UnixMilli()
	if sm.Timestamp > now {
		return false
	}
	if now-sm.Timestamp > s.ttl.Milliseconds() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.nonces.Get(sm.Nonce); seen {
		return false
	}
	s.nonces.Add(sm.Nonce, struct{}{})
	return true
}

// Algorithm reports the configured hash algorithm name.
func (s *Signer) Algorithm() string { return s.algorithm }

// TTL reports the envelope time-to-live.
func (s *Signer) TTL() time.Duration { return s.ttl }

// compute returns the hex HMAC over the canonical serialization of
// {message, timestamp, nonce}.
func (s *Signer) compute(message json.RawMessage, timestamp int64, nonce string) string {
	mac := hmac.New(s.newHash, s.secret)
	fmt.Fprintf(mac, "%s|%d|%s", message, timestamp, nonce)
	return hex.EncodeToString(mac.Sum(nil))
}
