package signer

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestSigner(t *testing.T, cfg Config) *Signer {
	t.Helper()
	t.Cleanup(ResetFactory)
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSigner_RoundTrip(t *testing.T) {
	s := newTestSigner(t, Config{Secret: testSecret})
	sm, err := s.Sign(json.RawMessage(`{"type":"SIGN_IN"}`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !s.Verify(sm) {
		t.Error("Verify(Sign(m)) = false, want true")
	}
}

func TestSigner_DistinctNoncesAndSignatures(t *testing.T) {
	s := newTestSigner(t, Config{Secret: testSecret})
	a, err := s.Sign(json.RawMessage(`"m"`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	b, err := s.Sign(json.RawMessage(`"m"`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if a.Nonce == b.Nonce {
		t.Error("two envelopes share a nonce")
	}
	if a.Signature == b.Signature {
		t.Error("identical messages produced identical signatures")
	}
}

func TestSigner_TamperDetection(t *testing.T) {
	s := newTestSigner(t, Config{Secret: testSecret})

	fresh := func(t *testing.T) *SignedMessage {
		sm, err := s.Sign(json.RawMessage(`{"v":1}`))
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		return sm
	}

	t.Run("message", func(t *testing.T) {
		sm := fresh(t)
		sm.Message = json.RawMessage(`{"v":2}`)
		if s.Verify(sm) {
			t.Error("Verify accepted altered message")
		}
	})
	t.Run("signature", func(t *testing.T) {
		sm := fresh(t)
		sig := []byte(sm.Signature)
		if sig[0] == 'a' {
			sig[0] = 'b'
		} else {
			sig[0] = 'a'
		}
		sm.Signature = string(sig)
		if s.Verify(sm) {
			t.Error("Verify accepted altered signature")
		}
	})
	t.Run("timestamp", func(t *testing.T) {
		sm := fresh(t)
		sm.Timestamp--
		if s.Verify(sm) {
			t.Error("Verify accepted altered timestamp")
		}
	})
	t.Run("nonce", func(t *testing.T) {
		sm := fresh(t)
		sm.Nonce = strings.Repeat("0", len(sm.Nonce))
		if s.Verify(sm) {
			t.Error("Verify accepted altered nonce")
		}
	})
}

func TestSigner_ReplayRejected(t *testing.T) {
	s := newTestSigner(t, Config{Secret: testSecret})
	sm, err := s.Sign(json.RawMessage(`"once"`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !s.Verify(sm) {
		t.Fatal("first Verify = false, want true")
	}
	if s.Verify(sm) {
		t.Error("second Verify of identical envelope = true, want false")
	}
}

func TestSigner_ExpiredRejected(t *testing.T) {
	s := newTestSigner(t, Config{Secret: testSecret + "-expiry", TTL: time.Millisecond})
	sm, err := s.Sign(json.RawMessage(`"old"`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if s.Verify(sm) {
		t.Error("Verify accepted an envelope older than the TTL")
	}
}

func TestSigner_FutureTimestampRejected(t *testing.T) {
	s := newTestSigner(t, Config{Secret: testSecret})
	sm, err := s.Sign(json.RawMessage(`"soon"`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	now := time.Now()
	s.nowF = func() time.Time { return now.Add(time.Minute) }
	sm2, err := s.Sign(json.RawMessage(`"soon"`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	s.nowF = time.Now
	if !s.Verify(sm) {
		t.Error("Verify rejected a current envelope")
	}
	if s.Verify(sm2) {
		t.Error("Verify accepted an envelope dated in the future")
	}
}

func TestSigner_MalformedEnvelope(t *testing.T) {
	s := newTestSigner(t, Config{Secret: testSecret})
	cases := map[string]*SignedMessage{
		"nil":            nil,
		"empty message":  {Signature: "ab", Timestamp: 1, Nonce: "n"},
		"no signature":   {Message: json.RawMessage(`1`), Timestamp: 1, Nonce: "n"},
		"no nonce":       {Message: json.RawMessage(`1`), Signature: "ab", Timestamp: 1},
		"zero timestamp": {Message: json.RawMessage(`1`), Signature: "ab", Nonce: "n"},
		"non-hex sig":    {Message: json.RawMessage(`1`), Signature: "zz", Timestamp: 1, Nonce: "n"},
	}
	for name, sm := range cases {
		if s.Verify(sm) {
			t.Errorf("%s: Verify = true, want false", name)
		}
	}
}

func TestNew_ConfigErrors(t *testing.T) {
	t.Cleanup(ResetFactory)
	if _, err := New(Config{Secret: "short"}); err != ErrSecretTooShort {
		t.Errorf("short secret: want ErrSecretTooShort, got %v", err)
	}
	if _, err := New(Config{Secret: testSecret, Algorithm: "md5"}); err != ErrUnsupportedAlgorithm {
		t.Errorf("md5: want ErrUnsupportedAlgorithm, got %v", err)
	}
}

func TestNew_SingletonPerConfig(t *testing.T) {
	t.Cleanup(ResetFactory)
	a, err := New(Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New(Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a != b {
		t.Error("same secret+algorithm returned distinct instances")
	}
	c, err := New(Config{Secret: testSecret + "-other------------------------"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a == c {
		t.Error("different secret returned the same instance")
	}

	// Shared replay cache: a nonce consumed via one handle is consumed for all.
	sm, err := a.Sign(json.RawMessage(`"shared"`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !a.Verify(sm) {
		t.Fatal("first Verify = false")
	}
	if b.Verify(sm) {
		t.Error("replay accepted through second handle of the same signer")
	}
}
