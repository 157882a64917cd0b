package security

import (
	"crypto/ecdsa"
	"testing"
)

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if _, ok := kp.Private.(*ecdsa.PrivateKey); !ok {
		t.Fatalf("private key: got %T, want *ecdsa.PrivateKey", kp.Private)
	}
	if KeyAlg(kp.Public) != "ES256" {
		t.Errorf("KeyAlg: got %q, want ES256", KeyAlg(kp.Public))
	}
}

func TestKeyPEMRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	privPEM, err := EncodePrivateKeyPEM(kp.Private)
	if err != nil {
		t.Fatalf("EncodePrivateKeyPEM: %v", err)
	}
	pubPEM, err := EncodePublicKeyPEM(kp.Public)
	if err != nil {
		t.Fatalf("EncodePublicKeyPEM: %v", err)
	}

	priv, err := ParsePrivateKey(string(privPEM))
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(string(pubPEM))
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}

	parsed, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		t.Fatalf("parsed private key: got %T", priv)
	}
	pubKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		t.Fatalf("parsed public key: got %T", pub)
	}
	if !parsed.PublicKey.Equal(pubKey) {
		t.Error("round-tripped public key does not match private half")
	}
}

func TestParseKey_Invalid(t *testing.T) {
	for _, in := range []string{"", "not pem", "-----BEGIN GARBAGE-----\nAAAA\n-----END GARBAGE-----"} {
		if _, err := ParsePrivateKey(in); err == nil {
			t.Errorf("ParsePrivateKey(%q): want error", in)
		}
		if _, err := ParsePublicKey(in); err == nil {
			t.Errorf("ParsePublicKey(%q): want error", in)
		}
	}
}

func TestKeyAlg_Unknown(t *testing.T) {
	if alg := KeyAlg("not a key"); alg != "" {
		t.Errorf("KeyAlg(non-key): got %q, want empty", alg)
	}
}
