package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := RandomBytes(KeySize)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	return key
}

func TestAEADEncryptor_RoundTrip(t *testing.T) {
	e, err := NewAEADEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAEADEncryptor: %v", err)
	}
	plaintext := []byte(`{"type":"SIGN_IN","payload":{"id":"s1"}}`)
	sealed, err := e.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := e.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Decrypt: got %q, want %q", got, plaintext)
	}
}

func TestAEADEncryptor_DistinctCiphertexts(t *testing.T) {
	e, err := NewAEADEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAEADEncryptor: %v", err)
	}
	a, err := e.Encrypt([]byte("same"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := e.Encrypt([]byte("same"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Error("identical plaintexts produced identical ciphertexts; nonce not random")
	}
}

func TestAEADEncryptor_WrongKey(t *testing.T) {
	e1, err := NewAEADEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAEADEncryptor: %v", err)
	}
	e2, err := NewAEADEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAEADEncryptor: %v", err)
	}
	sealed, err := e1.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := e2.Decrypt(sealed); err != ErrDecryptFailed {
		t.Errorf("Decrypt under wrong key: want ErrDecryptFailed, got %v", err)
	}
}

func TestAEADEncryptor_TamperedCiphertext(t *testing.T) {
	e, err := NewAEADEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAEADEncryptor: %v", err)
	}
	sealed, err := e.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	if _, err := e.Decrypt(base64.StdEncoding.EncodeToString(raw)); err != ErrDecryptFailed {
		t.Errorf("Decrypt tampered: want ErrDecryptFailed, got %v", err)
	}
}

func TestAEADEncryptor_MalformedInput(t *testing.T) {
	e, err := NewAEADEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAEADEncryptor: %v", err)
	}
	for _, in := range []string{"", "not-base64!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := e.Decrypt(in); err != ErrDecryptFailed {
			t.Errorf("Decrypt(%q): want ErrDecryptFailed, got %v", in, err)
		}
	}
}

func TestNewAEADEncryptor_BadKeyLength(t *testing.T) {
	if _, err := NewAEADEncryptor([]byte("too-short")); err != ErrInvalidKeyLength {
		t.Errorf("NewAEADEncryptor short key: want ErrInvalidKeyLength, got %v", err)
	}
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(16)
	if err != nil {
		t.Fatalf("RandomToken: %v", err)
	}
	if len(a) != 32 {
		t.Errorf("RandomToken length: got %d, want 32", len(a))
	}
	b, err := RandomToken(16)
	if err != nil {
		t.Fatalf("RandomToken: %v", err)
	}
	if a == b {
		t.Error("two RandomToken calls returned the same value")
	}
}
