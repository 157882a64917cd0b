package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrInvalidKeyLength is returned when the encryption key is not KeySize bytes.
	ErrInvalidKeyLength = errors.New("invalid key length")
	// ErrDecryptFailed is returned when a ciphertext cannot be authenticated or decoded.
	ErrDecryptFailed = errors.New("decrypt failed")
)

// KeySize is the required encryption key length in bytes.
const KeySize = chacha20poly1305.KeySize

// Encryptor seals and opens small payloads. The cross-app sync service uses it
// to hide session contents from passive observers on the shared channel; the
// HMAC envelope separately authenticates the message.
type Encryptor interface {
	// Encrypt seals plaintext and returns a base64 string safe to embed in JSON.
	Encrypt(plaintext []byte) (string, error)
	// Decrypt opens a string produced by Encrypt. Returns ErrDecryptFailed for
	// any malformed, truncated, or tampered input.
	Decrypt(ciphertext string) ([]byte, error)
}

// AEADEncryptor implements Encryptor with XChaCha20-Poly1305.
// The random nonce is prepended to the ciphertext before encoding.
type AEADEncryptor struct {
	aead cipher.AEAD
}

// NewAEADEncryptor returns an AEADEncryptor for the given KeySize-byte key.
// A wrong-length key is a configuration error and fails here, not at call time.
func NewAEADEncryptor(key []byte) (*AEADEncryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &AEADEncryptor{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (e *AEADEncryptor) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. All failure modes collapse into
// ErrDecryptFailed so callers leak nothing about which check failed.
func (e *AEADEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	if len(raw) < e.aead.NonceSize() {
		return nil, ErrDecryptFailed
	}
	nonce, sealed := raw[:e.aead.NonceSize()], raw[e.aead.NonceSize():]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
