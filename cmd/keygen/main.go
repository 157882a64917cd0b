// Keygen prints a fresh set of deployment secrets: an ECDSA P-256 key pair
// for JWT signing (PEM), an HMAC signing secret, and a payload encryption
// key. Paste the output into the environment of every cooperating app; the
// HMAC secret and encryption key must be identical across apps.
package main

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/sasarjan/authsync/internal/crypto"
	"github.com/sasarjan/authsync/internal/security"
)

func main() {
	kp, err := security.GenerateKeyPair()
	if err != nil {
		log.Fatalf("keygen: %v", err)
	}
	privPEM, err := security.EncodePrivateKeyPEM(kp.Private)
	if err != nil {
		log.Fatalf("keygen: %v", err)
	}
	pubPEM, err := security.EncodePublicKeyPEM(kp.Public)
	if err != nil {
		log.Fatalf("keygen: %v", err)
	}

	hmacSecret, err := crypto.RandomBytes(32)
	if err != nil {
		log.Fatalf("keygen: %v", err)
	}
	encKey, err := crypto.RandomBytes(crypto.KeySize)
	if err != nil {
		log.Fatalf("keygen: %v", err)
	}

	fmt.Printf("JWT_PRIVATE_KEY:\n%s\n", privPEM)
	fmt.Printf("JWT_PUBLIC_KEY:\n%s\n", pubPEM)
	fmt.Printf("HMAC_SECRET=%s\n", hex.EncodeToString(hmacSecret))
	fmt.Printf("ENCRYPTION_KEY=%s\n", hex.EncodeToString(encKey))
}
