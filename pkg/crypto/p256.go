// Package crypto provides the cryptographic primitives for the fob link
// protocol: P-256 key agreement, session key derivation, and the CBC-mode
// secure channel transform.
package crypto

import (
	"crypto/ecdh"
	crand "crypto/rand"
	"fmt"
	"io"
)

// P-256 constants. The curve is fixed and shared by all roles.
const (
	// GroupSizeBytes is the P-256 group size in bytes.
	GroupSizeBytes = 32

	// PublicKeySize is the uncompressed public key size:
	// 0x04 || X (32 bytes) || Y (32 bytes).
	PublicKeySize = 65

	// SharedSecretSize is the ECDH shared secret size (x-coordinate).
	SharedSecretSize = 32
)

// KeyPair is an ephemeral P-256 key pair used for a single link handshake.
type KeyPair struct {
	priv *ecdh.PrivateKey
}

// GenerateKeyPair generates a new P-256 key pair drawing the secret scalar
// from rand. The random source is injected by the owning device; a nil rand
// falls back to crypto/rand.
func GenerateKeyPair(rand io.Reader) (*KeyPair, error) {
	if rand == nil {
		rand = crand.Reader
	}
	priv, err := ecdh.P256().GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// PublicKey returns the public key in uncompressed format (65 bytes).
func (kp *KeyPair) PublicKey() []byte {
	return kp.priv.PublicKey().Bytes()
}

// ECDH derives the shared secret against a peer's uncompressed public key.
// The result feeds directly into SessionKey; no key confirmation is
// performed before use.
func (kp *KeyPair) ECDH(peerPublic []byte) ([]byte, error) {
	if len(peerPublic) != PublicKeySize {
		return nil, ErrInvalidPublicKey
	}
	pub, err := ecdh.P256().NewPublicKey(peerPublic)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	secret, err := kp.priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("ECDH computation failed: %w", err)
	}
	return secret, nil
}

// ValidatePublicKey checks that a peer public key is a valid uncompressed
// point on the curve.
func ValidatePublicKey(publicKey []byte) error {
	if len(publicKey) != PublicKeySize || publicKey[0] != 0x04 {
		return ErrInvalidPublicKey
	}
	if _, err := ecdh.P256().NewPublicKey(publicKey); err != nil {
		return ErrInvalidPublicKey
	}
	return nil
}

// GenerateIV draws a fresh IVSize-byte initialization vector from rand.
// A nil rand falls back to crypto/rand.
func GenerateIV(rand io.Reader) ([]byte, error) {
	if rand == nil {
		rand = crand.Reader
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand, iv); err != nil {
		return nil, fmt.Errorf("generate IV: %w", err)
	}
	return iv, nil
}
