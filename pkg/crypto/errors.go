package crypto

import "errors"

// Crypto package errors.
var (
	// ErrInvalidPublicKey is returned for peer public keys that are not a
	// valid uncompressed P-256 point.
	ErrInvalidPublicKey = errors.New("crypto: invalid peer public key")

	// ErrInvalidKeySize is returned when a symmetric key is not KeySize bytes.
	ErrInvalidKeySize = errors.New("crypto: invalid key size, must be 16 bytes")

	// ErrInvalidIVSize is returned when an IV is not IVSize bytes.
	ErrInvalidIVSize = errors.New("crypto: invalid IV size, must be 16 bytes")

	// ErrCiphertextSize is returned when a ciphertext is empty or not a
	// multiple of the cipher block size.
	ErrCiphertextSize = errors.New("crypto: ciphertext not a multiple of block size")

	// ErrEmptyPlaintext is returned when there is nothing to encrypt.
	ErrEmptyPlaintext = errors.New("crypto: empty plaintext")
)
