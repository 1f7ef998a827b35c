package crypto

import (
	"crypto/aes"
	"crypto/cipher"
)

// Secure channel constants.
const (
	// KeySize is the AES-128 session key size in bytes.
	KeySize = 16

	// IVSize is the CBC initialization vector size in bytes.
	IVSize = 16

	// BlockSize is the AES block size.
	BlockSize = 16
)

// SecureChannel applies the link encryption transform: AES-128-CBC with
// zero padding. The IV rolls forward with every message (the last ciphertext
// block becomes the next IV), so both ends of a strictly alternating
// half-duplex exchange stay in lock-step. There is no per-message nonce or
// counter beyond the handshake IV; a NACK or reset discards the channel
// outright so a desynchronized IV can never be reused.
type SecureChannel struct {
	block cipher.Block
	iv    [IVSize]byte
}

// NewSecureChannel initializes a channel from a session key and the
// handshake IV.
func NewSecureChannel(key, iv []byte) (*SecureChannel, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if len(iv) != IVSize {
		return nil, ErrInvalidIVSize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	sc := &SecureChannel{block: block}
	copy(sc.iv[:], iv)
	return sc, nil
}

// Encrypt zero-pads the plaintext to the block size and CBC-encrypts it.
// The message length always travels alongside on the wire, so the receiver
// can discard the pad by payload shape.
func (sc *SecureChannel) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrEmptyPlaintext
	}

	padded := pad(plaintext)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(sc.block, sc.iv[:]).CryptBlocks(ciphertext, padded)

	// Roll the IV: next message chains off the last ciphertext block.
	copy(sc.iv[:], ciphertext[len(ciphertext)-BlockSize:])
	return ciphertext, nil
}

// Decrypt is the inverse of Encrypt. The zero pad is left in place; command
// handlers interpret payloads by fixed offsets, never by total length.
func (sc *SecureChannel) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, ErrCiphertextSize
	}

	plaintext := make([]byte, len(ciphertext))
	next := ciphertext[len(ciphertext)-BlockSize:]
	cipher.NewCBCDecrypter(sc.block, sc.iv[:]).CryptBlocks(plaintext, ciphertext)

	// Roll the IV from the received ciphertext, keeping lock-step with the
	// sender's Encrypt.
	copy(sc.iv[:], next)
	return plaintext, nil
}

// pad extends p with zero bytes to a multiple of the cipher block size.
func pad(p []byte) []byte {
	rem := len(p) % BlockSize
	if rem == 0 {
		return p
	}
	padded := make([]byte, len(p)+BlockSize-rem)
	copy(padded, p)
	return padded
}
