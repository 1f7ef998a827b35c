package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// sessionKeyInfo is the HKDF context string for link session keys.
var sessionKeyInfo = []byte("keyfob session key")

// SessionKey derives the 16-byte AES session key for a link from an ECDH
// shared secret and the handshake IV.
//
// HKDF-SHA256 with salt = IV and a fixed info string; both sides of the
// handshake hold the same shared secret and IV, so both derive the same key.
func SessionKey(sharedSecret, iv []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, ErrInvalidIVSize
	}
	reader := hkdf.New(sha256.New, sharedSecret, iv, sessionKeyInfo)
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}
