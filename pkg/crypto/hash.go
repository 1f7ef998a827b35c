package crypto

import "crypto/md5"

// PINHashSize is the size of a hashed pairing PIN.
const PINHashSize = 16

// HashPIN digests a pairing PIN. The 16-byte MD5 digest is fixed by the
// provisioning format: the hash is never used for collision resistance,
// only as the canonical stored form the devices compare against.
func HashPIN(pin string) [PINHashSize]byte {
	return md5.Sum([]byte(pin))
}
