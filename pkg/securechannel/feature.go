package securechannel

import (
	"github.com/fobsec/keyfob/pkg/crypto"
)

// Feature packages are sealed offline by the provisioning tool and opened
// on the fob. They do not ride a session: each blob is encrypted on its own
// under the deployment-wide feature key with an all-zero IV, so a blob
// stays valid across fob reboots and sessions.
const (
	// FeatureCarIDSize is the width of the car identifier field.
	FeatureCarIDSize = 6

	// FeatureBlobSize is two AES blocks: car ID, PIN hash, feature number,
	// and zero padding.
	FeatureBlobSize = 2 * crypto.BlockSize
)

// SealFeature builds the encrypted enable-feature package for one feature
// number: carID | pinHash | feature, zero-padded to FeatureBlobSize and
// encrypted under key.
func SealFeature(key []byte, carID [FeatureCarIDSize]byte, pinHash [crypto.PINHashSize]byte, feature uint8) ([]byte, error) {
	ch, err := crypto.NewSecureChannel(key, make([]byte, crypto.IVSize))
	if err != nil {
		return nil, err
	}

	plain := make([]byte, 0, FeatureCarIDSize+crypto.PINHashSize+1)
	plain = append(plain, carID[:]...)
	plain = append(plain, pinHash[:]...)
	plain = append(plain, feature)
	return ch.Encrypt(plain)
}

// OpenFeature decrypts a sealed feature package and returns its fields. It
// performs no credential checks; the caller compares the PIN hash.
func OpenFeature(key, blob []byte) (carID [FeatureCarIDSize]byte, pinHash [crypto.PINHashSize]byte, feature uint8, err error) {
	if len(blob) != FeatureBlobSize {
		return carID, pinHash, 0, ErrBadFeatureLength
	}

	ch, err := crypto.NewSecureChannel(key, make([]byte, crypto.IVSize))
	if err != nil {
		return carID, pinHash, 0, err
	}
	plain, err := ch.Decrypt(blob)
	if err != nil {
		return carID, pinHash, 0, err
	}

	copy(carID[:], plain[:FeatureCarIDSize])
	copy(pinHash[:], plain[FeatureCarIDSize:FeatureCarIDSize+crypto.PINHashSize])
	feature = plain[FeatureCarIDSize+crypto.PINHashSize]
	return carID, pinHash, feature, nil
}
