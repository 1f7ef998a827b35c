package provision

import (
	"github.com/fobsec/keyfob/pkg/crypto"
	"github.com/fobsec/keyfob/pkg/securechannel"
)

// PairedModePayload builds the host command that asks a fob to confirm it
// is paired.
func PairedModePayload() []byte {
	return []byte{byte(securechannel.CmdPairedPairingMode)}
}

// UnpairedModePayload builds the host command that asks a fob to confirm
// it is unpaired.
func UnpairedModePayload() []byte {
	return []byte{byte(securechannel.CmdUnpairedPairingMode)}
}

// PinTransferPayload builds the host command that starts pairing on an
// unpaired fob. Only the hash of the PIN goes over the wire.
func PinTransferPayload(pin string) []byte {
	h := crypto.HashPIN(pin)
	payload := make([]byte, 0, 1+len(h))
	payload = append(payload, byte(securechannel.CmdPinTransfer))
	payload = append(payload, h[:]...)
	return payload
}

// EnableFeaturePayload builds the host command that unlocks one feature on
// a paired fob. The package inside it is sealed under the deployment's
// feature key.
func EnableFeaturePayload(s *Secrets, pin string, feature uint8) ([]byte, error) {
	blob, err := securechannel.SealFeature(s.FeatureKey[:], s.CarID, crypto.HashPIN(pin), feature)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, 1+len(blob))
	payload = append(payload, byte(securechannel.CmdEnableFeature))
	payload = append(payload, blob...)
	return payload, nil
}
