// Package securechannel implements the link bootstrap protocol: the command
// tag table shared by every role and the ECDH handshake that upgrades an
// unsecured link to an encrypted session.
package securechannel

// Command is the one-byte tag identifying message intent. Values are stable
// across every device built from the same firmware image; they are grouped
// by purpose the way the wire protocol groups them.
type Command byte

// Command tag values.
const (
	// Handshake
	CmdEcdhOffer    Command = 0x01
	CmdEcdhResponse Command = 0x02

	// Link-level control
	CmdAck  Command = 0x06
	CmdNack Command = 0x07

	// Pairing
	CmdPairedPairingMode   Command = 0x10
	CmdUnpairedPairingMode Command = 0x11
	CmdPinTransfer         Command = 0x12
	CmdSecretRequest       Command = 0x13
	CmdSecretResponse      Command = 0x14

	// Feature
	CmdEnableFeature Command = 0x20

	// Unlock
	CmdUnlockRequest Command = 0x30
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdEcdhOffer:
		return "EcdhOffer"
	case CmdEcdhResponse:
		return "EcdhResponse"
	case CmdAck:
		return "Ack"
	case CmdNack:
		return "Nack"
	case CmdPairedPairingMode:
		return "PairedPairingMode"
	case CmdUnpairedPairingMode:
		return "UnpairedPairingMode"
	case CmdPinTransfer:
		return "PinTransfer"
	case CmdSecretRequest:
		return "SecretRequest"
	case CmdSecretResponse:
		return "SecretResponse"
	case CmdEnableFeature:
		return "EnableFeature"
	case CmdUnlockRequest:
		return "UnlockRequest"
	default:
		return "Unknown"
	}
}

// NumFeatures is the number of car features a fob can be entitled to.
// Feature numbers are 0-based bit positions in the feature bitfield.
const NumFeatures = 3
