// Package fob implements the key-fob device: the pairing and unlock state
// machine layered over a host link and a board link, plus the persistent
// credential store.
package fob

// Role selects the build configuration of a fob. A device is provisioned as
// paired or unpaired at build time; the role never changes at runtime (an
// unpaired fob that completes pairing stores paired credentials but keeps
// answering as the device it was built as).
type Role int

const (
	// RoleUnknown is an uninitialized role.
	RoleUnknown Role = iota

	// RoleUnpaired is a fob built without credentials. It can be paired
	// against a paired fob.
	RoleUnpaired

	// RolePaired is a fob built with a provisioned PIN hash and car secret.
	RolePaired
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleUnpaired:
		return "UnpairedFob"
	case RolePaired:
		return "PairedFob"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the role is a defined value.
func (r Role) IsValid() bool {
	return r == RoleUnpaired || r == RolePaired
}

// PairingState tracks the fob's role-level protocol step. It is
// process-wide, not per-link: a single physical user action (button press
// or host command) can be outstanding at a time.
type PairingState int

const (
	// PairingIdle means no multi-step exchange is in flight.
	PairingIdle PairingState = iota

	// AwaitingPairedFobEcdh means a pin-transfer started a pairing attempt
	// and the board-link handshake with the paired fob is pending.
	AwaitingPairedFobEcdh

	// AwaitingCarEcdh means a button press started an unlock attempt and
	// the board-link handshake with the car is pending.
	AwaitingCarEcdh
)

// String returns a human-readable pairing state name.
func (s PairingState) String() string {
	switch s {
	case PairingIdle:
		return "Idle"
	case AwaitingPairedFobEcdh:
		return "AwaitingPairedFobEcdh"
	case AwaitingCarEcdh:
		return "AwaitingCarEcdh"
	default:
		return "Unknown"
	}
}

// PairedState is the persisted paired/unpaired marker. The values match the
// flash layout of provisioned hardware: erased flash reads 0xFF, so
// unpaired is the erased state.
type PairedState byte

const (
	// PairedStatePaired marks a record holding valid credentials.
	PairedStatePaired PairedState = 0xAB

	// PairedStateUnpaired marks a record with no credentials (erased flash).
	PairedStateUnpaired PairedState = 0xFF
)

// String returns a human-readable paired state name.
func (s PairedState) String() string {
	switch s {
	case PairedStatePaired:
		return "Paired"
	case PairedStateUnpaired:
		return "Unpaired"
	default:
		return "Unknown"
	}
}
