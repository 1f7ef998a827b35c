// Package session implements the per-link session aggregate: framer state,
// secured flag, and key material for one physical link.
//
// A device owns exactly one Link per physical channel (host link, board
// link) and passes it by reference into dispatch; links are never shared
// across channels and never package-level state.
package session

// LinkRole identifies which physical channel a link serves. The role is
// carried explicitly on the link and passed into dispatch; it is never
// inferred from pointer identity.
type LinkRole int

const (
	// RoleUnknown is an uninitialized link role.
	RoleUnknown LinkRole = iota

	// RoleHostLink is the channel to the host tool.
	RoleHostLink

	// RoleBoardLink is the board-to-board channel (fob to fob, fob to car).
	RoleBoardLink
)

// String returns a human-readable name for the link role.
func (r LinkRole) String() string {
	switch r {
	case RoleHostLink:
		return "HostLink"
	case RoleBoardLink:
		return "BoardLink"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the role is a defined value.
func (r LinkRole) IsValid() bool {
	return r == RoleHostLink || r == RoleBoardLink
}
