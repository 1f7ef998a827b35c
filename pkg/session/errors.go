package session

import "errors"

// Session package errors.
var (
	// ErrInvalidRole is returned when constructing a link with an
	// undefined role.
	ErrInvalidRole = errors.New("session: invalid link role")

	// ErrNilTransport is returned when constructing a link without a
	// transport.
	ErrNilTransport = errors.New("session: nil transport")

	// ErrNotSecured is returned when a secured-only operation runs on an
	// unsecured link.
	ErrNotSecured = errors.New("session: link not secured")

	// ErrNoPendingHandshake is returned when a handshake response arrives
	// on a link that never sent an offer.
	ErrNoPendingHandshake = errors.New("session: no handshake in flight")
)
