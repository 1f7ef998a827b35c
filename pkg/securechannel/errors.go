package securechannel

import "errors"

// Secure channel errors.
var (
	// ErrBadOfferLength is returned when an ECDH offer payload is not
	// exactly command + public key + IV.
	ErrBadOfferLength = errors.New("securechannel: bad ECDH offer length")

	// ErrBadResponseLength is returned when an ECDH response payload is
	// not exactly command + public key.
	ErrBadResponseLength = errors.New("securechannel: bad ECDH response length")

	// ErrAlreadySecured is returned when a handshake starts on a link that
	// already holds a session. The old session must be reset first.
	ErrAlreadySecured = errors.New("securechannel: link already secured")

	// ErrBadFeatureLength is returned when a sealed feature package is not
	// exactly two cipher blocks.
	ErrBadFeatureLength = errors.New("securechannel: bad feature package length")
)
