package car

import "errors"

// Car device errors.
var (
	// ErrStoreRequired is returned when no payload store is configured.
	ErrStoreRequired = errors.New("car: payload store required")

	// ErrLinkRequired is returned when a required transport link is nil.
	ErrLinkRequired = errors.New("car: transport link required")

	// ErrNoPayload is returned by a payload store for an index it does not
	// hold.
	ErrNoPayload = errors.New("car: no such payload")
)
