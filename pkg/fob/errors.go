package fob

import "errors"

// Fob package errors.
var (
	// ErrNoRecord is returned by Storage.Load when no credential record has
	// ever been persisted.
	ErrNoRecord = errors.New("fob: no credential record")

	// ErrBadRecord is returned when a persisted record fails to decode.
	ErrBadRecord = errors.New("fob: malformed credential record")

	// ErrStorageRequired is returned when a config has no Storage.
	ErrStorageRequired = errors.New("fob: storage is required")

	// ErrLinkRequired is returned when a config is missing a link.
	ErrLinkRequired = errors.New("fob: host and board links are required")

	// ErrInvalidRole is returned for an undefined device role.
	ErrInvalidRole = errors.New("fob: invalid device role")

	// ErrNotPaired is returned when an unlock is triggered on an unpaired
	// fob.
	ErrNotPaired = errors.New("fob: device is not paired")

	// ErrPairingBusy is returned when a trigger arrives while another
	// exchange is still in flight.
	ErrPairingBusy = errors.New("fob: exchange already in flight")
)
