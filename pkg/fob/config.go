package fob

import (
	"io"

	"github.com/fobsec/keyfob/pkg/crypto"
	"github.com/fobsec/keyfob/pkg/transport"
	"github.com/pion/logging"
)

// Config holds the build-time configuration of a fob. The provisioned
// constants (PIN hash, car secret, feature key) are external configuration
// baked in by the provisioning tooling, not protocol state.
type Config struct {
	// Role selects the paired or unpaired build.
	Role Role

	// PINHash is the provisioned pairing PIN digest (paired builds).
	PINHash [crypto.PINHashSize]byte

	// CarSecret is the provisioned car secret (paired builds).
	CarSecret [16]byte

	// FeatureKey is the deployment-wide provisioning key that the
	// enable-feature payload is encrypted under.
	FeatureKey [crypto.KeySize]byte

	// HostLink is the channel to the host tool.
	HostLink transport.Link

	// BoardLink is the board-to-board channel.
	BoardLink transport.Link

	// Storage persists the credential record. Required.
	Storage Storage

	// LoggerFactory creates the device logger. Defaults to pion's default
	// factory.
	LoggerFactory logging.LoggerFactory

	// Rand is the random source for key generation and IVs, injected once
	// at start-up. Defaults to crypto/rand.
	Rand io.Reader
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !c.Role.IsValid() {
		return ErrInvalidRole
	}
	if c.HostLink == nil || c.BoardLink == nil {
		return ErrLinkRequired
	}
	if c.Storage == nil {
		return ErrStorageRequired
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
}
