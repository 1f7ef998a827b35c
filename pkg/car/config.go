package car

import (
	"io"

	"github.com/fobsec/keyfob/pkg/transport"
	"github.com/pion/logging"
)

// Config assembles a car device.
type Config struct {
	// Secret is the provisioned car secret that a fob must present.
	Secret [16]byte

	// Store holds the unlock and feature payloads.
	Store PayloadStore

	// BoardLink carries the fob protocol.
	BoardLink transport.Link

	// HostOut receives the released payloads verbatim. It is write-only
	// from the device's point of view.
	HostOut transport.Link

	// LoggerFactory builds the device logger. Defaults to the standard
	// leveled logger.
	LoggerFactory logging.LoggerFactory

	// Rand is the entropy source for handshakes. Nil means crypto/rand.
	Rand io.Reader
}

// Validate checks the configuration for completeness.
func (c *Config) Validate() error {
	if c.Store == nil {
		return ErrStoreRequired
	}
	if c.BoardLink == nil || c.HostOut == nil {
		return ErrLinkRequired
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
}
