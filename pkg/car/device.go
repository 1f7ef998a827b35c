package car

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/fobsec/keyfob/pkg/securechannel"
	"github.com/fobsec/keyfob/pkg/session"
	"github.com/fobsec/keyfob/pkg/wire"
	"github.com/pion/logging"
)

const idleInterval = time.Millisecond

// Device is a running car. It listens on the board link for a fob, secures
// a session on demand, and releases the provisioned payloads to the host
// side when a valid unlock token arrives. Each session is one-shot: the
// link unwinds after an unlock, successful or not.
type Device struct {
	config Config
	log    logging.LeveledLogger

	mu    sync.Mutex
	board *session.Link
}

// New creates a car device from its configuration.
func New(config Config) (*Device, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	board, err := session.NewLink(session.RoleBoardLink, config.BoardLink)
	if err != nil {
		return nil, err
	}

	return &Device{
		config: config,
		log:    config.LoggerFactory.NewLogger("car"),
		board:  board,
	}, nil
}

// Secured reports whether the board link holds a session.
func (d *Device) Secured() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.board.Secured()
}

// Poll runs one cooperative iteration: at most one byte from the board
// link, and any completed frame dispatched to completion. It reports
// whether a byte was consumed.
func (d *Device) Poll() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := d.board.PollByte()
	if err != nil {
		// Framing and integrity errors are fail-silent.
		d.log.Tracef("frame dropped: %v", err)
		return true
	}
	if f == nil {
		return false
	}
	d.dispatch(f)
	return true
}

// Run polls until the context is cancelled, yielding briefly whenever a
// pass finds no traffic.
func (d *Device) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !d.Poll() {
			time.Sleep(idleInterval)
		}
	}
}

func (d *Device) dispatch(f *wire.Frame) {
	payload, err := d.board.Open(f)
	if err != nil {
		securechannel.Reject(d.board)
		return
	}

	cmd := securechannel.Command(payload[0])
	d.log.Tracef("board: %s", cmd)

	switch cmd {
	case securechannel.CmdEcdhOffer:
		if d.board.Secured() {
			securechannel.Reject(d.board)
			return
		}
		if err := securechannel.Accept(d.board, payload, d.config.Rand); err != nil {
			d.log.Debugf("handshake rejected: %v", err)
			securechannel.Reject(d.board)
		}

	case securechannel.CmdUnlockRequest:
		d.handleUnlock(payload)

	case securechannel.CmdNack:
		d.board.Reset()

	default:
		securechannel.Reject(d.board)
	}
}

// handleUnlock verifies the presented secret and, only then, reads and
// releases the stored payloads. The secret compare happens before any
// store access, so a rejected token leaves the store untouched. The link
// unwinds either way.
func (d *Device) handleUnlock(payload []byte) {
	if !d.board.Secured() || len(payload) < 1+len(d.config.Secret)+1 {
		securechannel.Reject(d.board)
		return
	}

	presented := payload[1 : 1+len(d.config.Secret)]
	features := payload[1+len(d.config.Secret)]

	if subtle.ConstantTimeCompare(presented, d.config.Secret[:]) != 1 {
		d.log.Debug("unlock rejected")
		securechannel.Reject(d.board)
		return
	}

	d.release(features)
	d.board.Reset()
}

// release writes the unlock payload and every enabled feature payload to
// the host side.
func (d *Device) release(features uint8) {
	unlock, err := d.config.Store.UnlockPayload()
	if err != nil {
		d.log.Errorf("unlock payload: %v", err)
		return
	}
	if err := d.config.HostOut.Write(unlock); err != nil {
		d.log.Errorf("unlock write: %v", err)
		return
	}
	d.log.Info("unlocked")

	for i := 0; i < securechannel.NumFeatures; i++ {
		if features&(1<<i) == 0 {
			continue
		}
		fp, err := d.config.Store.FeaturePayload(i)
		if err != nil {
			d.log.Errorf("feature %d payload: %v", i, err)
			continue
		}
		if err := d.config.HostOut.Write(fp); err != nil {
			d.log.Errorf("feature %d write: %v", i, err)
			return
		}
		d.log.Infof("feature %d released", i)
	}
}
