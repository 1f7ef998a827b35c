package fob

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/fobsec/keyfob/pkg/crypto"
	"github.com/fobsec/keyfob/pkg/securechannel"
	"github.com/fobsec/keyfob/pkg/session"
	"github.com/fobsec/keyfob/pkg/wire"
	"github.com/pion/logging"
)

// idleInterval is how long Run yields when a poll pass found no bytes.
const idleInterval = time.Millisecond

// Device is a running fob. All protocol state lives on one logical thread:
// Poll drives both links and runs every reaction to completion before
// returning, so no reaction ever blocks waiting for more bytes. The mutex
// only makes state observable from other goroutines (tests, button wiring);
// it is not a concurrency design.
type Device struct {
	config Config
	log    logging.LeveledLogger

	host  *session.Link
	board *session.Link

	mu      sync.RWMutex
	rec     CredentialRecord
	pairing PairingState

	// Transient PIN hash received from the host, held only for the
	// duration of one pairing attempt.
	transientPIN [crypto.PINHashSize]byte
	pinStashed   bool
}

// New creates a fob device from its configuration and loads (or seeds) the
// credential record.
func New(config Config) (*Device, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	host, err := session.NewLink(session.RoleHostLink, config.HostLink)
	if err != nil {
		return nil, err
	}
	board, err := session.NewLink(session.RoleBoardLink, config.BoardLink)
	if err != nil {
		return nil, err
	}

	d := &Device{
		config: config,
		log:    config.LoggerFactory.NewLogger("fob"),
		host:   host,
		board:  board,
	}
	if err := d.loadState(); err != nil {
		return nil, err
	}
	return d, nil
}

// loadState loads the persisted record, seeding factory state on first
// boot. A paired build whose storage predates provisioning is seeded from
// the provisioned constants and persisted immediately.
func (d *Device) loadState() error {
	rec, err := d.config.Storage.Load()
	switch {
	case errors.Is(err, ErrNoRecord):
		d.rec = CredentialRecord{Paired: PairedStateUnpaired}
	case err != nil:
		return err
	default:
		d.rec = *rec
	}

	dirty := false
	if d.config.Role == RolePaired && d.rec.Paired != PairedStatePaired {
		d.rec = CredentialRecord{
			Paired:  PairedStatePaired,
			PINHash: d.config.PINHash,
		}
		copy(d.rec.CarSecret[:], d.config.CarSecret[:])
		dirty = true
	}
	// Erased flash reads 0xFF; normalize the bitfield on first boot.
	if d.rec.Features == 0xFF {
		d.rec.Features = 0
		dirty = true
	}

	if dirty {
		if err := d.config.Storage.Save(&d.rec); err != nil {
			return err
		}
	}
	return nil
}

// Pairing returns the current role-level protocol step.
func (d *Device) Pairing() PairingState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pairing
}

// Record returns a copy of the in-memory credential record.
func (d *Device) Record() CredentialRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rec
}

// Paired reports whether the fob holds valid credentials.
func (d *Device) Paired() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rec.Paired == PairedStatePaired
}

// BoardSecured reports whether the board link holds a session.
func (d *Device) BoardSecured() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.board.Secured()
}

// Poll runs one cooperative iteration: at most one byte from each link is
// fed into that link's framer, and any completed frame is dispatched to
// completion. It reports whether any byte was consumed.
func (d *Device) Poll() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	progress := false

	if f, err := d.host.PollByte(); err != nil {
		// Framing and integrity errors are fail-silent.
		progress = true
		d.log.Tracef("host frame dropped: %v", err)
	} else if f != nil {
		progress = true
		d.dispatchHost(f)
	}

	if f, err := d.board.PollByte(); err != nil {
		progress = true
		d.log.Tracef("board frame dropped: %v", err)
	} else if f != nil {
		progress = true
		d.dispatchBoard(f)
	}

	return progress
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

// PressButton is the (externally debounced) unlock trigger. It is accepted
// only on a paired fob with no exchange in flight; it starts the board-link
// handshake toward the car.
func (d *Device) PressButton() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rec.Paired != PairedStatePaired {
		return ErrNotPaired
	}
	if d.pairing != PairingIdle {
		return ErrPairingBusy
	}

	d.board.Reset()
	d.pairing = AwaitingCarEcdh
	if err := securechannel.Initiate(d.board, d.config.Rand); err != nil {
		d.pairing = PairingIdle
		d.board.Reset()
		return err
	}
	d.log.Debug("unlock: handshake with car started")
	return nil
}

// ResetPairing manually unwinds a stuck in-flight exchange. No timeout
// exists on the wire protocol, so a peer that never answers parks the
// pairing state until this is called or a NACK arrives.
func (d *Device) ResetPairing() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unwindPairing(false)
}

// dispatchHost interprets a completed host-link frame. The host link is
// unsecured by design; the one encrypted host command (enable-feature)
// carries its own independent encryption layer.
func (d *Device) dispatchHost(f *wire.Frame) {
	payload, err := d.host.Open(f)
	if err != nil {
		d.nackHost()
		return
	}

	cmd := securechannel.Command(payload[0])
	d.log.Tracef("host: %s", cmd)

	switch cmd {
	case securechannel.CmdPairedPairingMode:
		if d.rec.Paired == PairedStatePaired {
			d.ackHost()
		} else {
			d.nackHost()
		}

	case securechannel.CmdUnpairedPairingMode:
		if d.rec.Paired == PairedStateUnpaired {
			d.ackHost()
		} else {
			d.nackHost()
		}

	case securechannel.CmdPinTransfer:
		d.handlePinTransfer(payload)

	case securechannel.CmdEnableFeature:
		d.handleEnableFeature(payload)

	default:
		d.nackHost()
	}
}

// handlePinTransfer starts the unpaired side of a pairing attempt: stash
// the hashed PIN and open a handshake toward the paired fob.
func (d *Device) handlePinTransfer(payload []byte) {
	if d.rec.Paired != PairedStateUnpaired ||
		d.pairing != PairingIdle ||
		len(payload) != 1+crypto.PINHashSize {
		d.nackHost()
		return
	}

	copy(d.transientPIN[:], payload[1:])
	d.pinStashed = true
	d.pairing = AwaitingPairedFobEcdh

	d.board.Reset()
	if err := securechannel.Initiate(d.board, d.config.Rand); err != nil {
		d.log.Errorf("pairing: handshake start failed: %v", err)
		d.unwindPairing(true)
		return
	}
	d.log.Debug("pairing: handshake with paired fob started")
}

// dispatchBoard interprets a completed board-link frame.
func (d *Device) dispatchBoard(f *wire.Frame) {
	payload, err := d.board.Open(f)
	if err != nil {
		d.boardFailure()
		return
	}

	cmd := securechannel.Command(payload[0])
	d.log.Tracef("board: %s", cmd)

	switch cmd {
	case securechannel.CmdEcdhOffer:
		// An unpaired fob is contacting us; respond and secure the link.
		if d.board.Secured() {
			d.boardFailure()
			return
		}
		if err := securechannel.Accept(d.board, payload, d.config.Rand); err != nil {
			d.log.Debugf("handshake rejected: %v", err)
			securechannel.Reject(d.board)
		}

	case securechannel.CmdEcdhResponse:
		d.handleEcdhResponse(payload)

	case securechannel.CmdSecretRequest:
		d.handleSecretRequest(payload)

	case securechannel.CmdSecretResponse:
		d.handleSecretResponse(payload)

	case securechannel.CmdNack:
		// Peer terminated the exchange; unwind without answering.
		d.unwindPairing(d.pairing == AwaitingPairedFobEcdh)

	case securechannel.CmdAck:
		// Nothing outstanding expects an ACK on the board link.

	default:
		d.boardFailure()
	}
}

// handleEcdhResponse completes our own handshake and advances whichever
// exchange was waiting on it.
func (d *Device) handleEcdhResponse(payload []byte) {
	if err := securechannel.Complete(d.board, payload); err != nil {
		d.log.Debugf("handshake completion failed: %v", err)
		d.boardFailure()
		return
	}

	switch d.pairing {
	case AwaitingPairedFobEcdh:
		req := make([]byte, 0, 1+crypto.PINHashSize)
		req = append(req, byte(securechannel.CmdSecretRequest))
		req = append(req, d.transientPIN[:]...)
		if err := d.board.Send(req); err != nil {
			d.log.Errorf("pairing: secret request failed: %v", err)
			d.unwindPairing(true)
		}

	case AwaitingCarEcdh:
		d.sendUnlockToken()

	default:
		// A handshake we never started completed; inconsistent.
		d.boardFailure()
	}
}

// sendUnlockToken transmits the car secret and feature bitfield. The fob
// expects no reply; the link and pairing state unwind immediately.
func (d *Device) sendUnlockToken() {
	tok := make([]byte, 0, 1+len(d.rec.CarSecret)+1)
	tok = append(tok, byte(securechannel.CmdUnlockRequest))
	tok = append(tok, d.rec.CarSecret[:]...)
	tok = append(tok, d.rec.Features)
	if err := d.board.Send(tok); err != nil {
		d.log.Errorf("unlock: send failed: %v", err)
	}
	d.board.Reset()
	d.pairing = PairingIdle
}

// handleSecretRequest is the paired-fob responder: verify the presented
// PIN hash and hand over the car secret.
func (d *Device) handleSecretRequest(payload []byte) {
	if !d.board.Secured() ||
		d.rec.Paired != PairedStatePaired ||
		len(payload) < 1+crypto.PINHashSize {
		d.boardFailure()
		return
	}

	presented := payload[1 : 1+crypto.PINHashSize]
	if subtle.ConstantTimeCompare(presented, d.rec.PINHash[:]) != 1 {
		d.boardFailure()
		return
	}

	resp := make([]byte, 0, 1+len(d.rec.CarSecret))
	resp = append(resp, byte(securechannel.CmdSecretResponse))
	resp = append(resp, d.rec.CarSecret[:]...)
	if err := d.board.Send(resp); err != nil {
		d.log.Errorf("pairing: secret response failed: %v", err)
	}
}

// handleSecretResponse is the unpaired-fob side receiving the car secret:
// persist the new credentials before acknowledging the host.
func (d *Device) handleSecretResponse(payload []byte) {
	if d.pairing != AwaitingPairedFobEcdh ||
		!d.pinStashed ||
		d.rec.Paired == PairedStatePaired ||
		len(payload) < 1+16 {
		d.boardFailure()
		return
	}

	next := d.rec
	next.Paired = PairedStatePaired
	next.PINHash = d.transientPIN
	copy(next.CarSecret[:], payload[1:1+16])

	if err := d.config.Storage.Save(&next); err != nil {
		// Not durable: an ACK would lie to the host.
		d.log.Errorf("pairing: persist failed: %v", err)
		d.unwindPairing(true)
		return
	}
	d.rec = next

	d.ackHost()
	d.pairing = PairingIdle
	d.pinStashed = false
	d.board.Reset()
	d.log.Info("pairing complete")
}

// boardFailure answers a board-link protocol error: NACK, link reset, and
// pairing unwind (with a host NACK when a pairing attempt was in flight).
func (d *Device) boardFailure() {
	inPairing := d.pairing == AwaitingPairedFobEcdh
	securechannel.Reject(d.board)
	d.unwindPairingAfterReset(inPairing)
}

// unwindPairing resets the board link and returns the pairing state to
// Idle. When nackHost is set a NACK is also sent to the host, which is
// waiting on the outcome of a pairing attempt.
func (d *Device) unwindPairing(nackHost bool) {
	d.board.Reset()
	d.unwindPairingAfterReset(nackHost)
}

func (d *Device) unwindPairingAfterReset(nackHost bool) {
	if nackHost {
		d.nackHost()
	}
	d.pairing = PairingIdle
	d.pinStashed = false
}

func (d *Device) ackHost() {
	if err := securechannel.SendAck(d.host); err != nil {
		d.log.Errorf("host ack failed: %v", err)
	}
}

func (d *Device) nackHost() {
	if err := securechannel.SendNack(d.host); err != nil {
		d.log.Errorf("host nack failed: %v", err)
	}
}
