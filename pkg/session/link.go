package session

import (
	"github.com/fobsec/keyfob/pkg/crypto"
	"github.com/fobsec/keyfob/pkg/transport"
	"github.com/fobsec/keyfob/pkg/wire"
)

// Link is the per-link session aggregate: one per physical channel, owned
// exclusively by the device polling loop. It holds the receive framer, the
// secured flag, and the session key material.
//
// Invariant: secured == true implies a live SecureChannel. The reverse does
// not hold; Reset drops the channel and key material together so stale keys
// are never trusted while secured == false.
type Link struct {
	role      LinkRole
	transport transport.Link
	framer    wire.Framer

	secured bool
	channel *crypto.SecureChannel

	// In-flight handshake state (initiator side): the ephemeral key pair
	// and the IV that was transmitted with the offer.
	pendingKey *crypto.KeyPair
	pendingIV  []byte
}

// NewLink wraps a transport as a session link with the given role.
func NewLink(role LinkRole, t transport.Link) (*Link, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}
	if t == nil {
		return nil, ErrNilTransport
	}
	return &Link{role: role, transport: t}, nil
}

// Role returns the link's channel role.
func (l *Link) Role() LinkRole {
	return l.role
}

// Secured reports whether the link holds an established session.
func (l *Link) Secured() bool {
	return l.secured
}

// PollByte reads at most one byte from the transport and feeds it to the
// framer. It returns a non-nil frame when the byte completes one. Framing
// and integrity errors surface as errors with no frame; the caller stays
// silent on the wire for those.
func (l *Link) PollByte() (*wire.Frame, error) {
	b, ok := l.transport.ReadByte()
	if !ok {
		return nil, nil
	}
	return l.framer.Feed(b)
}

// Feed passes one externally read byte through the framer.
func (l *Link) Feed(b byte) (*wire.Frame, error) {
	return l.framer.Feed(b)
}

// Dropped returns the count of frames the framer has discarded.
func (l *Link) Dropped() uint64 {
	return l.framer.Dropped()
}

// StashHandshake records the initiator-side handshake state until the
// peer's response arrives.
func (l *Link) StashHandshake(kp *crypto.KeyPair, iv []byte) {
	l.pendingKey = kp
	l.pendingIV = iv
}

// PendingHandshake returns the stashed initiator handshake state, or
// ErrNoPendingHandshake if no offer is in flight on this link.
func (l *Link) PendingHandshake() (*crypto.KeyPair, []byte, error) {
	if l.pendingKey == nil {
		return nil, nil, ErrNoPendingHandshake
	}
	return l.pendingKey, l.pendingIV, nil
}

// Secure installs a session key and IV, marking the link secured. Pending
// handshake state is consumed.
func (l *Link) Secure(key, iv []byte) error {
	ch, err := crypto.NewSecureChannel(key, iv)
	if err != nil {
		return err
	}
	l.channel = ch
	l.secured = true
	l.pendingKey = nil
	l.pendingIV = nil
	return nil
}

// Reset returns the link to its unsecured, empty state: framer reset,
// channel and key material dropped. Called whenever a handshake fails, a
// NACK is processed, or a terminal command completes.
func (l *Link) Reset() {
	l.secured = false
	l.channel = nil
	l.pendingKey = nil
	l.pendingIV = nil
	l.framer.Reset()
}

// Send frames and transmits a payload, encrypting it first when the link is
// secured. The write completes before Send returns.
func (l *Link) Send(payload []byte) error {
	if l.secured {
		ct, err := l.channel.Encrypt(payload)
		if err != nil {
			return err
		}
		payload = ct
	}
	return l.SendPlain(payload)
}

// SendPlain frames and transmits a payload with no encryption regardless of
// link state. Only the handshake messages use this on a securing link.
func (l *Link) SendPlain(payload []byte) error {
	data, err := wire.Encode(payload)
	if err != nil {
		return err
	}
	return l.transport.Write(data)
}

// Open returns the application payload of a received frame, decrypting it
// when the link is secured.
func (l *Link) Open(f *wire.Frame) ([]byte, error) {
	if !l.secured {
		return f.Payload, nil
	}
	return l.channel.Decrypt(f.Payload)
}

// Close closes the underlying transport.
func (l *Link) Close() error {
	return l.transport.Close()
}
