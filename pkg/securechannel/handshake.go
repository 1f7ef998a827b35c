package securechannel

import (
	"io"

	"github.com/fobsec/keyfob/pkg/crypto"
	"github.com/fobsec/keyfob/pkg/session"
)

// Handshake payload shapes. The two handshake commands are the only ones
// ever sent unencrypted: they establish the very key the channel will use.
const (
	// OfferSize is command + public key + IV.
	OfferSize = 1 + crypto.PublicKeySize + crypto.IVSize

	// ResponseSize is command + public key.
	ResponseSize = 1 + crypto.PublicKeySize
)

// Initiate starts a handshake on an unsecured link: it generates an
// ephemeral key pair and a fresh IV, stashes both on the link, and sends
// the offer. The session is established when the peer's response arrives
// (Complete).
//
// Note the protocol performs no key confirmation or peer authentication:
// any party that completes the exchange gets a secured link, and there is
// no freshness check on subsequent messages beyond the handshake IV. That
// is a property of the wire protocol, not of this implementation.
func Initiate(l *session.Link, rand io.Reader) error {
	if l.Secured() {
		return ErrAlreadySecured
	}

	kp, err := crypto.GenerateKeyPair(rand)
	if err != nil {
		return err
	}
	iv, err := crypto.GenerateIV(rand)
	if err != nil {
		return err
	}
	l.StashHandshake(kp, iv)

	payload := make([]byte, 0, OfferSize)
	payload = append(payload, byte(CmdEcdhOffer))
	payload = append(payload, kp.PublicKey()...)
	payload = append(payload, iv...)
	return l.SendPlain(payload)
}

// Accept runs the responder side of the handshake for a received offer
// payload: validate the shape, derive the session key against the offered
// public key and peer-supplied IV, reply with our public key, and mark the
// link secured.
//
// On any error the link is left unsecured; the caller answers with Reject.
func Accept(l *session.Link, payload []byte, rand io.Reader) error {
	if len(payload) != OfferSize {
		return ErrBadOfferLength
	}

	peerPublic := payload[1 : 1+crypto.PublicKeySize]
	iv := payload[1+crypto.PublicKeySize:]

	kp, err := crypto.GenerateKeyPair(rand)
	if err != nil {
		return err
	}
	shared, err := kp.ECDH(peerPublic)
	if err != nil {
		return err
	}
	key, err := crypto.SessionKey(shared, iv)
	if err != nil {
		return err
	}

	resp := make([]byte, 0, ResponseSize)
	resp = append(resp, byte(CmdEcdhResponse))
	resp = append(resp, kp.PublicKey()...)
	if err := l.SendPlain(resp); err != nil {
		return err
	}

	return l.Secure(key, iv)
}

// Complete finishes the initiator side when the peer's response payload
// arrives: same shared-secret derivation against the stashed key pair, same
// IV that was generated locally and transmitted in the offer.
func Complete(l *session.Link, payload []byte) error {
	if len(payload) != ResponseSize {
		return ErrBadResponseLength
	}

	kp, iv, err := l.PendingHandshake()
	if err != nil {
		return err
	}

	shared, err := kp.ECDH(payload[1:])
	if err != nil {
		return err
	}
	key, err := crypto.SessionKey(shared, iv)
	if err != nil {
		return err
	}
	return l.Secure(key, iv)
}

// SendAck acknowledges the current step on a link.
func SendAck(l *session.Link) error {
	return l.Send([]byte{byte(CmdAck)})
}

// SendNack refuses the current step without disturbing the link state.
// Used on links that never secure, where there is no session to unwind.
func SendNack(l *session.Link) error {
	return l.Send([]byte{byte(CmdNack)})
}

// Reject answers a protocol error: a NACK goes out on the link and the
// link unwinds to its unsecured reset state. Every comparison or shape
// failure produces this same response, so the peer cannot tell which check
// failed.
func Reject(l *session.Link) error {
	err := l.Send([]byte{byte(CmdNack)})
	l.Reset()
	return err
}
