package fob

import (
	"errors"
	"testing"
	"time"

	"github.com/fobsec/keyfob/pkg/crypto"
	"github.com/fobsec/keyfob/pkg/provision"
	"github.com/fobsec/keyfob/pkg/securechannel"
	"github.com/fobsec/keyfob/pkg/transport"
	"github.com/fobsec/keyfob/pkg/wire"
)

type poller interface {
	Poll() bool
}

// settle pumps pipe deliveries and device polls until the exchange
// quiesces: no device makes progress for a stretch of consecutive passes.
func settle(t *testing.T, pipes []*transport.Pipe, devs ...poller) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	idle := 0
	for idle < 50 {
		if time.Now().After(deadline) {
			t.Fatal("exchange did not settle")
		}
		for _, p := range pipes {
			p.Process()
		}
		progress := false
		for _, d := range devs {
			if d.Poll() {
				progress = true
			}
		}
		if progress {
			idle = 0
		} else {
			idle++
			time.Sleep(time.Millisecond)
		}
	}
}

// sendCommand frames a payload and writes it on the tool side of a host
// pipe.
func sendCommand(t *testing.T, l transport.Link, payload []byte) {
	t.Helper()
	data, err := wire.Encode(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Write(data); err != nil {
		t.Fatal(err)
	}
}

// drainReplies parses every frame currently queued on a tool-side link and
// returns their command tags.
func drainReplies(t *testing.T, l transport.Link) []securechannel.Command {
	t.Helper()
	var f wire.Framer
	var cmds []securechannel.Command
	for {
		b, ok := l.ReadByte()
		if !ok {
			return cmds
		}
		frame, err := f.Feed(b)
		if err != nil {
			t.Fatalf("tool stream corrupt: %v", err)
		}
		if frame != nil {
			cmds = append(cmds, securechannel.Command(frame.Command()))
		}
	}
}

// expectReply asserts exactly one reply with the given command.
func expectReply(t *testing.T, l transport.Link, want securechannel.Command) {
	t.Helper()
	cmds := drainReplies(t, l)
	if len(cmds) != 1 || cmds[0] != want {
		t.Fatalf("replies = %v, want [%s]", cmds, want)
	}
}

// pairRig wires a paired fob and an unpaired fob back to back, with a tool
// endpoint on each fob's host pipe.
type pairRig struct {
	hostA, hostB, board *transport.Pipe
	fobA, fobB          *Device
	storeA, storeB      *MemoryStorage
	secret              [16]byte
	pipes               []*transport.Pipe
}

func newPairRig(t *testing.T) *pairRig {
	t.Helper()
	r := &pairRig{
		hostA:  transport.NewPipeWithConfig(transport.PipeConfig{AutoProcess: false}),
		hostB:  transport.NewPipeWithConfig(transport.PipeConfig{AutoProcess: false}),
		board:  transport.NewPipeWithConfig(transport.PipeConfig{AutoProcess: false}),
		storeA: NewMemoryStorage(),
		storeB: NewMemoryStorage(),
	}
	r.pipes = []*transport.Pipe{r.hostA, r.hostB, r.board}
	t.Cleanup(func() {
		for _, p := range r.pipes {
			p.Close()
		}
	})
	for i := range r.secret {
		r.secret[i] = byte(0xC0 + i)
	}

	var err error
	r.fobA, err = New(Config{
		Role:      RolePaired,
		PINHash:   crypto.HashPIN("123456"),
		CarSecret: r.secret,
		HostLink:  r.hostA.LinkB(),
		BoardLink: r.board.LinkA(),
		Storage:   r.storeA,
	})
	if err != nil {
		t.Fatal(err)
	}
	r.fobB, err = New(Config{
		Role:      RoleUnpaired,
		HostLink:  r.hostB.LinkB(),
		BoardLink: r.board.LinkB(),
		Storage:   r.storeB,
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func (r *pairRig) toolA() transport.Link { return r.hostA.LinkA() }
func (r *pairRig) toolB() transport.Link { return r.hostB.LinkA() }

func TestPairingTransfersCredentials(t *testing.T) {
	r := newPairRig(t)

	sendCommand(t, r.toolB(), provision.PinTransferPayload("123456"))
	settle(t, r.pipes, r.fobA, r.fobB)

	expectReply(t, r.toolB(), securechannel.CmdAck)

	if !r.fobB.Paired() {
		t.Fatal("unpaired fob did not pair")
	}
	rec := r.fobB.Record()
	if rec.CarSecret != r.secret {
		t.Fatal("car secret was not transferred")
	}
	if rec.PINHash != crypto.HashPIN("123456") {
		t.Fatal("PIN hash mismatch in new record")
	}
	if r.fobB.Pairing() != PairingIdle {
		t.Fatalf("pairing state = %s after completion", r.fobB.Pairing())
	}

	// The new credentials were persisted before the ACK.
	stored, err := r.storeB.Load()
	if err != nil {
		t.Fatal(err)
	}
	if stored.Paired != PairedStatePaired || stored.CarSecret != r.secret {
		t.Fatal("persisted record incomplete")
	}
}

func TestPairingWrongPIN(t *testing.T) {
	r := newPairRig(t)

	sendCommand(t, r.toolB(), provision.PinTransferPayload("999999"))
	settle(t, r.pipes, r.fobA, r.fobB)

	expectReply(t, r.toolB(), securechannel.CmdNack)

	if r.fobB.Paired() {
		t.Fatal("fob paired with the wrong PIN")
	}
	if r.storeB.Saves() != 0 {
		t.Fatalf("storage written %d times on a failed pairing", r.storeB.Saves())
	}
	if r.fobB.Pairing() != PairingIdle {
		t.Fatalf("pairing state = %s, want Idle", r.fobB.Pairing())
	}
	if r.fobB.BoardSecured() {
		t.Fatal("board link still secured after rejection")
	}
}

func TestPairingPersistFailure(t *testing.T) {
	r := newPairRig(t)
	r.storeB.SetSaveError(errors.New("flash write failed"))

	sendCommand(t, r.toolB(), provision.PinTransferPayload("123456"))
	settle(t, r.pipes, r.fobA, r.fobB)

	// Credentials that never became durable must not be acknowledged.
	expectReply(t, r.toolB(), securechannel.CmdNack)
	if r.fobB.Paired() {
		t.Fatal("fob reports paired after a failed persist")
	}
}

func TestPairingModeQueries(t *testing.T) {
	r := newPairRig(t)

	cases := []struct {
		name    string
		tool    transport.Link
		payload []byte
		want    securechannel.Command
	}{
		{"paired fob confirms paired", r.toolA(), provision.PairedModePayload(), securechannel.CmdAck},
		{"paired fob denies unpaired", r.toolA(), provision.UnpairedModePayload(), securechannel.CmdNack},
		{"unpaired fob confirms unpaired", r.toolB(), provision.UnpairedModePayload(), securechannel.CmdAck},
		{"unpaired fob denies paired", r.toolB(), provision.PairedModePayload(), securechannel.CmdNack},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sendCommand(t, c.tool, c.payload)
			settle(t, r.pipes, r.fobA, r.fobB)
			expectReply(t, c.tool, c.want)
		})
	}
}

func TestPinTransferRejectedOnPairedFob(t *testing.T) {
	r := newPairRig(t)

	sendCommand(t, r.toolA(), provision.PinTransferPayload("123456"))
	settle(t, r.pipes, r.fobA, r.fobB)
	expectReply(t, r.toolA(), securechannel.CmdNack)
}

func TestUnknownHostCommandNacked(t *testing.T) {
	r := newPairRig(t)

	sendCommand(t, r.toolB(), []byte{0x7F, 0x00})
	settle(t, r.pipes, r.fobA, r.fobB)
	expectReply(t, r.toolB(), securechannel.CmdNack)
}

func featureRig(t *testing.T) (*Device, *transport.Pipe, *provision.Secrets, *MemoryStorage) {
	t.Helper()
	s, err := provision.GenerateSecrets(nil)
	if err != nil {
		t.Fatal(err)
	}

	host := transport.NewPipeWithConfig(transport.PipeConfig{AutoProcess: false})
	board := transport.NewPipeWithConfig(transport.PipeConfig{AutoProcess: false})
	t.Cleanup(func() {
		host.Close()
		board.Close()
	})

	store := NewMemoryStorage()
	d, err := New(Config{
		Role:       RolePaired,
		PINHash:    crypto.HashPIN("123456"),
		CarSecret:  s.CarSecret,
		FeatureKey: s.FeatureKey,
		HostLink:   host.LinkB(),
		BoardLink:  board.LinkB(),
		Storage:    store,
	})
	if err != nil {
		t.Fatal(err)
	}
	return d, host, s, store
}

func TestEnableFeature(t *testing.T) {
	d, host, s, store := featureRig(t)
	pipes := []*transport.Pipe{host}

	for _, feature := range []uint8{0, 2} {
		payload, err := provision.EnableFeaturePayload(s, "123456", feature)
		if err != nil {
			t.Fatal(err)
		}
		sendCommand(t, host.LinkA(), payload)
		settle(t, pipes, d)
		expectReply(t, host.LinkA(), securechannel.CmdAck)

		if d.Record().Features&(1<<feature) == 0 {
			t.Fatalf("feature %d bit not set", feature)
		}
	}
	if d.Record().Features != 0b101 {
		t.Fatalf("features = %#b, want 0b101", d.Record().Features)
	}

	// Both enables were persisted (plus the initial provisioning write).
	stored, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if stored.Features != 0b101 {
		t.Fatalf("persisted features = %#b", stored.Features)
	}
}

func TestEnableFeatureIdempotent(t *testing.T) {
	d, host, s, store := featureRig(t)
	pipes := []*transport.Pipe{host}

	payload, err := provision.EnableFeaturePayload(s, "123456", 1)
	if err != nil {
		t.Fatal(err)
	}
	sendCommand(t, host.LinkA(), payload)
	settle(t, pipes, d)
	expectReply(t, host.LinkA(), securechannel.CmdAck)
	saves := store.Saves()

	// Replaying the same package acknowledges without another write.
	sendCommand(t, host.LinkA(), payload)
	settle(t, pipes, d)
	expectReply(t, host.LinkA(), securechannel.CmdAck)
	if store.Saves() != saves {
		t.Fatal("replayed enable wrote storage again")
	}
}

func TestEnableFeatureRejections(t *testing.T) {
	d, host, s, _ := featureRig(t)
	pipes := []*transport.Pipe{host}

	wrongPin, err := provision.EnableFeaturePayload(s, "999999", 0)
	if err != nil {
		t.Fatal(err)
	}
	outOfRange, err := provision.EnableFeaturePayload(s, "123456", securechannel.NumFeatures)
	if err != nil {
		t.Fatal(err)
	}
	truncated, err := provision.EnableFeaturePayload(s, "123456", 0)
	if err != nil {
		t.Fatal(err)
	}
	truncated = truncated[:len(truncated)-1]

	cases := []struct {
		name    string
		payload []byte
	}{
		{"wrong PIN", wrongPin},
		{"feature out of range", outOfRange},
		{"truncated package", truncated},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sendCommand(t, host.LinkA(), c.payload)
			settle(t, pipes, d)
			expectReply(t, host.LinkA(), securechannel.CmdNack)
			if d.Record().Features != 0 {
				t.Fatalf("features = %#b after rejection", d.Record().Features)
			}
		})
	}
}

func TestEnableFeatureRejectedOnUnpairedFob(t *testing.T) {
	r := newPairRig(t)
	s, err := provision.GenerateSecrets(nil)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := provision.EnableFeaturePayload(s, "123456", 0)
	if err != nil {
		t.Fatal(err)
	}

	sendCommand(t, r.toolB(), payload)
	settle(t, r.pipes, r.fobA, r.fobB)
	expectReply(t, r.toolB(), securechannel.CmdNack)
}

func TestPressButtonGating(t *testing.T) {
	r := newPairRig(t)

	if err := r.fobB.PressButton(); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("unpaired press = %v, want ErrNotPaired", err)
	}

	// A press on the paired fob starts an exchange; a second press while
	// it is in flight is refused.
	if err := r.fobA.PressButton(); err != nil {
		t.Fatal(err)
	}
	if r.fobA.Pairing() != AwaitingCarEcdh {
		t.Fatalf("state = %s, want AwaitingCarEcdh", r.fobA.Pairing())
	}
	if err := r.fobA.PressButton(); !errors.Is(err, ErrPairingBusy) {
		t.Fatalf("second press = %v, want ErrPairingBusy", err)
	}

	// ResetPairing unjams a peer that never answers.
	r.fobA.ResetPairing()
	if r.fobA.Pairing() != PairingIdle {
		t.Fatalf("state = %s after reset", r.fobA.Pairing())
	}
	if err := r.fobA.PressButton(); err != nil {
		t.Fatalf("press after reset: %v", err)
	}
}

func TestPairedBuildSeedsRecord(t *testing.T) {
	r := newPairRig(t)

	rec := r.fobA.Record()
	if rec.Paired != PairedStatePaired {
		t.Fatal("paired build came up unpaired")
	}
	if rec.CarSecret != r.secret {
		t.Fatal("seeded secret mismatch")
	}
	if r.storeA.Saves() != 1 {
		t.Fatalf("seed saves = %d, want 1", r.storeA.Saves())
	}

	// A second device over the same storage loads the seeded record
	// without writing again.
	host := transport.NewPipeWithConfig(transport.PipeConfig{AutoProcess: false})
	board := transport.NewPipeWithConfig(transport.PipeConfig{AutoProcess: false})
	t.Cleanup(func() {
		host.Close()
		board.Close()
	})
	d2, err := New(Config{
		Role:      RolePaired,
		PINHash:   crypto.HashPIN("123456"),
		CarSecret: r.secret,
		HostLink:  host.LinkB(),
		BoardLink: board.LinkB(),
		Storage:   r.storeA,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !d2.Paired() || r.storeA.Saves() != 1 {
		t.Fatal("reload rewrote or lost the record")
	}
}

func TestPairedFobSurvivesGarbageOnBoardLink(t *testing.T) {
	r := newPairRig(t)

	// Stream garbage at the paired fob's board link. Invalid frames are
	// dropped silently and the fob keeps serving afterwards.
	if err := r.board.LinkB().Write([]byte{0x00, 0xFF, 0x01, 0x02}); err != nil {
		t.Fatal(err)
	}
	settle(t, r.pipes, r.fobA)

	sendCommand(t, r.toolA(), provision.PairedModePayload())
	settle(t, r.pipes, r.fobA, r.fobB)
	expectReply(t, r.toolA(), securechannel.CmdAck)
}
