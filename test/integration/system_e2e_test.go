// Package integration contains end-to-end tests that run fobs and a car
// against each other over in-memory pipes: the full lifecycle of a
// deployment, from pairing a blank fob through feature enablement to
// unlocking the car.
package integration

import (
	"bytes"
	"testing"
	"time"

	"github.com/fobsec/keyfob/pkg/car"
	"github.com/fobsec/keyfob/pkg/crypto"
	"github.com/fobsec/keyfob/pkg/fob"
	"github.com/fobsec/keyfob/pkg/provision"
	"github.com/fobsec/keyfob/pkg/securechannel"
	"github.com/fobsec/keyfob/pkg/transport"
	"github.com/fobsec/keyfob/pkg/wire"
)

const pin = "123456"

type poller interface {
	Poll() bool
}

// settle pumps pipe deliveries and device polls until the system quiesces.
func settle(t *testing.T, pipes []*transport.Pipe, devs ...poller) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	idle := 0
	for idle < 50 {
		if time.Now().After(deadline) {
			t.Fatal("system did not settle")
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

func newPipe(t *testing.T) *transport.Pipe {
	t.Helper()
	p := transport.NewPipeWithConfig(transport.PipeConfig{AutoProcess: false})
	t.Cleanup(func() { p.Close() })
	return p
}

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

func expectReply(t *testing.T, l transport.Link, want securechannel.Command) {
	t.Helper()
	var f wire.Framer
	for {
		b, ok := l.ReadByte()
		if !ok {
			t.Fatalf("no %s reply on the tool link", want)
		}
		frame, err := f.Feed(b)
		if err != nil {
			t.Fatalf("tool stream corrupt: %v", err)
		}
		if frame != nil {
			if got := securechannel.Command(frame.Command()); got != want {
				t.Fatalf("reply = %s, want %s", got, want)
			}
			return
		}
	}
}

func drain(l transport.Link) []byte {
	var out []byte
	for {
		b, ok := l.ReadByte()
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

// TestDeploymentLifecycle walks a deployment end to end: a blank fob is
// paired against the factory fob, a feature is enabled on it, and it then
// unlocks the car. Moving the fob from the pairing bench to the car is
// modeled as a restart over the same persistent storage.
func TestDeploymentLifecycle(t *testing.T) {
	secrets, err := provision.GenerateSecrets(nil)
	if err != nil {
		t.Fatal(err)
	}

	// Stage 1: pair the blank fob against the factory-paired fob.
	hostA, hostB, bench := newPipe(t), newPipe(t), newPipe(t)

	fobA, err := fob.New(fob.Config{
		Role:       fob.RolePaired,
		PINHash:    crypto.HashPIN(pin),
		CarSecret:  secrets.CarSecret,
		FeatureKey: secrets.FeatureKey,
		HostLink:   hostA.LinkB(),
		BoardLink:  bench.LinkA(),
		Storage:    fob.NewMemoryStorage(),
	})
	if err != nil {
		t.Fatal(err)
	}

	storeB := fob.NewMemoryStorage()
	fobB, err := fob.New(fob.Config{
		Role:       fob.RoleUnpaired,
		FeatureKey: secrets.FeatureKey,
		HostLink:   hostB.LinkB(),
		BoardLink:  bench.LinkB(),
		Storage:    storeB,
	})
	if err != nil {
		t.Fatal(err)
	}

	benchPipes := []*transport.Pipe{hostA, hostB, bench}
	sendCommand(t, hostB.LinkA(), provision.PinTransferPayload(pin))
	settle(t, benchPipes, fobA, fobB)
	expectReply(t, hostB.LinkA(), securechannel.CmdAck)
	if !fobB.Paired() {
		t.Fatal("fob did not pair")
	}

	// Stage 2: enable feature 1 on the freshly paired fob.
	enable, err := provision.EnableFeaturePayload(secrets, pin, 1)
	if err != nil {
		t.Fatal(err)
	}
	sendCommand(t, hostB.LinkA(), enable)
	settle(t, benchPipes, fobA, fobB)
	expectReply(t, hostB.LinkA(), securechannel.CmdAck)
	if fobB.Record().Features != 0b010 {
		t.Fatalf("features = %#b, want 0b010", fobB.Record().Features)
	}

	// Stage 3: move the fob to the car. The restarted device loads the
	// paired record from the same storage.
	hostB2, carLink, carHost := newPipe(t), newPipe(t), newPipe(t)

	fobB2, err := fob.New(fob.Config{
		Role:       fob.RoleUnpaired,
		FeatureKey: secrets.FeatureKey,
		HostLink:   hostB2.LinkB(),
		BoardLink:  carLink.LinkA(),
		Storage:    storeB,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !fobB2.Paired() {
		t.Fatal("credentials did not survive the restart")
	}

	store := car.NewMemoryPayloadStore(
		[]byte("welcome"),
		[]byte("heated seats"),
		[]byte("remote start"),
		[]byte("autopilot"),
	)
	carDev, err := car.New(car.Config{
		Secret:    secrets.CarSecret,
		Store:     store,
		BoardLink: carLink.LinkB(),
		HostOut:   carHost.LinkB(),
	})
	if err != nil {
		t.Fatal(err)
	}

	carPipes := []*transport.Pipe{hostB2, carLink, carHost}
	if err := fobB2.PressButton(); err != nil {
		t.Fatal(err)
	}
	settle(t, carPipes, fobB2, carDev)

	got := drain(carHost.LinkA())
	want := []byte("welcomeremote start")
	if !bytes.Equal(got, want) {
		t.Fatalf("car released %q, want %q", got, want)
	}
	if carDev.Secured() {
		t.Fatal("car session not one-shot")
	}

	// A second press unlocks again over a fresh handshake.
	if err := fobB2.PressButton(); err != nil {
		t.Fatal(err)
	}
	settle(t, carPipes, fobB2, carDev)
	if got := drain(carHost.LinkA()); !bytes.Equal(got, want) {
		t.Fatalf("second unlock released %q", got)
	}
}

// TestStolenFobCannotUnlockOtherCar pairs a fob into one deployment and
// presents it to a car from a different deployment.
func TestStolenFobCannotUnlockOtherCar(t *testing.T) {
	ours, err := provision.GenerateSecrets(nil)
	if err != nil {
		t.Fatal(err)
	}
	theirs, err := provision.GenerateSecrets(nil)
	if err != nil {
		t.Fatal(err)
	}

	hostF, link, carHost := newPipe(t), newPipe(t), newPipe(t)

	fobDev, err := fob.New(fob.Config{
		Role:      fob.RolePaired,
		PINHash:   crypto.HashPIN(pin),
		CarSecret: ours.CarSecret,
		HostLink:  hostF.LinkB(),
		BoardLink: link.LinkA(),
		Storage:   fob.NewMemoryStorage(),
	})
	if err != nil {
		t.Fatal(err)
	}

	store := car.NewMemoryPayloadStore([]byte("open"))
	carDev, err := car.New(car.Config{
		Secret:    theirs.CarSecret,
		Store:     store,
		BoardLink: link.LinkB(),
		HostOut:   carHost.LinkB(),
	})
	if err != nil {
		t.Fatal(err)
	}

	pipes := []*transport.Pipe{hostF, link, carHost}
	if err := fobDev.PressButton(); err != nil {
		t.Fatal(err)
	}
	settle(t, pipes, fobDev, carDev)

	if got := drain(carHost.LinkA()); len(got) != 0 {
		t.Fatalf("foreign car released %q", got)
	}
	if store.Reads() != 0 {
		t.Fatalf("store reads = %d, want 0", store.Reads())
	}
}
