package transport

import (
	"testing"
	"time"
)

// drainWithin polls a link until n bytes arrive or the deadline passes.
func drainWithin(t *testing.T, l Link, n int, timeout time.Duration) []byte {
	t.Helper()
	var got []byte
	deadline := time.Now().Add(timeout)
	for len(got) < n && time.Now().Before(deadline) {
		b, ok := l.ReadByte()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		got = append(got, b)
	}
	if len(got) != n {
		t.Fatalf("got %d bytes, want %d", len(got), n)
	}
	return got
}

func TestPipeManualProcess(t *testing.T) {
	p := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer p.Close()

	msg := []byte{1, 2, 3, 4}
	if err := p.LinkA().Write(msg); err != nil {
		t.Fatal(err)
	}

	// Nothing is delivered until Process runs.
	if _, ok := p.LinkB().ReadByte(); ok {
		t.Fatal("byte delivered before Process")
	}

	p.Process()
	got := drainWithin(t, p.LinkB(), len(msg), time.Second)
	for i, b := range got {
		if b != msg[i] {
			t.Fatalf("byte %d = %d, want %d", i, b, msg[i])
		}
	}
}

func TestPipeBidirectional(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	if err := p.LinkA().Write([]byte{0xaa}); err != nil {
		t.Fatal(err)
	}
	if err := p.LinkB().Write([]byte{0xbb}); err != nil {
		t.Fatal(err)
	}

	if got := drainWithin(t, p.LinkB(), 1, time.Second); got[0] != 0xaa {
		t.Fatalf("B received %#02x", got[0])
	}
	if got := drainWithin(t, p.LinkA(), 1, time.Second); got[0] != 0xbb {
		t.Fatalf("A received %#02x", got[0])
	}
}

func TestPipeOrderingAcrossWrites(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	for i := 0; i < 10; i++ {
		if err := p.LinkA().Write([]byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	got := drainWithin(t, p.LinkB(), 10, time.Second)
	for i, b := range got {
		if b != byte(i) {
			t.Fatalf("byte %d = %d, out of order", i, b)
		}
	}
}

func TestPipeReadByteEmptyDoesNotBlock(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.LinkA().ReadByte()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReadByte blocked on an empty link")
	}
}

func TestPipeCloseIdempotent(t *testing.T) {
	p := NewPipe()
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.LinkA().Write([]byte{1}); err == nil {
		t.Fatal("write succeeded on a closed pipe")
	}
}
