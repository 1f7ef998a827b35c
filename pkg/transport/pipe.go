package transport

import (
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic delivery in a background goroutine.
	// Default: true.
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers queued
	// bytes. Default: 1ms.
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: time.Millisecond,
	}
}

// Pipe provides a bidirectional in-memory serial channel between two link
// endpoints. It wraps pion's test.Bridge, which queues writes until they are
// delivered by Tick, so tests without real I/O stay deterministic and
// flake-free. By default a background goroutine delivers continuously.
type Pipe struct {
	bridge *test.Bridge
	a, b   *pipeEnd

	mu          sync.Mutex
	autoProcess bool
	interval    time.Duration
	closed      bool
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewPipe creates a pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:      test.NewBridge(),
		autoProcess: config.AutoProcess,
		interval:    config.ProcessInterval,
		stopCh:      make(chan struct{}),
	}
	if p.interval == 0 {
		p.interval = time.Millisecond
	}

	p.a = newPipeEnd(p.bridge.GetConn0())
	p.b = newPipeEnd(p.bridge.GetConn1())

	if p.autoProcess {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			ticker := time.NewTicker(p.interval)
			defer ticker.Stop()
			for {
				select {
				case <-p.stopCh:
					return
				case <-ticker.C:
					p.bridge.Tick()
				}
			}
		}()
	}

	return p
}

// LinkA returns the first endpoint.
func (p *Pipe) LinkA() Link { return p.a }

// LinkB returns the second endpoint.
func (p *Pipe) LinkB() Link { return p.b }

// Tick delivers one queued message in each direction.
func (p *Pipe) Tick() int { return p.bridge.Tick() }

// Process delivers all queued messages.
func (p *Pipe) Process() {
	for p.bridge.Tick() > 0 {
	}
}

// Close tears down both endpoints and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()

	err := p.a.Close()
	if err2 := p.b.Close(); err == nil {
		err = err2
	}
	return err
}

// pipeEnd adapts one bridge conn to the non-blocking Link contract. The
// bridge conn's Read blocks until a delivery, so a drain goroutine moves
// received bytes into a buffer ReadByte can poll.
type pipeEnd struct {
	conn net.Conn

	mu     sync.Mutex
	buf    []byte
	closed bool
	done   chan struct{}
}

func newPipeEnd(conn net.Conn) *pipeEnd {
	e := &pipeEnd{
		conn: conn,
		done: make(chan struct{}),
	}
	go e.drain()
	return e
}

func (e *pipeEnd) drain() {
	defer close(e.done)
	tmp := make([]byte, 2048)
	for {
		n, err := e.conn.Read(tmp)
		if n > 0 {
			e.mu.Lock()
			e.buf = append(e.buf, tmp[:n]...)
			e.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// ReadByte pops one received byte without blocking.
func (e *pipeEnd) ReadByte() (byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.buf) == 0 {
		return 0, false
	}
	b := e.buf[0]
	e.buf = e.buf[1:]
	return b, true
}

// Write queues bytes for delivery to the peer endpoint.
func (e *pipeEnd) Write(p []byte) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	_, err := e.conn.Write(p)
	return err
}

// Close shuts down the endpoint and its drain goroutine.
func (e *pipeEnd) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	err := e.conn.Close()
	<-e.done
	return err
}

var _ Link = (*pipeEnd)(nil)
