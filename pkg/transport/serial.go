package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialLink is a Link over a real UART device.
type SerialLink struct {
	port serial.Port
	one  [1]byte
}

// OpenSerial opens a serial device as a fob link. 8 data bits, no parity,
// one stop bit; a short read timeout keeps ReadByte effectively
// non-blocking for the polling loop.
func OpenSerial(device string, baud int) (*SerialLink, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", device, err)
	}
	return &SerialLink{port: port}, nil
}

// ReadByte polls the port for one byte.
func (s *SerialLink) ReadByte() (byte, bool) {
	n, err := s.port.Read(s.one[:])
	if err != nil || n == 0 {
		return 0, false
	}
	return s.one[0], true
}

// Write transmits bytes, blocking until the port has accepted all of them.
func (s *SerialLink) Write(p []byte) error {
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Close closes the serial port.
func (s *SerialLink) Close() error {
	return s.port.Close()
}

var _ Link = (*SerialLink)(nil)
