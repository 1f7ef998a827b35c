package wire

// State identifies the framer's position within a frame.
type State int

const (
	// StateReset means the next byte is interpreted as a frame length.
	StateReset State = iota

	// StateData means payload bytes are being collected.
	StateData

	// StateChecksum means the trailing 16-bit checksum is being assembled.
	StateChecksum
)

// String returns a human-readable name for the framer state.
func (s State) String() string {
	switch s {
	case StateReset:
		return "Reset"
	case StateData:
		return "Data"
	case StateChecksum:
		return "Checksum"
	default:
		return "Unknown"
	}
}

// Framer reassembles frames from a serial byte stream, one byte per call.
// It is pure with respect to I/O: it only mutates its own fields and hands
// a completed frame back to the caller. It never blocks and never recurses.
//
// The zero value is a ready-to-use framer in StateReset.
type Framer struct {
	state State

	buf       [MaxPayloadSize]byte
	index     int    // write index into buf
	remaining int    // bytes still expected after the length byte
	acc       uint16 // running checksum assembly

	dropped uint64 // frames discarded for framing or integrity errors
}

// State returns the current framer state.
func (f *Framer) State() State {
	return f.state
}

// Dropped returns the number of frames discarded since construction.
func (f *Framer) Dropped() uint64 {
	return f.dropped
}

// Reset unconditionally returns the framer to StateReset and discards any
// partially assembled frame.
func (f *Framer) Reset() {
	f.state = StateReset
	f.index = 0
	f.remaining = 0
	f.acc = 0
}

// Feed consumes exactly one byte. It returns a non-nil Frame when the byte
// completes a frame whose checksum verifies. Framing and integrity errors
// are reported to the caller but must produce no bytes on the wire: the
// peer's boundary state is unknown, so the layer above stays silent.
func (f *Framer) Feed(b byte) (*Frame, error) {
	switch f.state {
	case StateReset:
		n := int(b)
		if n < MinFrameLength || n >= MaxPacketSize {
			// Stay in Reset; the byte is discarded.
			f.dropped++
			return nil, ErrInvalidLength
		}
		f.index = 0
		f.acc = 0
		f.remaining = n
		f.state = StateData
		return nil, nil

	case StateData:
		if f.index >= len(f.buf) {
			f.Reset()
			f.dropped++
			return nil, ErrBufferOverflow
		}
		f.buf[f.index] = b
		f.index++
		f.remaining--
		if f.remaining == ChecksumSize {
			f.state = StateChecksum
		}
		return nil, nil

	case StateChecksum:
		f.acc = f.acc<<8 | uint16(b)
		f.remaining--
		if f.remaining > 0 {
			return nil, nil
		}
		f.state = StateReset

		payload := make([]byte, f.index)
		copy(payload, f.buf[:f.index])
		if Checksum(payload) != f.acc {
			f.dropped++
			return nil, ErrChecksumMismatch
		}
		return &Frame{Payload: payload, Checksum: f.acc}, nil

	default:
		f.Reset()
		return nil, nil
	}
}
