package wire

// Frame is a complete, checksum-verified unit received from a link.
// It is constructed byte-by-byte by a Framer and consumed exactly once by
// the protocol layer.
type Frame struct {
	// Payload is the frame body; Payload[0] is the command tag.
	Payload []byte

	// Checksum is the 16-bit check received on the wire. It has already
	// been verified against the payload when the frame is handed out.
	Checksum uint16
}

// Command returns the command tag byte of the frame.
func (f *Frame) Command() byte {
	return f.Payload[0]
}

// Encode builds the wire representation of a payload:
// length byte, payload, big-endian checksum.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLong
	}

	n := len(payload) + ChecksumSize
	buf := make([]byte, 0, 1+n)
	buf = append(buf, byte(n))
	buf = append(buf, payload...)

	crc := Checksum(payload)
	buf = append(buf, byte(crc>>8), byte(crc))

	return buf, nil
}
