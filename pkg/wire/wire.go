// Package wire implements the byte-level framing used on every fob link.
//
// A frame on the wire is:
//
//	byte 0:       total length N (payload + 2-byte checksum), 3 <= N < MaxPacketSize
//	bytes 1..N-2: payload; payload[0] is the command tag
//	bytes N-1,N:  16-bit checksum over the payload, big-endian
//
// The same layout is used on the host link and the board link, encrypted or
// not: encryption is applied to the payload before framing, so the framer
// never needs to know whether a link is secured.
package wire

// Wire format constants.
const (
	// MaxPacketSize bounds the declared frame length. The length field is a
	// single byte, so the declared length must be strictly below this.
	MaxPacketSize = 255

	// MinFrameLength is the smallest acceptable declared length: one command
	// byte plus the two checksum bytes.
	MinFrameLength = 3

	// ChecksumSize is the size of the trailing checksum in bytes.
	ChecksumSize = 2

	// MaxPayloadSize is the largest payload a frame can carry.
	MaxPayloadSize = MaxPacketSize - 1 - ChecksumSize
)
