// Package transport provides the byte-stream links the protocol runs over:
// real serial ports and an in-memory pipe for deterministic tests.
//
// A Link is a single half-duplex byte channel. Reads are non-blocking (the
// device polling loop must never stall on one link while the other has
// traffic); writes block until the transport has accepted the bytes.
package transport

// Link is one end of a physical byte channel.
type Link interface {
	// ReadByte returns the next received byte, or ok == false when no byte
	// is available. It never blocks.
	ReadByte() (b byte, ok bool)

	// Write sends bytes out the link. It returns once the transport has
	// buffered or transmitted them; a frame is not considered processed
	// until the write triggered by it has completed.
	Write(p []byte) error

	// Close releases the underlying transport.
	Close() error
}
