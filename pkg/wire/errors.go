package wire

import "errors"

// Wire layer errors.
var (
	// ErrInvalidLength is returned when a declared frame length is outside
	// [MinFrameLength, MaxPacketSize). The framer stays in Reset.
	ErrInvalidLength = errors.New("wire: invalid declared frame length")

	// ErrBufferOverflow is returned if a frame would exceed the receive
	// buffer. The declared length is validated up front, so this is a
	// defensive bound; the framer resets when it fires.
	ErrBufferOverflow = errors.New("wire: receive buffer overflow")

	// ErrChecksumMismatch is returned when a completed frame fails its
	// integrity check. The frame is discarded and no response is sent.
	ErrChecksumMismatch = errors.New("wire: checksum mismatch")

	// ErrPayloadTooLong is returned by Encode for payloads that cannot fit
	// in a single frame.
	ErrPayloadTooLong = errors.New("wire: payload exceeds maximum frame size")

	// ErrEmptyPayload is returned by Encode for empty payloads; every frame
	// carries at least a command byte.
	ErrEmptyPayload = errors.New("wire: empty payload")
)
