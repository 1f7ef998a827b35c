package wire

import "github.com/sigurn/crc16"

// crcTable is the shared CRC-16/CCITT-FALSE table. Sender and receiver must
// use identical parameters; the generator polynomial and initial value are
// fixed by this table for every device built from the same firmware image.
var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Checksum computes the 16-bit integrity check over a frame payload.
// It is deterministic and order-sensitive.
func Checksum(payload []byte) uint16 {
	return crc16.Checksum(payload, crcTable)
}
