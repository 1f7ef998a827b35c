package fob

import "github.com/fobsec/keyfob/pkg/crypto"

// RecordSize is the encoded size of a credential record:
// paired marker (1) + PIN hash (16) + car secret (16) + feature bits (1).
const RecordSize = 1 + crypto.PINHashSize + 16 + 1

// CredentialRecord is the durable per-fob state. It is mutated only by a
// successful pairing exchange or a successful feature enable, and every
// mutation is persisted atomically before any acknowledgement goes out.
type CredentialRecord struct {
	Paired    PairedState
	PINHash   [crypto.PINHashSize]byte
	CarSecret [16]byte
	Features  uint8
}

// Encode serializes the record to its fixed storage layout.
func (r *CredentialRecord) Encode() []byte {
	buf := make([]byte, 0, RecordSize)
	buf = append(buf, byte(r.Paired))
	buf = append(buf, r.PINHash[:]...)
	buf = append(buf, r.CarSecret[:]...)
	buf = append(buf, r.Features)
	return buf
}

// DecodeRecord parses a stored record.
func DecodeRecord(data []byte) (*CredentialRecord, error) {
	if len(data) != RecordSize {
		return nil, ErrBadRecord
	}
	r := &CredentialRecord{
		Paired:   PairedState(data[0]),
		Features: data[RecordSize-1],
	}
	copy(r.PINHash[:], data[1:1+crypto.PINHashSize])
	copy(r.CarSecret[:], data[1+crypto.PINHashSize:RecordSize-1])
	return r, nil
}
