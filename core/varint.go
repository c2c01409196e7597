package core

import (
	"encoding/binary"

	"github.com/nickolajgrishuk/vstp/internal/vstperr"
)

// Varint encoding (spec.md §4.4): unsigned 64-bit values in 1-10 bytes,
// seven data bits per byte, continuation bit in the MSB, little-endian
// byte order. The core frame format does not use this codec itself — it is
// provided for extensions and test utilities. encoding/binary.Uvarint /
// PutUvarint already implement exactly this scheme; no third-party varint
// library appears anywhere in the retrieval pack, so there is nothing to
// wire in instead of the stdlib call.

// PutVarint encodes v into buf (which must be at least MaxVarintLen bytes
// long) and returns the number of bytes written.
func PutVarint(buf []byte, v uint64) int {
	return binary.PutUvarint(buf, v)
}

// AppendVarint encodes v and appends it to buf, returning the extended
// slice.
func AppendVarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// MaxVarintLen is the maximum number of bytes a varint-encoded uint64 can
// occupy under this scheme.
const MaxVarintLen = binary.MaxVarintLen64

// DecodeVarint decodes a varint from the front of buf. It fails on
// truncation, more than 10 bytes consumed, or a shift past 63 bits —
// exactly the failure modes binary.Uvarint reports (n == 0 for truncation,
// a negative n for either overflow).
func DecodeVarint(buf []byte) (value uint64, n int, err error) {
	v, consumed := binary.Uvarint(buf)
	switch {
	case consumed == 0:
		return 0, 0, vstperr.New(vstperr.KindProtocol, vstperr.ErrNeedMore)
	case consumed < 0:
		// binary.Uvarint reports overflow (more than 10 bytes, or shift
		// past 63 bits) by returning a non-positive n.
		return 0, 0, vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrHeaderOverrun, "varint overflow")
	default:
		return v, consumed, nil
	}
}
