package core

import "hash/crc32"

// crcTable pins the CRC-32 variant spec.md §9 leaves to the implementer:
// the reflected IEEE 802.3 polynomial (0xEDB88320), init 0xFFFFFFFF, final
// XOR 0xFFFFFFFF — the same algorithm file formats like gzip and PNG use,
// and the same one the teacher's hand-rolled table implements byte for
// byte. hash/crc32 already provides it; there is no third-party CRC-32
// library anywhere in the retrieval pack to reach for instead, and
// duplicating stdlib's table would only add a second place for the
// polynomial to drift.
var crcTable = crc32.MakeTable(crc32.IEEE)

// CRC32 computes the CRC-32 (IEEE) checksum of data in one call.
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// CRCContext lets callers feed a frame's bytes incrementally before reading
// the final checksum, matching the "reset-per-frame discipline" spec.md
// §4.3 asks for. A fresh CRCContext must be created per frame.
type CRCContext struct {
	h uint32
}

// NewCRCContext starts a fresh incremental CRC-32 computation.
func NewCRCContext() *CRCContext {
	return &CRCContext{h: crc32.Checksum(nil, crcTable)}
}

// Update folds data into the running checksum.
func (c *CRCContext) Update(data []byte) {
	c.h = crc32.Update(c.h, crcTable, data)
}

// Sum returns the checksum of everything fed to Update so far.
func (c *CRCContext) Sum() uint32 {
	return c.h
}
