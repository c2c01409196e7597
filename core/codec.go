package core

import (
	"encoding/binary"

	"github.com/nickolajgrishuk/vstp/internal/vstperr"
)

// Wire-format constants (spec.md §6).
const (
	Version byte = 0x01

	// DefaultMaxFrameSize is the TCP stream framer's default cap on a
	// single encoded frame (spec.md §4.5).
	DefaultMaxFrameSize = 8 * 1024 * 1024

	// fixedHeaderSize is the size, in bytes, of everything before the
	// headers block: MAGIC(2) + VERSION(1) + TYPE(1) + FLAGS(1) +
	// HDR_LEN(2) + PAY_LEN(4).
	fixedHeaderSize = 11
	// crcSize is the trailing CRC-32 field width.
	crcSize = 4
)

// Magic is the two-byte frame signature (spec.md §6).
var Magic = [2]byte{0x56, 0x54}

// maxHeaderFieldLen bounds a header key or value to 255 bytes (spec.md §3).
const maxHeaderFieldLen = 255

// Encode serialises f to its wire representation (spec.md §4.2). It fails
// if any header key or value exceeds 255 bytes, or if the header/payload
// totals would overflow their wire-format width.
func Encode(f *Frame) ([]byte, error) {
	headersBuf, err := encodeHeaders(f.Headers)
	if err != nil {
		return nil, err
	}
	if len(headersBuf) > 0xFFFF {
		return nil, vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrHeaderTooLong, "headers block %d bytes exceeds HDR_LEN width", len(headersBuf))
	}
	if uint64(len(f.Payload)) > 0xFFFFFFFF {
		return nil, vstperr.Wrap(vstperr.KindSizeLimit, vstperr.ErrFrameTooLarge, "payload %d bytes exceeds PAY_LEN width", len(f.Payload))
	}

	total := fixedHeaderSize + len(headersBuf) + len(f.Payload) + crcSize
	buf := make([]byte, total)

	buf[0], buf[1] = Magic[0], Magic[1]
	buf[2] = f.Version
	buf[3] = byte(f.Type)
	buf[4] = f.Flags
	binary.LittleEndian.PutUint16(buf[5:7], uint16(len(headersBuf)))
	binary.BigEndian.PutUint32(buf[7:11], uint32(len(f.Payload)))
	copy(buf[fixedHeaderSize:], headersBuf)
	copy(buf[fixedHeaderSize+len(headersBuf):], f.Payload)

	crc := CRC32(buf[:total-crcSize])
	binary.BigEndian.PutUint32(buf[total-crcSize:], crc)

	return buf, nil
}

func encodeHeaders(headers []Header) ([]byte, error) {
	size := 0
	for _, h := range headers {
		if len(h.Key) > maxHeaderFieldLen || len(h.Value) > maxHeaderFieldLen {
			return nil, vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrHeaderTooLong, "key %q", h.Key)
		}
		size += 2 + len(h.Key) + len(h.Value)
	}
	buf := make([]byte, 0, size)
	for _, h := range headers {
		buf = append(buf, byte(len(h.Key)), byte(len(h.Value)))
		buf = append(buf, h.Key...)
		buf = append(buf, h.Value...)
	}
	return buf, nil
}

// Decode performs one step of incremental decoding over a growable buffer
// (spec.md §4.2). It returns the decoded frame and the number of bytes
// consumed from buf's front. If buf does not yet hold a complete frame, it
// returns a KindProtocol/ErrNeedMore error and n == 0, leaving buf
// untouched — callers must not advance their buffer in that case.
// maxFrameSize bounds the total encoded frame size (header + headers +
// payload + CRC); pass 0 to use DefaultMaxFrameSize.
func Decode(buf []byte, maxFrameSize uint32) (*Frame, int, error) {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	if len(buf) < fixedHeaderSize {
		return nil, 0, vstperr.New(vstperr.KindProtocol, vstperr.ErrNeedMore)
	}
	if buf[0] != Magic[0] || buf[1] != Magic[1] {
		return nil, 0, vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrBadMagic, "got %02x%02x", buf[0], buf[1])
	}
	version := buf[2]
	if version != Version {
		return nil, 0, vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrUnsupportedVersion, "got 0x%02x", version)
	}

	typ := Type(buf[3])
	flags := buf[4]
	hdrLen := binary.LittleEndian.Uint16(buf[5:7])
	payLen := binary.BigEndian.Uint32(buf[7:11])

	total := uint64(fixedHeaderSize) + uint64(hdrLen) + uint64(payLen) + uint64(crcSize)
	if total > uint64(maxFrameSize) {
		return nil, 0, vstperr.Wrap(vstperr.KindSizeLimit, vstperr.ErrFrameTooLarge, "frame of %d bytes exceeds max %d", total, maxFrameSize)
	}
	if uint64(len(buf)) < total {
		return nil, 0, vstperr.New(vstperr.KindProtocol, vstperr.ErrNeedMore)
	}

	frameBuf := buf[:total]

	// Fold the fixed header+headers block and the payload in separately
	// rather than slicing one contiguous prefix: once hdrLen is known the
	// header portion's checksum can be folded in immediately, with the
	// payload folded in as a second update, matching the incremental shape
	// a streaming reader would use as the two sections arrive separately.
	expected := binary.BigEndian.Uint32(frameBuf[total-crcSize:])
	ctx := NewCRCContext()
	ctx.Update(frameBuf[:fixedHeaderSize+int(hdrLen)])
	ctx.Update(frameBuf[fixedHeaderSize+int(hdrLen) : total-crcSize])
	computed := ctx.Sum()
	if expected != computed {
		return nil, 0, vstperr.Wrap(vstperr.KindIntegrity, vstperr.ErrCRCMismatch, "expected 0x%08x, computed 0x%08x", expected, computed)
	}

	if !typ.Valid() {
		return nil, 0, vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrUnknownType, "type 0x%02x", byte(typ))
	}

	headers, err := decodeHeaders(frameBuf[fixedHeaderSize:fixedHeaderSize+int(hdrLen)], int(hdrLen))
	if err != nil {
		return nil, 0, err
	}

	payload := make([]byte, payLen)
	copy(payload, frameBuf[fixedHeaderSize+int(hdrLen):fixedHeaderSize+int(hdrLen)+int(payLen)])

	f := &Frame{
		Version: version,
		Type:    typ,
		Flags:   flags,
		Headers: headers,
		Payload: payload,
	}
	return f, int(total), nil
}

func decodeHeaders(block []byte, hdrLen int) ([]Header, error) {
	var headers []Header
	off := 0
	for off < hdrLen {
		if off+2 > hdrLen {
			return nil, vstperr.New(vstperr.KindProtocol, vstperr.ErrHeaderOverrun)
		}
		keyLen := int(block[off])
		valLen := int(block[off+1])
		off += 2
		if off+keyLen+valLen > hdrLen {
			return nil, vstperr.New(vstperr.KindProtocol, vstperr.ErrHeaderOverrun)
		}
		key := make([]byte, keyLen)
		copy(key, block[off:off+keyLen])
		off += keyLen
		val := make([]byte, valLen)
		copy(val, block[off:off+valLen])
		off += valLen
		headers = append(headers, Header{Key: key, Value: val})
	}
	return headers, nil
}
