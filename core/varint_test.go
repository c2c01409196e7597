package core

import (
	"errors"
	"testing"

	"github.com/nickolajgrishuk/vstp/internal/vstperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<63 - 1, ^uint64(0)}
	for _, v := range values {
		buf := make([]byte, MaxVarintLen)
		n := PutVarint(buf, v)

		got, consumed, err := DecodeVarint(buf[:n])
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, n, consumed)
	}
}

func TestAppendVarintAccumulates(t *testing.T) {
	var buf []byte
	buf = AppendVarint(buf, 1)
	buf = AppendVarint(buf, 300)

	v1, n1, err := DecodeVarint(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v1)

	v2, n2, err := DecodeVarint(buf[n1:])
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v2)
	assert.Equal(t, len(buf), n1+n2)
}

func TestDecodeVarintTruncatedInputNeedsMore(t *testing.T) {
	buf := AppendVarint(nil, 1<<20) // multi-byte encoding
	_, _, err := DecodeVarint(buf[:1])
	require.Error(t, err)
	assert.True(t, errors.Is(err, vstperr.ErrNeedMore))
}

func TestDecodeVarintEmptyInputNeedsMore(t *testing.T) {
	_, n, err := DecodeVarint(nil)
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, vstperr.ErrNeedMore))
}

func TestDecodeVarintOverlongSequenceRejected(t *testing.T) {
	// 11 bytes, each with the continuation bit set: more than the 10 bytes
	// a uint64 can ever require, so binary.Uvarint reports overflow.
	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0x80
	}
	_, _, err := DecodeVarint(buf)
	require.Error(t, err)
	assert.True(t, vstperr.IsKind(err, vstperr.KindProtocol))
}

func TestDecodeVarintShiftPast63BitsRejected(t *testing.T) {
	// Nine continuation bytes of 0x80 followed by a tenth, final byte whose
	// data bits would shift past bit 63 of the accumulated value.
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x02}
	_, _, err := DecodeVarint(buf)
	require.Error(t, err)
	assert.True(t, vstperr.IsKind(err, vstperr.KindProtocol))
}
