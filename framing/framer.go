// Package framing implements the stream framer (spec.md §4.5, C5): it
// adapts the wire codec to a byte stream, pulling whole frames out of a
// growing receive buffer and queuing encoded frames for a transport to
// flush on write.
//
// Grounded on the teacher's transport/tcp.go TCPConnection, whose
// state-machine recvBuffer/recvBytesRead pair plays the same role; here
// that state machine collapses into a single growable buffer plus
// core.Decode's own incremental contract, since core.Decode already knows
// how to report "need more" without consuming bytes.
package framing

import (
	"errors"

	"github.com/nickolajgrishuk/vstp/core"
	"github.com/nickolajgrishuk/vstp/internal/vstperr"
)

// Framer wraps a receive buffer and a send buffer for a single stream
// connection. It is not safe for concurrent use from multiple goroutines;
// the owning transport serializes access (spec.md §5's "connection object
// owned exclusively by its dedicated task").
type Framer struct {
	maxFrameSize uint32
	recvBuf      []byte
	sendBuf      []byte
}

// New constructs a Framer with the given frame-size cap. A cap of 0 uses
// core.DefaultMaxFrameSize.
func New(maxFrameSize uint32) *Framer {
	if maxFrameSize == 0 {
		maxFrameSize = core.DefaultMaxFrameSize
	}
	return &Framer{maxFrameSize: maxFrameSize}
}

// Feed appends data to the receive buffer and decodes as many complete
// frames as are now available. Any residual bytes (a partial frame) remain
// buffered for the next call. A decode error other than "need more"
// indicates the stream is no longer parseable; the caller must terminate
// the connection (spec.md §4.6).
func (fr *Framer) Feed(data []byte) ([]*core.Frame, error) {
	frames, _, err := fr.FeedSizes(data)
	return frames, err
}

// FeedSizes behaves like Feed but also returns each frame's exact on-wire
// byte size, letting callers (e.g. the observer hook) report it without
// re-encoding the frame.
func (fr *Framer) FeedSizes(data []byte) ([]*core.Frame, []int, error) {
	fr.recvBuf = append(fr.recvBuf, data...)

	var frames []*core.Frame
	var sizes []int
	for {
		f, n, err := core.Decode(fr.recvBuf, fr.maxFrameSize)
		if err != nil {
			if errors.Is(err, vstperr.ErrNeedMore) {
				return frames, sizes, nil
			}
			return frames, sizes, err
		}
		frames = append(frames, f)
		sizes = append(sizes, n)
		fr.recvBuf = fr.recvBuf[n:]
	}
}

// Write encodes f and appends it to the send buffer for the transport to
// flush.
func (fr *Framer) Write(f *core.Frame) error {
	data, err := core.Encode(f)
	if err != nil {
		return err
	}
	fr.sendBuf = append(fr.sendBuf, data...)
	return nil
}

// PendingWrite returns the bytes queued by Write and clears the send
// buffer. The transport is expected to write the result to the socket.
func (fr *Framer) PendingWrite() []byte {
	if len(fr.sendBuf) == 0 {
		return nil
	}
	out := fr.sendBuf
	fr.sendBuf = nil
	return out
}

// Buffered reports how many unconsumed bytes remain in the receive buffer
// (a partial frame awaiting more data, or zero).
func (fr *Framer) Buffered() int {
	return len(fr.recvBuf)
}
