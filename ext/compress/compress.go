// Package compress is an example external collaborator attaching at the
// Observer hook (spec.md §9, C9): it does not sit in the core encode/decode
// or send/recv path, it only observes frames the core delivers and can
// veto them. spec.md's Non-goals explicitly exclude "built-in compression"
// from the core protocol; this package demonstrates the documented way a
// deployment adds it back, as an opt-in collaborator rather than a wire
// feature.
//
// Adapted from the teacher's optimize/compress.go zlib deflate helpers.
package compress

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"

	"github.com/nickolajgrishuk/vstp/core"
	"github.com/nickolajgrishuk/vstp/observer"
)

const (
	// Level is the zlib compression level used by Compress.
	Level = 6
	// Threshold is the payload size, in bytes, at or above which
	// ShouldCompress recommends compressing.
	Threshold = 256
	// maxDecompressedSize bounds Decompress's output to guard against a
	// decompression bomb disguised as a small frame payload.
	maxDecompressedSize = 10 * 1024 * 1024
)

// Compress deflates data at Level. It reports an error if compression did
// not shrink the input, since a caller storing the result as a frame
// payload would rather keep the original than pay the FlagComp bit for
// nothing.
func Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("compress: empty data")
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, Level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	if buf.Len() >= len(data) {
		return nil, errors.New("compress: not effective")
	}
	return buf.Bytes(), nil
}

// Decompress inflates data, refusing to produce more than
// maxDecompressedSize bytes.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("compress: empty data")
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out bytes.Buffer
	limited := io.LimitReader(r, maxDecompressedSize+1)
	if _, err := io.Copy(&out, limited); err != nil {
		return nil, err
	}
	if out.Len() > maxDecompressedSize {
		return nil, errors.New("compress: decompressed data too large")
	}
	return out.Bytes(), nil
}

// ShouldCompress reports whether a payload of the given size is worth
// compressing.
func ShouldCompress(size int) bool {
	return size >= Threshold
}

// Observer wraps another observer.Observer and transparently inflates any
// frame carrying FlagComp before handing it onward, so downstream
// collaborators (and the core Handler) never see compressed bytes. A frame
// that claims FlagComp but fails to inflate is vetoed: core never delivers
// a payload it can't account for.
type Observer struct {
	Next observer.Observer
}

// OnFrame implements the observer hook. See Observer's doc comment.
func (o Observer) OnFrame(session observer.SessionID, peer string, f *core.Frame, wireSize int) bool {
	if f.HasFlag(core.FlagComp) {
		plain, err := Decompress(f.Payload)
		if err != nil {
			return true // veto: claimed compression we can't validate
		}
		f.Payload = plain
		f.Flags &^= core.FlagComp
	}
	if o.Next == nil {
		return false
	}
	return o.Next.OnFrame(session, peer, f, wireSize)
}

// OnSessionEnd implements the observer hook, delegating to Next if set.
func (o Observer) OnSessionEnd(session observer.SessionID, peer string, err error) {
	if o.Next != nil {
		o.Next.OnSessionEnd(session, peer, err)
	}
}
