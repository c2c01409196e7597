// Package bufpool provides reusable byte-slice scratch buffers for the
// stream framer and UDP receive path. It generalizes the teacher's
// preallocated per-connection receive buffer (transport/tcp.go's
// TCPRecvBufferSize) into a shared pool, and is grounded on
// original_source/src/utils/pool.rs, which pools decode scratch space for
// the same reason: cut allocations on the hot receive path.
package bufpool

import "sync"

// defaultSize matches the teacher's TCPRecvBufferSize constant.
const defaultSize = 64 * 1024

var pool = sync.Pool{
	New: func() any {
		b := make([]byte, defaultSize)
		return &b
	},
}

// Get returns a buffer of at least n bytes, either recycled from the pool
// or freshly allocated.
func Get(n int) []byte {
	bp := pool.Get().(*[]byte)
	b := *bp
	if cap(b) < n {
		b = make([]byte, n)
		return b
	}
	return b[:n]
}

// Put returns b to the pool for reuse. Callers must not use b after
// calling Put.
func Put(b []byte) {
	if cap(b) < defaultSize {
		return
	}
	b = b[:cap(b)]
	pool.Put(&b)
}
