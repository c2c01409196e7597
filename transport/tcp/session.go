package tcp

import (
	"encoding/binary"
	"sync"

	"github.com/nickolajgrishuk/vstp/observer"
)

// sessionCounter hands out session identifiers starting from 2 (spec.md
// §4.6), incrementing, guarded by its own mutex and mutated only by the
// accept loop (spec.md §5's "shared resources and policy").
type sessionCounter struct {
	mu   sync.Mutex
	next uint64
}

func newSessionCounter() *sessionCounter {
	return &sessionCounter{next: 2}
}

// take returns the next session id as a 128-bit value: the low 64 bits
// carry the monotonic counter, the high 64 bits are zero. 128 bits never
// wrap in practice at this counter's growth rate (spec.md §9).
func (c *sessionCounter) take() observer.SessionID {
	c.mu.Lock()
	id := c.next
	c.next++
	c.mu.Unlock()

	var sid observer.SessionID
	binary.BigEndian.PutUint64(sid[8:], id)
	return sid
}
