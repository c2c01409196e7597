// Package reassembly implements the UDP fragmentation/reassembly engine
// (spec.md §4.7, C7): bounded, multi-session, timeout-expiring reassembly
// of fragmented VSTP frames keyed by (peer address, fragment id).
//
// Grounded on the teacher's core/fragment.go FragmentContext, generalized
// from a single fixed-size [256]-fragment array guarded by its own mutex
// into a map of sessions guarded by one engine-wide mutex, per spec.md
// §4.7/§5's "shared reassembly map... arbitrated by a single exclusive
// lock" requirement.
package reassembly

import (
	"sync"
	"time"

	"github.com/nickolajgrishuk/vstp/internal/vstperr"
	"go.uber.org/zap"
)

// Fragment is one chunk of a fragmented message (spec.md §3's fragment
// metadata triple, plus its payload chunk).
type Fragment struct {
	ID      uint8
	Index   uint8
	Total   uint8
	Payload []byte
}

// Key identifies a reassembly session: one peer, one fragment id.
type Key struct {
	Peer string
	ID   uint8
}

type entry struct {
	total     uint8
	chunks    [][]byte // indexed by fragment index; nil until received
	received  int
	createdAt time.Time
}

// Config bounds the engine's resource usage (spec.md §6 constants).
type Config struct {
	MaxSessions int           // default 1000
	Timeout     time.Duration // default 30s
	MaxFragments int          // default 255
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxSessions:  1000,
		Timeout:      30 * time.Second,
		MaxFragments: 255,
	}
}

// Engine is the reassembly engine. The zero value is not usable; construct
// with New.
type Engine struct {
	cfg     Config
	log     *zap.SugaredLogger
	mu      sync.Mutex
	entries map[Key]*entry
	now     func() time.Time
}

// New constructs an Engine. A nil logger is replaced with a no-op one.
func New(cfg Config, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultConfig().MaxSessions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxFragments <= 0 {
		cfg.MaxFragments = DefaultConfig().MaxFragments
	}
	return &Engine{
		cfg:     cfg,
		log:     log,
		entries: make(map[Key]*entry),
		now:     time.Now,
	}
}

// AddFragment implements spec.md §4.7's add_fragment operation. It returns
// the assembled payload once every fragment of a message has arrived, or
// nil with no error while more fragments are still outstanding.
func (e *Engine) AddFragment(peer string, frag Fragment) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.evictExpiredLocked()

	key := Key{Peer: peer, ID: frag.ID}
	ent, ok := e.entries[key]
	if !ok {
		if len(e.entries) >= e.cfg.MaxSessions {
			return nil, vstperr.Wrap(vstperr.KindSizeLimit, vstperr.ErrTooManySessions, "limit %d", e.cfg.MaxSessions)
		}
		if int(frag.Total) == 0 || int(frag.Total) > e.cfg.MaxFragments {
			return nil, vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrTooManyFragments, "total %d", frag.Total)
		}
		ent = &entry{
			total:     frag.Total,
			chunks:    make([][]byte, frag.Total),
			createdAt: e.now(),
		}
		e.entries[key] = ent
	}

	if ent.total != frag.Total {
		return nil, vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrInconsistentTotal, "entry total %d, fragment total %d", ent.total, frag.Total)
	}
	if int(frag.Index) >= int(ent.total) {
		return nil, vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrFragmentIndex, "index %d >= total %d", frag.Index, ent.total)
	}
	if ent.chunks[frag.Index] != nil {
		return nil, vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrDuplicateFragment, "peer=%s id=%d index=%d", peer, frag.ID, frag.Index)
	}

	chunk := make([]byte, len(frag.Payload))
	copy(chunk, frag.Payload)
	ent.chunks[frag.Index] = chunk
	ent.received++

	if ent.received < int(ent.total) {
		return nil, nil
	}

	assembled := make([]byte, 0, sumLengths(ent.chunks))
	for _, c := range ent.chunks {
		assembled = append(assembled, c...)
	}
	delete(e.entries, key)
	e.log.Debugw("reassembly complete", "peer", peer, "frag_id", frag.ID, "total", ent.total, "bytes", len(assembled))
	return assembled, nil
}

func sumLengths(chunks [][]byte) int {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	return n
}

// evictExpiredLocked removes sessions older than the configured timeout.
// Callers must hold e's lock. Cleanup is amortised into every insert
// rather than run on a separate timer (spec.md §5).
func (e *Engine) evictExpiredLocked() {
	if len(e.entries) == 0 {
		return
	}
	cutoff := e.now().Add(-e.cfg.Timeout)
	for k, ent := range e.entries {
		if ent.createdAt.Before(cutoff) {
			delete(e.entries, k)
			e.log.Debugw("reassembly session expired", "peer", k.Peer, "frag_id", k.ID)
		}
	}
}

// Sessions returns the current number of live reassembly sessions. Exposed
// for tests and metrics collaborators, not part of the protocol surface.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}
