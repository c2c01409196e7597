// Package udp implements the UDP transport (spec.md §4.8, C8): datagram
// send/receive, application-level fragmentation of oversize frames on
// send, reassembly on receive via the reassembly engine, and the ACK/retry
// reliability state machine (reliable.go).
//
// Grounded on the teacher's transport/udp.go (UDPBind/UDPConnect/UDPSend/
// UDPRecv) for the socket plumbing and transport/reliable.go for the shape
// of a locked, per-transport reliability context; reworked from the
// teacher's sliding-window/congestion-control scheme (which spec.md's
// Non-goals explicitly exclude: "congestion control on UDP") down to the
// simpler msg-id-keyed ACK/backoff state machine spec.md §4.8 specifies.
package udp

import (
	"context"
	"crypto/sha256"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nickolajgrishuk/vstp/core"
	"github.com/nickolajgrishuk/vstp/internal/bufpool"
	"github.com/nickolajgrishuk/vstp/internal/sockopt"
	"github.com/nickolajgrishuk/vstp/internal/vstperr"
	"github.com/nickolajgrishuk/vstp/observer"
	"github.com/nickolajgrishuk/vstp/reassembly"
	"go.uber.org/zap"
)

// ipUDPHeaderOverhead is subtracted from a discovered path MTU to leave
// room for the IP and UDP headers the kernel adds on top of our payload.
const ipUDPHeaderOverhead = 28

// Config tunes the UDP transport (spec.md §6 constants).
type Config struct {
	MaxDatagramSize int           // default 1200
	FragmentEnabled bool          // default true
	AckTimeout      time.Duration // default 2s
	RetryDelay      time.Duration // default 100ms
	MaxRetryDelay   time.Duration // default 5s
	MaxRetries      int           // default 3
	Reassembly      reassembly.Config
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxDatagramSize: 1200,
		FragmentEnabled: true,
		AckTimeout:      2 * time.Second,
		RetryDelay:      100 * time.Millisecond,
		MaxRetryDelay:   5 * time.Second,
		MaxRetries:      3,
		Reassembly:      reassembly.DefaultConfig(),
	}
}

// Handler is invoked once per delivered (possibly reassembled) frame, on
// its own goroutine, so one slow handler cannot head-of-line block other
// peers (spec.md §4.8 concurrency).
type Handler func(session observer.SessionID, peer *net.UDPAddr, frame *core.Frame)

// Transport is a single UDP socket driving send, fragmenting send, and a
// receive loop that reassembles fragmented frames and answers REQ_ACK
// frames.
type Transport struct {
	conn    *net.UDPConn
	cfg     Config
	reasm   *reassembly.Engine
	obs     observer.Observer
	log     *zap.SugaredLogger
	handler Handler

	fragID uint32 // atomic, truncated to uint8 on use, wraps mod 256
	msgID  uint64 // atomic, monotonic, never rolled back

	waitersMu sync.Mutex
	waiters   map[string]chan *core.Frame
}

// Option configures a Transport at construction time.
type Option func(*Transport)

func WithObserver(obs observer.Observer) Option { return func(t *Transport) { t.obs = obs } }
func WithLogger(log *zap.SugaredLogger) Option   { return func(t *Transport) { t.log = log } }

// Bind opens a UDP socket on addr (use ":0" for an ephemeral port, or
// "host:port" to listen). If cfg.MaxDatagramSize is 0, Bind tries to
// discover the path MTU and falls back to DefaultConfig's 1200 bytes where
// the platform offers no such facility.
func Bind(addr string, cfg Config, handler Handler, opts ...Option) (*Transport, error) {
	lc := net.ListenConfig{Control: sockopt.ReuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return nil, err
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, vstperr.New(vstperr.KindIO, vstperr.ErrClosed)
	}

	if cfg.MaxDatagramSize == 0 {
		if mtu, ok := discoverMTU(conn); ok && mtu > ipUDPHeaderOverhead {
			cfg.MaxDatagramSize = mtu - ipUDPHeaderOverhead
		} else {
			cfg.MaxDatagramSize = DefaultConfig().MaxDatagramSize
		}
	}
	return newTransport(conn, cfg, handler, opts...), nil
}

func newTransport(conn *net.UDPConn, cfg Config, handler Handler, opts ...Option) *Transport {
	t := &Transport{
		conn:    conn,
		cfg:     cfg,
		handler: handler,
		obs:     observer.NopObserver{},
		waiters: make(map[string]chan *core.Frame),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = zap.NewNop().Sugar()
	}
	t.reasm = reassembly.New(cfg.Reassembly, t.log)
	return t
}

// LocalAddr returns the bound local address.
func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// Close closes the underlying socket, ending Serve.
func (t *Transport) Close() error { return t.conn.Close() }

// SessionFor deterministically derives a session identifier from a peer
// address so observers can aggregate UDP events per peer (spec.md §3).
func SessionFor(addr *net.UDPAddr) observer.SessionID {
	sum := sha256.Sum256([]byte(addr.String()))
	var sid observer.SessionID
	copy(sid[:], sum[:16])
	return sid
}

// Send encodes frame and transmits it to dst, fragmenting across multiple
// datagrams if it exceeds the configured MaxDatagramSize (spec.md §4.8
// send path).
func (t *Transport) Send(dst *net.UDPAddr, frame *core.Frame) error {
	encoded, err := core.Encode(frame)
	if err != nil {
		return err
	}

	if len(encoded) <= t.cfg.MaxDatagramSize || !t.cfg.FragmentEnabled {
		if len(encoded) > t.cfg.MaxDatagramSize {
			return vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrOversizeDatagram, "%d bytes > %d and fragmentation disabled", len(encoded), t.cfg.MaxDatagramSize)
		}
		_, err := t.conn.WriteToUDP(encoded, dst)
		return err
	}

	return t.sendFragmented(dst, frame, encoded)
}

func (t *Transport) sendFragmented(dst *net.UDPAddr, frame *core.Frame, encoded []byte) error {
	chunkSize := t.cfg.MaxDatagramSize
	total := (len(encoded) + chunkSize - 1) / chunkSize
	if total > 255 {
		return vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrTooManyFragments, "%d fragments required, max 255", total)
	}

	fragID := uint8(atomic.AddUint32(&t.fragID, 1))

	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		carrier := core.NewFrame(frame.Type).
			WithFlag(frame.Flags | core.FlagFrag).
			WithHeader(core.HeaderFragID, []byte(strconv.Itoa(int(fragID)))).
			WithHeader(core.HeaderFragIndex, []byte(strconv.Itoa(i))).
			WithHeader(core.HeaderFragTotal, []byte(strconv.Itoa(total))).
			WithPayload(append([]byte(nil), encoded[start:end]...))

		data, err := core.Encode(carrier)
		if err != nil {
			return err
		}
		if _, err := t.conn.WriteToUDP(data, dst); err != nil {
			return err
		}
	}
	return nil
}

// Serve runs the receive loop until the socket is closed. Each delivered
// frame's handler invocation is dispatched to its own goroutine so that
// one slow peer cannot block reassembly or delivery for another (spec.md
// §4.8/§5).
func (t *Transport) Serve() error {
	buf := bufpool.Get(64 * 1024)
	defer bufpool.Put(buf)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		frame, _, derr := core.Decode(buf[:n], 0)
		if derr != nil {
			t.log.Debugw("udp decode error, dropping datagram", "peer", addr.String(), "error", derr)
			continue
		}
		t.handleDatagram(addr, frame, n)
	}
}

func (t *Transport) handleDatagram(addr *net.UDPAddr, frame *core.Frame, wireSize int) {
	delivered, err := t.reassembleIfNeeded(addr, frame)
	if err != nil {
		t.log.Debugw("reassembly error, dropping fragment", "peer", addr.String(), "error", err)
		return
	}
	if delivered == nil {
		return // still assembling
	}

	if delivered.Type == core.TypeAck {
		if t.resolveAck(delivered) {
			return // consumed by a waiting send_with_ack call
		}
	}

	if delivered.HasFlag(core.FlagReqAck) {
		if msgID, ok := delivered.GetHeader(core.HeaderMsgID); ok {
			ack := core.NewAck(string(msgID))
			if data, err := core.Encode(ack); err == nil {
				_, _ = t.conn.WriteToUDP(data, addr)
			}
		}
	}

	session := SessionFor(addr)
	if t.obs.OnFrame(session, addr.String(), delivered, wireSize) {
		t.obs.OnSessionEnd(session, addr.String(), vstperr.New(vstperr.KindVetoed, vstperr.ErrVetoed))
		return
	}
	if t.handler != nil {
		go t.handler(session, addr, delivered)
	}
}

func (t *Transport) reassembleIfNeeded(addr *net.UDPAddr, frame *core.Frame) (*core.Frame, error) {
	idRaw, hasID := frame.GetHeader(core.HeaderFragID)
	idxRaw, hasIdx := frame.GetHeader(core.HeaderFragIndex)
	totalRaw, hasTotal := frame.GetHeader(core.HeaderFragTotal)
	if !(hasID && hasIdx && hasTotal) {
		return frame, nil
	}

	id, err := parseUint8(idRaw)
	if err != nil {
		return nil, err
	}
	idx, err := parseUint8(idxRaw)
	if err != nil {
		return nil, err
	}
	total, err := parseUint8(totalRaw)
	if err != nil {
		return nil, err
	}

	assembled, err := t.reasm.AddFragment(addr.String(), reassembly.Fragment{
		ID: id, Index: idx, Total: total, Payload: frame.Payload,
	})
	if err != nil {
		return nil, err
	}
	if assembled == nil {
		return nil, nil
	}

	// assembled is the concatenation of the original frame's own encoded
	// wire bytes (magic, headers, payload, CRC) split across datagrams on
	// send — decode it back into the original Frame rather than treating
	// it as a raw payload.
	original, _, err := core.Decode(assembled, 0)
	if err != nil {
		return nil, err
	}
	return original, nil
}

func parseUint8(raw []byte) (uint8, error) {
	v, err := strconv.Atoi(string(raw))
	if err != nil || v < 0 || v > 255 {
		return 0, vstperr.Wrap(vstperr.KindProtocol, vstperr.ErrFragmentIndex, "invalid fragment field %q", raw)
	}
	return uint8(v), nil
}
