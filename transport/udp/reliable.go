package udp

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nickolajgrishuk/vstp/core"
	"github.com/nickolajgrishuk/vstp/internal/vstperr"
)

// SendWithAck implements spec.md §4.8's reliability state machine: assign
// a fresh monotonically-increasing msg-id, attach it with REQ_ACK, send,
// and wait for a matching ACK with exponential backoff across attempts.
//
// Non-matching frames observed during the wait (wrong type, wrong msg-id,
// or a frame still being reassembled) are never mistaken for the ACK; per
// spec.md §9's open question this implementation re-queues them to the
// application via Handler exactly as it would outside a send_with_ack
// call, rather than dropping them — the same "re-queue" policy
// tcp.Client.Recv uses on the TCP side, kept consistent across both
// transports. An ACK is matched by its msg-id alone: its source address is
// not compared with dst, so an ACK carrying the awaited msg-id from any
// peer completes the wait.
func (t *Transport) SendWithAck(ctx context.Context, dst *net.UDPAddr, frame *core.Frame) error {
	id := atomic.AddUint64(&t.msgID, 1)
	msgID := strconv.FormatUint(id, 10)

	tagged := core.NewFrame(frame.Type)
	tagged.Flags = frame.Flags | core.FlagReqAck
	tagged.Payload = frame.Payload
	tagged.Headers = append(append([]core.Header(nil), frame.Headers...), core.Header{
		Key: []byte(core.HeaderMsgID), Value: []byte(msgID),
	})

	waiter := t.registerWaiter(msgID)
	defer t.unregisterWaiter(msgID)

	delay := t.cfg.RetryDelay
	for attempt := 0; ; attempt++ {
		if err := t.Send(dst, tagged); err != nil {
			return err
		}

		select {
		case <-waiter:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.cfg.AckTimeout):
		}

		if attempt >= t.cfg.MaxRetries {
			return vstperr.Wrap(vstperr.KindTimeout, vstperr.ErrAckTimeout, "msg-id=%s after %d attempts", msgID, attempt+1)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > t.cfg.MaxRetryDelay {
			delay = t.cfg.MaxRetryDelay
		}
	}
}

func (t *Transport) registerWaiter(msgID string) <-chan *core.Frame {
	ch := make(chan *core.Frame, 1)
	t.waitersMu.Lock()
	t.waiters[msgID] = ch
	t.waitersMu.Unlock()
	return ch
}

func (t *Transport) unregisterWaiter(msgID string) {
	t.waitersMu.Lock()
	delete(t.waiters, msgID)
	t.waitersMu.Unlock()
}

// resolveAck delivers an incoming ACK frame to its waiting send_with_ack
// call, if any, and reports whether it found one. A false return means
// the caller should fall through to ordinary delivery (no one is waiting
// for this msg-id, so the ACK is not mis-attributed — it simply wasn't
// claimed).
func (t *Transport) resolveAck(ack *core.Frame) bool {
	msgID, ok := ack.GetHeader(core.HeaderMsgID)
	if !ok {
		return false
	}
	t.waitersMu.Lock()
	ch, ok := t.waiters[string(msgID)]
	t.waitersMu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- ack:
		return true
	default:
		return true // already delivered or buffer full; still claimed
	}
}
