// Package observer defines the observer interface (spec.md §4.9, C9): the
// sole integration point where external collaborators — security/anomaly
// detection, metrics — attach to the transports without the core
// implementing them. Both transports accept an optional Observer; ext/
// contains example collaborators that implement it.
package observer

import "github.com/nickolajgrishuk/vstp/core"

// SessionID identifies a TCP session (spec.md §3): opaque, 128-bit,
// assigned by the server, monotonically increasing within its lifetime.
// For UDP it is derived deterministically from the peer address.
type SessionID [16]byte

// Observer is notified of every frame a transport is about to deliver to
// the application handler, and of session end. Observer methods must not
// block on protocol locks — spec.md §5 requires callbacks to run "without
// holding protocol locks" — and are invoked synchronously in the frame's
// delivery path, so a slow observer slows delivery.
type Observer interface {
	// OnFrame is invoked once per delivered frame, before the application
	// handler, with the frame's on-wire byte size. Returning veto == true
	// withholds the frame from the handler; on TCP this also ends the
	// session.
	OnFrame(session SessionID, peer string, frame *core.Frame, wireSize int) (veto bool)

	// OnSessionEnd is invoked once when a session (TCP connection, or a
	// logical UDP peer if the transport tracks one) ends.
	OnSessionEnd(session SessionID, peer string, reason error)
}

// NopObserver implements Observer with no-ops, used when no observer is
// configured so transports can invoke an Observer unconditionally.
type NopObserver struct{}

func (NopObserver) OnFrame(SessionID, string, *core.Frame, int) bool { return false }
func (NopObserver) OnSessionEnd(SessionID, string, error)            {}
