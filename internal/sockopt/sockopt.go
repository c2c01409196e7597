// Package sockopt sets low-level socket options for the TCP and UDP
// listeners (spec.md's ambient transport-setup concerns), split per
// platform because SetsockoptInt's first argument type differs between
// Unix (int fd) and Windows (syscall.Handle).
//
// Adapted from the teacher's transport/sockopt_unix.go and
// sockopt_windows.go, which defined SetInt but never called it; ReuseAddr
// below is the missing wiring, used by transport/tcp.Listen and
// transport/udp.Bind via net.ListenConfig.Control.
package sockopt

import "syscall"

// ReuseAddr is a net.ListenConfig.Control callback that sets SO_REUSEADDR,
// letting a listener rebind a recently-closed address immediately.
func ReuseAddr(_, _ string, c syscall.RawConn) error {
	var setErr error
	err := c.Control(func(fd uintptr) {
		setErr = SetInt(fd, SOLSocket, SOReuseAddr, 1)
	})
	if err != nil {
		return err
	}
	return setErr
}
