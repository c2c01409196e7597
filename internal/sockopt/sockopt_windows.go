//go:build windows

package sockopt

import "syscall"

// SetInt sets a socket option on Windows.
func SetInt(fd uintptr, level, opt, value int) error {
	return syscall.SetsockoptInt(syscall.Handle(fd), level, opt, value)
}

const (
	SOLSocket   = syscall.SOL_SOCKET
	SOReuseAddr = syscall.SO_REUSEADDR
)
