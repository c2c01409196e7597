//go:build linux

package udp

import (
	"net"
	"syscall"
)

// discoverMTU reads the kernel's path MTU estimate for conn's connected
// peer via IP_MTU. Adapted from the teacher's transport/udp_mtu_linux.go;
// used by Bind to pick MaxDatagramSize when the caller leaves it at 0.
func discoverMTU(conn *net.UDPConn) (int, bool) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return 0, false
	}

	var mtu int
	var getErr error
	err = rawConn.Control(func(fd uintptr) {
		mtu, getErr = syscall.GetsockoptInt(int(fd), syscall.IPPROTO_IP, syscall.IP_MTU)
	})
	if err != nil || getErr != nil || mtu <= 0 {
		return 0, false
	}
	return mtu, true
}
