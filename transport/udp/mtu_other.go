//go:build !linux

package udp

import "net"

// discoverMTU has no portable equivalent of IP_MTU outside Linux; Bind
// falls back to the configured/default MaxDatagramSize on these platforms.
// Adapted from the teacher's transport/udp_mtu_other.go.
func discoverMTU(conn *net.UDPConn) (int, bool) {
	return 0, false
}
