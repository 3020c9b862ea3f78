package networking

import (
	"fmt"
	"net"
)

// IsAvailable checks if a TCP port can be bound on the given host. The serve
// command uses this for a clear startup error instead of a late bind failure.
func IsAvailable(host string, port int) bool {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	listener.Close()

	return true
}
