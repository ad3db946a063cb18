//go:build !linux

package sockid

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
)

// counter stands in for the kernel socket cookie on platforms without
// SO_COOKIE. It is process-unique but not reboot-scoped like the Linux
// version.
var counter uint64

// New returns a session identifier for conn. On non-Linux platforms there is
// no SO_COOKIE, so sessions are numbered with a simple atomic counter
// instead of a kernel-assigned cookie.
func New(conn *net.TCPConn) (string, error) {
	n := atomic.AddUint64(&counter, 1)
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%X", hostname, n), nil
}
