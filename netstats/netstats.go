// Package netstats implements the admin-only NETSTATS diagnostic: a
// best-effort dump of raw kernel TCP socket state for every TCP socket in
// the host's table; it does not filter to the sockets this server process
// holds. It is Linux-only, exactly like the
// teacher's own netlink-based collection path, and degrades to an empty
// result with an explanatory error everywhere else.
package netstats

import "errors"

// ErrUnsupported is returned by Collect on platforms without netlink-based
// socket diagnostics.
var ErrUnsupported = errors.New("netstats: unsupported on this platform")

// Entry is one socket's diagnostic snapshot, reduced to the handful of
// fields worth showing a human over a command socket -- not the full
// decoded inet_diag message the teacher's collector archives.
type Entry struct {
	LocalAddr  string
	RemoteAddr string
	State      string
	RTT        uint32 // microseconds
	Retransmits uint32
}
