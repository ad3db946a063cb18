// Package sockid mints a process-unique, reboot-scoped identifier for a TCP
// connection, for use as a session correlation ID in logs and the audit
// ledger. Adapted from the socket-cookie based flow UUID the teacher used to
// uniquely name a *kernel flow*; here it names a *user session* instead, but
// the guarantee -- unique per (hostname, boot) pair until 2^64 connections
// have been made -- is the same one the teacher relied on.
package sockid

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var cachedPrefix = ""

func timeToUnix(t time.Time) int64 {
	return int64(t.Sub(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)).Seconds())
}

// boottimeWithRaceCondition has a race between reading /proc/uptime and
// calling time.Now(): if a second-granularity boundary is crossed between
// the two syscalls, the result can be off by one. Call it repeatedly until
// it returns the same answer twice (see boottime).
func boottimeWithRaceCondition() (int64, error) {
	procUptime, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return -1, err
	}
	parts := strings.Split(string(procUptime), " ")
	if len(parts) != 2 {
		return -1, fmt.Errorf("sockid: could not split /proc/uptime into two parts")
	}
	uptime, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return -1, fmt.Errorf("sockid: could not parse /proc/uptime: %w", err)
	}
	return timeToUnix(time.Now().Add(-time.Duration(uptime * float64(time.Second)))), nil
}

func boottime() (int64, error) {
	var prev, curr int64
	curr, err := boottimeWithRaceCondition()
	if err != nil {
		return curr, err
	}
	for prev != curr {
		prev = curr
		curr, err = boottimeWithRaceCondition()
		if err != nil {
			return curr, err
		}
	}
	return curr, nil
}

// prefix returns a string combining hostname and boot time, which globally
// (enough) identifies the session-id namespace for this process. Cached
// because both inputs are constant for the life of the process.
func prefix() (string, error) {
	if cachedPrefix == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return "", err
		}
		bt, err := boottime()
		if err != nil {
			return "", err
		}
		cachedPrefix = fmt.Sprintf("%s_%d", hostname, bt)
	}
	return cachedPrefix, nil
}

// FromCookie returns a globally (enough) unique identifier built from a raw
// socket cookie.
func FromCookie(cookie uint64) (string, error) {
	p, err := prefix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%X", p, cookie), nil
}
