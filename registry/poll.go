package registry

import (
	"time"

	"github.com/jray8/simple-server-go/metrics"
)

// DefaultPollPeriod and DefaultPollTimeout are poll_activity's defaults per
// spec.md §4.3. Individual call sites (ADMIN/DEMOTE use a 5s timeout, SEND
// escalates 15s then 30s) pass their own timeout instead.
const (
	DefaultPollPeriod  = 500 * time.Millisecond
	DefaultPollTimeout = 15 * time.Second
)

// PollActivity busy-waits, sampling u's command_mutex every period, until
// either the mutex is observed unlocked (true) or timeout elapses (false).
// It does not hold the mutex afterward -- a true result means the caller
// may proceed to write directly to u's command socket, relying on the
// socket's read and write directions being independent, not on continued
// exclusive possession of the mutex.
func PollActivity(u *User, period, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	start := time.Now()
	for {
		if u.TryLockCommand() {
			u.UnlockCommand()
			metrics.PollActivityHistogram.Observe(time.Since(start).Seconds())
			return true
		}
		if time.Now().After(deadline) {
			metrics.PollActivityHistogram.Observe(time.Since(start).Seconds())
			return false
		}
		time.Sleep(period)
	}
}
