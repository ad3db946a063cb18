// Package auditlog keeps an in-memory, append-only ledger of session
// events (connect, disconnect, admin grant/revoke, kick, transfer) for the
// lifetime of one server process, and writes it out as CSV on request. The
// ledger itself never touches disk until Flush is called, and the file it
// produces is purged along with downloads/ on clean shutdown -- this is
// diagnostic output, not persistence between runs.
package auditlog

import (
	"io"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
)

// Event is one row of the audit ledger. Fields are exported and CSV-tagged
// the way the teacher tags its gocsv record types (inetdiag/structs.go's
// LinuxSockID), so gocsv.Marshal can write the header row without a
// hand-rolled writer.
type Event struct {
	Time   string `csv:"time"`
	User   string `csv:"user"`
	Kind   string `csv:"kind"`
	Detail string `csv:"detail"`
}

// Kinds of events recorded. These are the "kind" column's vocabulary, not
// an enum -- gocsv marshals them as plain strings.
const (
	KindConnect     = "connect"
	KindDisconnect  = "disconnect"
	KindAdminGrant  = "admin_grant"
	KindAdminRevoke = "admin_revoke"
	KindKick        = "kick"
	KindTransfer    = "transfer"
)

// Log is a process-lifetime, mutex-guarded event ledger.
type Log struct {
	mu     sync.Mutex
	events []Event
	now    func() time.Time
}

// New returns an empty Log.
func New() *Log {
	return &Log{now: time.Now}
}

// Record appends one event to the ledger.
func (l *Log) Record(user, kind, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, Event{
		Time:   l.now().UTC().Format(time.RFC3339),
		User:   user,
		Kind:   kind,
		Detail: detail,
	})
}

// Flush writes the ledger's current contents to w as CSV, in the order
// events were recorded. It does not clear the ledger -- callers decide
// when a process is shutting down cleanly enough to flush at all.
func (l *Log) Flush(w io.Writer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return gocsv.Marshal(l.events, w)
}

// Len reports how many events are currently recorded.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
