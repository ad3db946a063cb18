package registry

import (
	"net"
	"sync"

	"github.com/jray8/simple-server-go/framing"
)

// User is the server-side record for one authenticated session: its two
// sockets, its reservation/visibility state, and the command_mutex that
// serializes any command interaction targeting this user.
type User struct {
	// Name is the uppercased, validated username. Immutable once the user
	// is inserted into a Registry.
	Name string

	// SessionID is a process-unique identifier minted from the data
	// socket's connection, used to correlate log lines and audit entries.
	SessionID string

	DataConn *net.TCPConn
	CmdConn  *net.TCPConn // nil until stage 3 of the handshake completes.

	DataAddr net.Addr
	CmdAddr  net.Addr

	mu      sync.Mutex
	hidden  bool
	admin   bool
	active  bool
	cmdLock sync.Mutex // the "command mutex" from spec.md §3/§4.5

	takeoverMu sync.Mutex
	takeover   func(firstPayload []byte, r *framing.Reader) error
}

// NewUser creates a User bound to dataConn, not yet active and not yet
// bound to a command socket.
func NewUser(name string, dataConn *net.TCPConn, sessionID string) *User {
	return &User{
		Name:      name,
		SessionID: sessionID,
		DataConn:  dataConn,
		DataAddr:  dataConn.RemoteAddr(),
	}
}

// BindCmdConn attaches the command socket once stage 3 of the handshake
// completes.
func (u *User) BindCmdConn(conn *net.TCPConn) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.CmdConn = conn
	u.CmdAddr = conn.RemoteAddr()
}

// Activate marks the user active; only the authentication handshake should
// call this, after all four stages succeed.
func (u *User) Activate() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active = true
}

// Active reports whether authentication has completed for this user.
func (u *User) Active() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.active
}

// SetHidden updates the user's visibility flag.
func (u *User) SetHidden(hidden bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hidden = hidden
}

// Hidden reports the user's current visibility flag.
func (u *User) Hidden() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hidden
}

// SetAdmin updates the user's elevated-rights flag.
func (u *User) SetAdmin(admin bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.admin = admin
}

// Admin reports whether the user currently has elevated rights.
func (u *User) Admin() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.admin
}

// LockCommand acquires this user's command_mutex for the duration of one
// multi-turn command exchange. Callers must Unlock when the exchange ends,
// whatever its outcome.
func (u *User) LockCommand() {
	u.cmdLock.Lock()
}

// UnlockCommand releases the command_mutex acquired by LockCommand.
func (u *User) UnlockCommand() {
	u.cmdLock.Unlock()
}

// TryLockCommand attempts to acquire the command_mutex without blocking. It
// is the primitive poll_activity is built from: a true result means the
// caller now holds the lock (and must eventually unlock it); false means
// another command exchange is in progress.
func (u *User) TryLockCommand() bool {
	return u.cmdLock.TryLock()
}

// SetTakeover registers fn to receive the next frame this user's command
// dispatcher loop reads, instead of that frame being interpreted as a
// freshly typed command. This is how a command targeting another user
// (SEND's RECEIVE handoff, today the only user) borrows that user's
// existing read loop for a reply it did not itself solicit via a direct
// request/response round trip. Callers must register the takeover before
// writing the frame that will provoke the reply, so the dispatcher loop
// never observes the reply as an ordinary command.
func (u *User) SetTakeover(fn func(firstPayload []byte, r *framing.Reader) error) {
	u.takeoverMu.Lock()
	defer u.takeoverMu.Unlock()
	u.takeover = fn
}

// TakeTakeover atomically returns and clears the pending takeover handler,
// if any. The dispatcher loop calls this once per frame it reads.
func (u *User) TakeTakeover() func(firstPayload []byte, r *framing.Reader) error {
	u.takeoverMu.Lock()
	defer u.takeoverMu.Unlock()
	fn := u.takeover
	u.takeover = nil
	return fn
}
