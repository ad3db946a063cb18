// Package registry tracks the set of currently authenticated users.
//
// Internals are adapted from the teacher's cache/cache.go current/previous
// map-swap pattern: where that cache swaps current/previous maps of
// *inetdiag.ParsedMessage keyed by socket cookie once per sampling cycle,
// Registry keeps one map of *User keyed by uppercased name, mutated in
// place under nameLock rather than swapped. Broadcast fans data-socket
// writes out to every active user the way eventsocket.Server.sendToAllListeners
// fans event notifications out to every subscribed listener: a snapshot of
// the list is taken under lock, then written to outside the lock so a slow
// or dead peer cannot stall the registry.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jray8/simple-server-go/framing"
	"github.com/jray8/simple-server-go/metrics"
)

// reservedNames can never be claimed by a connecting user.
var reservedNames = map[string]bool{
	"SYSTEM": true,
}

// MaxUsers is the capacity advertised in LIST replies (e.g. "[3/10] users
// online"). It is cosmetic only; Reserve does not enforce it.
const MaxUsers = 10

// Registry is the server's live set of authenticated users. The zero value
// is not usable; construct with New.
type Registry struct {
	nameLock     sync.Mutex
	deliveryLock sync.Mutex

	users  map[string]*User // keyed by strings.ToUpper(name)
	order  []string         // insertion order, for stable LIST output
	hidden map[string]bool  // names reserved as hidden even before join
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		users:  make(map[string]*User),
		hidden: make(map[string]bool),
	}
}

// ErrNameTaken is returned by Reserve when name is already in use or
// reserved.
type ErrNameTaken struct{ Name string }

func (e ErrNameTaken) Error() string {
	return fmt.Sprintf("registry: name %q is already taken", e.Name)
}

// Reserve claims name for u, failing if the uppercased name collides with a
// reserved word or an existing user. On success the name is taken
// immediately, even before Activate is called, so that a second connection
// racing to claim the same name during the handshake is rejected rather
// than silently overwriting the first. FindUser and ListUsers still skip u
// until it is activated.
func (r *Registry) Reserve(name string, u *User) error {
	key := strings.ToUpper(name)
	r.nameLock.Lock()
	defer r.nameLock.Unlock()

	if reservedNames[key] {
		return ErrNameTaken{Name: name}
	}
	if _, exists := r.users[key]; exists {
		return ErrNameTaken{Name: name}
	}
	r.users[key] = u
	r.order = append(r.order, key)
	return nil
}

// Release removes name from the registry. It is called both when a user
// disconnects and when a handshake that reserved the name fails before
// completing.
func (r *Registry) Release(name string) {
	key := strings.ToUpper(name)
	r.nameLock.Lock()
	defer r.nameLock.Unlock()

	u, exists := r.users[key]
	if !exists {
		return
	}
	delete(r.users, key)
	for i, n := range r.order {
		if n == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if u != nil && u.Active() {
		metrics.ActiveSessions.Dec()
	}
}

// FindUser looks up an active user by name, case-insensitively. It returns
// nil if no such user is registered, whether or not the name was ever
// reserved.
func (r *Registry) FindUser(name string) *User {
	key := strings.ToUpper(name)
	r.nameLock.Lock()
	defer r.nameLock.Unlock()

	u, ok := r.users[key]
	if !ok || !u.Active() {
		return nil
	}
	return u
}

// ListUsers returns the names of active users in join order, one entry per
// active user. A hidden user's name is masked as a run of '*' the same
// length as the name unless showHidden is true, which only an admin caller
// should ever request; masked entries are never omitted, so len(names)
// always equals Count().
func (r *Registry) ListUsers(showHidden bool) []string {
	r.nameLock.Lock()
	snapshot := make([]*User, 0, len(r.order))
	for _, key := range r.order {
		if u := r.users[key]; u != nil && u.Active() {
			snapshot = append(snapshot, u)
		}
	}
	r.nameLock.Unlock()

	names := make([]string, 0, len(snapshot))
	for _, u := range snapshot {
		if u.Hidden() && !showHidden {
			names = append(names, strings.Repeat("*", len(u.Name)))
		} else {
			names = append(names, u.Name)
		}
	}
	return names
}

// HiddenCount returns the number of currently active users whose hidden
// flag is set.
func (r *Registry) HiddenCount() int {
	r.nameLock.Lock()
	defer r.nameLock.Unlock()
	n := 0
	for _, key := range r.order {
		if u := r.users[key]; u != nil && u.Active() && u.Hidden() {
			n++
		}
	}
	return n
}

// Count returns the number of currently active users.
func (r *Registry) Count() int {
	r.nameLock.Lock()
	defer r.nameLock.Unlock()
	n := 0
	for _, key := range r.order {
		if u := r.users[key]; u != nil && u.Active() {
			n++
		}
	}
	return n
}

// Broadcast sends payload with attr to every active user's data socket
// except skip (typically the user the message is from or about). Failures
// on individual sockets are swallowed here; the caller
// that owns a broken connection discovers it on its own next read or write.
func (r *Registry) Broadcast(payload []byte, attr framing.Attr, skip *User) {
	r.nameLock.Lock()
	snapshot := make([]*User, 0, len(r.order))
	for _, key := range r.order {
		if u := r.users[key]; u != nil && u.Active() {
			snapshot = append(snapshot, u)
		}
	}
	r.nameLock.Unlock()

	r.deliveryLock.Lock()
	defer r.deliveryLock.Unlock()
	for _, u := range snapshot {
		if u == skip {
			continue
		}
		_ = framing.SendFrame(u.DataConn, payload, attr)
	}
}
