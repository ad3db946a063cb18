package registry

import (
	"errors"
	"strings"
)

// ErrInvalidName is returned by ValidateName when a candidate username
// violates the name rules.
var ErrInvalidName = errors.New("registry: invalid username")

// ValidateName reports whether name satisfies the rules a candidate
// username must follow: 3-12 characters, letters (either case), digits,
// '_' and '.' only, with at least one letter, and no whitespace. The check
// runs on the name as the user typed it, before it is uppercased for
// storage -- the rules themselves are case-insensitive.
func ValidateName(name string) error {
	if len(name) < 3 || len(name) > 12 {
		return ErrInvalidName
	}
	hasLetter := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			hasLetter = true
		case r >= '0' && r <= '9':
		case r == '_' || r == '.':
		default:
			return ErrInvalidName
		}
	}
	if !hasLetter {
		return ErrInvalidName
	}
	return nil
}

// EncodeNameSnapshot renders the currently reserved names as a single
// newline-joined UTF-8 payload suitable for sending as one framed message.
// Hidden names are replaced by a run of '*' characters the same length as
// the real name, so a connecting client can see how many names are taken
// without learning hidden users' identities. This is the explicit,
// versionless substitute this module uses in place of a pickled snapshot:
// see the design notes on stage 2 of the authentication handshake.
func (r *Registry) EncodeNameSnapshot() []byte {
	r.nameLock.Lock()
	names := make([]string, 0, len(r.order))
	for _, key := range r.order {
		u := r.users[key]
		if u == nil {
			continue
		}
		if u.Hidden() {
			names = append(names, strings.Repeat("*", len(u.Name)))
			continue
		}
		names = append(names, u.Name)
	}
	r.nameLock.Unlock()
	return []byte(strings.Join(names, "\n"))
}

// DecodeNameSnapshot parses a payload produced by EncodeNameSnapshot back
// into the list of names it represents. An empty payload decodes to an
// empty, non-nil slice.
func DecodeNameSnapshot(payload []byte) []string {
	if len(payload) == 0 {
		return []string{}
	}
	return strings.Split(string(payload), "\n")
}
