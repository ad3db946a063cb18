package transport

import "github.com/jray8/simple-server-go/registry"

// Session is the identity a handshake produces, handed off to the
// dispatcher once authentication succeeds. On the server, User holds the
// two connections; on the client, ClientAuthenticate returns them
// alongside the Session.
type Session struct {
	User *registry.User

	// Name is the validated, uppercased username bound to this session,
	// duplicated from User.Name for callers that only need the identity
	// and not the full registry record.
	Name string

	// SessionID is the value minted from the data connection's socket
	// cookie, see package sockid.
	SessionID string
}
