// Package transport implements the dual-connection authentication
// handshake that promotes a freshly accepted data socket and command
// socket into one active registry.User.
//
// The shape is adapted from the teacher's eventsocket client/server
// pairing: eventsocket.MustRun dials a well-known socket and reads a typed
// stream until context cancellation or connection loss, and
// eventsocket.server pairs each accepted connection with the rest of the
// server's state under a mutex. Here the pairing is harder: a session is
// not complete until TWO separate accepted connections (data and command)
// have been correlated by username, so the server side keeps a small
// table of handshakes in progress rather than acting on each accept
// independently.
package transport

import (
	"time"
)

// Wire tokens exchanged during the handshake. These are sent as framed
// message payloads, not file frames.
const (
	tokenPass = "PASS"
	tokenFail = "FAIL"
)

// Handshake timing, per spec.md §4.2.
const (
	// ConnectTimeout bounds a single client TCP dial attempt.
	ConnectTimeout = 6 * time.Second
	// ConnectRetries is how many additional attempts the client makes
	// after a first attempt fails with a network-loss error.
	ConnectRetries = 3
	// ConnectRetryGap is the pause between retries.
	ConnectRetryGap = 3 * time.Second
	// StageTimeout is a per-stage wait bound for the handshake. Neither
	// AuthenticateData nor ClientAuthenticate applies it: neither sets a
	// read deadline, so each stage waits for its next frame until the frame
	// arrives or the connection fails.
	StageTimeout = 10 * time.Second
	// CmdBindTimeout bounds how long the data-socket side of stage 3
	// waits for the matching command socket to arrive.
	CmdBindTimeout = 15 * time.Second
)
