// Package dispatch implements the command taxonomy and the read-loop state
// machine that runs, symmetrically in shape though not in code, on both the
// server and the client side of a command socket.
//
// The loop shape is adapted from the teacher's collector.Run: a ticker-like
// blocking read (there it is a time.Ticker firing on a schedule, here it is
// RecvFrame blocking on the next command frame) feeding a dispatch step
// whose errors unwind the loop rather than crash the process.
package dispatch

import "strings"

// Command describes one entry in the command catalogue: whether it runs
// entirely locally, is never typed directly by a user, and whether it
// requires admin rights.
type Command struct {
	Name        string
	Description string
	Usage       string
	Internal    bool // executes locally, no socket I/O
	Passive     bool // never typed; only produced by another command's effect
	Restricted  bool // requires admin rights
}

// Catalogue is the full set of recognized commands, keyed by uppercase name.
var Catalogue = map[string]Command{
	"HELP": {
		Name: "HELP", Internal: true,
		Description: "List available commands, or describe one in detail.",
		Usage:       "HELP [command]",
	},
	"CLS": {
		Name: "CLS", Internal: true,
		Description: "Clear the local screen.",
		Usage:       "CLS",
	},
	"DC": {
		Name: "DC",
		Description: "Disconnect from the server.",
		Usage:       "DC",
	},
	"LIST": {
		Name: "LIST",
		Description: "List the users currently online.",
		Usage:       "LIST",
	},
	"FIND": {
		Name: "FIND",
		Description: "Look up a user's network address.",
		Usage:       "FIND <name>",
	},
	"TELL": {
		Name: "TELL", Restricted: true,
		Description: "Send a direct message to a user's chat window.",
		Usage:       "TELL <name> <message>",
	},
	"CHECK": {
		Name: "CHECK",
		Description: "Check whether a user is currently busy with a command.",
		Usage:       "CHECK <name>",
	},
	"VISIBILITY": {
		Name: "VISIBILITY", Restricted: true,
		Description: "Toggle your own visibility in LIST output.",
		Usage:       "VISIBILITY <0|1>",
	},
	"ADMIN": {
		Name: "ADMIN", Restricted: true,
		Description: "Grant a user admin rights.",
		Usage:       "ADMIN <name>",
	},
	"BECOME_ADMIN": {
		Name: "BECOME_ADMIN", Passive: true,
		Description: "Received when another admin elevates you.",
	},
	"DEMOTE": {
		Name: "DEMOTE", Restricted: true,
		Description: "Revoke a user's admin rights.",
		Usage:       "DEMOTE <name>",
	},
	"GET_DEMOTED": {
		Name: "GET_DEMOTED", Passive: true,
		Description: "Received when an admin revokes your rights.",
	},
	"KICK": {
		Name: "KICK", Restricted: true,
		Description: "Force-disconnect a user.",
		Usage:       "KICK <name> [reason]",
	},
	"GET_KICKED": {
		Name: "GET_KICKED", Passive: true,
		Description: "Received when an admin disconnects you.",
	},
	"SEND": {
		Name: "SEND",
		Description: "Send a file to another user.",
		Usage:       "SEND <name> <path>...",
	},
	"RECEIVE": {
		Name: "RECEIVE", Passive: true,
		Description: "Received when another user sends you a file.",
	},
	"QUOTE": {
		Name: "QUOTE",
		Description: "Request a random stanza from the server's quotation collection.",
		Usage:       "QUOTE",
	},
	"NETSTATS": {
		Name: "NETSTATS", Restricted: true,
		Description: "Show a best-effort snapshot of the server host's TCP sockets.",
		Usage:       "NETSTATS",
	},
}

// Lookup returns the Command for name (case-insensitive) and whether it was
// found.
func Lookup(name string) (Command, bool) {
	c, ok := Catalogue[strings.ToUpper(name)]
	return c, ok
}
