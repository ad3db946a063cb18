// Package poem is an opaque source of random quotations, used as flavor
// text by the QUOTE command and by VISIBILITY when a user re-hides
// themselves. Grounded on original_source/simple_server.py's standalone
// "poem" request path, which returns one random stanza from a fixed
// collection rather than anything computed from request state.
package poem

import "math/rand"

var stanzas = []string{
	"The lock upon the door is set,\nbut friends may pass unchallenged yet.",
	"A message sent is never lost,\nit travels on, whatever the cost.",
	"Quiet now, the wire is still,\nwaiting on a keystroke's will.",
	"Hidden names wear masks of stars,\nunseen among the server's bars.",
	"Bytes arrive in ordered file,\nno packet lost, no header vile.",
	"When the mutex finally clears,\nthe waiting message disappears.",
}

// Random returns one stanza chosen uniformly at random from the
// collection.
func Random() string {
	return stanzas[rand.Intn(len(stanzas))]
}
