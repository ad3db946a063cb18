// Package transfer implements the server-mediated SEND/RECEIVE file
// transfer choreography: a three-party (sender, server, receiver) exchange
// over command sockets, with the payload staged briefly on the server
// between the sender's upload and the receiver's download.
package transfer

import (
	"os"
	"path/filepath"
	"strconv"
)

// UniquePath returns a path in dir for name that does not currently exist,
// appending " (n)" before the extension and incrementing n from 2 until a
// free path is found. If name itself is free in dir, it is returned
// unchanged.
func UniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}

	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	for n := 2; ; n++ {
		candidate = filepath.Join(dir, base+" ("+strconv.Itoa(n)+")"+ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
