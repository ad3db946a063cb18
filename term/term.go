// Package term defines the Collaborator interface the core protocol code
// uses to talk to whatever terminal UI is driving a session, plus a minimal
// concrete implementation and a no-op stand-in for tests and headless use.
//
// The core never assumes a curses-style screen; it only needs to append
// attributed lines, change the input prompt, and read timed responses. Real
// terminal concerns -- scrolling, cursor placement, history, pasting,
// resizing -- are out of scope (see spec.md §1's stated external
// collaborators) and live entirely inside a Collaborator implementation.
package term

import "time"

// Collaborator is the surface the dispatcher and transfer code use to
// present output and collect input. Prompts and responses are plain
// strings; attrs are framing.Attr-shaped pairs but kept untyped here
// (Property, Color byte) to avoid a dependency on the framing package for
// what is, from this package's point of view, just a display hint.
type Collaborator interface {
	// Add appends one line of output with the given property/color pair.
	Add(text string, property, color byte)

	// Display redraws the view. If showLatest is true the view scrolls to
	// the most recent line.
	Display(showLatest bool)

	// SetPrompt changes the input box's prompt text, used both for the
	// normal `[name]:` prompt and transient `[xx%]`/`[<t>s]` indicators.
	SetPrompt(prompt string)

	// GetResponse reads one line of input, polling every period up to
	// timeout. A prompt is shown while waiting; if alertAt is nonzero, the
	// prompt recolors once timeout-alertAt has elapsed. An empty string
	// return means the read timed out.
	GetResponse(prompt string, period, timeout, alertAt time.Duration, color byte) string

	// GetBinaryResponse is GetResponse specialized to a yes/no answer; it
	// returns false on timeout or an unrecognized response.
	GetBinaryResponse(prompt string, period, timeout, alertAt time.Duration, color byte) bool

	// Pause shows msg and blocks until the user acknowledges it.
	Pause(msg string)

	// Quit tears down the collaborator's resources.
	Quit()

	// Clear removes all output lines.
	Clear()

	// Scrap removes all lines previously added with the "removable"
	// property, leaving the rest of the scrollback intact.
	Scrap()
}
