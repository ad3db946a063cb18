package term

import "time"

// Null is a Collaborator that discards all output and never produces
// input. It is useful for tests and for any session run headlessly.
type Null struct{}

func (Null) Add(text string, property, color byte) {}
func (Null) Display(showLatest bool)                {}
func (Null) SetPrompt(prompt string)                {}
func (Null) GetResponse(prompt string, period, timeout, alertAt time.Duration, color byte) string {
	return ""
}
func (Null) GetBinaryResponse(prompt string, period, timeout, alertAt time.Duration, color byte) bool {
	return false
}
func (Null) Pause(msg string) {}
func (Null) Quit()            {}
func (Null) Clear()           {}
func (Null) Scrap()           {}
