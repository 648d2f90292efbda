package llmprovider

import "strings"

// Transcript is the pair (captured stdout, execution error) a turn's code
// fences accumulate, fed back to the model as the next turn's input. Both
// fields are normalized: trimmed, with empty strings mapping to absent.
type Transcript struct {
	Logs  string
	Error string
}

// NormalizeTranscript trims logs/err and reports whether the result is
// non-empty (either field present).
func NormalizeTranscript(logs, err string) (Transcript, bool) {
	t := Transcript{Logs: strings.TrimSpace(logs), Error: strings.TrimSpace(err)}
	return t, t.Logs != "" || t.Error != ""
}
