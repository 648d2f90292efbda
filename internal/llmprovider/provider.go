// Package llmprovider abstracts the LLM object the interaction loop drives:
// a stream of text chunks per turn, with a history/rollback contract the
// loop never has to manage itself.
package llmprovider

import "strings"

// DetectProvider maps a model name to the backing provider family, the same
// pattern-matching shape as this codebase's original model-routing helper,
// trimmed to the two providers this runtime ships adapters for.
func DetectProvider(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gpt-"), strings.Contains(m, "o1"), strings.Contains(m, "o3"), strings.HasPrefix(m, "gpt"):
		return "openai"
	case strings.Contains(m, "claude"), strings.Contains(m, "opus"), strings.Contains(m, "sonnet"), strings.Contains(m, "haiku"):
		return "anthropic"
	default:
		return "openai"
	}
}
