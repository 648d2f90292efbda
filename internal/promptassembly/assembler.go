package promptassembly

import (
	"fmt"
	"sort"
	"strings"
)

// Assemble concatenates base's preamble and sections with every skill
// snippet, sorted by name for a deterministic prompt across reloads, into
// the final system prompt handed to the LLM object for a turn. Where the
// teacher's CompileTemplate topologically orders DAG nodes by dependency,
// there is only one node here — the ordering problem collapses to a sort,
// not a graph walk.
func Assemble(base *BaseTemplate, skills []SkillSnippet) (string, error) {
	if err := ValidateBaseTemplate(base); err != nil {
		return "", err
	}

	var issues []ValidationIssue
	seen := make(map[string]struct{}, len(skills))
	for _, sk := range skills {
		if _, dup := seen[sk.Name]; dup {
			issues = append(issues, ValidationIssue{Code: "skill_name_duplicate", Message: fmt.Sprintf("duplicate skill name '%s'", sk.Name)})
			continue
		}
		seen[sk.Name] = struct{}{}
	}
	if len(issues) > 0 {
		return "", &ValidationError{Issues: issues}
	}

	ordered := append([]SkillSnippet(nil), skills...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	var b strings.Builder
	b.WriteString(strings.TrimSpace(base.Preamble))
	b.WriteString("\n")

	for _, sec := range base.Sections {
		b.WriteString("\n## ")
		b.WriteString(sec.Title)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(sec.Content))
		b.WriteString("\n")
	}

	if len(ordered) > 0 {
		b.WriteString("\n## Skills\n")
		for _, sk := range ordered {
			b.WriteString("\n### ")
			b.WriteString(sk.Name)
			b.WriteString("\n")
			if sk.Description != "" {
				b.WriteString(sk.Description)
				b.WriteString("\n")
			}
			content := strings.TrimSpace(sk.Content)
			if content != "" {
				b.WriteString(content)
				b.WriteString("\n")
			}
		}
	}

	return b.String(), nil
}
