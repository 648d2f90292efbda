package promptassembly

import "github.com/fenced-run/agentrt/internal/skills"

// SnippetsFromRegistry projects every enabled skill in r into SkillSnippets
// ready for Assemble. Disabled skills carry no weight in the system prompt,
// mirroring SkillRegistry.Globals' own enabled-only filter.
func SnippetsFromRegistry(r *skills.SkillRegistry) []SkillSnippet {
	summaries := r.List()
	out := make([]SkillSnippet, 0, len(summaries))
	for _, s := range summaries {
		if !s.Enabled {
			continue
		}
		entry, ok := r.Get(s.Name)
		if !ok {
			continue
		}
		out = append(out, SkillSnippet{
			Name:        entry.Skill.Name,
			Description: entry.Skill.Description,
			Content:     entry.Skill.Content,
		})
	}
	return out
}
