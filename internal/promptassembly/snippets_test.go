package promptassembly

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fenced-run/agentrt/internal/skills"
)

func writeSkillFile(t *testing.T, dir, filename, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(body), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", filename, err)
	}
}

func TestSnippetsFromRegistrySkipsDisabledSkills(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkillFile(t, tmpDir, "weather.md", `---
name: weather
version: 1.0.0
category: tools
description: weather lookup
---

Looks up weather.
`)
	writeSkillFile(t, tmpDir, "disabled.md", `---
name: disabled
version: 1.0.0
category: tools
description: turned off
enabled: false
---

Off by default.
`)

	r := skills.NewRegistry()
	if err := r.LoadDirectory(tmpDir); err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	snippets := SnippetsFromRegistry(r)
	if len(snippets) != 1 {
		t.Fatalf("expected 1 snippet, got %d: %+v", len(snippets), snippets)
	}
	if snippets[0].Name != "weather" {
		t.Errorf("expected weather snippet, got %s", snippets[0].Name)
	}
	if snippets[0].Description != "weather lookup" {
		t.Errorf("expected description to round-trip, got %q", snippets[0].Description)
	}
}

func TestSnippetsFromRegistryEmpty(t *testing.T) {
	r := skills.NewRegistry()
	snippets := SnippetsFromRegistry(r)
	if len(snippets) != 0 {
		t.Errorf("expected no snippets from empty registry, got %d", len(snippets))
	}
}
