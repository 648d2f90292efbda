package promptassembly

import "testing"

func baseTemplate() *BaseTemplate {
	return &BaseTemplate{
		Name:     "core",
		Preamble: "You are a helpful assistant.",
		Sections: []TemplateSection{
			{Title: "Tools", Content: "Use the run fence to execute code."},
		},
	}
}

func TestAssembleOrdersSkillsByName(t *testing.T) {
	out, err := Assemble(baseTemplate(), []SkillSnippet{
		{Name: "zeta", Description: "z skill", Content: "z content"},
		{Name: "alpha", Description: "a skill", Content: "a content"},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	alphaIdx := indexOf(out, "### alpha")
	zetaIdx := indexOf(out, "### zeta")
	if alphaIdx == -1 || zetaIdx == -1 {
		t.Fatalf("expected both skill headings in output:\n%s", out)
	}
	if alphaIdx > zetaIdx {
		t.Errorf("expected alpha before zeta, got alpha@%d zeta@%d", alphaIdx, zetaIdx)
	}
}

func TestAssembleIncludesPreambleAndSections(t *testing.T) {
	out, err := Assemble(baseTemplate(), nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if indexOf(out, "You are a helpful assistant.") == -1 {
		t.Errorf("expected preamble in output:\n%s", out)
	}
	if indexOf(out, "## Tools") == -1 {
		t.Errorf("expected Tools section heading in output:\n%s", out)
	}
	if indexOf(out, "## Skills") != -1 {
		t.Errorf("expected no Skills section when no skills given:\n%s", out)
	}
}

func TestAssembleRejectsDuplicateSkillNames(t *testing.T) {
	_, err := Assemble(baseTemplate(), []SkillSnippet{
		{Name: "alpha", Content: "one"},
		{Name: "alpha", Content: "two"},
	})
	if err == nil {
		t.Fatal("expected error for duplicate skill name")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Issues[0].Code != "skill_name_duplicate" {
		t.Errorf("unexpected code: %s", verr.Issues[0].Code)
	}
}

func TestAssembleRejectsInvalidBaseTemplate(t *testing.T) {
	_, err := Assemble(&BaseTemplate{}, nil)
	if err == nil {
		t.Fatal("expected error for invalid base template")
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
