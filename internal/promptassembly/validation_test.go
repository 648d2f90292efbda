package promptassembly

import (
	"strings"
	"testing"
)

func TestValidateBaseTemplateSuccess(t *testing.T) {
	tpl := &BaseTemplate{
		Name:     "core",
		Preamble: "You are a helpful assistant.",
		Sections: []TemplateSection{
			{Title: "Tools", Content: "Use the run fence to execute code."},
			{Title: "Style", Content: "Be concise."},
		},
	}
	if err := ValidateBaseTemplate(tpl); err != nil {
		t.Fatalf("expected valid template, got %v", err)
	}
}

func TestValidateBaseTemplateNil(t *testing.T) {
	err := ValidateBaseTemplate(nil)
	if err == nil {
		t.Fatal("expected error for nil template")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Issues[0].Code != "base_template_nil" {
		t.Errorf("unexpected code: %s", verr.Issues[0].Code)
	}
}

func TestValidateBaseTemplateMissingNameAndPreamble(t *testing.T) {
	err := ValidateBaseTemplate(&BaseTemplate{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	verr := err.(*ValidationError)
	if len(verr.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d: %v", len(verr.Issues), verr.Messages())
	}
	if !strings.Contains(verr.Error(), "validation errors") {
		t.Errorf("expected aggregated error message, got %q", verr.Error())
	}
}

func TestValidateBaseTemplateDuplicateSectionTitle(t *testing.T) {
	tpl := &BaseTemplate{
		Name:     "core",
		Preamble: "hi",
		Sections: []TemplateSection{
			{Title: "Tools", Content: "a"},
			{Title: "Tools", Content: "b"},
		},
	}
	err := ValidateBaseTemplate(tpl)
	if err == nil {
		t.Fatal("expected duplicate-section error")
	}
	verr := err.(*ValidationError)
	if verr.Issues[0].Code != "section_title_duplicate" {
		t.Errorf("unexpected code: %s", verr.Issues[0].Code)
	}
}
