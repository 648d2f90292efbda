package promptassembly

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadBaseTemplateFromFile reads a YAML base template from disk.
func LoadBaseTemplateFromFile(path string) (*BaseTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open base template %s: %w", path, err)
	}
	defer f.Close()
	tpl, err := decodeBaseTemplate(f)
	if err != nil {
		return nil, fmt.Errorf("decode base template %s: %w", path, err)
	}
	return tpl, nil
}

// LoadBaseTemplate parses a base template from the provided reader.
func LoadBaseTemplate(r io.Reader) (*BaseTemplate, error) {
	tpl, err := decodeBaseTemplate(r)
	if err != nil {
		return nil, fmt.Errorf("decode base template: %w", err)
	}
	return tpl, nil
}

func decodeBaseTemplate(r io.Reader) (*BaseTemplate, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var tpl BaseTemplate
	if err := dec.Decode(&tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}
