package classify

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed references.yaml
var defaultReferences []byte

// ReferenceSet holds the phrases that exemplify each document type
type ReferenceSet struct {
	Check   []string `yaml:"check"`
	Invoice []string `yaml:"invoice"`
}

// DefaultReferences returns the built-in reference phrases
func DefaultReferences() ReferenceSet {
	refs, err := ParseReferences(defaultReferences)
	if err != nil {
		panic(err)
	}
	return refs
}

// LoadReferences reads a reference set from a YAML file
func LoadReferences(path string) (ReferenceSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ReferenceSet{}, fmt.Errorf("reading references: %w", err)
	}
	return ParseReferences(b)
}

// ParseReferences decodes and validates a YAML reference set
func ParseReferences(b []byte) (ReferenceSet, error) {
	var refs ReferenceSet
	if err := yaml.Unmarshal(b, &refs); err != nil {
		return ReferenceSet{}, fmt.Errorf("unmarshaling references: %w", err)
	}
	if err := refs.Validate(); err != nil {
		return ReferenceSet{}, err
	}
	return refs, nil
}

// Validate checks that both document types have at least one phrase
func (r ReferenceSet) Validate() error {
	if len(r.Check) == 0 {
		return fmt.Errorf("at least one check reference phrase is required")
	}
	if len(r.Invoice) == 0 {
		return fmt.Errorf("at least one invoice reference phrase is required")
	}
	return nil
}
