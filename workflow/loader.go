package workflow

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseDefinition decodes a YAML workflow definition and validates it.
//
// Example document:
//
//	id: enrich-lead
//	name: Enrich lead
//	steps:
//	  - id: lookup
//	    capability: lookup-company
//	    input:
//	      domain: example.com
//	    outputVariable: company
//	  - id: score
//	    capability: score-lead
//	    input:
//	      company: $company
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse workflow definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// ReadDefinition decodes a YAML workflow definition from r.
func ReadDefinition(r io.Reader) (*Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workflow definition: %w", err)
	}
	return ParseDefinition(data)
}

// LoadDefinition reads and decodes a YAML workflow definition from path.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load workflow definition: %w", err)
	}
	return ParseDefinition(data)
}
