package workflow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
id: enrich-lead
name: Enrich lead
description: Look a company up and score it
steps:
  - id: lookup
    capability: lookup-company
    input:
      domain: example.com
    outputVariable: company
  - id: score
    capability: score-lead
    input:
      company: $company
      weights:
        size: 2
`

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "enrich-lead", def.ID)
	require.Len(t, def.Steps, 2)
	assert.Equal(t, "lookup", def.Steps[0].ID)
	assert.Equal(t, "company", def.Steps[0].OutputVariable)
	assert.Equal(t, "example.com", def.Steps[0].Input["domain"])
	assert.Equal(t, "$company", def.Steps[1].Input["company"])

	weights, ok := def.Steps[1].Input["weights"].(map[string]any)
	require.True(t, ok, "nested input maps must decode as map[string]any")
	assert.Equal(t, 2, weights["size"])
}

func TestParseDefinition_InvalidYAML(t *testing.T) {
	_, err := ParseDefinition([]byte("steps: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse workflow definition")
}

func TestParseDefinition_FailsValidation(t *testing.T) {
	_, err := ParseDefinition([]byte("id: wf\nsteps: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no steps")
}

func TestReadDefinition(t *testing.T) {
	def, err := ReadDefinition(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "enrich-lead", def.ID)
}

func TestLoadDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	def, err := LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "enrich-lead", def.ID)

	_, err = LoadDefinition(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
