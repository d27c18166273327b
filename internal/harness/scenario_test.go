package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario next to a copy of the basic survey.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	survey, err := os.ReadFile(filepath.Join("testdata", "surveys", "basic.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basic.yaml"), survey, 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: minimal
description: "Start only"
survey: basic.yaml
mode: all_in_one
lang: de
seeds: [a, b]
steps:
  - direction: start
    expect:
      index: Groups(G1,G2,G3)
  - direction: jump
    index: Group(G2)
    values: {Q1.value: "x"}
    skip_invalid: true
assertions:
  - type: visit_count
    code: G2
    count: 2
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "basic.yaml"), scenario.Survey)
	assert.Equal(t, "all_in_one", scenario.Mode)
	assert.Equal(t, []string{"a", "b"}, scenario.Seeds)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "Groups(G1,G2,G3)", scenario.Steps[0].Expect.Index)
	assert.Equal(t, "Group(G2)", scenario.Steps[1].Index)
	assert.Equal(t, map[string]any{"Q1.value": "x"}, scenario.Steps[1].Values)
	assert.True(t, scenario.Steps[1].SkipInvalid)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "misspelled steps"
survey: basic.yaml
step:
  - direction: start
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nsurvey: basic.yaml\nsteps: [{direction: start}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nsurvey: basic.yaml\nsteps: [{direction: start}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing survey file",
			content: "name: n\ndescription: d\nsurvey: other.yaml\nsteps: [{direction: start}]\n",
			wantErr: "survey file not found",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\nsurvey: basic.yaml\n",
			wantErr: "steps list is required",
		},
		{
			name:    "bad mode",
			content: "name: n\ndescription: d\nsurvey: basic.yaml\nmode: paged\nsteps: [{direction: start}]\n",
			wantErr: "mode",
		},
		{
			name:    "bad direction",
			content: "name: n\ndescription: d\nsurvey: basic.yaml\nsteps: [{direction: sideways}]\n",
			wantErr: "steps[0]",
		},
		{
			name:    "jump without index",
			content: "name: n\ndescription: d\nsurvey: basic.yaml\nsteps: [{direction: jump}]\n",
			wantErr: "jump requires an index",
		},
		{
			name:    "expect without index",
			content: "name: n\ndescription: d\nsurvey: basic.yaml\nsteps: [{direction: start, expect: {visible: [Q1]}}]\n",
			wantErr: "expect: index is required",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\nsurvey: basic.yaml\nsteps: [{direction: start}]\nassertions: [{type: trace_contains}]\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "visited without codes",
			content: "name: n\ndescription: d\nsurvey: basic.yaml\nsteps: [{direction: start}]\nassertions: [{type: visited}]\n",
			wantErr: "codes list is required",
		},
		{
			name:    "empty final state",
			content: "name: n\ndescription: d\nsurvey: basic.yaml\nsteps: [{direction: start}]\nassertions: [{type: final_state}]\n",
			wantErr: "index or values is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
