package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlarr-surveys/survey-engine/internal/store"
)

func TestCompileValidSurvey(t *testing.T) {
	out, err := execute(t, NewCompileCommand(textOpts()), basicSurvey)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled")
	assert.Contains(t, out, "hash:")
	assert.Contains(t, out, "components:")
	assert.NotContains(t, out, "Stored revision")
}

func TestCompileValidSurveyJSON(t *testing.T) {
	out, err := execute(t, NewCompileCommand(jsonOpts()), basicSurvey)
	require.NoError(t, err)

	resp, data := decodeJSON(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, true, data["valid"])
	assert.NotEmpty(t, data["hash"])
	assert.NotContains(t, data, "errors")
	assert.NotEmpty(t, data["schema"])
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := execute(t, NewCompileCommand(textOpts()), basicSurvey, "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote compiled design to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	var design map[string]any
	require.NoError(t, json.Unmarshal(data, &design))
	assert.NotEmpty(t, design["hash"])
	assert.Contains(t, design, "survey")
	assert.Contains(t, design, "skip_manifesto")
}

func TestCompileWriteFailure(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "missing", "compiled.json")

	out, err := execute(t, NewCompileCommand(textOpts()), basicSurvey, "-o", outputFile)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E007]")
}

func TestCompileToStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "designs.db")

	out, err := execute(t, NewCompileCommand(textOpts()), basicSurvey, "--store", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, `of survey "basic" (seq 1)`)

	// Saving the same design again keeps the revision.
	out, err = execute(t, NewCompileCommand(jsonOpts()), basicSurvey, "--store", dbPath)
	require.NoError(t, err)
	_, data := decodeJSON(t, out)
	rev, ok := data["revision"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "basic", rev["survey_id"])
	assert.Equal(t, float64(1), rev["seq"])

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	revs, err := st.ListDesigns(context.Background())
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, data["hash"], revs[0].DesignHash)
}

func TestCompileSurveyID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "designs.db")

	out, err := execute(t, NewCompileCommand(jsonOpts()), basicSurvey, "--store", dbPath, "--survey-id", "wellbeing")
	require.NoError(t, err)

	_, data := decodeJSON(t, out)
	rev := data["revision"].(map[string]any)
	assert.Equal(t, "wellbeing", rev["survey_id"])
}

func TestCompileDesignWithErrors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "designs.db")

	out, err := execute(t, NewCompileCommand(textOpts()), brokenSurvey, "--store", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation found")
	assert.Contains(t, out, "[ForwardDependency] Q1.conditional_relevance: Q2.value")
	assert.Contains(t, out, "Stored revision", "designs with errors are still stored")
}

func TestCompileDesignWithErrorsJSON(t *testing.T) {
	out, err := execute(t, NewCompileCommand(jsonOpts()), brokenSurvey)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp, data := decodeJSON(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDesignErrors, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Details)
	assert.Equal(t, false, data["valid"])
}

func TestCompileLoadErrors(t *testing.T) {
	dir := t.TempDir()
	unsupported := filepath.Join(dir, "survey.txt")
	require.NoError(t, os.WriteFile(unsupported, []byte("x"), 0o644))
	malformed := filepath.Join(dir, "survey.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("code: [Survey"), 0o644))

	tests := []struct {
		name     string
		path     string
		wantCode string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml"), "E005"},
		{"unsupported extension", unsupported, "E008"},
		{"syntax error", malformed, "E004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewCompileCommand(jsonOpts()), tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp, _ := decodeJSON(t, out)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestCompileMissingArgs(t *testing.T) {
	_, err := execute(t, NewCompileCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestSurveyIDFromPath(t *testing.T) {
	assert.Equal(t, "basic", surveyIDFromPath("testdata/surveys/basic.yaml"))
	assert.Equal(t, "survey.v2", surveyIDFromPath("/tmp/survey.v2.cue"))
}
