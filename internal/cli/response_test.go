package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storedResponse navigates basic.yaml one step past G1 under response r1.
func storedResponse(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "surveys.db")
	_, err := execute(t, NewNavigateCommand(jsonOpts()), basicSurvey, "--store", dbPath, "--response", "r1")
	require.NoError(t, err)
	_, err = execute(t, NewNavigateCommand(jsonOpts()),
		"--store", dbPath, "--response", "r1", "--direction", "next", "--values", valuesNo)
	require.NoError(t, err)
	return dbPath
}

func TestResponseText(t *testing.T) {
	dbPath := storedResponse(t)

	out, err := execute(t, NewResponseCommand(textOpts()), "r1", "--store", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Response r1")
	assert.Contains(t, out, "position: Group(G2)")
	assert.Contains(t, out, "mode:     GROUP_BY_GROUP")
	assert.Contains(t, out, "Values:")
	assert.Contains(t, out, "Q1.value = no")
	assert.Contains(t, out, "Q2.value = maybe")
}

func TestResponseComponentFilter(t *testing.T) {
	dbPath := storedResponse(t)

	out, err := execute(t, NewResponseCommand(jsonOpts()), "r1", "--store", dbPath, "--component", "Q2")
	require.NoError(t, err)

	_, view := decodeJSON(t, out)
	values := view["values"].(map[string]any)
	assert.Equal(t, "maybe", values["Q2.value"])
	assert.NotContains(t, values, "Q1.value")
}

func TestResponseNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "surveys.db")

	out, err := execute(t, NewResponseCommand(jsonOpts()), "ghost", "--store", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, _ := decodeJSON(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "response ghost not found")
}

func TestResponseNoStore(t *testing.T) {
	_, err := execute(t, NewResponseCommand(textOpts()), "r1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFilterValues(t *testing.T) {
	values := map[string]any{"Q1.value": "a", "Q10.value": "b", "Q1.relevance": true}

	assert.Len(t, filterValues(values, ""), 3)
	assert.Equal(t, map[string]any{"Q1.value": "a", "Q1.relevance": true}, map[string]any(filterValues(values, "Q1")))
}
