package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("testdata", "scenarios")

// writeScenario writes a scenario over basic.yaml into dir and returns dir.
func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	survey, err := filepath.Abs(basicSurvey)
	require.NoError(t, err)
	content := "name: " + name + "\ndescription: generated\nsurvey: " + survey + "\nmode: GROUP_BY_GROUP\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644))
	return dir
}

const passingSteps = `steps:
  - direction: start
    expect:
      index: Group(G1)
`

func TestTestCommandPasses(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), scenariosDir)
	require.NoError(t, err, "output: %s", out)

	assert.Contains(t, out, "✓ skip_ahead")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(jsonOpts()), scenariosDir)
	require.NoError(t, err)

	resp, data := decodeJSON(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, float64(1), data["passed"])
	assert.Equal(t, float64(0), data["failed"])
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandMissingDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenarios directory not found")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), scenariosDir, "--filter", "nothing_*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	out, err = execute(t, NewTestCommand(textOpts()), scenariosDir, "--filter", "skip_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := writeScenario(t, t.TempDir(), "wrong_start", `steps:
  - direction: start
    expect:
      index: Group(G2)
`)

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_start")
	assert.Contains(t, out, "Group(G2)")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := writeScenario(t, t.TempDir(), "wrong_start", `steps:
  - direction: start
    expect:
      index: Group(G3)
`)

	out, err := execute(t, NewTestCommand(jsonOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp, _ := decodeJSON(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandGoldenUpdate(t *testing.T) {
	dir := writeScenario(t, t.TempDir(), "first_page", passingSteps)
	goldenDir := filepath.Join(t.TempDir(), "golden")
	require.NoError(t, os.MkdirAll(goldenDir, 0o755))

	out, err := execute(t, NewTestCommand(textOpts()), dir, "--golden", goldenDir, "--update")
	require.NoError(t, err, "output: %s", out)
	assert.Contains(t, out, "✓ first_page (golden updated)")

	golden, err := os.ReadFile(filepath.Join(goldenDir, "first_page.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), "Group(G1)")

	// A second run compares against the file just written.
	out, err = execute(t, NewTestCommand(textOpts()), dir, "--golden", goldenDir)
	require.NoError(t, err, "output: %s", out)
	assert.Contains(t, out, "✓ first_page\n")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := writeScenario(t, t.TempDir(), "first_page", passingSteps)
	goldenDir := filepath.Join(dir, "golden")
	require.NoError(t, os.MkdirAll(goldenDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "first_page.golden"), []byte("stale trace\n"), 0o644))

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}
