package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlarr-surveys/survey-engine/internal/engine"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

// =============================================================================
// Golden Trace Tests
// =============================================================================

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"skip_ahead", "validation_blocks_next", "question_by_question"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRun_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "skip_ahead")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	scenario := loadTestScenario(t, "skip_ahead")
	scenario.Steps[1].Expect = &Expect{Index: "Group(G2)", Visible: []string{"Q3"}}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "step 2: index = Group(G3), want Group(G2)")
	assert.Contains(t, result.Errors[1], "step 2: visible")
}

func TestRun_BindingMismatch(t *testing.T) {
	scenario := loadTestScenario(t, "skip_ahead")
	scenario.Steps[1].Expect.Bindings = map[string]any{
		"G2.relevance": true,
		"G9.relevance": true,
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "binding G2.relevance = false, want true")
	assert.Contains(t, result.Errors[1], "binding G9.relevance missing")
}

func TestRun_SkipInvalid(t *testing.T) {
	scenario := loadTestScenario(t, "validation_blocks_next")
	scenario.Steps[2].SkipInvalid = true
	scenario.Steps[2].Expect = &Expect{Index: "Group(G3)"}
	scenario.Steps = scenario.Steps[:3]
	scenario.Assertions = nil

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_DesignWithErrors(t *testing.T) {
	scenario := &Scenario{
		Name:   "broken",
		Survey: filepath.Join("testdata", "surveys", "broken.yaml"),
		Steps:  []Step{{Direction: "start"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrDesignHasErrors)
}

func TestRun_MissingSurvey(t *testing.T) {
	scenario := &Scenario{
		Name:   "missing",
		Survey: filepath.Join(t.TempDir(), "nope.yaml"),
		Steps:  []Step{{Direction: "start"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load survey")
}

// =============================================================================
// Suite Tests
// =============================================================================

func TestFindScenarios(t *testing.T) {
	dir := filepath.Join("testdata", "scenarios")

	all, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "question_by_question.yaml"),
		filepath.Join(dir, "skip_ahead.yaml"),
		filepath.Join(dir, "validation_blocks_next.yaml"),
	}, all)

	filtered, err := FindScenarios(dir, "skip_*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "skip_ahead.yaml")}, filtered)

	_, err = FindScenarios(dir, "[")
	assert.Error(t, err)
}

func TestRunFiles(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: bad\n"), 0o644))

	suite := RunFiles([]string{
		filepath.Join("testdata", "scenarios", "skip_ahead.yaml"),
		bad,
	})

	assert.Equal(t, 2, suite.Total)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
	assert.Equal(t, "skip_ahead", suite.Results[0].Name)
	assert.Equal(t, 5, suite.Results[0].Steps)
	assert.False(t, suite.Results[1].Pass)
	assert.Contains(t, suite.Results[1].Errors[0], "failed to load scenario")
}

func TestRunSuite_Golden(t *testing.T) {
	path := filepath.Join("testdata", "scenarios", "skip_ahead.yaml")

	suite := RunSuite([]string{path}, SuiteOptions{GoldenDir: filepath.Join("testdata", "golden")})
	require.Equal(t, 1, suite.Passed, "errors: %v", suite.Results[0].Errors)

	dir := t.TempDir()
	suite = RunSuite([]string{path}, SuiteOptions{GoldenDir: dir, Update: true})
	require.Equal(t, 1, suite.Passed)
	assert.True(t, suite.Results[0].Updated)

	written, err := os.ReadFile(GoldenPath(dir, "skip_ahead"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join("testdata", "golden", "skip_ahead.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	require.NoError(t, os.WriteFile(GoldenPath(dir, "skip_ahead"), []byte(`{"trace":[]}`), 0o644))
	suite = RunSuite([]string{path}, SuiteOptions{GoldenDir: dir})
	assert.Equal(t, 1, suite.Failed)
	assert.Contains(t, suite.Results[0].Errors[0], "does not match golden file")
}

func TestRunSuite_MissingGoldenIsSkipped(t *testing.T) {
	path := filepath.Join("testdata", "scenarios", "skip_ahead.yaml")
	suite := RunSuite([]string{path}, SuiteOptions{GoldenDir: t.TempDir()})
	assert.Equal(t, 1, suite.Passed)
	assert.False(t, suite.Results[0].Updated)
}
