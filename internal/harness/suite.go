package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total   int              `json:"total"`
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Results []ScenarioResult `json:"scenarios"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Pass    bool     `json:"pass"`
	Steps   int      `json:"steps"`
	Updated bool     `json:"updated,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// FindScenarios returns the YAML files under dir whose base name matches
// the glob filter, sorted by path. An empty filter matches everything.
func FindScenarios(dir, filter string) ([]string, error) {
	if _, err := filepath.Match(filter, ""); err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
	}
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := filepath.Base(path)
			if ok, _ := filepath.Match(filter, name[:len(name)-len(ext)]); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// GoldenDir holds {scenario name}.golden trace files. Empty disables
	// golden checks; a scenario without a golden file is checked by its
	// expectations and assertions only.
	GoldenDir string
	// Update rewrites the golden files instead of comparing.
	Update bool
}

// RunFiles loads and runs each scenario file. Load and execution errors
// count as failures; they never abort the suite.
func RunFiles(paths []string) *SuiteResult {
	return RunSuite(paths, SuiteOptions{})
}

// RunSuite runs each scenario file, checking traces against golden files
// when opts names a directory.
func RunSuite(paths []string, opts SuiteOptions) *SuiteResult {
	suite := &SuiteResult{Results: make([]ScenarioResult, 0, len(paths))}
	for _, path := range paths {
		sr := runFile(path, opts)
		suite.Total++
		if sr.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
		suite.Results = append(suite.Results, sr)
	}
	return suite
}

func runFile(path string, opts SuiteOptions) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(path), Path: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := Run(scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return sr
	}
	sr.Steps = len(result.Trace)

	if opts.GoldenDir != "" {
		golden := GoldenPath(opts.GoldenDir, scenario.Name)
		switch _, statErr := os.Stat(golden); {
		case opts.Update:
			if err := WriteGolden(golden, scenario.Name, result); err != nil {
				result.AddError(err.Error())
			} else {
				sr.Updated = true
			}
		case statErr == nil:
			match, err := CompareGolden(golden, scenario.Name, result)
			if err != nil {
				result.AddError(err.Error())
			} else if !match {
				result.AddError(fmt.Sprintf("trace does not match golden file %s", golden))
			}
		}
	}

	sr.Pass = result.Pass
	if !result.Pass {
		sr.Errors = result.Errors
	}
	return sr
}
