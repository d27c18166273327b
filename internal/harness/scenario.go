package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// Scenario defines a navigation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Survey is the survey definition file (YAML, JSON or CUE).
	// Relative paths are resolved against the scenario file's directory.
	Survey string `yaml:"survey"`

	// Mode is the navigation mode of every step unless a step overrides it.
	// Defaults to GROUP_BY_GROUP.
	Mode string `yaml:"mode,omitempty"`

	// Lang is the survey language. Defaults to "en".
	Lang string `yaml:"lang,omitempty"`

	// Seeds are handed out in order to steps that draw a layout; the last
	// one repeats. Defaults to ["seed-1"].
	Seeds []string `yaml:"seeds,omitempty"`

	// Steps are the navigation requests, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the whole trace and the stored response.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one navigation request.
type Step struct {
	// Direction is a direction name: start, next, previous, jump, resume
	// or change_language.
	Direction string `yaml:"direction"`

	// Index is the jump target. Required for jump only.
	Index string `yaml:"index,omitempty"`

	// Mode overrides the scenario mode from this step on.
	Mode string `yaml:"mode,omitempty"`

	// Lang overrides the scenario language from this step on.
	Lang string `yaml:"lang,omitempty"`

	// Values are merged into the stored response before navigating.
	Values map[string]any `yaml:"values,omitempty"`

	// SkipInvalid lets the step move past invalid units.
	SkipInvalid bool `yaml:"skip_invalid,omitempty"`

	// Expect is checked against the step's outcome.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Index is the expected resulting index.
	Index string `yaml:"index"`

	// Visible, if set, lists the questions shown, in order.
	Visible []string `yaml:"visible,omitempty"`

	// Bindings is a subset of the evaluated state, keyed "Component.field".
	Bindings map[string]any `yaml:"bindings,omitempty"`
}

// Assertion validates the trace or the stored response.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Codes are the components of visited and never_visited.
	Codes []string `yaml:"codes,omitempty"`

	// Code and Count are used by visit_count.
	Code  string `yaml:"code,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Index and Values are used by final_state. Values is a subset match.
	Index  string         `yaml:"index,omitempty"`
	Values map[string]any `yaml:"values,omitempty"`
}

// Assertion type constants.
const (
	AssertVisited      = "visited"
	AssertNeverVisited = "never_visited"
	AssertVisitCount   = "visit_count"
	AssertFinalState   = "final_state"
)

// LoadScenario reads and parses a scenario YAML file, resolving the survey
// path against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Survey != "" && !filepath.IsAbs(scenario.Survey) {
		scenario.Survey = filepath.Join(filepath.Dir(path), scenario.Survey)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Survey == "" {
		return fmt.Errorf("survey is required")
	}
	if _, err := os.Stat(s.Survey); os.IsNotExist(err) {
		return fmt.Errorf("survey file not found: %s", s.Survey)
	}
	if s.Mode != "" {
		if _, err := ir.ParseNavigationMode(s.Mode); err != nil {
			return fmt.Errorf("mode: %w", err)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	if step.Direction == "" {
		return fmt.Errorf("steps[%d]: direction is required", index)
	}
	if _, err := direction(step); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	if step.Mode != "" {
		if _, err := ir.ParseNavigationMode(step.Mode); err != nil {
			return fmt.Errorf("steps[%d].mode: %w", index, err)
		}
	}
	if step.Expect != nil {
		if step.Expect.Index == "" {
			return fmt.Errorf("steps[%d].expect: index is required", index)
		}
		if _, err := ir.ParseIndexString(step.Expect.Index); err != nil {
			return fmt.Errorf("steps[%d].expect: %w", index, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertVisited, AssertNeverVisited:
		if len(a.Codes) == 0 {
			return fmt.Errorf("assertions[%d]: codes list is required for %s", index, a.Type)
		}
	case AssertVisitCount:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for visit_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for visit_count", index)
		}
	case AssertFinalState:
		if a.Index == "" && len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: index or values is required for final_state", index)
		}
		if a.Index != "" {
			if _, err := ir.ParseIndexString(a.Index); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// direction builds the navigation direction of a step.
func direction(step *Step) (ir.NavigationDirection, error) {
	if step.Direction == "jump" {
		if step.Index == "" {
			return nil, fmt.Errorf("jump requires an index")
		}
		idx, err := ir.ParseIndexString(step.Index)
		if err != nil {
			return nil, err
		}
		return ir.JumpDirection{Index: idx}, nil
	}
	return ir.ParseDirectionName(step.Direction)
}
