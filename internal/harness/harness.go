package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/qlarr-surveys/survey-engine/internal/compiler"
	"github.com/qlarr-surveys/survey-engine/internal/engine"
	"github.com/qlarr-surveys/survey-engine/internal/expr"
	"github.com/qlarr-surveys/survey-engine/internal/ir"
	"github.com/qlarr-surveys/survey-engine/internal/loader"
	"github.com/qlarr-surveys/survey-engine/internal/store"
	"github.com/qlarr-surveys/survey-engine/internal/testutil"
)

// ResponseID identifies the response a scenario stores after every step.
const ResponseID = "response-1"

// Harness is the scenario execution engine.
// It runs scenarios with fixed seeds and sequential store identifiers.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	design *ir.CompiledSurvey
	logger *slog.Logger
}

// state is the respondent's position between steps.
type state struct {
	current ir.NavigationIndex
	mode    ir.NavigationMode
	lang    string
	values  engine.Values
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load and compile the survey; designs with errors are rejected
// 2. Store the design in a fresh in-memory database
// 3. Navigate each step, storing the response and checking expectations
// 4. Evaluate assertions and return the result with its trace
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	survey, err := loader.Load(scenario.Survey)
	if err != nil {
		return nil, fmt.Errorf("failed to load survey: %w", err)
	}
	cs, err := compiler.Compile(ctx, survey, expr.NewHCLValidator())
	if err != nil {
		return nil, fmt.Errorf("failed to compile survey: %w", err)
	}
	if cs.HasErrors() {
		return nil, fmt.Errorf("survey %s: %w", scenario.Survey, engine.ErrDesignHasErrors)
	}

	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDs("rev")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if _, err := st.SaveDesign(ctx, scenario.Name, cs); err != nil {
		return nil, fmt.Errorf("failed to store design: %w", err)
	}

	seeds := scenario.Seeds
	if len(seeds) == 0 {
		seeds = []string{"seed-1"}
	}
	h := &Harness{
		store:  st,
		engine: engine.New(expr.NewHCLEvaluator(), engine.WithSeedGenerator(engine.NewFixedGenerator(seeds...))),
		design: cs,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	s := &state{
		mode:   ir.ModeGroupByGroup,
		lang:   engine.DefaultLang,
		values: engine.Values{},
	}
	if scenario.Mode != "" {
		if s.mode, err = ir.ParseNavigationMode(scenario.Mode); err != nil {
			return nil, err
		}
	}
	if scenario.Lang != "" {
		s.lang = scenario.Lang
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, s, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeStep navigates one step, stores the response and checks the
// step's expectations.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, s *state, result *Result) error {
	dir, err := direction(&step)
	if err != nil {
		return err
	}
	if step.Mode != "" {
		if s.mode, err = ir.ParseNavigationMode(step.Mode); err != nil {
			return err
		}
	}
	if step.Lang != "" {
		s.lang = step.Lang
	}
	maps.Copy(s.values, step.Values)

	res, err := h.engine.Navigate(ctx, h.design, engine.Request{
		Current:     s.current,
		Direction:   dir,
		Mode:        s.mode,
		Lang:        s.lang,
		Values:      s.values,
		SkipInvalid: step.SkipInvalid,
	})
	if err != nil {
		return err
	}

	event := TraceEvent{
		Direction: ir.DirectionName(dir),
		To:        ir.IndexString(res.Index),
		Visible:   engine.Questions(res.Survey),
		Seed:      res.Seed,
	}
	if s.current != nil {
		event.From = ir.IndexString(s.current)
	}
	result.AddStep(event)

	s.current = res.Index
	maps.Copy(s.values, res.Values)

	if _, err := h.store.SaveResponse(ctx, store.Response{
		ID:         ResponseID,
		DesignHash: h.design.Hash,
		Index:      s.current,
		Mode:       s.mode,
		Lang:       s.lang,
		Values:     s.values,
	}); err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}

	if step.Expect != nil {
		for _, msg := range checkExpect(i+1, step.Expect, event, res.Bindings) {
			result.AddError(msg)
		}
	}

	h.logger.Info("step completed",
		"step", i+1,
		"direction", event.Direction,
		"from", event.From,
		"to", event.To,
	)
	return nil
}

// checkExpect compares a step's outcome with its expectations.
func checkExpect(step int, expect *Expect, event TraceEvent, b engine.Bindings) []string {
	var errs []string
	if event.To != expect.Index {
		errs = append(errs, fmt.Sprintf("step %d: index = %s, want %s", step, event.To, expect.Index))
	}
	if expect.Visible != nil && !slices.Equal(event.Visible, expect.Visible) {
		errs = append(errs, fmt.Sprintf("step %d: visible = %v, want %v", step, event.Visible, expect.Visible))
	}
	flat := engine.Flatten(b, nil)
	for _, key := range slices.Sorted(maps.Keys(expect.Bindings)) {
		want := expect.Bindings[key]
		got, ok := flat[key]
		if !ok {
			errs = append(errs, fmt.Sprintf("step %d: binding %s missing, want %v", step, key, want))
			continue
		}
		if !valuesEqual(got, want) {
			errs = append(errs, fmt.Sprintf("step %d: binding %s = %v, want %v", step, key, got, want))
		}
	}
	return errs
}
