package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
	"github.com/qlarr-surveys/survey-engine/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s -> %s\n", event.Step, event.Direction, event.To)
	}

	return buf.String()
}

// shownCodes returns the components an index string displays.
func shownCodes(index string) []string {
	idx, err := ir.ParseIndexString(index)
	if err != nil {
		return nil
	}
	switch v := idx.(type) {
	case ir.GroupIndex:
		return []string{v.ID}
	case ir.GroupsIndex:
		return v.IDs
	case ir.QuestionIndex:
		return []string{v.ID}
	case ir.EndIndex:
		return []string{v.GroupID}
	}
	return nil
}

// firstVisits maps each shown code to the first step showing it.
func firstVisits(trace []TraceEvent) map[string]int {
	visits := make(map[string]int)
	for _, event := range trace {
		for _, code := range shownCodes(event.To) {
			if _, seen := visits[code]; !seen {
				visits[code] = event.Step
			}
		}
	}
	return visits
}

// assertVisited checks that the codes were shown, first visits in order.
// Other steps may come between them.
func assertVisited(trace []TraceEvent, assertion Assertion) error {
	visits := firstVisits(trace)

	for _, code := range assertion.Codes {
		if _, ok := visits[code]; !ok {
			return &AssertionError{
				Type:     AssertVisited,
				Expected: fmt.Sprintf("all codes shown: %v", assertion.Codes),
				Actual:   fmt.Sprintf("never shown: %s", code),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Codes); i++ {
		prev, curr := assertion.Codes[i-1], assertion.Codes[i]
		if visits[prev] >= visits[curr] {
			return &AssertionError{
				Type:     AssertVisited,
				Expected: fmt.Sprintf("codes in order: %v", assertion.Codes),
				Actual: fmt.Sprintf("%s (step %d) should be before %s (step %d)",
					prev, visits[prev], curr, visits[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertNeverVisited checks that no step showed any of the codes.
func assertNeverVisited(trace []TraceEvent, assertion Assertion) error {
	visits := firstVisits(trace)
	for _, code := range assertion.Codes {
		if step, ok := visits[code]; ok {
			return &AssertionError{
				Type:     AssertNeverVisited,
				Expected: fmt.Sprintf("%s never shown", code),
				Actual:   fmt.Sprintf("shown at step %d", step),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertVisitCount checks that the code was shown exactly Count times.
func assertVisitCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if slices.Contains(shownCodes(event.To), assertion.Code) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertVisitCount,
			Expected: fmt.Sprintf("%d visits of %s", assertion.Count, assertion.Code),
			Actual:   fmt.Sprintf("%d visits", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState reads the stored response and checks its index and
// values (subset match).
func assertFinalState(ctx context.Context, st *store.Store, trace []TraceEvent, assertion Assertion) error {
	resp, err := st.LoadResponse(ctx, ResponseID)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "a stored response",
			Actual:   "no response stored",
			Trace:    trace,
		}
	}
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	if assertion.Index != "" && ir.IndexString(resp.Index) != assertion.Index {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("index %s", assertion.Index),
			Actual:   fmt.Sprintf("index %s", ir.IndexString(resp.Index)),
			Trace:    trace,
		}
	}

	for _, key := range slices.Sorted(maps.Keys(assertion.Values)) {
		want := assertion.Values[key]
		got, ok := resp.Values[key]
		if !ok || !valuesEqual(got, want) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v", key, want),
				Actual:   fmt.Sprintf("%s = %v", key, got),
				Trace:    trace,
			}
		}
	}
	return nil
}

// valuesEqual compares two values by their canonical JSON, so numbers
// decoded from YAML, the evaluator and the store compare equal.
func valuesEqual(actual, expected any) bool {
	a, err := ir.MarshalCanonical(actual)
	if err != nil {
		return false
	}
	e, err := ir.MarshalCanonical(expected)
	if err != nil {
		return false
	}
	return bytes.Equal(a, e)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertVisited:
			err = assertVisited(result.Trace, assertion)
		case AssertNeverVisited:
			err = assertNeverVisited(result.Trace, assertion)
		case AssertVisitCount:
			err = assertVisitCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, result.Trace, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
