package engine

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/qlarr-surveys/survey-engine/internal/expr"
	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// Bindings is the evaluated state of one navigation step, keyed by
// component code then field.
type Bindings expr.Result

// Relevant reports the relevance of a component. Components without a
// relevance binding are relevant.
func (b Bindings) Relevant(code string) bool {
	return expr.Result(b).Bool(code, ir.CodeRelevance.String(), true)
}

// Valid reports the validity of a component. Components without a validity
// binding are valid.
func (b Bindings) Valid(code string) bool {
	return expr.Result(b).Bool(code, ir.CodeValidity.String(), true)
}

// Values is the flat form of stored response values, keyed by
// "Component.field".
type Values map[string]any

// Get returns the value stored for component and field.
func (v Values) Get(component, field string) (any, bool) {
	x, ok := v[component+"."+field]
	return x, ok
}

// Ints collects the integer values of one field, keyed by component.
// Values that are not integers are ignored.
func (v Values) Ints(field string) map[string]int {
	out := make(map[string]int)
	suffix := "." + field
	for key, x := range v {
		component, ok := strings.CutSuffix(key, suffix)
		if !ok {
			continue
		}
		if n, ok := expr.AsInt(x); ok {
			out[component] = n
		}
	}
	return out
}

// check rejects keys that are not "Component.field".
func (v Values) check() error {
	for _, key := range slices.Sorted(maps.Keys(v)) {
		component, field, ok := strings.Cut(key, ".")
		if !ok || component == "" || field == "" {
			return &NavigationError{
				Code:    ErrCodeInvalidValue,
				Message: fmt.Sprintf("value key %q: expected Component.field", key),
			}
		}
	}
	return nil
}

// Flatten turns nested bindings into Values, keeping only the fields
// accepted by keep.
func Flatten(b Bindings, keep func(component, field string) bool) Values {
	out := make(Values)
	for component, fields := range b {
		for field, x := range fields {
			if keep == nil || keep(component, field) {
				out[component+"."+field] = x
			}
		}
	}
	return out
}
