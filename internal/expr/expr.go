// Package expr defines the contracts of the two external expression
// collaborators, the batch Validator used at compile time and the batch
// Evaluator used at every navigation step, and ships an HCL-backed
// implementation of both.
//
// The compiler never evaluates expression text itself. It hands every
// instruction that needs checking to a Validator in one call, and the
// navigation engine hands the whole sequenced instruction list to an
// Evaluator in one call.
package expr

import (
	"context"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// ValidationItem is one expression submitted for validation.
type ValidationItem struct {
	Component   string `json:"component"`
	Instruction string `json:"instruction"`
	Text        string `json:"text"`
	// Literal is set for inactive instructions, whose text is a stored
	// default and must not reference anything.
	Literal bool `json:"literal"`
	// Allowed lists the component codes the expression may reference.
	Allowed []string `json:"allowed"`
}

// ScriptError is a problem found in expression text. Offsets are bytes.
type ScriptError struct {
	Message string `json:"message"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// ValidationResult is the outcome for one ValidationItem.
type ValidationResult struct {
	Errors []ScriptError `json:"errors,omitempty"`
	// References lists the "Component.field" pairs the expression reads,
	// sorted and unique.
	References []string `json:"references,omitempty"`
}

// Validator checks a batch of expressions. The result slice is parallel to
// items. An error means the whole batch could not be checked.
type Validator interface {
	Validate(ctx context.Context, items []ValidationItem) ([]ValidationResult, error)
}

// Value is a typed input binding.
type Value struct {
	ReturnType ir.ReturnType `json:"return_type"`
	Value      any           `json:"value"`
}

// EvalItem is one instruction of the evaluation sequence.
type EvalItem struct {
	Component   string        `json:"component"`
	Instruction string        `json:"instruction"`
	Text        string        `json:"text"`
	ReturnType  ir.ReturnType `json:"return_type"`
	Active      bool          `json:"is_active"`
}

// FormatItem is a map-producing instruction evaluated after the sequence.
type FormatItem struct {
	Component   string            `json:"component"`
	Instruction string            `json:"instruction"`
	References  map[string]string `json:"references"`
}

// EvalRequest is the single batch sent to an Evaluator per navigation step.
type EvalRequest struct {
	// Values holds stored bindings keyed by "Component.field".
	Values   map[string]Value `json:"values"`
	Sequence []EvalItem       `json:"sequence"`
	Format   []FormatItem     `json:"format_instructions,omitempty"`
	// Codes lists every component that needs a namespace.
	Codes []string `json:"codes"`
}

// Result maps component code to field to evaluated value.
type Result map[string]map[string]any

// Evaluator evaluates a sequenced batch of instructions.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvalRequest) (Result, error)
}

// Fallback returns the value a field takes when its evaluation fails or its
// result does not pass the runtime type check. The boolean is false for
// value fields, which stay unset.
func Fallback(field string, rt ir.ReturnType) (any, bool) {
	rc, ok := ir.ParseReservedCode(field)
	if ok && rc.Kind == ir.ReservedValue {
		return nil, false
	}
	if ok && rc.IsRelevanceFamily() {
		return true, true
	}
	if rt == "" && ok {
		rt = rc.Meta().ReturnType
	}
	return rt.Default(), true
}

// Bool reads a boolean from a result, returning def when it is absent or
// not a boolean.
func (r Result) Bool(component, field string, def bool) bool {
	v, ok := r[component][field]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// Int reads an integer from a result.
func (r Result) Int(component, field string) (int, bool) {
	v, ok := r[component][field]
	if !ok {
		return 0, false
	}
	return AsInt(v)
}

// AsInt converts the numeric shapes produced by JSON decoding and by the
// evaluator to int.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int(n), true
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}
