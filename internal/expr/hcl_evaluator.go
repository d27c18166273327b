package expr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/qlarr-surveys/survey-engine/internal/ir"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// HCLEvaluator evaluates a sequence of HCL expressions in order, writing
// each result back into the namespace read by later expressions.
type HCLEvaluator struct {
	functions map[string]function.Function
}

// NewHCLEvaluator creates an evaluator using the default function table.
func NewHCLEvaluator() *HCLEvaluator {
	return &HCLEvaluator{functions: Functions()}
}

// namespace holds the evaluated fields of every component.
type namespace map[string]map[string]cty.Value

func (ns namespace) set(component, field string, v cty.Value) {
	fields, ok := ns[component]
	if !ok {
		fields = make(map[string]cty.Value)
		ns[component] = fields
	}
	fields[field] = v
}

func (ns namespace) get(component, field string) (cty.Value, bool) {
	v, ok := ns[component][field]
	return v, ok
}

// Evaluate implements Evaluator.
func (e *HCLEvaluator) Evaluate(ctx context.Context, req EvalRequest) (Result, error) {
	ns := make(namespace, len(req.Codes))
	for _, code := range req.Codes {
		ns[code] = make(map[string]cty.Value)
	}
	for _, key := range sortedKeys(req.Values) {
		component, field, ok := strings.Cut(key, ".")
		if !ok {
			return nil, fmt.Errorf("value key %q: expected Component.field", key)
		}
		binding := req.Values[key]
		v, err := toCty(binding.Value)
		if err != nil {
			return nil, fmt.Errorf("value %s: %w", key, err)
		}
		if binding.ReturnType != "" && !v.IsNull() {
			if coerced, ok := coerce(v, binding.ReturnType); ok {
				v = coerced
			}
		}
		ns.set(component, field, v)
	}

	fallbacks := 0
	for _, item := range req.Sequence {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !item.Active {
			if _, stored := ns.get(item.Component, item.Instruction); stored {
				continue
			}
		}
		v, err := e.evalItem(ns, item)
		if err != nil {
			fallbacks++
			slog.Debug("instruction fell back to default",
				"component", item.Component,
				"instruction", item.Instruction,
				"error", err)
			v = fallbackValue(item.Instruction, item.ReturnType)
		}
		ns.set(item.Component, item.Instruction, v)
	}

	result := make(Result, len(ns))
	for component, fields := range ns {
		out := make(map[string]any, len(fields))
		for field, v := range fields {
			native, err := fromCty(v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", component, field, err)
			}
			if native != nil {
				out[field] = native
			}
		}
		result[component] = out
	}

	for _, item := range req.Format {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		formatted := make(map[string]any, len(item.References))
		for _, name := range sortedKeys(item.References) {
			v, err := e.evalText(ns, item.References[name])
			if err != nil {
				slog.Debug("reference failed", "component", item.Component, "name", name, "error", err)
				continue
			}
			native, err := fromCty(v)
			if err != nil {
				continue
			}
			formatted[name] = native
		}
		if _, ok := result[item.Component]; !ok {
			result[item.Component] = make(map[string]any)
		}
		result[item.Component][item.Instruction] = formatted
	}

	slog.Debug("evaluation complete",
		"instructions", len(req.Sequence),
		"fallbacks", fallbacks)
	return result, nil
}

func (e *HCLEvaluator) evalItem(ns namespace, item EvalItem) (cty.Value, error) {
	if !item.Active && strings.TrimSpace(item.Text) == "" {
		return fallbackValue(item.Instruction, item.ReturnType), nil
	}
	v, err := e.evalText(ns, item.Text)
	if err != nil {
		return cty.NilVal, err
	}
	coerced, ok := coerce(v, item.ReturnType)
	if !ok {
		return cty.NilVal, fmt.Errorf("result %s is not %s", v.Type().FriendlyName(), item.ReturnType)
	}
	return coerced, nil
}

func (e *HCLEvaluator) evalText(ns namespace, text string) (cty.Value, error) {
	parsed, diags := hclsyntax.ParseExpression([]byte(text), "expression", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	evalCtx := &hcl.EvalContext{
		Variables: e.variablesFor(ns, parsed.Variables()),
		Functions: e.functions,
	}
	v, diags := parsed.Value(evalCtx)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return v, nil
}

// variablesFor builds one object per referenced component holding the
// fields the expression reads. Fields never evaluated take their fallback.
func (e *HCLEvaluator) variablesFor(ns namespace, traversals []hcl.Traversal) map[string]cty.Value {
	needed := make(map[string]map[string]bool)
	for _, t := range traversals {
		root := t.RootName()
		if needed[root] == nil {
			needed[root] = make(map[string]bool)
		}
		if field, ok := fieldOf(t); ok {
			needed[root][field] = true
		}
	}

	vars := make(map[string]cty.Value, len(needed))
	for root, fields := range needed {
		attrs := make(map[string]cty.Value, len(ns[root])+len(fields))
		for field, v := range ns[root] {
			attrs[field] = v
		}
		for field := range fields {
			if _, ok := attrs[field]; !ok {
				attrs[field] = fallbackValue(field, "")
			}
		}
		vars[root] = cty.ObjectVal(attrs)
	}
	return vars
}

// fallbackValue is Fallback expressed as a cty value.
func fallbackValue(field string, rt ir.ReturnType) cty.Value {
	v, set := Fallback(field, rt)
	if !set {
		return cty.NullVal(cty.DynamicPseudoType)
	}
	c, err := toCty(v)
	if err != nil {
		return cty.NullVal(cty.DynamicPseudoType)
	}
	return c
}
