package expr

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty/function"
)

// HCLValidator validates expressions written in the HCL expression syntax.
// References take the form Component.field.
type HCLValidator struct {
	functions map[string]function.Function
}

// NewHCLValidator creates a validator using the default function table.
func NewHCLValidator() *HCLValidator {
	return &HCLValidator{functions: Functions()}
}

// Validate implements Validator.
func (v *HCLValidator) Validate(ctx context.Context, items []ValidationItem) ([]ValidationResult, error) {
	results := make([]ValidationResult, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = v.validateItem(item)
	}
	return results, nil
}

func (v *HCLValidator) validateItem(item ValidationItem) ValidationResult {
	if item.Literal && item.Text == "" {
		return ValidationResult{}
	}
	if item.Text == "" {
		return ValidationResult{Errors: []ScriptError{{Message: "empty expression"}}}
	}

	parsed, diags := hclsyntax.ParseExpression([]byte(item.Text), item.Component+"."+item.Instruction, hcl.InitialPos)
	if diags.HasErrors() {
		return ValidationResult{Errors: diagnosticsToErrors(diags, len(item.Text))}
	}

	if item.Literal {
		if _, diags := parsed.Value(nil); diags.HasErrors() {
			return ValidationResult{Errors: []ScriptError{{
				Message: "stored value must be a literal",
				Start:   0,
				End:     len(item.Text),
			}}}
		}
		return ValidationResult{}
	}

	var result ValidationResult
	seen := make(map[string]bool)
	for _, traversal := range parsed.Variables() {
		rng := traversal.SourceRange()
		root := traversal.RootName()
		if !slices.Contains(item.Allowed, root) {
			result.Errors = append(result.Errors, ScriptError{
				Message: fmt.Sprintf("unknown identifier %q", root),
				Start:   rng.Start.Byte,
				End:     rng.End.Byte,
			})
			continue
		}
		attr, ok := fieldOf(traversal)
		if !ok {
			result.Errors = append(result.Errors, ScriptError{
				Message: fmt.Sprintf("reference to %s must name a field", root),
				Start:   rng.Start.Byte,
				End:     rng.End.Byte,
			})
			continue
		}
		ref := root + "." + attr
		if !seen[ref] {
			seen[ref] = true
			result.References = append(result.References, ref)
		}
	}

	for _, call := range functionCalls(parsed) {
		if _, ok := v.functions[call.Name]; !ok {
			result.Errors = append(result.Errors, ScriptError{
				Message: fmt.Sprintf("unknown function %q", call.Name),
				Start:   call.NameRange.Start.Byte,
				End:     call.NameRange.End.Byte,
			})
		}
	}

	slices.Sort(result.References)
	if len(result.Errors) > 0 {
		slog.Debug("expression rejected",
			"component", item.Component,
			"instruction", item.Instruction,
			"errors", len(result.Errors))
	}
	return result
}

// fieldOf returns the attribute directly after the root of a traversal.
func fieldOf(traversal hcl.Traversal) (string, bool) {
	if len(traversal) < 2 {
		return "", false
	}
	attr, ok := traversal[1].(hcl.TraverseAttr)
	if !ok {
		return "", false
	}
	return attr.Name, true
}

func diagnosticsToErrors(diags hcl.Diagnostics, textLen int) []ScriptError {
	var errs []ScriptError
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		e := ScriptError{Message: d.Summary, End: textLen}
		if d.Detail != "" {
			e.Message = d.Summary + ": " + d.Detail
		}
		if d.Subject != nil {
			e.Start = d.Subject.Start.Byte
			e.End = d.Subject.End.Byte
		}
		errs = append(errs, e)
	}
	return errs
}

// functionCalls collects every function call node of the syntax tree.
func functionCalls(expr hclsyntax.Expression) []*hclsyntax.FunctionCallExpr {
	var calls []*hclsyntax.FunctionCallExpr
	hclsyntax.VisitAll(expr, func(n hclsyntax.Node) hcl.Diagnostics {
		if call, ok := n.(*hclsyntax.FunctionCallExpr); ok {
			calls = append(calls, call)
		}
		return nil
	})
	return calls
}
