package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// Diagnostic is one compile error flattened out of the tree for reporting.
type Diagnostic struct {
	Component   string `json:"component"`
	Instruction string `json:"instruction,omitempty"`
	Code        string `json:"code"`
	Message     string `json:"message,omitempty"`
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	where := d.Component
	if d.Instruction != "" {
		where += "." + d.Instruction
	}
	if d.Message != "" {
		return fmt.Sprintf("[%s] %s: %s", d.Code, where, d.Message)
	}
	return fmt.Sprintf("[%s] %s", d.Code, where)
}

// Diagnostics lists every component and instruction error in document order.
func Diagnostics(survey ir.Component) []Diagnostic {
	var out []Diagnostic
	ir.Walk(survey, func(n ir.Node) bool {
		for _, e := range n.Component.Errors() {
			out = append(out, Diagnostic{Component: n.Code, Code: string(e)})
		}
		for _, ins := range n.Component.Instructions() {
			for _, e := range ins.InstructionErrors() {
				out = append(out, Diagnostic{
					Component:   n.Code,
					Instruction: ins.InstructionCode(),
					Code:        string(e.Kind),
					Message:     errorDetail(e),
				})
			}
		}
		return true
	})
	return out
}

func errorDetail(e ir.InstructionError) string {
	switch {
	case e.Dependency != nil:
		return e.Dependency.String()
	case len(e.Codes) > 0:
		return strings.Join(e.Codes, ", ")
	}
	return e.Message
}

// ValidateStructure attaches structural errors to the tree.
//
// Checks, all additive (nothing fails fast):
//   - duplicate local codes among siblings and duplicate qualified codes
//   - empty parents (no error-free, non-END children)
//   - missing or misplaced END group
//   - duplicate instruction codes on one component
//   - random and priority group membership, priority limits
//   - parent-relevance references to non-children
//   - active validation or skip instructions inside the END group
func ValidateStructure(survey ir.Component) ir.Component {
	counts := make(map[string]int)
	inEnd := make(map[string]bool)
	ir.Walk(survey, func(n ir.Node) bool {
		counts[n.Code]++
		if n.Component.IsEndGroup() || (n.Parent != "" && inEnd[n.Parent]) {
			inEnd[n.Code] = true
		}
		return true
	})

	return ir.Rewrite(survey, func(code string, c ir.Component) ir.Component {
		c = markSiblingDuplicates(c)
		if counts[code] > 1 {
			c = c.AddError(ir.ErrDuplicateCode)
		}
		switch c.Kind() {
		case ir.KindSurvey:
			c = checkEndGroup(c)
			if !hasUsableChild(c) {
				c = c.AddError(ir.ErrEmptyParent)
			}
		case ir.KindGroup:
			if !c.IsEndGroup() && !hasUsableChild(c) {
				c = c.AddError(ir.ErrEmptyParent)
			}
		}
		return checkInstructions(c, inEnd[code])
	})
}

// markSiblingDuplicates tags every child sharing its local code with a sibling.
func markSiblingDuplicates(c ir.Component) ir.Component {
	seen := make(map[string]int)
	for _, child := range c.Children() {
		seen[child.Code()]++
	}
	dup := false
	for _, n := range seen {
		if n > 1 {
			dup = true
		}
	}
	if !dup {
		return c
	}
	children := slices.Clone(c.Children())
	for i, child := range children {
		if seen[child.Code()] > 1 {
			children[i] = child.AddError(ir.ErrDuplicateCode)
		}
	}
	return c.Duplicate(ir.WithChildren(children))
}

func hasUsableChild(c ir.Component) bool {
	for _, child := range c.Children() {
		if !child.HasErrors() && !child.IsEndGroup() {
			return true
		}
	}
	return false
}

// checkEndGroup requires exactly one END group, placed last.
func checkEndGroup(survey ir.Component) ir.Component {
	children := slices.Clone(survey.Children())
	found := false
	for i, child := range children {
		if !child.IsEndGroup() {
			continue
		}
		found = true
		if i != len(children)-1 {
			children[i] = child.AddError(ir.ErrMisplacedEndGroup)
		}
	}
	if !found {
		return survey.AddError(ir.ErrNoEndGroup)
	}
	return survey.Duplicate(ir.WithChildren(children))
}

func checkInstructions(c ir.Component, inEndGroup bool) ir.Component {
	children := make(map[string]ir.Component, len(c.Children()))
	for _, child := range c.Children() {
		children[child.Code()] = child
	}

	seen := make(map[string]bool)
	list := make([]ir.Instruction, 0, len(c.Instructions()))
	changed := false
	for _, ins := range c.Instructions() {
		var errs []ir.InstructionError
		if seen[ins.InstructionCode()] {
			errs = append(errs, ir.NewKindError(ir.ErrDuplicateInstructionCode))
		}
		seen[ins.InstructionCode()] = true

		switch v := ins.(type) {
		case ir.State:
			if inEndGroup && v.Active && v.Reserved().Kind == ir.ReservedValidationRule {
				errs = append(errs, ir.NewKindError(ir.ErrInvalidInstructionInEndGroup))
			}
		case ir.SkipInstruction:
			if inEndGroup && v.Active {
				errs = append(errs, ir.NewKindError(ir.ErrInvalidInstructionInEndGroup))
			}
		case ir.RandomGroups:
			groups := make([][]string, len(v.Groups))
			for i, g := range v.Groups {
				groups[i] = g.Codes
			}
			errs = append(errs, checkMembership(groups, children, membershipKinds{
				duplicate: ir.ErrDuplicateRandomGroupItems,
				notChild:  ir.ErrRandomGroupItemNotChild,
				invalid:   ir.ErrInvalidRandomItem,
			})...)
		case ir.PriorityGroups:
			groups := make([][]string, len(v.Groups))
			for i, g := range v.Groups {
				groups[i] = g.Codes()
				if g.Limit < 1 || g.Limit > len(g.Weights) {
					errs = append(errs, ir.InstructionError{
						Kind:    ir.ErrPriorityLimitMismatch,
						Message: fmt.Sprintf("limit %d for %d items", g.Limit, len(g.Weights)),
						Codes:   g.Codes(),
					})
				}
			}
			errs = append(errs, checkMembership(groups, children, membershipKinds{
				duplicate: ir.ErrDuplicatePriorityGroupItems,
				notChild:  ir.ErrPriorityGroupItemNotChild,
				invalid:   ir.ErrInvalidPriorityItem,
			})...)
		case ir.ParentRelevance:
			var missing []string
			for _, grouping := range v.Children {
				for _, code := range grouping {
					if _, ok := children[code]; !ok && !slices.Contains(missing, code) {
						missing = append(missing, code)
					}
				}
			}
			if len(missing) > 0 {
				errs = append(errs, ir.NewCodesError(ir.ErrInvalidChildReferences, missing))
			}
		}

		if len(errs) > 0 {
			ins = ir.AddErrors(ins, errs...)
			changed = true
		}
		list = append(list, ins)
	}
	if !changed {
		return c
	}
	return c.Duplicate(ir.WithInstructions(list))
}

type membershipKinds struct {
	duplicate ir.InstructionErrorKind
	notChild  ir.InstructionErrorKind
	invalid   ir.InstructionErrorKind
}

// checkMembership validates group members against the owner's children.
// Each offending code is reported once per kind.
func checkMembership(groups [][]string, children map[string]ir.Component, kinds membershipKinds) []ir.InstructionError {
	var duplicates, notChildren, invalid []string
	seen := make(map[string]bool)
	for _, group := range groups {
		for _, code := range group {
			if seen[code] {
				if !slices.Contains(duplicates, code) {
					duplicates = append(duplicates, code)
				}
				continue
			}
			seen[code] = true
			child, ok := children[code]
			switch {
			case !ok:
				notChildren = append(notChildren, code)
			case child.IsEndGroup():
				invalid = append(invalid, code)
			}
		}
	}
	var errs []ir.InstructionError
	if len(duplicates) > 0 {
		errs = append(errs, ir.NewCodesError(kinds.duplicate, duplicates))
	}
	if len(notChildren) > 0 {
		errs = append(errs, ir.NewCodesError(kinds.notChild, notChildren))
	}
	if len(invalid) > 0 {
		errs = append(errs, ir.NewCodesError(kinds.invalid, invalid))
	}
	return errs
}
