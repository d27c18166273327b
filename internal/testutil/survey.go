package testutil

import (
	"fmt"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// Survey, Group, Question and Answer build fixture trees. Items are either
// child components or instructions; anything else panics, as does a code
// the constructors reject. Fixtures are static, so a panic is a test bug.
//
//	testutil.Survey(
//		testutil.Group("G1",
//			testutil.Question("Q1", testutil.Value(ir.ReturnString)),
//			testutil.Question("Q2", testutil.Relevance(`Q1.value == "yes"`)),
//		),
//		testutil.End(),
//	)
func Survey(items ...any) ir.Component {
	children, instructions := split(items)
	return must(ir.NewSurvey(children, instructions))
}

// Group builds a regular group.
func Group(code string, items ...any) ir.Component {
	children, instructions := split(items)
	return must(ir.NewGroup(code, ir.GroupTypeGroup, children, instructions))
}

// End builds the END group with code "Gend".
func End(items ...any) ir.Component {
	children, instructions := split(items)
	return must(ir.NewGroup("Gend", ir.GroupTypeEnd, children, instructions))
}

// Question builds a question.
func Question(code string, items ...any) ir.Component {
	children, instructions := split(items)
	return must(ir.NewQuestion(code, children, instructions))
}

// Answer builds an answer.
func Answer(code string, items ...any) ir.Component {
	children, instructions := split(items)
	return must(ir.NewAnswer(code, children, instructions))
}

func split(items []any) ([]ir.Component, []ir.Instruction) {
	var children []ir.Component
	var instructions []ir.Instruction
	for _, item := range items {
		switch v := item.(type) {
		case ir.Component:
			children = append(children, v)
		case ir.Instruction:
			instructions = append(instructions, v)
		default:
			panic(fmt.Sprintf("testutil: unexpected fixture item %T", item))
		}
	}
	return children, instructions
}

func must(c ir.Component, err error) ir.Component {
	if err != nil {
		panic(err)
	}
	return c
}

// Value is a stored (inactive) value slot.
func Value(rt ir.ReturnType) ir.State {
	return ir.NewValue("", false, rt)
}

// Computed is an active value slot.
func Computed(text string, rt ir.ReturnType) ir.State {
	return ir.NewValue(text, true, rt)
}

// Relevance is a conditional_relevance state.
func Relevance(text string) ir.State {
	return ir.NewState(ir.CodeConditionalRelevance, text)
}

// Validation is an active validation rule; true means the answer is invalid.
func Validation(name, text string) ir.State {
	return ir.NewState(ir.ValidationRuleCode(name), text)
}

// Skip is an active skip to dest.
func Skip(dest, condition string) ir.SkipInstruction {
	return ir.NewSkip(dest, condition, false)
}

// SkipToEnd is an active skip past the whole destination group.
func SkipToEnd(dest, condition string) ir.SkipInstruction {
	return ir.NewSkip(dest, condition, true)
}

// Random is a single random group over codes.
func Random(rt ir.RandomType, codes ...string) ir.RandomGroups {
	return ir.RandomGroups{Groups: []ir.RandomGroup{{Codes: codes, Type: rt}}}
}

// Priority is a single priority group with equal weights.
func Priority(limit int, codes ...string) ir.PriorityGroups {
	weights := make([]ir.ChildPriority, len(codes))
	for i, c := range codes {
		weights[i] = ir.ChildPriority{Code: c, Weight: 1}
	}
	return ir.PriorityGroups{Groups: []ir.PriorityGroup{{Limit: limit, Weights: weights}}}
}

// ParentRelevance builds a parent_relevance instruction from groupings.
func ParentRelevance(groupings ...[]string) ir.ParentRelevance {
	return ir.ParentRelevance{Children: groupings}
}

// Label is a label state with literal text.
func Label(text string) ir.State {
	return ir.State{Code: ir.CodeLabel.String(), Text: text, ReturnType: ir.ReturnString}
}
