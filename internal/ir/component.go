package ir

import (
	"fmt"
	"regexp"
	"slices"
)

// ComponentKind discriminates the component tagged union.
type ComponentKind string

const (
	KindSurvey   ComponentKind = "Survey"
	KindGroup    ComponentKind = "Group"
	KindQuestion ComponentKind = "Question"
	KindAnswer   ComponentKind = "Answer"
)

// SurveyCode is the literal root code.
const SurveyCode = "Survey"

// GroupType distinguishes regular groups from the single END group.
type GroupType string

const (
	GroupTypeGroup GroupType = "GROUP"
	GroupTypeEnd   GroupType = "END"
)

var (
	groupCodePattern    = regexp.MustCompile(`^G[a-z0-9_]+$`)
	questionCodePattern = regexp.MustCompile(`^Q[a-z0-9_]+$`)
	answerCodePattern   = regexp.MustCompile(`^A[a-z0-9_]+$`)
)

// CodeError reports a local code that does not match its kind's pattern.
type CodeError struct {
	Kind ComponentKind
	Code string
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("invalid %s code %q", e.Kind, e.Code)
}

// ChildKindError reports a child whose kind the parent cannot hold.
type ChildKindError struct {
	Parent ComponentKind
	Child  ComponentKind
	Code   string
}

func (e *ChildKindError) Error() string {
	return fmt.Sprintf("%s cannot contain %s %q", e.Parent, e.Child, e.Code)
}

// KindOfCode infers the component kind from a local code.
func KindOfCode(code string) (ComponentKind, bool) {
	switch {
	case code == SurveyCode:
		return KindSurvey, true
	case groupCodePattern.MatchString(code):
		return KindGroup, true
	case questionCodePattern.MatchString(code):
		return KindQuestion, true
	case answerCodePattern.MatchString(code):
		return KindAnswer, true
	}
	return "", false
}

// ValidCode reports whether code matches the pattern of kind.
func ValidCode(kind ComponentKind, code string) bool {
	k, ok := KindOfCode(code)
	return ok && k == kind
}

// ChildKind returns the kind of children a component of kind k holds.
func (k ComponentKind) ChildKind() ComponentKind {
	switch k {
	case KindSurvey:
		return KindGroup
	case KindGroup:
		return KindQuestion
	case KindQuestion, KindAnswer:
		return KindAnswer
	}
	return ""
}

// IsUniquelyCoded reports whether codes of this kind are unique survey-wide.
// Answers are not and are always referenced by their qualified code.
func (k ComponentKind) IsUniquelyCoded() bool {
	return k != KindAnswer
}

// Component is one node of the survey tree. Values are immutable: fields are
// only set by the constructors and Duplicate.
type Component struct {
	kind         ComponentKind
	code         string
	groupType    GroupType
	children     []Component
	instructions []Instruction
	errors       []ComponentError
}

func newComponent(kind ComponentKind, code string, gt GroupType, children []Component, instructions []Instruction) (Component, error) {
	if !ValidCode(kind, code) {
		return Component{}, &CodeError{Kind: kind, Code: code}
	}
	for _, child := range children {
		if child.kind != kind.ChildKind() {
			return Component{}, &ChildKindError{Parent: kind, Child: child.kind, Code: child.code}
		}
	}
	return Component{
		kind:         kind,
		code:         code,
		groupType:    gt,
		children:     slices.Clone(children),
		instructions: slices.Clone(instructions),
	}, nil
}

// NewSurvey builds the root component.
func NewSurvey(children []Component, instructions []Instruction) (Component, error) {
	return newComponent(KindSurvey, SurveyCode, "", children, instructions)
}

// NewGroup builds a group. An empty group type means GROUP.
func NewGroup(code string, gt GroupType, children []Component, instructions []Instruction) (Component, error) {
	if gt == "" {
		gt = GroupTypeGroup
	}
	if gt != GroupTypeGroup && gt != GroupTypeEnd {
		return Component{}, fmt.Errorf("group %q: unknown group type %q", code, gt)
	}
	return newComponent(KindGroup, code, gt, children, instructions)
}

// NewQuestion builds a question.
func NewQuestion(code string, children []Component, instructions []Instruction) (Component, error) {
	return newComponent(KindQuestion, code, "", children, instructions)
}

// NewAnswer builds an answer. Answers nest.
func NewAnswer(code string, children []Component, instructions []Instruction) (Component, error) {
	return newComponent(KindAnswer, code, "", children, instructions)
}

// Kind returns the component kind.
func (c Component) Kind() ComponentKind { return c.kind }

// Code returns the local code.
func (c Component) Code() string { return c.code }

// GroupType returns the group type; empty for non-groups.
func (c Component) GroupType() GroupType { return c.groupType }

// IsEndGroup reports whether c is the END group.
func (c Component) IsEndGroup() bool {
	return c.kind == KindGroup && c.groupType == GroupTypeEnd
}

// Children returns the ordered children. Callers must not modify the slice.
func (c Component) Children() []Component { return c.children }

// Instructions returns the ordered instructions. Callers must not modify the slice.
func (c Component) Instructions() []Instruction { return c.instructions }

// Errors returns the structural errors.
func (c Component) Errors() []ComponentError { return c.errors }

// HasErrors reports whether c carries structural errors.
func (c Component) HasErrors() bool { return len(c.errors) > 0 }

// QualifiedCode returns the survey-wide code given the parent's qualified code.
func (c Component) QualifiedCode(parentCode string) string {
	if c.kind.IsUniquelyCoded() {
		return c.code
	}
	return parentCode + c.code
}

// Instruction finds an instruction by code.
func (c Component) Instruction(code string) (Instruction, bool) {
	for _, ins := range c.instructions {
		if ins.InstructionCode() == code {
			return ins, true
		}
	}
	return nil, false
}

// State finds a State (or skip) instruction by slot.
func (c Component) State(code ReservedCode) (State, bool) {
	ins, ok := c.Instruction(code.String())
	if !ok {
		return State{}, false
	}
	return AsState(ins)
}

// DuplicateOption overrides one field during Duplicate.
type DuplicateOption func(*Component)

// WithInstructions overrides the instruction list.
func WithInstructions(instructions []Instruction) DuplicateOption {
	return func(c *Component) { c.instructions = instructions }
}

// WithChildren overrides the children.
func WithChildren(children []Component) DuplicateOption {
	return func(c *Component) { c.children = children }
}

// WithComponentErrors overrides the structural errors.
func WithComponentErrors(errs []ComponentError) DuplicateOption {
	return func(c *Component) { c.errors = errs }
}

// Duplicate returns a copy of c with the given fields overridden. Fields not
// overridden share storage with c, which is safe because no method mutates
// them in place.
func (c Component) Duplicate(opts ...DuplicateOption) Component {
	dup := c
	for _, opt := range opts {
		opt(&dup)
	}
	return dup
}

// ReplaceInstruction returns a copy with the instruction of the same code
// replaced, or appended when absent.
func (c Component) ReplaceInstruction(ins Instruction) Component {
	list := slices.Clone(c.instructions)
	for i, existing := range list {
		if existing.InstructionCode() == ins.InstructionCode() {
			list[i] = ins
			return c.Duplicate(WithInstructions(list))
		}
	}
	return c.Duplicate(WithInstructions(append(list, ins)))
}

// AddError returns a copy with err appended, skipping tags already present.
func (c Component) AddError(err ComponentError) Component {
	if slices.Contains(c.errors, err) {
		return c
	}
	return c.Duplicate(WithComponentErrors(append(slices.Clone(c.errors), err)))
}
