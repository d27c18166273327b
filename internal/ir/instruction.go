package ir

import (
	"slices"
	"strings"
)

// Instruction is a sealed interface over the instruction variants attached
// to a component: State, SkipInstruction, Reference, RandomGroups,
// PriorityGroups and ParentRelevance.
type Instruction interface {
	// InstructionCode is the code the instruction is keyed by on its component.
	InstructionCode() string
	// InstructionErrors returns the compile errors accumulated so far.
	InstructionErrors() []InstructionError
	// WithErrors returns a copy carrying the given errors.
	WithErrors(errs []InstructionError) Instruction

	instruction() // Sealed
}

// Fixed codes of the non-State instructions.
const (
	RandomGroupsCode    = "random_group"
	PriorityGroupsCode  = "priority_groups"
	ParentRelevanceCode = "parent_relevance"
	ReferencePrefix     = "reference_"
)

// State is a named system slot holding expression text.
type State struct {
	Code       string
	Text       string
	Active     bool
	ReturnType ReturnType
	Errors     []InstructionError
}

func (State) instruction() {}

// InstructionCode implements Instruction.
func (s State) InstructionCode() string { return s.Code }

// InstructionErrors implements Instruction.
func (s State) InstructionErrors() []InstructionError { return s.Errors }

// WithErrors implements Instruction.
func (s State) WithErrors(errs []InstructionError) Instruction {
	s.Errors = errs
	return s
}

// Reserved returns the catalogue slot of the state. Codes are checked at
// decode time, so a state built through this package always has one.
func (s State) Reserved() ReservedCode {
	rc, _ := ParseReservedCode(s.Code)
	return rc
}

// NewState builds an active state whose return type comes from the catalogue.
func NewState(code ReservedCode, text string) State {
	return State{
		Code:       code.String(),
		Text:       text,
		Active:     true,
		ReturnType: code.Meta().ReturnType,
	}
}

// NewValue builds a value slot. Active values are computed from text;
// inactive ones hold a stored default.
func NewValue(text string, active bool, rt ReturnType) State {
	return State{Code: CodeValue.String(), Text: text, Active: active, ReturnType: rt}
}

// SkipInstruction is a State whose true value sends the respondent to
// SkipTo. With ToEnd set and a group destination, the destination group's
// own questions are bypassed as well.
type SkipInstruction struct {
	State
	SkipTo string
	ToEnd  bool
}

func (SkipInstruction) instruction() {}

// WithErrors implements Instruction.
func (s SkipInstruction) WithErrors(errs []InstructionError) Instruction {
	s.Errors = errs
	return s
}

// NewSkip builds an active skip instruction.
func NewSkip(destination, condition string, toEnd bool) SkipInstruction {
	return SkipInstruction{
		State:  NewState(SkipCode(destination), condition),
		SkipTo: destination,
		ToEnd:  toEnd,
	}
}

// Reference produces a map of names to cross-component expressions, used
// for piping answers into text.
type Reference struct {
	Code       string
	References map[string]string
	Errors     []InstructionError
}

func (Reference) instruction() {}

// InstructionCode implements Instruction.
func (r Reference) InstructionCode() string { return r.Code }

// InstructionErrors implements Instruction.
func (r Reference) InstructionErrors() []InstructionError { return r.Errors }

// WithErrors implements Instruction.
func (r Reference) WithErrors(errs []InstructionError) Instruction {
	r.Errors = errs
	return r
}

// SortedNames returns the reference names in lexical order.
func (r Reference) SortedNames() []string {
	names := make([]string, 0, len(r.References))
	for name := range r.References {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RandomType is the shuffle mode of a random group.
type RandomType string

const (
	RandomRandom RandomType = "RANDOM"
	RandomAlpha  RandomType = "ALPHA"
	RandomFlip   RandomType = "FLIP"
)

// RandomGroup is a set of sibling codes reordered together.
type RandomGroup struct {
	Codes []string   `json:"codes"`
	Type  RandomType `json:"type"`
}

// RandomGroups lists the randomized child sets of a component.
type RandomGroups struct {
	Groups []RandomGroup
	Errors []InstructionError
}

func (RandomGroups) instruction() {}

// InstructionCode implements Instruction.
func (RandomGroups) InstructionCode() string { return RandomGroupsCode }

// InstructionErrors implements Instruction.
func (r RandomGroups) InstructionErrors() []InstructionError { return r.Errors }

// WithErrors implements Instruction.
func (r RandomGroups) WithErrors(errs []InstructionError) Instruction {
	r.Errors = errs
	return r
}

// ChildPriority is a weighted member of a priority group.
type ChildPriority struct {
	Code   string  `json:"code"`
	Weight float64 `json:"weight"`
}

// PriorityGroup keeps at most Limit of its members relevant.
type PriorityGroup struct {
	Limit   int             `json:"limit"`
	Weights []ChildPriority `json:"weights"`
}

// Codes returns the member codes in declaration order.
func (p PriorityGroup) Codes() []string {
	codes := make([]string, len(p.Weights))
	for i, w := range p.Weights {
		codes[i] = w.Code
	}
	return codes
}

// PriorityGroups lists the priority sets of a component's children.
type PriorityGroups struct {
	Groups []PriorityGroup
	Errors []InstructionError
}

func (PriorityGroups) instruction() {}

// InstructionCode implements Instruction.
func (PriorityGroups) InstructionCode() string { return PriorityGroupsCode }

// InstructionErrors implements Instruction.
func (p PriorityGroups) InstructionErrors() []InstructionError { return p.Errors }

// WithErrors implements Instruction.
func (p PriorityGroups) WithErrors(errs []InstructionError) Instruction {
	p.Errors = errs
	return p
}

// ParentRelevance groups child codes whose relevance decides the relevance
// of the parent.
type ParentRelevance struct {
	Children [][]string
	Errors   []InstructionError
}

func (ParentRelevance) instruction() {}

// InstructionCode implements Instruction.
func (ParentRelevance) InstructionCode() string { return ParentRelevanceCode }

// InstructionErrors implements Instruction.
func (p ParentRelevance) InstructionErrors() []InstructionError { return p.Errors }

// WithErrors implements Instruction.
func (p ParentRelevance) WithErrors(errs []InstructionError) Instruction {
	p.Errors = errs
	return p
}

// AddErrors returns a copy of the instruction with errs appended.
func AddErrors(ins Instruction, errs ...InstructionError) Instruction {
	if len(errs) == 0 {
		return ins
	}
	merged := append(slices.Clone(ins.InstructionErrors()), errs...)
	return ins.WithErrors(merged)
}

// HasErrors reports whether the instruction carries any error.
func HasErrors(ins Instruction) bool {
	return len(ins.InstructionErrors()) > 0
}

// AsState returns the State view of State and SkipInstruction values.
func AsState(ins Instruction) (State, bool) {
	switch v := ins.(type) {
	case State:
		return v, true
	case SkipInstruction:
		return v.State, true
	case Reference, RandomGroups, PriorityGroups, ParentRelevance:
		return State{}, false
	}
	return State{}, false
}

// IsReferenceCode reports whether code names a Reference instruction.
func IsReferenceCode(code string) bool {
	return strings.HasPrefix(code, ReferencePrefix) && len(code) > len(ReferencePrefix)
}
