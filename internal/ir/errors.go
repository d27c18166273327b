package ir

import (
	"fmt"
	"strings"
)

// ComponentError is a structural error tag attached to a component.
type ComponentError string

const (
	ErrDuplicateCode     ComponentError = "DUPLICATE_CODE"
	ErrEmptyParent       ComponentError = "EMPTY_PARENT"
	ErrMisplacedEndGroup ComponentError = "MISPLACED_END_GROUP"
	ErrNoEndGroup        ComponentError = "NO_END_GROUP"
)

// InstructionErrorKind categorizes errors attached to an instruction.
type InstructionErrorKind string

const (
	ErrScriptError                  InstructionErrorKind = "ScriptError"
	ErrForwardDependency            InstructionErrorKind = "ForwardDependency"
	ErrInvalidReference             InstructionErrorKind = "InvalidReference"
	ErrInvalidChildReferences       InstructionErrorKind = "InvalidChildReferences"
	ErrInvalidSkipReference         InstructionErrorKind = "InvalidSkipReference"
	ErrSkipToEndOfEndGroup          InstructionErrorKind = "SkipToEndOfEndGroup"
	ErrDuplicateInstructionCode     InstructionErrorKind = "DuplicateInstructionCode"
	ErrInvalidInstructionInEndGroup InstructionErrorKind = "InvalidInstructionInEndGroup"
	ErrDuplicateRandomGroupItems    InstructionErrorKind = "DuplicateRandomGroupItems"
	ErrRandomGroupItemNotChild      InstructionErrorKind = "RandomGroupItemNotChild"
	ErrInvalidRandomItem            InstructionErrorKind = "InvalidRandomItem"
	ErrDuplicatePriorityGroupItems  InstructionErrorKind = "DuplicatePriorityGroupItems"
	ErrPriorityGroupItemNotChild    InstructionErrorKind = "PriorityGroupItemNotChild"
	ErrInvalidPriorityItem          InstructionErrorKind = "InvalidPriorityItem"
	ErrPriorityLimitMismatch        InstructionErrorKind = "PriorityLimitMismatch"
	ErrDependencyCycle              InstructionErrorKind = "DependencyCycle"
)

// InstructionError is an error accumulated on an instruction during
// compilation. Only the fields relevant to the kind are set.
type InstructionError struct {
	Kind    InstructionErrorKind `json:"kind"`
	Message string               `json:"message,omitempty"`

	// Start and End are byte offsets into the expression text (ScriptError).
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`

	// Dependency is the offending reference (ForwardDependency).
	Dependency *Dependency `json:"dependency,omitempty"`

	// Codes lists the offending component codes (group membership errors).
	Codes []string `json:"codes,omitempty"`
}

// Error implements the error interface.
func (e InstructionError) Error() string {
	switch {
	case e.Dependency != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Dependency)
	case len(e.Codes) > 0:
		return fmt.Sprintf("%s: %v", e.Kind, e.Codes)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

// NewScriptError reports an expression error at the given text offsets.
func NewScriptError(message string, start, end int) InstructionError {
	return InstructionError{Kind: ErrScriptError, Message: message, Start: start, End: end}
}

// NewForwardDependency reports a reference to an inaccessible field.
func NewForwardDependency(dep Dependency) InstructionError {
	return InstructionError{Kind: ErrForwardDependency, Dependency: &dep}
}

// NewInvalidReference reports a reference to an unknown component or field.
func NewInvalidReference(ref string) InstructionError {
	return InstructionError{Kind: ErrInvalidReference, Message: ref}
}

// NewDependencyCycle reports an instruction on a dependency cycle. path is
// the closed cycle, e.g. ["Q1.value", "Q1.relevance", "Q1.value"].
func NewDependencyCycle(path []string) InstructionError {
	return InstructionError{Kind: ErrDependencyCycle, Message: strings.Join(path, " -> ")}
}

// NewCodesError builds the membership error kinds that carry component codes.
func NewCodesError(kind InstructionErrorKind, codes []string) InstructionError {
	return InstructionError{Kind: kind, Codes: codes}
}

// NewKindError builds an error that carries nothing but its kind.
func NewKindError(kind InstructionErrorKind) InstructionError {
	return InstructionError{Kind: kind}
}
