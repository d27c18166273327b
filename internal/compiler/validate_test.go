package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
	tu "github.com/qlarr-surveys/survey-engine/internal/testutil"
)

// =============================================================================
// Helpers
// =============================================================================

func find(t *testing.T, survey ir.Component, code string) ir.Component {
	t.Helper()
	n, ok := ir.Find(survey, code)
	require.True(t, ok, "component %s not found", code)
	return n.Component
}

func instructionErrors(t *testing.T, survey ir.Component, code, instruction string) []ir.InstructionErrorKind {
	t.Helper()
	ins, ok := find(t, survey, code).Instruction(instruction)
	require.True(t, ok, "instruction %s.%s not found", code, instruction)
	var kinds []ir.InstructionErrorKind
	for _, e := range ins.InstructionErrors() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// =============================================================================
// Structural Validation Tests
// =============================================================================

func TestValidateStructureClean(t *testing.T) {
	survey := tu.Survey(
		tu.Group("G1", tu.Question("Q1", tu.Value(ir.ReturnString))),
		tu.End(),
	)
	got := ValidateStructure(survey)
	assert.False(t, ir.TreeHasErrors(got))
	assert.Empty(t, Diagnostics(got))
}

func TestValidateStructureNoEndGroup(t *testing.T) {
	survey := tu.Survey(tu.Group("G1", tu.Question("Q1")))
	got := ValidateStructure(survey)
	assert.Equal(t, []ir.ComponentError{ir.ErrNoEndGroup}, got.Errors())
}

func TestValidateStructureMisplacedEndGroup(t *testing.T) {
	survey := tu.Survey(tu.End(), tu.Group("G1", tu.Question("Q1")))
	got := ValidateStructure(survey)
	assert.Contains(t, find(t, got, "Gend").Errors(), ir.ErrMisplacedEndGroup)
	assert.Empty(t, got.Errors())
}

func TestValidateStructureDuplicateCodes(t *testing.T) {
	survey := tu.Survey(
		tu.Group("G1", tu.Question("Q1"), tu.Question("Q1")),
		tu.Group("G2", tu.Question("Q2", tu.Answer("A1"), tu.Answer("A1"))),
		tu.End(),
	)
	got := ValidateStructure(survey)

	g1 := find(t, got, "G1")
	for _, q := range g1.Children() {
		assert.Equal(t, []ir.ComponentError{ir.ErrDuplicateCode}, q.Errors())
	}
	// Every child of G1 is broken, so it is also empty.
	assert.Contains(t, g1.Errors(), ir.ErrEmptyParent)

	q2 := find(t, got, "Q2")
	for _, a := range q2.Children() {
		assert.Contains(t, a.Errors(), ir.ErrDuplicateCode)
	}
}

func TestValidateStructureDuplicateQualifiedCodeAcrossGroups(t *testing.T) {
	survey := tu.Survey(
		tu.Group("G1", tu.Question("Q1")),
		tu.Group("G2", tu.Question("Q1"), tu.Question("Q2")),
		tu.End(),
	)
	got := ValidateStructure(survey)

	var flagged int
	ir.Walk(got, func(n ir.Node) bool {
		if n.Code == "Q1" {
			assert.Contains(t, n.Component.Errors(), ir.ErrDuplicateCode)
			flagged++
		}
		return true
	})
	assert.Equal(t, 2, flagged)
	assert.Empty(t, find(t, got, "Q2").Errors())
}

func TestValidateStructureEmptyParent(t *testing.T) {
	survey := tu.Survey(tu.Group("G1"), tu.End())
	got := ValidateStructure(survey)
	assert.Equal(t, []ir.ComponentError{ir.ErrEmptyParent}, find(t, got, "G1").Errors())
	assert.Equal(t, []ir.ComponentError{ir.ErrEmptyParent}, got.Errors())
	assert.Empty(t, find(t, got, "Gend").Errors(), "the END group may be empty")
}

func TestValidateStructureDuplicateInstructionCode(t *testing.T) {
	survey := tu.Survey(
		tu.Group("G1", tu.Question("Q1", tu.Relevance("true"), tu.Relevance("false"))),
		tu.End(),
	)
	got := ValidateStructure(survey)
	q1 := find(t, got, "Q1")
	require.Len(t, q1.Instructions(), 2)
	assert.Empty(t, q1.Instructions()[0].InstructionErrors())
	require.Len(t, q1.Instructions()[1].InstructionErrors(), 1)
	assert.Equal(t, ir.ErrDuplicateInstructionCode, q1.Instructions()[1].InstructionErrors()[0].Kind)
}

func TestValidateStructureEndGroupInstructions(t *testing.T) {
	survey := tu.Survey(
		tu.Group("G1", tu.Question("Q1")),
		tu.End(tu.Question("Q9",
			tu.Validation("required", "true"),
			tu.Skip("Q1", "true"),
			tu.Relevance("true"),
		)),
	)
	got := ValidateStructure(survey)
	assert.Equal(t, []ir.InstructionErrorKind{ir.ErrInvalidInstructionInEndGroup},
		instructionErrors(t, got, "Q9", "validation_required"))
	assert.Equal(t, []ir.InstructionErrorKind{ir.ErrInvalidInstructionInEndGroup},
		instructionErrors(t, got, "Q9", "skip_to_Q1"))
	assert.Empty(t, instructionErrors(t, got, "Q9", "conditional_relevance"))
}

func TestValidateStructureRandomGroups(t *testing.T) {
	tests := []struct {
		name  string
		codes [][]string
		want  []ir.InstructionErrorKind
	}{
		{"valid", [][]string{{"G1", "G2"}}, nil},
		{"duplicate", [][]string{{"G1", "G2"}, {"G2"}}, []ir.InstructionErrorKind{ir.ErrDuplicateRandomGroupItems}},
		{"not a child", [][]string{{"G1", "G9"}}, []ir.InstructionErrorKind{ir.ErrRandomGroupItemNotChild}},
		{"end group", [][]string{{"G1", "Gend"}}, []ir.InstructionErrorKind{ir.ErrInvalidRandomItem}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rg := ir.RandomGroups{}
			for _, codes := range tt.codes {
				rg.Groups = append(rg.Groups, ir.RandomGroup{Codes: codes, Type: ir.RandomRandom})
			}
			survey := tu.Survey(rg,
				tu.Group("G1", tu.Question("Q1")),
				tu.Group("G2", tu.Question("Q2")),
				tu.End(),
			)
			got := ValidateStructure(survey)
			assert.Equal(t, tt.want, instructionErrors(t, got, "Survey", ir.RandomGroupsCode))
		})
	}
}

func TestValidateStructurePriorityGroups(t *testing.T) {
	tests := []struct {
		name string
		pg   ir.PriorityGroups
		want []ir.InstructionErrorKind
	}{
		{"valid", tu.Priority(1, "Q1", "Q2"), nil},
		{"limit too high", tu.Priority(3, "Q1", "Q2"), []ir.InstructionErrorKind{ir.ErrPriorityLimitMismatch}},
		{"limit zero", tu.Priority(0, "Q1", "Q2"), []ir.InstructionErrorKind{ir.ErrPriorityLimitMismatch}},
		{"not a child", tu.Priority(1, "Q1", "Q7"), []ir.InstructionErrorKind{ir.ErrPriorityGroupItemNotChild}},
		{"duplicate", tu.Priority(1, "Q1", "Q1"), []ir.InstructionErrorKind{ir.ErrDuplicatePriorityGroupItems}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			survey := tu.Survey(
				tu.Group("G1", tt.pg, tu.Question("Q1"), tu.Question("Q2")),
				tu.End(),
			)
			got := ValidateStructure(survey)
			assert.Equal(t, tt.want, instructionErrors(t, got, "G1", ir.PriorityGroupsCode))
		})
	}
}

func TestValidateStructureParentRelevance(t *testing.T) {
	survey := tu.Survey(
		tu.Group("G1",
			tu.ParentRelevance([]string{"Q1", "Q8"}, []string{"Q9", "Q8"}),
			tu.Question("Q1"),
		),
		tu.End(),
	)
	got := ValidateStructure(survey)
	ins, _ := find(t, got, "G1").Instruction(ir.ParentRelevanceCode)
	require.Len(t, ins.InstructionErrors(), 1)
	e := ins.InstructionErrors()[0]
	assert.Equal(t, ir.ErrInvalidChildReferences, e.Kind)
	assert.Equal(t, []string{"Q8", "Q9"}, e.Codes)
}

func TestDiagnostics(t *testing.T) {
	survey := tu.Survey(
		tu.Group("G1", tu.Priority(5, "Q1"), tu.Question("Q1")),
	)
	diags := Diagnostics(ValidateStructure(survey))
	require.Len(t, diags, 2)

	assert.Equal(t, Diagnostic{Component: "Survey", Code: "NO_END_GROUP"}, diags[0])
	assert.Equal(t, "G1", diags[1].Component)
	assert.Equal(t, ir.PriorityGroupsCode, diags[1].Instruction)
	assert.Equal(t, string(ir.ErrPriorityLimitMismatch), diags[1].Code)
	assert.Equal(t, "Q1", diags[1].Message)
	assert.Equal(t, "[NO_END_GROUP] Survey", diags[0].Error())
}
