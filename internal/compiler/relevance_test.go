package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
	tu "github.com/qlarr-surveys/survey-engine/internal/testutil"
)

func hasState(t *testing.T, survey ir.Component, code string, rc ir.ReservedCode) bool {
	t.Helper()
	_, ok := find(t, survey, code).State(rc)
	return ok
}

// =============================================================================
// Relevance Synthesis Tests
// =============================================================================

func TestRelevanceInheritsFromParent(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1", question("Q1")),
		tu.Group("G2", tu.Relevance(`Q1.value == "go"`),
			question("Q2", tu.Answer("A1")),
			question("Q3", tu.Relevance(`Q1.value == "more"`)),
		),
		tu.End(),
	))
	require.False(t, cs.HasErrors())

	assert.False(t, hasState(t, cs.Survey, "G1", ir.CodeRelevance))
	assert.False(t, hasState(t, cs.Survey, "Q1", ir.CodeRelevance))
	assert.Equal(t, "G2.conditional_relevance", stateText(t, cs.Survey, "G2", ir.CodeRelevance))
	assert.Equal(t, "G2.relevance", stateText(t, cs.Survey, "Q2", ir.CodeRelevance))
	assert.Equal(t, "Q2.relevance", stateText(t, cs.Survey, "Q2A1", ir.CodeRelevance))
	assert.Equal(t, "(Q3.conditional_relevance) && (G2.relevance)",
		stateText(t, cs.Survey, "Q3", ir.CodeRelevance))

	deps := cs.DependencyMap[ir.Dependent{Component: "Q3", Code: "relevance"}]
	assert.Equal(t, []ir.Dependency{
		{Component: "G2", Code: ir.CodeRelevance},
		{Component: "Q3", Code: ir.CodeConditionalRelevance},
	}, deps)
}

func TestChildrenRelevance(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1", question("Q1")),
		tu.Group("G2",
			tu.ParentRelevance([]string{"Q2", "Q3"}, []string{"Q2", "Q4"}),
			question("Q2", tu.Relevance(`Q1.value == "a"`)),
			question("Q3", tu.Relevance(`Q1.value == "b"`)),
			question("Q4"),
		),
		tu.End(),
	))
	require.False(t, cs.HasErrors())

	// The second grouping has a member without relevance and is ignored.
	assert.Equal(t, "(Q2.conditional_relevance) || (Q3.conditional_relevance)",
		stateText(t, cs.Survey, "G2", ir.CodeChildrenRelevance))
	assert.Equal(t, "G2.children_relevance", stateText(t, cs.Survey, "G2", ir.CodeRelevance))
	assert.Equal(t, "(Q2.conditional_relevance) && (G2.relevance)",
		stateText(t, cs.Survey, "Q2", ir.CodeRelevance))
	assert.Equal(t, "G2.relevance", stateText(t, cs.Survey, "Q4", ir.CodeRelevance))
}

func TestChildrenRelevanceNoConsiderableGrouping(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1",
			tu.ParentRelevance([]string{"Q1", "Q2"}),
			question("Q1"),
			question("Q2"),
		),
		tu.End(),
	))
	require.False(t, cs.HasErrors())
	assert.False(t, hasState(t, cs.Survey, "G1", ir.CodeChildrenRelevance))
	assert.False(t, hasState(t, cs.Survey, "G1", ir.CodeRelevance))
}

func TestPrioritised(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1",
			tu.Priority(1, "Q1", "Q2"),
			question("Q1"),
			question("Q2"),
			question("Q3"),
		),
		tu.End(),
	))
	require.False(t, cs.HasErrors())

	assert.Equal(t,
		"length([for b in [(Q2.priority < Q1.priority) && Q2.prioritised] : b if b]) < 1",
		stateText(t, cs.Survey, "Q1", ir.CodePrioritised))
	assert.Equal(t, "Q1.prioritised", stateText(t, cs.Survey, "Q1", ir.CodeRelevance))
	assert.False(t, hasState(t, cs.Survey, "Q3", ir.CodePrioritised))

	deps := cs.DependencyMap[ir.Dependent{Component: "Q2", Code: "prioritised"}]
	assert.Contains(t, deps, ir.Dependency{Component: "Q1", Code: ir.CodePrioritised})
	assert.Contains(t, deps, ir.Dependency{Component: "Q2", Code: ir.CodePriority})
}

func TestRelevanceTermOrder(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1",
			tu.Priority(1, "Q2", "Q3"),
			question("Q1", tu.Skip("Q4", "true")),
			question("Q2",
				tu.Relevance("true"),
				ir.NewState(ir.CodeModeRelevance, `Survey.mode != "ALL_IN_ONE"`),
			),
			question("Q3"),
			question("Q4"),
		),
		tu.End(),
	))
	require.False(t, cs.HasErrors())
	assert.Equal(t,
		"(Q2.conditional_relevance) && (Q2.mode_relevance) && (Q2.not_skipped) && (Q2.prioritised)",
		stateText(t, cs.Survey, "Q2", ir.CodeRelevance))
}

func TestDerivedSlotsAreRecomputed(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1", question("Q1", ir.NewState(ir.CodeRelevance, "false"))),
		tu.End(),
	))
	require.False(t, cs.HasErrors())
	assert.False(t, hasState(t, cs.Survey, "Q1", ir.CodeRelevance))

	again := compile(t, cs.Survey)
	assert.Equal(t, cs.Hash, again.Hash, "compiling a compiled tree is a no-op")
}

// =============================================================================
// Validity Synthesis Tests
// =============================================================================

func TestValidityQuestion(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1",
			question("Q1",
				tu.Validation("required", `Q1.value == ""`),
				tu.Answer("A1"), tu.Answer("A2"),
			),
			question("Q2"),
		),
		tu.End(),
	))
	require.False(t, cs.HasErrors())

	assert.Equal(t, `(in_enum(Q1.value, ["A1", "A2"])) && (!(Q1.validation_required))`,
		stateText(t, cs.Survey, "Q1", ir.CodeValidity))
	assert.False(t, hasState(t, cs.Survey, "Q2", ir.CodeValidity), "a free text question with no rules is always valid")
	assert.Equal(t, "(!(Q1.in_current_navigation)) || (Q1.validity)",
		stateText(t, cs.Survey, "G1", ir.CodeValidity))
	assert.Equal(t, "(!(G1.in_current_navigation)) || (G1.validity)",
		stateText(t, cs.Survey, "Survey", ir.CodeValidity))
}

func TestValidityIncludesRelevantChildren(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1",
			tu.Question("Q1",
				tu.Answer("A1", tu.Value(ir.ReturnBoolean)),
				tu.Answer("A2", tu.Value(ir.ReturnString),
					tu.Relevance("Q1A1.value"),
					tu.Validation("too_long", `strlen(Q1A2.value) > 10`),
				),
			),
		),
		tu.End(),
	))
	require.False(t, cs.HasErrors())
	assert.Equal(t, "!(Q1A2.validation_too_long)", stateText(t, cs.Survey, "Q1A2", ir.CodeValidity))
	assert.Equal(t, "(!(Q1A2.relevance)) || (Q1A2.validity)", stateText(t, cs.Survey, "Q1", ir.CodeValidity))
	assert.Equal(t, "(!(Q1.in_current_navigation)) || (Q1.validity)",
		stateText(t, cs.Survey, "G1", ir.CodeValidity))
}

func TestValidityRespectsRelevance(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1",
			question("Q1"),
			question("Q2", tu.Relevance(`Q1.value == "x"`), tu.Validation("required", `Q2.value == ""`)),
		),
		tu.End(),
	))
	require.False(t, cs.HasErrors())
	assert.Equal(t, "(!(Q2.in_current_navigation)) || (!(Q2.relevance)) || (Q2.validity)",
		stateText(t, cs.Survey, "G1", ir.CodeValidity))
}

func TestValidityExcludesEndGroup(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1", question("Q1", tu.Answer("A1"))),
		tu.End(question("Q9", tu.Answer("A1"))),
	))
	require.False(t, cs.HasErrors())
	assert.False(t, hasState(t, cs.Survey, "Q9", ir.CodeValidity))
	assert.False(t, hasState(t, cs.Survey, "Gend", ir.CodeValidity))
	assert.Equal(t, "(!(G1.in_current_navigation)) || (G1.validity)",
		stateText(t, cs.Survey, "Survey", ir.CodeValidity))
}

// =============================================================================
// Schema Tests
// =============================================================================

func TestSchema(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Random(ir.RandomRandom, "G1", "G2"),
		tu.Group("G1",
			tu.Priority(1, "Q1", "Q2"),
			tu.Question("Q1", tu.Value(ir.ReturnInt)),
			tu.Question("Q2", tu.Answer("A1", tu.Value(ir.ReturnBoolean))),
		),
		tu.Group("G2", tu.Question("Q3", tu.Label("just text"))),
		tu.End(),
	))
	require.False(t, cs.HasErrors())
	assert.Equal(t, []ir.ResponseField{
		{Component: "G1", Field: "order", ReturnType: ir.ReturnInt},
		{Component: "Q1", Field: "value", ReturnType: ir.ReturnInt},
		{Component: "Q1", Field: "priority", ReturnType: ir.ReturnInt},
		{Component: "Q2", Field: "priority", ReturnType: ir.ReturnInt},
		{Component: "Q2A1", Field: "value", ReturnType: ir.ReturnBoolean},
		{Component: "G2", Field: "order", ReturnType: ir.ReturnInt},
	}, cs.Schema)
}
