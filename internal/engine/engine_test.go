package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlarr-surveys/survey-engine/internal/compiler"
	"github.com/qlarr-surveys/survey-engine/internal/expr"
	"github.com/qlarr-surveys/survey-engine/internal/ir"
	tu "github.com/qlarr-surveys/survey-engine/internal/testutil"
)

func compile(t *testing.T, survey ir.Component) *ir.CompiledSurvey {
	t.Helper()
	cs, err := compiler.Compile(context.Background(), survey, expr.NewHCLValidator())
	require.NoError(t, err)
	return cs
}

func question(code string, items ...any) ir.Component {
	return tu.Question(code, append([]any{tu.Value(ir.ReturnString)}, items...)...)
}

func newTestEngine() *Engine {
	return New(expr.NewHCLEvaluator(), WithSeedGenerator(NewFixedGenerator("seed-1")))
}

// countingEvaluator records how often it is called.
type countingEvaluator struct {
	inner expr.Evaluator
	calls int
	last  expr.EvalRequest
}

func (c *countingEvaluator) Evaluate(ctx context.Context, req expr.EvalRequest) (expr.Result, error) {
	c.calls++
	c.last = req
	return c.inner.Evaluate(ctx, req)
}

// =============================================================================
// Engine Tests
// =============================================================================

func TestEngine_New(t *testing.T) {
	e := New(expr.NewHCLEvaluator())
	assert.IsType(t, UUIDv7Generator{}, e.seeds)

	fixed := NewFixedGenerator("x")
	e = New(expr.NewHCLEvaluator(), WithSeedGenerator(fixed))
	assert.Same(t, fixed, e.seeds)
}

func TestEngine_DesignHasErrors(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1",
			question("Q1", tu.Relevance(`Q2.value == "x"`)),
			question("Q2"),
		),
		tu.End(),
	))
	require.True(t, cs.HasErrors())

	_, err := newTestEngine().Navigate(context.Background(), cs, Request{Direction: ir.StartDirection{}})
	assert.ErrorIs(t, err, ErrDesignHasErrors)
}

func TestEngine_CyclicDesignHasErrors(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1",
			tu.Question("Q1",
				tu.Computed("Q1.relevance ? 1 : 0", ir.ReturnInt),
				tu.Relevance("Q1.value == 1"),
			),
		),
		tu.End(),
	))
	require.True(t, cs.HasErrors())

	_, err := newTestEngine().Navigate(context.Background(), cs, Request{Direction: ir.StartDirection{}})
	assert.ErrorIs(t, err, ErrDesignHasErrors)
}

func TestEngine_StartSkipsIrrelevantGroup(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1", tu.Relevance("false"), question("Q1")),
		tu.Group("G2", question("Q2")),
		tu.End(),
	))
	require.False(t, cs.HasErrors())

	ev := &countingEvaluator{inner: expr.NewHCLEvaluator()}
	e := New(ev, WithSeedGenerator(NewFixedGenerator("seed-1")))
	res, err := e.Navigate(context.Background(), cs, Request{
		Direction: ir.StartDirection{},
		Mode:      ir.ModeGroupByGroup,
	})
	require.NoError(t, err)

	assert.Equal(t, ir.GroupIndex{ID: "G2"}, res.Index)
	assert.Equal(t, 1, ev.calls, "one evaluator round-trip per step")
	assert.False(t, res.Bindings.Relevant("G1"))
	assert.False(t, res.Bindings.Relevant("Q1"))
	assert.Equal(t, []string{"G2"}, childCodes(res.Survey))
}

func TestEngine_NextFollowsSkip(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1",
			question("Q1", tu.Skip("Q3", `Q1.value == "yes"`)),
			question("Q2"),
			question("Q3"),
		),
		tu.End(),
	))
	require.False(t, cs.HasErrors())
	e := newTestEngine()

	tests := []struct {
		answer string
		want   ir.NavigationIndex
	}{
		{"yes", ir.QuestionIndex{ID: "Q3"}},
		{"no", ir.QuestionIndex{ID: "Q2"}},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			res, err := e.Navigate(context.Background(), cs, Request{
				Current:   ir.QuestionIndex{ID: "Q1"},
				Direction: ir.NextDirection{},
				Mode:      ir.ModeQuestionByQuestion,
				Values:    Values{"Q1.value": tt.answer},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Index)
			assert.Equal(t, tt.answer, res.Values["Q1.value"])
		})
	}
}

func TestEngine_InvalidPageBlocksNext(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1", question("Q1", tu.Validation("bad", `Q1.value == "bad"`))),
		tu.Group("G2", question("Q2")),
		tu.End(),
	))
	require.False(t, cs.HasErrors())
	e := newTestEngine()

	req := Request{
		Current:   ir.GroupIndex{ID: "G1"},
		Direction: ir.NextDirection{},
		Mode:      ir.ModeGroupByGroup,
		Values:    Values{"Q1.value": "bad"},
	}
	res, err := e.Navigate(context.Background(), cs, req)
	require.NoError(t, err)
	assert.True(t, ir.EqualIndex(ir.GroupIndex{ID: "G1"}, res.Index))
	assert.True(t, res.Index.ShowErrors())
	assert.False(t, res.Bindings.Valid("Q1"))

	req.SkipInvalid = true
	res, err = e.Navigate(context.Background(), cs, req)
	require.NoError(t, err)
	assert.Equal(t, ir.GroupIndex{ID: "G2"}, res.Index)

	req.SkipInvalid = false
	req.Values = Values{"Q1.value": "good"}
	res, err = e.Navigate(context.Background(), cs, req)
	require.NoError(t, err)
	assert.Equal(t, ir.GroupIndex{ID: "G2"}, res.Index)
}

func TestEngine_SubmitJumpsToFirstInvalid(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1", question("Q1", tu.Validation("bad", `Q1.value == "bad"`))),
		tu.Group("G2", question("Q2")),
		tu.End(),
	))
	require.False(t, cs.HasErrors())

	res, err := newTestEngine().Navigate(context.Background(), cs, Request{
		Current:   ir.GroupIndex{ID: "G2"},
		Direction: ir.NextDirection{},
		Mode:      ir.ModeGroupByGroup,
		Values:    Values{"Q1.value": "bad"},
	})
	require.NoError(t, err)
	assert.True(t, ir.EqualIndex(ir.GroupIndex{ID: "G1"}, res.Index))
	assert.True(t, res.Index.ShowErrors())
}

func TestEngine_SeedsCurrentNavigation(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Group("G1", question("Q1"), question("Q2")),
		tu.Group("G2", question("Q3")),
		tu.End(),
	))
	ev := &countingEvaluator{inner: expr.NewHCLEvaluator()}
	e := New(ev, WithSeedGenerator(NewFixedGenerator("seed-1")))

	_, err := e.Navigate(context.Background(), cs, Request{
		Current:   ir.QuestionIndex{ID: "Q2"},
		Direction: ir.ChangeLanguageDirection{},
		Mode:      ir.ModeQuestionByQuestion,
		Lang:      "de",
	})
	require.NoError(t, err)

	v := ev.last.Values
	assert.Equal(t, true, v["Q2.in_current_navigation"].Value)
	assert.Equal(t, true, v["G1.in_current_navigation"].Value)
	assert.Equal(t, false, v["Q1.in_current_navigation"].Value)
	assert.Equal(t, false, v["G2.in_current_navigation"].Value)
	assert.Equal(t, "de", v["Survey.lang"].Value)
	assert.Equal(t, "QUESTION_BY_QUESTION", v["Survey.mode"].Value)
}

func TestEngine_StartDrawsLayout(t *testing.T) {
	cs := compile(t, tu.Survey(
		tu.Random(ir.RandomRandom, "G1", "G2", "G3"),
		tu.Group("G1", question("Q1")),
		tu.Group("G2", question("Q2")),
		tu.Group("G3", question("Q3")),
		tu.End(),
	))
	require.False(t, cs.HasErrors())
	e := newTestEngine()

	res, err := e.Navigate(context.Background(), cs, Request{Direction: ir.StartDirection{}, Mode: ir.ModeAllInOne})
	require.NoError(t, err)
	assert.Equal(t, "seed-1", res.Seed)

	orders := res.Values.Ints("order")
	require.Len(t, orders, 3)
	assert.ElementsMatch(t, []int{1, 2, 3}, []int{orders["G1"], orders["G2"], orders["G3"]})

	// The page lists the groups in drawn order.
	want := make([]string, 3)
	for code, o := range orders {
		want[o-1] = code
	}
	assert.Equal(t, ir.GroupsIndex{IDs: want}, res.Index)

	// Feeding the layout back keeps it and draws nothing.
	again, err := e.Navigate(context.Background(), cs, Request{
		Current:   res.Index,
		Direction: ir.ResumeDirection{},
		Mode:      ir.ModeAllInOne,
		Values:    res.Values,
	})
	require.NoError(t, err)
	assert.Empty(t, again.Seed)
	assert.Equal(t, res.Index, again.Index)
	assert.Equal(t, orders, again.Values.Ints("order"))
}

func TestEngine_InvalidValueKey(t *testing.T) {
	cs := compile(t, tu.Survey(tu.Group("G1", question("Q1")), tu.End()))
	_, err := newTestEngine().Navigate(context.Background(), cs, Request{
		Direction: ir.StartDirection{},
		Values:    Values{"Q1value": "x"},
	})
	assert.True(t, IsNavigationError(err, ErrCodeInvalidValue))
}

func TestEngine_DefaultMode(t *testing.T) {
	cs := compile(t, tu.Survey(tu.Group("G1", question("Q1")), tu.End()))
	res, err := newTestEngine().Navigate(context.Background(), cs, Request{Direction: ir.StartDirection{}})
	require.NoError(t, err)
	assert.Equal(t, ir.GroupIndex{ID: "G1"}, res.Index)
}
