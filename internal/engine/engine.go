package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/qlarr-surveys/survey-engine/internal/compiler"
	"github.com/qlarr-surveys/survey-engine/internal/expr"
	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// DefaultLang is the survey language used when a request names none.
const DefaultLang = "en"

// Engine runs navigation steps against compiled surveys.
//
// Thread-safety: an Engine holds no per-survey state; it is safe for
// concurrent use when its evaluator and seed generator are.
type Engine struct {
	evaluator expr.Evaluator
	seeds     SeedGenerator
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithSeedGenerator sets the source of the seeds drawn on Start.
//
// Default: UUIDv7Generator.
func WithSeedGenerator(g SeedGenerator) EngineOption {
	return func(e *Engine) {
		e.seeds = g
	}
}

// New creates an Engine that evaluates with the given evaluator.
func New(evaluator expr.Evaluator, opts ...EngineOption) *Engine {
	e := &Engine{
		evaluator: evaluator,
		seeds:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request is one navigation step.
type Request struct {
	// Current is the caller's index; nil on Start.
	Current   ir.NavigationIndex
	Direction ir.NavigationDirection
	// Mode defaults to GROUP_BY_GROUP.
	Mode ir.NavigationMode
	// Lang defaults to DefaultLang.
	Lang string
	// Values holds the stored response, including the order and priority
	// values returned by earlier steps.
	Values      Values
	SkipInvalid bool
}

// Result is the outcome of a navigation step.
type Result struct {
	Index ir.NavigationIndex
	// Survey is the ordered tree reduced to Index.
	Survey   ir.Component
	Bindings Bindings
	// Values holds the persistable fields of the response schema,
	// including the order and priority values the caller must keep.
	Values Values
	// Seed is set when this step drew orders or priorities.
	Seed string
}

// Navigate evaluates the survey state for req and moves to the next index.
//
// Designs carrying compilation errors are rejected with ErrDesignHasErrors.
// The evaluator is called exactly once.
func (e *Engine) Navigate(ctx context.Context, cs *ir.CompiledSurvey, req Request) (*Result, error) {
	if cs.HasErrors() {
		return nil, ErrDesignHasErrors
	}
	mode := req.Mode
	if mode == "" {
		mode = ir.ModeGroupByGroup
	}
	if !validMode(mode) {
		return nil, &NavigationError{Code: ErrCodeInvalidMode, Message: "unknown navigation mode " + string(mode)}
	}
	if err := req.Values.check(); err != nil {
		return nil, err
	}
	lang := req.Lang
	if lang == "" {
		lang = DefaultLang
	}

	orders, priorities, seed := e.layout(cs, req, lang)
	sorted := SortTree(cs.Survey, orders)
	outline := NewOutline(sorted)

	steps, err := compiler.Sequence(cs, orders, priorities)
	if err != nil {
		return nil, fmt.Errorf("sequence: %w", err)
	}
	evalReq := expr.EvalRequest{
		Values:   e.values(cs, outline, req, lang, mode, orders, priorities),
		Sequence: evalItems(steps),
		Format:   formatItems(cs.Survey),
		Codes:    codes(cs),
	}
	result, err := e.evaluator.Evaluate(ctx, evalReq)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	b := Bindings(result)

	idx, err := Transition(outline, b, Move{
		Current:      req.Current,
		Direction:    req.Direction,
		Mode:         mode,
		SkipInvalid:  req.SkipInvalid,
		CurrentValid: b.Valid(ir.SurveyCode),
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("navigation step",
		"direction", ir.DirectionName(req.Direction),
		"mode", mode,
		"from", ir.IndexString(req.Current),
		"to", ir.IndexString(idx),
		"instructions", len(steps))

	return &Result{
		Index:    idx,
		Survey:   Reduce(sorted, idx),
		Bindings: b,
		Values:   persistable(cs, b),
		Seed:     seed,
	}, nil
}

// layout returns the orders and priorities of the step. Start draws fresh
// ones; other directions use the stored ones and draw only what is
// missing.
func (e *Engine) layout(cs *ir.CompiledSurvey, req Request, lang string) (map[string]int, map[string]int, string) {
	seed := e.seeds.Generate()
	rng := newRand(seed)
	drawnOrders := compiler.AssignOrder(cs.Survey, rng, lang, labels(cs.Survey))
	drawnPriorities := compiler.AssignPriority(cs.Survey, rng)
	if _, ok := req.Direction.(ir.StartDirection); ok {
		slog.Debug("drew layout", "seed", seed, "orders", len(drawnOrders), "priorities", len(drawnPriorities))
		return drawnOrders, drawnPriorities, seed
	}

	orders := req.Values.Ints(ir.CodeOrder.String())
	priorities := req.Values.Ints(ir.CodePriority.String())
	filled := fill(orders, drawnOrders) + fill(priorities, drawnPriorities)
	if filled == 0 {
		return orders, priorities, ""
	}
	slog.Warn("stored layout incomplete, drew missing entries", "seed", seed, "filled", filled)
	return orders, priorities, seed
}

func fill(dst, src map[string]int) int {
	n := 0
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
			n++
		}
	}
	return n
}

// labels returns the literal label of every component.
func labels(survey ir.Component) compiler.LabelFunc {
	byCode := make(map[string]string)
	ir.Walk(survey, func(n ir.Node) bool {
		if st, ok := n.Component.State(ir.CodeLabel); ok && !st.Active {
			byCode[n.Code] = st.Text
		}
		return true
	})
	return func(code string) string {
		if l, ok := byCode[code]; ok {
			return l
		}
		return code
	}
}

// values builds the typed input bindings of the evaluation: stored
// values, survey lang and mode, layout, literal labels and the
// in_current_navigation flags of the current index.
func (e *Engine) values(cs *ir.CompiledSurvey, o Outline, req Request, lang string, mode ir.NavigationMode, orders, priorities map[string]int) map[string]expr.Value {
	types := make(map[string]ir.ReturnType, len(cs.Schema))
	for _, f := range cs.Schema {
		types[f.Component+"."+f.Field] = f.ReturnType
	}
	typeOf := func(key, field string) ir.ReturnType {
		if rt, ok := types[key]; ok {
			return rt
		}
		if rc, ok := ir.ParseReservedCode(field); ok {
			return rc.Meta().ReturnType
		}
		return ""
	}

	out := make(map[string]expr.Value, len(req.Values))
	set := func(component string, field string, v any) {
		key := component + "." + field
		out[key] = expr.Value{ReturnType: typeOf(key, field), Value: v}
	}
	for key, v := range req.Values {
		component, field, _ := strings.Cut(key, ".")
		set(component, field, v)
	}
	ir.Walk(cs.Survey, func(n ir.Node) bool {
		if st, ok := n.Component.State(ir.CodeLabel); ok && !st.Active {
			if _, stored := out[n.Code+".label"]; !stored {
				set(n.Code, ir.CodeLabel.String(), st.Text)
			}
		}
		return true
	})
	set(ir.SurveyCode, ir.CodeLang.String(), lang)
	set(ir.SurveyCode, ir.CodeMode.String(), string(mode))
	for code, v := range orders {
		set(code, ir.CodeOrder.String(), v)
	}
	for code, v := range priorities {
		set(code, ir.CodePriority.String(), v)
	}

	covered := coveredBy(o, req.Current)
	for _, g := range o.Groups {
		set(g.Code, ir.CodeInCurrentNavigation.String(), covered[g.Code])
		for _, q := range g.Questions {
			set(q, ir.CodeInCurrentNavigation.String(), covered[q])
		}
	}
	return out
}

// coveredBy returns the groups and questions shown at idx. End covers
// everything.
func coveredBy(o Outline, idx ir.NavigationIndex) map[string]bool {
	covered := make(map[string]bool)
	addGroup := func(g OutlineGroup) {
		covered[g.Code] = true
		for _, q := range g.Questions {
			covered[q] = true
		}
	}
	switch v := idx.(type) {
	case ir.EndIndex:
		for _, g := range o.Groups {
			addGroup(g)
		}
	case ir.GroupsIndex:
		for _, g := range o.Groups {
			if slices.Contains(v.IDs, g.Code) {
				addGroup(g)
			}
		}
	case ir.GroupIndex:
		for _, g := range o.Groups {
			if g.Code == v.ID {
				addGroup(g)
			}
		}
	case ir.QuestionIndex:
		for _, g := range o.Groups {
			if slices.Contains(g.Questions, v.ID) {
				covered[g.Code] = true
				covered[v.ID] = true
			}
		}
	}
	return covered
}

func evalItems(steps []compiler.Step) []expr.EvalItem {
	items := make([]expr.EvalItem, len(steps))
	for i, s := range steps {
		rt := s.State.ReturnType
		if rt == "" {
			rt = s.State.Reserved().Meta().ReturnType
		}
		items[i] = expr.EvalItem{
			Component:   s.Component,
			Instruction: s.State.Code,
			Text:        s.State.Text,
			ReturnType:  rt,
			Active:      s.State.Active,
		}
	}
	return items
}

func formatItems(survey ir.Component) []expr.FormatItem {
	var items []expr.FormatItem
	ir.Walk(survey, func(n ir.Node) bool {
		for _, ins := range n.Component.Instructions() {
			ref, ok := ins.(ir.Reference)
			if !ok || ir.HasErrors(ins) {
				continue
			}
			items = append(items, expr.FormatItem{
				Component:   n.Code,
				Instruction: ref.Code,
				References:  ref.References,
			})
		}
		return true
	})
	return items
}

func codes(cs *ir.CompiledSurvey) []string {
	out := make([]string, 0, len(cs.Index)+1)
	out = append(out, ir.SurveyCode)
	for _, rec := range cs.Index {
		if rec.Code != ir.SurveyCode {
			out = append(out, rec.Code)
		}
	}
	return out
}

// persistable keeps the evaluated fields listed in the response schema.
func persistable(cs *ir.CompiledSurvey, b Bindings) Values {
	out := make(Values, len(cs.Schema))
	for _, f := range cs.Schema {
		if v, ok := b[f.Component][f.Field]; ok {
			out[f.Component+"."+f.Field] = v
		}
	}
	return out
}
