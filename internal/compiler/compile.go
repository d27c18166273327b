package compiler

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/qlarr-surveys/survey-engine/internal/expr"
	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// Compile turns an authored survey tree into a CompiledSurvey.
//
// Errors in the design are attached to the tree, never returned: the only
// error returned is context cancellation. A validator failure is logged and
// treated as "no errors, no references".
func Compile(ctx context.Context, survey ir.Component, validator expr.Validator) (*ir.CompiledSurvey, error) {
	survey = ValidateStructure(stripDerived(survey))
	c := newCompilation(survey)

	if err := c.validateExpressions(ctx, validator); err != nil {
		return nil, err
	}
	c.checkAccess()
	c.flush()

	c.compileSkips()
	c.flush()

	c.synthesize()
	c.flush()

	c.checkCycles()
	c.flush()

	hash, err := ir.DesignHash(c.survey)
	if err != nil {
		return nil, fmt.Errorf("hash design: %w", err)
	}
	cs := &ir.CompiledSurvey{
		Survey:        c.survey,
		DependencyMap: c.dependencyMap(),
		Index:         c.records,
		SkipManifesto: c.manifesto,
		Schema:        buildSchema(c.survey),
		Hash:          hash,
	}
	cs.ImpactMap = impactMap(cs.DependencyMap)

	slog.Debug("survey compiled",
		"components", len(cs.Index),
		"dependents", len(cs.DependencyMap),
		"guarded", len(cs.SkipManifesto),
		"has_errors", cs.HasErrors(),
	)
	return cs, nil
}

// derivedSlots are always recomputed, so authored versions are dropped.
var derivedSlots = []ir.ReservedKind{
	ir.ReservedChildrenRelevance,
	ir.ReservedNotSkipped,
	ir.ReservedPrioritised,
	ir.ReservedRelevance,
	ir.ReservedValidity,
}

func stripDerived(survey ir.Component) ir.Component {
	return ir.Rewrite(survey, func(_ string, c ir.Component) ir.Component {
		var list []ir.Instruction
		dropped := false
		for _, ins := range c.Instructions() {
			if st, ok := ins.(ir.State); ok && slices.Contains(derivedSlots, st.Reserved().Kind) {
				dropped = true
				continue
			}
			list = append(list, ins)
		}
		if !dropped {
			return c
		}
		return c.Duplicate(ir.WithInstructions(list))
	})
}

// compilation carries the state shared by the passes. Pending errors and
// synthesized instructions are written back to the tree by flush.
type compilation struct {
	survey  ir.Component
	records []ir.ComponentIndex
	index   map[string]ir.ComponentIndex
	nodes   map[string]ir.Node

	deps      map[ir.Dependent][]ir.Dependency
	errs      map[ir.Dependent][]ir.InstructionError
	synth     map[string][]ir.Instruction
	manifesto map[string][]ir.SkipTarget

	// Filled by synthesize.
	rivals         map[string]priorityRivals
	childRelevance map[string]childRelevance
	relevant       map[string]bool
	valid          map[string]bool
}

func newCompilation(survey ir.Component) *compilation {
	c := &compilation{
		survey:    survey,
		records:   BuildIndex(survey),
		index:     make(map[string]ir.ComponentIndex),
		deps:      make(map[ir.Dependent][]ir.Dependency),
		errs:      make(map[ir.Dependent][]ir.InstructionError),
		synth:     make(map[string][]ir.Instruction),
		manifesto: make(map[string][]ir.SkipTarget),
	}
	for _, rec := range c.records {
		c.index[rec.Code] = rec
	}
	c.refreshNodes()
	return c
}

func (c *compilation) refreshNodes() {
	c.nodes = make(map[string]ir.Node, len(c.records))
	ir.Walk(c.survey, func(n ir.Node) bool {
		if _, ok := c.index[n.Code]; !ok {
			return false
		}
		c.nodes[n.Code] = n
		return true
	})
}

func (c *compilation) component(code string) ir.Component {
	return c.nodes[code].Component
}

// states returns the error-free State view of every State and skip on an
// indexed component.
func (c *compilation) states(code string) []ir.State {
	var out []ir.State
	for _, ins := range c.component(code).Instructions() {
		st, ok := ir.AsState(ins)
		if ok && !ir.HasErrors(ins) {
			out = append(out, st)
		}
	}
	return out
}

func (c *compilation) state(code string, rc ir.ReservedCode) (ir.State, bool) {
	st, ok := c.component(code).State(rc)
	if !ok || len(st.Errors) > 0 {
		return ir.State{}, false
	}
	return st, true
}

func (c *compilation) addError(d ir.Dependent, e ir.InstructionError) {
	c.errs[d] = append(c.errs[d], e)
}

func (c *compilation) addSynthesized(code string, st ir.State, deps []ir.Dependency) {
	c.synth[code] = append(c.synth[code], st)
	d := ir.Dependent{Component: code, Code: st.Code}
	if len(deps) > 0 {
		c.deps[d] = dedupDependencies(deps)
	}
}

// flush writes pending errors and synthesized instructions into the tree.
// Instructions that received errors stop contributing dependencies.
func (c *compilation) flush() {
	if len(c.errs) == 0 && len(c.synth) == 0 {
		return
	}
	for d := range c.errs {
		delete(c.deps, d)
	}
	c.survey = ir.Rewrite(c.survey, func(code string, comp ir.Component) ir.Component {
		if _, ok := c.index[code]; !ok {
			return comp
		}
		list := slices.Clone(comp.Instructions())
		changed := false
		for i, ins := range list {
			if errs := c.errs[ir.Dependent{Component: code, Code: ins.InstructionCode()}]; len(errs) > 0 {
				list[i] = ir.AddErrors(ins, errs...)
				changed = true
			}
		}
		if changed {
			comp = comp.Duplicate(ir.WithInstructions(list))
		}
		for _, ins := range c.synth[code] {
			comp = comp.ReplaceInstruction(ins)
		}
		return comp
	})
	c.errs = make(map[ir.Dependent][]ir.InstructionError)
	c.synth = make(map[string][]ir.Instruction)
	c.refreshNodes()
}

// validateExpressions sends every author-written expression to the
// validator in one batch and records script errors and references.
func (c *compilation) validateExpressions(ctx context.Context, validator expr.Validator) error {
	allowed := make([]string, 0, len(c.records))
	for _, rec := range c.records {
		allowed = append(allowed, rec.Code)
	}
	slices.Sort(allowed)

	var items []expr.ValidationItem
	for _, rec := range c.records {
		for _, ins := range c.component(rec.Code).Instructions() {
			if ir.HasErrors(ins) {
				continue
			}
			switch v := ins.(type) {
			case ir.Reference:
				for _, name := range v.SortedNames() {
					items = append(items, expr.ValidationItem{
						Component: rec.Code, Instruction: v.Code, Text: v.References[name], Allowed: allowed,
					})
				}
			default:
				st, ok := ir.AsState(ins)
				if !ok || !st.Reserved().Meta().RequiresValidation {
					continue
				}
				items = append(items, expr.ValidationItem{
					Component: rec.Code, Instruction: st.Code, Text: st.Text, Literal: !st.Active, Allowed: allowed,
				})
			}
		}
	}
	if len(items) == 0 || validator == nil {
		return nil
	}

	results, err := validator.Validate(ctx, items)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("expression validation failed, continuing without script checks", "error", err)
		return nil
	}
	if len(results) != len(items) {
		slog.Warn("expression validator returned a malformed response",
			"items", len(items), "results", len(results))
		return nil
	}

	refs := make(map[ir.Dependent][]string)
	for i, res := range results {
		d := ir.Dependent{Component: items[i].Component, Code: items[i].Instruction}
		for _, se := range res.Errors {
			c.addError(d, ir.NewScriptError(se.Message, se.Start, se.End))
		}
		refs[d] = append(refs[d], res.References...)
	}
	for d, list := range refs {
		if len(c.errs[d]) > 0 || len(list) == 0 {
			continue
		}
		c.resolveReferences(d, list)
	}
	return nil
}

// resolveReferences turns "Component.field" strings into dependencies,
// flagging the ones that name no exposed field.
func (c *compilation) resolveReferences(d ir.Dependent, refs []string) {
	var deps []ir.Dependency
	for _, r := range refs {
		dep, err := ir.ParseDependency(r)
		if err != nil {
			c.addError(d, ir.NewInvalidReference(r))
			continue
		}
		deps = append(deps, dep)
	}
	if len(deps) > 0 {
		c.deps[d] = dedupDependencies(deps)
	}
}

// checkAccess flags references to unknown fields and to components the
// referencer cannot see.
func (c *compilation) checkAccess() {
	for _, d := range sortedDependents(c.deps) {
		for _, dep := range c.deps[d] {
			switch classifyAccess(c.index, d.Component, dep) {
			case accessUnknown:
				c.addError(d, ir.NewInvalidReference(dep.String()))
			case accessForward:
				c.addError(d, ir.NewForwardDependency(dep))
			}
		}
	}
}

func (c *compilation) dependencyMap() map[ir.Dependent][]ir.Dependency {
	out := make(map[ir.Dependent][]ir.Dependency, len(c.deps))
	for d, deps := range c.deps {
		if len(deps) > 0 {
			out[d] = slices.Clone(deps)
		}
	}
	return out
}

// impactMap inverts a dependency map. Dependents are sorted.
func impactMap(deps map[ir.Dependent][]ir.Dependency) map[ir.Dependency][]ir.Dependent {
	out := make(map[ir.Dependency][]ir.Dependent)
	for d, list := range deps {
		for _, dep := range list {
			out[dep] = append(out[dep], d)
		}
	}
	for dep := range out {
		slices.SortFunc(out[dep], func(a, b ir.Dependent) int {
			return cmp.Compare(a.String(), b.String())
		})
	}
	return out
}

func dedupDependencies(deps []ir.Dependency) []ir.Dependency {
	seen := make(map[ir.Dependency]bool, len(deps))
	out := make([]ir.Dependency, 0, len(deps))
	for _, d := range deps {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b ir.Dependency) int {
		return cmp.Compare(a.String(), b.String())
	})
	return out
}

func sortedDependents(m map[ir.Dependent][]ir.Dependency) []ir.Dependent {
	keys := make([]ir.Dependent, 0, len(m))
	for d := range m {
		keys = append(keys, d)
	}
	slices.SortFunc(keys, func(a, b ir.Dependent) int {
		return cmp.Compare(a.String(), b.String())
	})
	return keys
}
