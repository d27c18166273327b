package compiler

import (
	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// synthesizeValidity derives validity bottom-up. Questions and answers are
// valid when their value is one of their answer codes, no active validation
// rule fires, and every relevant child is valid. Groups and the survey are
// valid when every relevant child in the current navigation is valid. The
// END group never gets validity.
func (c *compilation) synthesizeValidity() {
	c.valid = make(map[string]bool)
	for i := len(c.records) - 1; i >= 0; i-- {
		rec := c.records[i]
		if rec.EndGroup {
			continue
		}
		var text string
		var deps []ir.Dependency
		switch rec.Kind {
		case ir.KindSurvey, ir.KindGroup:
			text, deps = c.containerValidity(rec)
		default:
			text, deps = c.itemValidity(rec)
		}
		if text == "" {
			continue
		}
		c.valid[rec.Code] = true
		c.addSynthesized(rec.Code, ir.NewState(ir.CodeValidity, text), deps)
	}
}

func (c *compilation) containerValidity(rec ir.ComponentIndex) (string, []ir.Dependency) {
	var terms []string
	var deps []ir.Dependency
	for _, child := range rec.Children {
		if !c.valid[child] {
			continue
		}
		alts := []string{not(ref(child, ir.CodeInCurrentNavigation))}
		deps = append(deps, ir.Dependency{Component: child, Code: ir.CodeInCurrentNavigation})
		if c.hasRelevance(child) {
			alts = append(alts, not(ref(child, ir.CodeRelevance)))
			deps = append(deps, ir.Dependency{Component: child, Code: ir.CodeRelevance})
		}
		alts = append(alts, ref(child, ir.CodeValidity))
		deps = append(deps, ir.Dependency{Component: child, Code: ir.CodeValidity})
		terms = append(terms, orAll(alts))
	}
	return andAll(terms), deps
}

func (c *compilation) itemValidity(rec ir.ComponentIndex) (string, []ir.Dependency) {
	var terms []string
	var deps []ir.Dependency

	var answers []string
	for _, child := range rec.Children {
		if c.index[child].Kind == ir.KindAnswer {
			answers = append(answers, c.component(child).Code())
		}
	}
	if _, ok := c.state(rec.Code, ir.CodeValue); ok && len(answers) > 0 {
		terms = append(terms, inEnum(ref(rec.Code, ir.CodeValue), answers))
		deps = append(deps, ir.Dependency{Component: rec.Code, Code: ir.CodeValue})
	}

	for _, st := range c.states(rec.Code) {
		rc := st.Reserved()
		if rc.Kind != ir.ReservedValidationRule || !st.Active {
			continue
		}
		terms = append(terms, not(ref(rec.Code, rc)))
		deps = append(deps, ir.Dependency{Component: rec.Code, Code: rc})
	}

	for _, child := range rec.Children {
		if !c.valid[child] {
			continue
		}
		if c.hasRelevance(child) {
			terms = append(terms, orAll([]string{not(ref(child, ir.CodeRelevance)), ref(child, ir.CodeValidity)}))
			deps = append(deps, ir.Dependency{Component: child, Code: ir.CodeRelevance})
		} else {
			terms = append(terms, ref(child, ir.CodeValidity))
		}
		deps = append(deps, ir.Dependency{Component: child, Code: ir.CodeValidity})
	}
	return andAll(terms), deps
}
