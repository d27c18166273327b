package compiler

import (
	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// synthesize derives not_skipped, prioritised, children_relevance,
// relevance and validity for every component that needs them.
func (c *compilation) synthesize() {
	c.collectPriorityRivals()
	c.childRelevance = make(map[string]childRelevance)
	for i := len(c.records) - 1; i >= 0; i-- {
		code := c.records[i].Code
		if cr, ok := c.buildChildrenRelevance(code); ok {
			c.childRelevance[code] = cr
		}
	}

	c.relevant = make(map[string]bool)
	for _, rec := range c.records {
		c.relevant[rec.Code] = len(c.relevanceTerms(rec.Code)) > 0 ||
			(rec.Parent != "" && c.relevant[rec.Parent])
	}

	for _, rec := range c.records {
		code := rec.Code
		if targets := c.manifesto[code]; len(targets) > 0 {
			text, deps := c.notSkippedText(targets)
			c.addSynthesized(code, ir.NewState(ir.CodeNotSkipped, text), deps)
		}
		if rivals, ok := c.rivals[code]; ok {
			text, deps := prioritisedText(code, rivals)
			c.addSynthesized(code, ir.NewState(ir.CodePrioritised, text), deps)
		}
		if cr, ok := c.childRelevance[code]; ok {
			c.addSynthesized(code, ir.NewState(ir.CodeChildrenRelevance, cr.text), cr.deps)
		}
		if c.relevant[code] {
			text, deps := c.relevanceText(code)
			c.addSynthesized(code, ir.NewState(ir.CodeRelevance, text), deps)
		}
	}

	c.synthesizeValidity()
}

type childRelevance struct {
	text string
	deps []ir.Dependency
}

type priorityRivals struct {
	limit  int
	others []string
}

// hasRelevance reports whether code gets a relevance instruction, either
// from its own terms or inherited from an ancestor.
func (c *compilation) hasRelevance(code string) bool {
	return c.relevant[code]
}

// relevanceTerms lists the slots whose conjunction forms a component's own
// relevance, in the fixed order they are combined.
func (c *compilation) relevanceTerms(code string) []ir.ReservedCode {
	var terms []ir.ReservedCode
	if _, ok := c.state(code, ir.CodeConditionalRelevance); ok {
		terms = append(terms, ir.CodeConditionalRelevance)
	}
	if _, ok := c.childRelevance[code]; ok {
		terms = append(terms, ir.CodeChildrenRelevance)
	}
	if _, ok := c.state(code, ir.CodeModeRelevance); ok {
		terms = append(terms, ir.CodeModeRelevance)
	}
	if len(c.manifesto[code]) > 0 {
		terms = append(terms, ir.CodeNotSkipped)
	}
	if _, ok := c.rivals[code]; ok {
		terms = append(terms, ir.CodePrioritised)
	}
	return terms
}

func (c *compilation) relevanceText(code string) (string, []ir.Dependency) {
	var parts []string
	var deps []ir.Dependency
	for _, t := range c.relevanceTerms(code) {
		parts = append(parts, ref(code, t))
		deps = append(deps, ir.Dependency{Component: code, Code: t})
	}
	if parent := c.index[code].Parent; parent != "" && c.relevant[parent] {
		parts = append(parts, ref(parent, ir.CodeRelevance))
		deps = append(deps, ir.Dependency{Component: parent, Code: ir.CodeRelevance})
	}
	return andAll(parts), deps
}

// buildChildrenRelevance folds a parent_relevance instruction into one
// expression: within a grouping any member may be relevant, and every
// grouping must hold. A grouping counts only when each member carries a
// relevance signal of its own; skip guards do not count, since they read
// relevance from the parent's level.
func (c *compilation) buildChildrenRelevance(code string) (childRelevance, bool) {
	ins, ok := c.component(code).Instruction(ir.ParentRelevanceCode)
	if !ok || ir.HasErrors(ins) {
		return childRelevance{}, false
	}
	var groupings []string
	var deps []ir.Dependency
	for _, grouping := range ins.(ir.ParentRelevance).Children {
		members := qualifyChildren(c.component(code), code, grouping)
		if len(members) == 0 || len(members) != len(grouping) {
			continue
		}
		var alternatives []string
		var groupDeps []ir.Dependency
		for _, m := range members {
			var terms []string
			for _, t := range c.relevanceTerms(m) {
				if t == ir.CodeNotSkipped {
					continue
				}
				terms = append(terms, ref(m, t))
				groupDeps = append(groupDeps, ir.Dependency{Component: m, Code: t})
			}
			if len(terms) == 0 {
				alternatives = nil
				break
			}
			alternatives = append(alternatives, andAll(terms))
		}
		if len(alternatives) == 0 {
			continue
		}
		groupings = append(groupings, orAll(alternatives))
		deps = append(deps, groupDeps...)
	}
	if len(groupings) == 0 {
		return childRelevance{}, false
	}
	return childRelevance{text: andAll(groupings), deps: deps}, true
}

// collectPriorityRivals maps every priority group member to its limit and
// the other members of its group.
func (c *compilation) collectPriorityRivals() {
	c.rivals = make(map[string]priorityRivals)
	for _, rec := range c.records {
		ins, ok := c.component(rec.Code).Instruction(ir.PriorityGroupsCode)
		if !ok || ir.HasErrors(ins) {
			continue
		}
		for _, g := range ins.(ir.PriorityGroups).Groups {
			members := qualifyChildren(c.component(rec.Code), rec.Code, g.Codes())
			for _, m := range members {
				var others []string
				for _, o := range members {
					if o != m {
						others = append(others, o)
					}
				}
				c.rivals[m] = priorityRivals{limit: g.Limit, others: others}
			}
		}
	}
}

// prioritisedText renders "fewer than limit rivals rank ahead of code and
// are themselves prioritised".
func prioritisedText(code string, r priorityRivals) (string, []ir.Dependency) {
	terms := make([]string, 0, len(r.others))
	deps := []ir.Dependency{{Component: code, Code: ir.CodePriority}}
	for _, o := range r.others {
		terms = append(terms, lessThan(ref(o, ir.CodePriority), ref(code, ir.CodePriority))+" && "+ref(o, ir.CodePrioritised))
		deps = append(deps,
			ir.Dependency{Component: o, Code: ir.CodePriority},
			ir.Dependency{Component: o, Code: ir.CodePrioritised})
	}
	return countTrueBelow(terms, r.limit), deps
}
