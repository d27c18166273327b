package compiler

import (
	"slices"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// compileSkips validates every skip instruction and records, for each
// component a skip can bypass, the guard fragment that keeps it visible.
func (c *compilation) compileSkips() {
	for _, rec := range c.records {
		for _, ins := range c.component(rec.Code).Instructions() {
			skip, ok := ins.(ir.SkipInstruction)
			if !ok || ir.HasErrors(skip) {
				continue
			}
			d := ir.Dependent{Component: rec.Code, Code: skip.Code}
			if kind, ok := c.checkSkip(rec.Code, skip); !ok {
				c.addError(d, ir.NewKindError(kind))
				continue
			}
			for _, t := range c.skipTargets(rec.Code, skip) {
				c.manifesto[t.Component] = append(c.manifesto[t.Component], t)
			}
		}
	}
}

func (c *compilation) checkSkip(from string, skip ir.SkipInstruction) (ir.InstructionErrorKind, bool) {
	src := c.index[from]
	dst, ok := c.index[skip.SkipTo]
	if !ok || src.Kind == ir.KindAnswer || src.Kind == ir.KindSurvey ||
		(dst.Kind != ir.KindGroup && dst.Kind != ir.KindQuestion) {
		return ir.ErrInvalidSkipReference, false
	}
	if skip.ToEnd && c.component(dst.Code).IsEndGroup() {
		return ir.ErrSkipToEndOfEndGroup, false
	}
	xs, ys := lineage(c.index, from), lineage(c.index, dst.Code)
	if slices.Contains(xs, dst.Code) || slices.Contains(ys, from) {
		return ir.ErrInvalidSkipReference, false
	}
	i, j, _ := commonAncestor(xs, ys)
	if relation(c.index[ys[j-1]], c.index[xs[i-1]]) < 0 {
		return ir.ErrInvalidSkipReference, false
	}
	return "", true
}

// skipTargets lists the components bypassed when from's skip fires.
//
// Below the common ancestor on the source side, siblings after each
// ancestor of from are bypassed; at the common ancestor, siblings between
// the two branches; below it on the destination side, siblings before each
// ancestor of the destination. A sibling whose order against the anchor is
// only known at runtime gets an order condition on its fragment.
func (c *compilation) skipTargets(from string, skip ir.SkipInstruction) []ir.SkipTarget {
	xs, ys := lineage(c.index, from), lineage(c.index, skip.SkipTo)
	i, j, _ := commonAncestor(xs, ys)
	base := ir.SkipTarget{From: from, To: skip.SkipTo, SkipCode: skip.Code, ToEnd: skip.ToEnd}

	var out []ir.SkipTarget
	for k := 0; k < i-1; k++ {
		anchor := c.index[xs[k]]
		for _, z := range c.siblings(anchor) {
			switch relation(z, anchor) {
			case 1:
				out = append(out, targetFor(base, z.Code))
			case 0:
				t := targetFor(base, z.Code)
				t.FromOrderNecessary, t.FromComponent, t.FromSubject = true, anchor.Code, z.Code
				out = append(out, t)
			}
		}
	}

	ax, ay := c.index[xs[i-1]], c.index[ys[j-1]]
	for _, z := range c.siblings(ax) {
		if z.Code == ay.Code || z.EndGroup {
			continue
		}
		afterFrom, beforeTo := relation(z, ax), relation(z, ay)
		if afterFrom < 0 || beforeTo > 0 {
			continue
		}
		t := targetFor(base, z.Code)
		if afterFrom == 0 {
			t.FromOrderNecessary, t.FromComponent, t.FromSubject = true, ax.Code, z.Code
		}
		if beforeTo == 0 {
			t.ToOrderNecessary, t.ToComponent, t.ToSubject = true, ay.Code, z.Code
		}
		out = append(out, t)
	}

	for k := j - 2; k >= 0; k-- {
		anchor := c.index[ys[k]]
		for _, z := range c.siblings(anchor) {
			switch relation(z, anchor) {
			case -1:
				out = append(out, targetFor(base, z.Code))
			case 0:
				t := targetFor(base, z.Code)
				t.ToOrderNecessary, t.ToComponent, t.ToSubject = true, anchor.Code, z.Code
				out = append(out, t)
			}
		}
	}

	if dst := c.index[skip.SkipTo]; skip.ToEnd && dst.Kind == ir.KindGroup {
		for _, child := range dst.Children {
			out = append(out, targetFor(base, child))
		}
	}
	return out
}

func targetFor(base ir.SkipTarget, component string) ir.SkipTarget {
	base.Component = component
	return base
}

// siblings returns the other children of rec's parent, in document order.
func (c *compilation) siblings(rec ir.ComponentIndex) []ir.ComponentIndex {
	var out []ir.ComponentIndex
	for _, code := range c.index[rec.Parent].Children {
		if code != rec.Code {
			out = append(out, c.index[code])
		}
	}
	return out
}

// notSkippedText renders the guard of one component: the conjunction of
// its fragments, each "the skip did not fire, or its owner is irrelevant,
// or the runtime order puts the component outside the skipped span".
func (c *compilation) notSkippedText(targets []ir.SkipTarget) (string, []ir.Dependency) {
	var fragments []string
	var deps []ir.Dependency
	for _, t := range targets {
		skipCode := ir.MustParseReservedCode(t.SkipCode)
		terms := []string{not(ref(t.From, skipCode))}
		deps = append(deps, ir.Dependency{Component: t.From, Code: skipCode})
		if c.hasRelevance(t.From) {
			terms = append(terms, not(ref(t.From, ir.CodeRelevance)))
			deps = append(deps, ir.Dependency{Component: t.From, Code: ir.CodeRelevance})
		}
		if t.FromOrderNecessary {
			terms = append(terms, lessThan(ref(t.FromSubject, ir.CodeOrder), ref(t.FromComponent, ir.CodeOrder)))
			deps = append(deps,
				ir.Dependency{Component: t.FromSubject, Code: ir.CodeOrder},
				ir.Dependency{Component: t.FromComponent, Code: ir.CodeOrder})
		}
		if t.ToOrderNecessary {
			terms = append(terms, greaterThan(ref(t.ToSubject, ir.CodeOrder), ref(t.ToComponent, ir.CodeOrder)))
			deps = append(deps,
				ir.Dependency{Component: t.ToSubject, Code: ir.CodeOrder},
				ir.Dependency{Component: t.ToComponent, Code: ir.CodeOrder})
		}
		fragments = append(fragments, orAll(terms))
	}
	return andAll(fragments), deps
}
