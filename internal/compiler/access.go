package compiler

import (
	"slices"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

type access int

const (
	accessOK access = iota
	accessUnknown
	accessForward
)

// classifyAccess decides whether referencer may read dep.
//
// A component sees any field of itself, the survey language and mode, the
// accessible (or children-accessible) fields of its ancestors, the
// accessible fields of its descendants, and the accessible fields of
// anything inside a sibling of itself or of an ancestor that is placed
// definitely earlier and is not a priority rival.
func classifyAccess(index map[string]ir.ComponentIndex, referencer string, dep ir.Dependency) access {
	target, ok := index[dep.Component]
	if !ok || !target.HasField(dep.Code) {
		return accessUnknown
	}
	if dep.Component == referencer {
		return accessOK
	}
	if dep.Component == ir.SurveyCode && (dep.Code == ir.CodeLang || dep.Code == ir.CodeMode) {
		return accessOK
	}

	meta := dep.Code.Meta()
	from := lineage(index, referencer)
	to := lineage(index, dep.Component)

	if slices.Contains(from, dep.Component) {
		if meta.Accessible || meta.AccessibleByChildren {
			return accessOK
		}
		return accessForward
	}
	if slices.Contains(to, referencer) {
		if meta.Accessible {
			return accessOK
		}
		return accessForward
	}

	i, j, ok := commonAncestor(from, to)
	if !ok || i == 0 || j == 0 {
		return accessForward
	}
	s, a := index[from[i-1]], index[to[j-1]]
	if meta.Accessible && a.MaxIndex < s.MinIndex && !slices.Contains(s.PrioritisedSiblings, a.Code) {
		return accessOK
	}
	return accessForward
}

// lineage lists code and its ancestors, innermost first.
func lineage(index map[string]ir.ComponentIndex, code string) []string {
	var out []string
	for code != "" {
		out = append(out, code)
		code = index[code].Parent
	}
	return out
}

// commonAncestor returns the positions of the lowest common ancestor in
// both lineages.
func commonAncestor(a, b []string) (int, int, bool) {
	for i, code := range a {
		if j := slices.Index(b, code); j >= 0 {
			return i, j, true
		}
	}
	return 0, 0, false
}

// relation places a relative to b among siblings: -1 definitely before,
// 1 definitely after, 0 when the order is only known at runtime.
func relation(a, b ir.ComponentIndex) int {
	switch {
	case a.MaxIndex < b.MinIndex:
		return -1
	case a.MinIndex > b.MaxIndex:
		return 1
	}
	return 0
}
