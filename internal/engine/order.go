package engine

import (
	"cmp"
	"slices"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// SortByOrder returns children sorted by their order binding. orders is
// keyed by qualified code; a child without an entry sorts by its 1-based
// position. Ties keep declaration order.
func SortByOrder(parent string, children []ir.Component, orders map[string]int) []ir.Component {
	type keyed struct {
		c   ir.Component
		key int
	}
	ks := make([]keyed, len(children))
	for i, child := range children {
		key, ok := orders[child.QualifiedCode(parent)]
		if !ok {
			key = i + 1
		}
		ks[i] = keyed{c: child, key: key}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int { return cmp.Compare(a.key, b.key) })

	out := make([]ir.Component, len(ks))
	for i, k := range ks {
		out[i] = k.c
	}
	return out
}

// SortTree reorders the children of every component by their order
// bindings.
func SortTree(survey ir.Component, orders map[string]int) ir.Component {
	if len(orders) == 0 {
		return survey
	}
	return ir.Rewrite(survey, func(code string, c ir.Component) ir.Component {
		if len(c.Children()) < 2 {
			return c
		}
		return c.Duplicate(ir.WithChildren(SortByOrder(code, c.Children(), orders)))
	})
}
