package engine

import (
	"slices"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// Reduce projects the survey onto the components shown at idx: the named
// group or groups with their questions intact, the single question within
// its group, or the END group. Survey-level instructions are kept. The
// survey is returned unchanged for a nil index.
func Reduce(survey ir.Component, idx ir.NavigationIndex) ir.Component {
	var keep func(g ir.Component) (ir.Component, bool)
	switch v := idx.(type) {
	case ir.GroupIndex:
		keep = func(g ir.Component) (ir.Component, bool) { return g, g.Code() == v.ID }
	case ir.GroupsIndex:
		keep = func(g ir.Component) (ir.Component, bool) { return g, slices.Contains(v.IDs, g.Code()) }
	case ir.QuestionIndex:
		keep = func(g ir.Component) (ir.Component, bool) {
			for _, q := range g.Children() {
				if q.Code() == v.ID {
					return g.Duplicate(ir.WithChildren([]ir.Component{q})), true
				}
			}
			return g, false
		}
	case ir.EndIndex:
		keep = func(g ir.Component) (ir.Component, bool) { return g, g.Code() == v.GroupID }
	default:
		return survey
	}

	var groups []ir.Component
	for _, g := range survey.Children() {
		if kept, ok := keep(g); ok {
			groups = append(groups, kept)
		}
	}
	return survey.Duplicate(ir.WithChildren(groups))
}

// Questions lists the question codes of a (reduced) survey in order.
func Questions(survey ir.Component) []string {
	out := []string{}
	ir.Walk(survey, func(n ir.Node) bool {
		if n.Component.Kind() == ir.KindQuestion {
			out = append(out, n.Code)
			return false
		}
		return true
	})
	return out
}
