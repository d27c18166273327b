package compiler

import (
	"math/rand/v2"
	"slices"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// LabelFunc returns the display label of a component in the current
// language, used by alphabetical random groups.
type LabelFunc func(code string) string

// AssignOrder draws an order for every member of every random group.
//
// Members receive their own original positions (1-based among error-free
// siblings), permuted: RANDOM shuffles, FLIP either reverses or keeps the
// declared order with one coin shared by every FLIP group, and ALPHA sorts
// by label using the collation rules of lang. Components outside random
// groups are not in the result and keep their natural position.
func AssignOrder(survey ir.Component, rng *rand.Rand, lang string, label LabelFunc) map[string]int {
	flip := rng.IntN(2) == 1
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	col := collate.New(tag)

	out := make(map[string]int)
	ir.Walk(survey, func(n ir.Node) bool {
		c := n.Component
		if c.HasErrors() {
			return false
		}
		ins, ok := c.Instruction(ir.RandomGroupsCode)
		if !ok || ir.HasErrors(ins) {
			return true
		}
		position := naturalPositions(c, n.Code)
		for _, g := range ins.(ir.RandomGroups).Groups {
			members := qualifyChildren(c, n.Code, g.Codes)
			slots := make([]int, len(members))
			for i, m := range members {
				slots[i] = position[m]
			}
			slices.Sort(slots)

			switch g.Type {
			case ir.RandomFlip:
				if flip {
					slices.Reverse(slots)
				}
			case ir.RandomAlpha:
				sorted := slices.Clone(members)
				sort.SliceStable(sorted, func(i, j int) bool {
					return col.CompareString(labelOf(label, sorted[i]), labelOf(label, sorted[j])) < 0
				})
				byMember := make(map[string]int, len(sorted))
				for i, m := range sorted {
					byMember[m] = slots[i]
				}
				for i, m := range members {
					slots[i] = byMember[m]
				}
			default:
				rng.Shuffle(len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })
			}
			for i, m := range members {
				out[m] = slots[i]
			}
		}
		return true
	})
	return out
}

func labelOf(label LabelFunc, code string) string {
	if label == nil {
		return code
	}
	return label(code)
}

// AssignPriority ranks the members of every priority group. Each member
// scores its weight times a uniform draw in [0, limit*100]; the lowest
// score gets priority 1. Ties keep declaration order.
func AssignPriority(survey ir.Component, rng *rand.Rand) map[string]int {
	out := make(map[string]int)
	ir.Walk(survey, func(n ir.Node) bool {
		c := n.Component
		if c.HasErrors() {
			return false
		}
		ins, ok := c.Instruction(ir.PriorityGroupsCode)
		if !ok || ir.HasErrors(ins) {
			return true
		}
		for _, g := range ins.(ir.PriorityGroups).Groups {
			type scored struct {
				code  string
				score float64
			}
			var ranked []scored
			for _, w := range g.Weights {
				members := qualifyChildren(c, n.Code, []string{w.Code})
				if len(members) == 0 {
					continue
				}
				ranked = append(ranked, scored{
					code:  members[0],
					score: w.Weight * rng.Float64() * float64(g.Limit*100),
				})
			}
			sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })
			for i, r := range ranked {
				out[r.code] = i + 1
			}
		}
		return true
	})
	return out
}

// naturalPositions maps each error-free child to its 1-based position.
func naturalPositions(c ir.Component, code string) map[string]int {
	out := make(map[string]int)
	for i, child := range usableChildren(c) {
		out[child.QualifiedCode(code)] = i + 1
	}
	return out
}
