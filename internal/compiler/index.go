package compiler

import (
	"slices"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// BuildIndex flattens the error-free part of the tree into position records,
// in document order.
//
// Siblings get sequential positions. Members of one random group, and all
// children whose order is overridden by an active instruction, collapse to
// the smallest position among them (MinIndex). MaxIndex is the last
// position sharing that minimum. Anything inside one bucket has no assumed
// order relative to the rest of the bucket.
func BuildIndex(survey ir.Component) []ir.ComponentIndex {
	var out []ir.ComponentIndex
	if survey.HasErrors() {
		return out
	}
	indexComponent(survey, "", ir.ComponentIndex{}, &out)
	return out
}

// indexComponent appends c's record (position fields already set in rec)
// and then indexes its children.
func indexComponent(c ir.Component, parent string, rec ir.ComponentIndex, out *[]ir.ComponentIndex) {
	code := c.QualifiedCode(parent)
	children := usableChildren(c)

	rec.Code = code
	rec.Kind = c.Kind()
	rec.Parent = parent
	rec.Fields = fieldsOf(c)
	rec.EndGroup = rec.EndGroup || c.IsEndGroup()
	rec.Children = make([]string, len(children))
	for i, child := range children {
		rec.Children[i] = child.QualifiedCode(code)
	}
	*out = append(*out, rec)

	mins, maxs := positionBuckets(c, children)
	rivals := prioritisedSiblings(c, code)
	for i, child := range children {
		childCode := rec.Children[i]
		indexComponent(child, code, ir.ComponentIndex{
			MinIndex:            mins[i],
			MaxIndex:            maxs[i],
			PrioritisedSiblings: rivals[childCode],
			EndGroup:            rec.EndGroup,
		}, out)
	}
}

// usableChildren drops children carrying structural errors.
func usableChildren(c ir.Component) []ir.Component {
	var out []ir.Component
	for _, child := range c.Children() {
		if !child.HasErrors() {
			out = append(out, child)
		}
	}
	return out
}

// positionBuckets computes MinIndex and MaxIndex for each child.
func positionBuckets(c ir.Component, children []ir.Component) ([]int, []int) {
	at := make(map[string]int, len(children))
	mins := make([]int, len(children))
	for i, child := range children {
		at[child.Code()] = i
		mins[i] = i
	}

	var buckets [][]int
	if rg, ok := c.Instruction(ir.RandomGroupsCode); ok && !ir.HasErrors(rg) {
		for _, g := range rg.(ir.RandomGroups).Groups {
			buckets = append(buckets, positionsOf(g.Codes, at))
		}
	}
	var ordered []int
	for i, child := range children {
		if st, ok := child.State(ir.CodeOrder); ok && st.Active && !ir.HasErrors(st) {
			ordered = append(ordered, i)
		}
	}
	buckets = append(buckets, ordered)

	// Overlapping buckets merge, so collapse until stable.
	for changed := true; changed; {
		changed = false
		for _, b := range buckets {
			if len(b) < 2 {
				continue
			}
			m := mins[b[0]]
			for _, p := range b {
				m = min(m, mins[p])
			}
			for _, p := range b {
				if mins[p] != m {
					mins[p] = m
					changed = true
				}
			}
		}
	}

	maxs := make([]int, len(children))
	for i := range children {
		maxs[i] = i
		for j := len(children) - 1; j >= 0; j-- {
			if mins[j] == mins[i] {
				maxs[i] = j
				break
			}
		}
	}
	return mins, maxs
}

func positionsOf(codes []string, at map[string]int) []int {
	var out []int
	for _, code := range codes {
		if p, ok := at[code]; ok {
			out = append(out, p)
		}
	}
	return out
}

// prioritisedSiblings maps each priority group member (qualified) to the
// other members of its group.
func prioritisedSiblings(c ir.Component, code string) map[string][]string {
	out := make(map[string][]string)
	pg, ok := c.Instruction(ir.PriorityGroupsCode)
	if !ok || ir.HasErrors(pg) {
		return out
	}
	for _, g := range pg.(ir.PriorityGroups).Groups {
		members := qualifyChildren(c, code, g.Codes())
		for _, m := range members {
			for _, other := range members {
				if other != m {
					out[m] = append(out[m], other)
				}
			}
		}
	}
	return out
}

// qualifyChildren maps local child codes to qualified codes, dropping codes
// that are not error-free children.
func qualifyChildren(c ir.Component, code string, local []string) []string {
	var out []string
	for _, l := range local {
		for _, child := range c.Children() {
			if child.Code() == l && !child.HasErrors() {
				out = append(out, child.QualifiedCode(code))
				break
			}
		}
	}
	return out
}

// implicitFields are exposed by every component of a kind whether or not an
// instruction defines them; absent ones evaluate to their defaults.
func implicitFields(kind ir.ComponentKind) []ir.ReservedCode {
	switch kind {
	case ir.KindSurvey:
		return []ir.ReservedCode{ir.CodeLang, ir.CodeMode, ir.CodeValidity}
	case ir.KindGroup, ir.KindQuestion:
		return []ir.ReservedCode{ir.CodeRelevance, ir.CodeValidity, ir.CodeOrder, ir.CodePriority, ir.CodeInCurrentNavigation}
	}
	return []ir.ReservedCode{ir.CodeRelevance, ir.CodeValidity, ir.CodeOrder, ir.CodePriority}
}

func fieldsOf(c ir.Component) []ir.ReservedCode {
	fields := implicitFields(c.Kind())
	for _, ins := range c.Instructions() {
		st, ok := ir.AsState(ins)
		if !ok || ir.HasErrors(ins) {
			continue
		}
		rc := st.Reserved()
		if !slices.Contains(fields, rc) {
			fields = append(fields, rc)
		}
	}
	return fields
}
