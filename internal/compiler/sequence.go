package compiler

import (
	"cmp"
	"slices"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// Step is one instruction in evaluation order.
type Step struct {
	Component string
	State     ir.State
}

// Dependent returns the instruction key of the step.
func (s Step) Dependent() ir.Dependent {
	return ir.Dependent{Component: s.Component, Code: s.State.Code}
}

// Sequence orders the error-free states of a compiled survey for
// evaluation: inactive states first in document order, then active states
// so that every state follows the states it reads.
//
// orders and priorities are the runtime values of order and priority;
// components missing from orders use their natural position. They decide
// which of the edges that only look cyclic at compile time are live:
// between priority rivals only the higher-ranked one is read, and a skip
// guard whose runtime order places the component outside the skipped span
// does not read the skip at all. A cycle that remains is a CycleError.
// Compile already flags cycles that no layout can break, so this only
// fires for cycles that a particular layout leaves in place.
func Sequence(cs *ir.CompiledSurvey, orders, priorities map[string]int) ([]Step, error) {
	var inactive, active []Step
	ir.Walk(cs.Survey, func(n ir.Node) bool {
		if n.Component.HasErrors() {
			return false
		}
		for _, ins := range n.Component.Instructions() {
			st, ok := ir.AsState(ins)
			if !ok || ir.HasErrors(ins) {
				continue
			}
			if st.Active {
				active = append(active, Step{Component: n.Code, State: st})
			} else {
				inactive = append(inactive, Step{Component: n.Code, State: st})
			}
		}
		return true
	})
	slices.SortStableFunc(active, func(a, b Step) int {
		return cmp.Compare(a.State.Reserved().Meta().Tier, b.State.Reserved().Meta().Tier)
	})

	s := &sequencer{cs: cs, orders: orders, priorities: priorities, natural: naturalOrder(cs.Index)}
	present := make(map[ir.Dependent]bool, len(active))
	seq := make([]ir.Dependent, len(active))
	byKey := make(map[ir.Dependent]Step, len(active))
	for i, step := range active {
		d := step.Dependent()
		present[d] = true
		seq[i] = d
		byKey[d] = step
	}

	edges := make(map[ir.Dependent][]ir.Dependent)
	graph := make(dependencyGraph)
	for _, d := range seq {
		drop := s.mootGuardEdges(d)
		graph[d.String()] = nil
		for _, dep := range cs.DependencyMap[d] {
			t := ir.Dependent{Component: dep.Component, Code: dep.Code.String()}
			if t == d || !present[t] || drop[t] || !s.liveRivalEdge(d, t) {
				continue
			}
			edges[d] = append(edges[d], t)
			graph[d.String()] = append(graph[d.String()], t.String())
		}
	}
	if cycles := findCycles(graph); len(cycles) > 0 {
		return nil, &CycleError{Cycles: cycles}
	}

	out := make([]Step, 0, len(inactive)+len(active))
	out = append(out, inactive...)
	for _, d := range SortByDependency(seq, edges) {
		out = append(out, byKey[d])
	}
	return out, nil
}

// SortByDependency reorders seq so every element follows its dependencies,
// disturbing the input order as little as possible: an element found
// before one of its dependencies moves to just after the farthest one.
// Dependencies absent from seq are ignored. An already ordered sequence is
// returned unchanged.
func SortByDependency(seq []ir.Dependent, deps map[ir.Dependent][]ir.Dependent) []ir.Dependent {
	out := slices.Clone(seq)
	limit := len(out)*len(out) + 1
	for moves := 0; moves < limit; moves++ {
		pos := make(map[ir.Dependent]int, len(out))
		for i, d := range out {
			pos[d] = i
		}
		moved := false
		for i, d := range out {
			far := -1
			for _, dep := range deps[d] {
				if p, ok := pos[dep]; ok && p > far {
					far = p
				}
			}
			if far > i {
				out = slices.Insert(slices.Delete(out, i, i+1), far, d)
				moved = true
				break
			}
		}
		if !moved {
			break
		}
	}
	return out
}

type sequencer struct {
	cs         *ir.CompiledSurvey
	orders     map[string]int
	priorities map[string]int
	natural    map[string]int
}

// liveRivalEdge keeps X.prioritised -> Y.prioritised only when Y ranks
// ahead of X.
func (s *sequencer) liveRivalEdge(d, t ir.Dependent) bool {
	if !rivalEdge(d, t) {
		return true
	}
	px, okx := s.priorities[d.Component]
	py, oky := s.priorities[t.Component]
	if !okx || !oky {
		return true
	}
	return py < px
}

// mootGuardEdges returns the skip and relevance reads of a not_skipped
// state that only serve fragments whose order condition already holds.
func (s *sequencer) mootGuardEdges(d ir.Dependent) map[ir.Dependent]bool {
	if d.Code != ir.CodeNotSkipped.String() {
		return nil
	}
	return guardReads(s.cs.SkipManifesto[d.Component], s.outsideSpan)
}

// guardReads returns the skip and relevance reads that only serve the
// targets for which moot holds.
func guardReads(targets []ir.SkipTarget, moot func(ir.SkipTarget) bool) map[ir.Dependent]bool {
	needed := make(map[ir.Dependent]bool)
	out := make(map[ir.Dependent]bool)
	for _, t := range targets {
		reads := []ir.Dependent{
			{Component: t.From, Code: t.SkipCode},
			{Component: t.From, Code: ir.CodeRelevance.String()},
		}
		target := needed
		if moot(t) {
			target = out
		}
		for _, r := range reads {
			target[r] = true
		}
	}
	for r := range needed {
		delete(out, r)
	}
	return out
}

// rivalEdge reports a read between two prioritised states.
func rivalEdge(d, t ir.Dependent) bool {
	code := ir.CodePrioritised.String()
	return d.Code == code && t.Code == code
}

func (s *sequencer) outsideSpan(t ir.SkipTarget) bool {
	return (t.FromOrderNecessary && s.order(t.FromSubject) < s.order(t.FromComponent)) ||
		(t.ToOrderNecessary && s.order(t.ToSubject) > s.order(t.ToComponent))
}

func (s *sequencer) order(code string) int {
	if o, ok := s.orders[code]; ok {
		return o
	}
	return s.natural[code]
}

// naturalOrder maps every indexed component to its 1-based position among
// its siblings.
func naturalOrder(index []ir.ComponentIndex) map[string]int {
	out := make(map[string]int, len(index))
	for _, rec := range index {
		for i, child := range rec.Children {
			out[child] = i + 1
		}
	}
	return out
}
