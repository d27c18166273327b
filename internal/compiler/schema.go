package compiler

import (
	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// buildSchema lists the persistable response fields of an error-free tree
// in document order: every value slot, plus the order of randomized
// members and the priority of priority group members.
func buildSchema(survey ir.Component) []ir.ResponseField {
	randomized := make(map[string]bool)
	prioritised := make(map[string]bool)
	var out []ir.ResponseField

	ir.Walk(survey, func(n ir.Node) bool {
		c := n.Component
		if c.HasErrors() {
			return false
		}
		if ins, ok := c.Instruction(ir.RandomGroupsCode); ok && !ir.HasErrors(ins) {
			for _, g := range ins.(ir.RandomGroups).Groups {
				for _, m := range qualifyChildren(c, n.Code, g.Codes) {
					randomized[m] = true
				}
			}
		}
		if ins, ok := c.Instruction(ir.PriorityGroupsCode); ok && !ir.HasErrors(ins) {
			for _, g := range ins.(ir.PriorityGroups).Groups {
				for _, m := range qualifyChildren(c, n.Code, g.Codes()) {
					prioritised[m] = true
				}
			}
		}

		if st, ok := c.State(ir.CodeValue); ok && len(st.Errors) == 0 {
			rt := st.ReturnType
			if rt == "" {
				rt = ir.CodeValue.Meta().ReturnType
			}
			out = append(out, ir.ResponseField{Component: n.Code, Field: ir.CodeValue.String(), ReturnType: rt})
		}
		if randomized[n.Code] {
			out = append(out, ir.ResponseField{Component: n.Code, Field: ir.CodeOrder.String(), ReturnType: ir.ReturnInt})
		}
		if prioritised[n.Code] {
			out = append(out, ir.ResponseField{Component: n.Code, Field: ir.CodePriority.String(), ReturnType: ir.ReturnInt})
		}
		return true
	})
	return out
}
