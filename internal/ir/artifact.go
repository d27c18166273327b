package ir

import "slices"

// ComponentIndex is the position record of one component, derived from the
// tree and read by accessibility, skip and navigation passes.
type ComponentIndex struct {
	Code     string        `json:"code"`
	Kind     ComponentKind `json:"kind"`
	Parent   string        `json:"parent,omitempty"`
	Children []string      `json:"children,omitempty"`
	// MinIndex and MaxIndex bound the position bucket among siblings.
	// Members of one bucket have no assumed relative order.
	MinIndex int `json:"min_index"`
	MaxIndex int `json:"max_index"`
	// PrioritisedSiblings share a priority group with this component and are
	// never visible to it as preceding siblings.
	PrioritisedSiblings []string `json:"prioritised_siblings,omitempty"`
	// Fields lists the slots other components may read from this one.
	Fields []ReservedCode `json:"fields,omitempty"`
	// EndGroup marks the END group and everything inside it.
	EndGroup bool `json:"end_group,omitempty"`
}

// HasField reports whether the component exposes the slot.
func (ci ComponentIndex) HasField(code ReservedCode) bool {
	return slices.Contains(ci.Fields, code)
}

// SkipTarget describes one not-skipped guard fragment: Component is bypassed
// when From's skip to To fires.
type SkipTarget struct {
	// Component is the guarded interstitial component.
	Component string `json:"component"`
	// From owns the skip instruction SkipCode; To is its destination.
	From     string `json:"from"`
	To       string `json:"to"`
	SkipCode string `json:"skip_code"`
	ToEnd    bool   `json:"to_end,omitempty"`

	// FromComponent is From (or its ancestor) at the sibling level where
	// the order against FromSubject is ambiguous.
	FromOrderNecessary bool   `json:"from_order_necessary"`
	FromComponent      string `json:"from_component,omitempty"`
	FromSubject        string `json:"from_subject,omitempty"`

	// ToComponent is To (or its ancestor) at the sibling level where the
	// order against ToSubject is ambiguous.
	ToOrderNecessary bool   `json:"to_order_necessary"`
	ToComponent      string `json:"to_component,omitempty"`
	ToSubject        string `json:"to_subject,omitempty"`
}

// ResponseField is one persistable field of the response schema.
type ResponseField struct {
	Component  string     `json:"component"`
	Field      string     `json:"field"`
	ReturnType ReturnType `json:"return_type"`
}

// CompiledSurvey is the artifact produced by the compiler and consumed by
// navigation.
type CompiledSurvey struct {
	Survey Component `json:"survey"`
	// ImpactMap maps each dependency to the dependents reading it.
	ImpactMap map[Dependency][]Dependent `json:"impact_map"`
	// DependencyMap maps each dependent to the dependencies it reads.
	DependencyMap map[Dependent][]Dependency `json:"dependency_map"`
	Index         []ComponentIndex           `json:"component_index"`
	// SkipManifesto maps each guarded component to its guard fragments.
	SkipManifesto map[string][]SkipTarget `json:"skip_manifesto"`
	Schema        []ResponseField         `json:"schema"`
	// Hash is the content hash of Survey.
	Hash string `json:"hash"`
}

// HasErrors reports whether the compiled tree carries any error.
func (cs *CompiledSurvey) HasErrors() bool {
	return TreeHasErrors(cs.Survey)
}

// IndexOf returns the index record of a component.
func (cs *CompiledSurvey) IndexOf(code string) (ComponentIndex, bool) {
	for _, ci := range cs.Index {
		if ci.Code == code {
			return ci, true
		}
	}
	return ComponentIndex{}, false
}
