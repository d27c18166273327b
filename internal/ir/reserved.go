package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ReservedKind enumerates the closed catalogue of system slots.
type ReservedKind int

const (
	ReservedLang ReservedKind = iota
	ReservedMode
	ReservedOrder
	ReservedPriority
	ReservedInCurrentNavigation
	ReservedShowErrors
	ReservedValue
	ReservedLabel
	ReservedConditionalRelevance
	ReservedModeRelevance
	ReservedValidationRule
	ReservedSkip
	ReservedChildrenRelevance
	ReservedNotSkipped
	ReservedPrioritised
	ReservedRelevance
	ReservedValidity
)

// Prefixes of the parametrized slots.
const (
	ValidationPrefix = "validation_"
	SkipPrefix       = "skip_to_"
)

// ReservedMeta is the static metadata carried by each catalogue entry.
type ReservedMeta struct {
	// Name is the instruction code of non-parametrized entries.
	Name string
	// Tier is the coarse execution order; lower tiers run first.
	Tier int
	// Accessible marks fields other components may reference.
	Accessible bool
	// AccessibleByChildren marks fields descendants may reference.
	AccessibleByChildren bool
	// Runtime marks slots that produce an evaluable function rather than
	// a stored default.
	Runtime bool
	// RequiresValidation marks author-written text that must go through
	// the expression validator.
	RequiresValidation bool
	ReturnType         ReturnType
}

var reservedCatalogue = map[ReservedKind]ReservedMeta{
	ReservedLang:                 {Name: "lang", Tier: 0, Accessible: true, ReturnType: ReturnString},
	ReservedMode:                 {Name: "mode", Tier: 0, Accessible: true, ReturnType: ReturnString},
	ReservedOrder:                {Name: "order", Tier: 0, Accessible: true, ReturnType: ReturnInt},
	ReservedPriority:             {Name: "priority", Tier: 0, Accessible: true, ReturnType: ReturnInt},
	ReservedInCurrentNavigation:  {Name: "in_current_navigation", Tier: 0, AccessibleByChildren: true, ReturnType: ReturnBoolean},
	ReservedShowErrors:           {Name: "show_errors", Tier: 0, ReturnType: ReturnBoolean},
	ReservedValue:                {Name: "value", Tier: 1, Accessible: true, Runtime: true, RequiresValidation: true, ReturnType: ReturnString},
	ReservedLabel:                {Name: "label", Tier: 1, Accessible: true, ReturnType: ReturnString},
	ReservedConditionalRelevance: {Name: "conditional_relevance", Tier: 2, Runtime: true, RequiresValidation: true, ReturnType: ReturnBoolean},
	ReservedModeRelevance:        {Name: "mode_relevance", Tier: 2, Runtime: true, RequiresValidation: true, ReturnType: ReturnBoolean},
	ReservedValidationRule:       {Name: "validation", Tier: 2, Accessible: true, Runtime: true, RequiresValidation: true, ReturnType: ReturnBoolean},
	ReservedSkip:                 {Name: "skip_to", Tier: 3, Runtime: true, RequiresValidation: true, ReturnType: ReturnBoolean},
	ReservedChildrenRelevance:    {Name: "children_relevance", Tier: 4, Runtime: true, ReturnType: ReturnBoolean},
	ReservedNotSkipped:           {Name: "not_skipped", Tier: 4, Runtime: true, ReturnType: ReturnBoolean},
	ReservedPrioritised:          {Name: "prioritised", Tier: 5, Runtime: true, ReturnType: ReturnBoolean},
	ReservedRelevance:            {Name: "relevance", Tier: 6, Accessible: true, AccessibleByChildren: true, Runtime: true, ReturnType: ReturnBoolean},
	ReservedValidity:             {Name: "validity", Tier: 7, Accessible: true, Runtime: true, ReturnType: ReturnBoolean},
}

var reservedByName = func() map[string]ReservedKind {
	m := make(map[string]ReservedKind, len(reservedCatalogue))
	for k, meta := range reservedCatalogue {
		if k == ReservedValidationRule || k == ReservedSkip {
			continue
		}
		m[meta.Name] = k
	}
	return m
}()

// ReservedCode is one slot of the catalogue. Param is set only for the
// parametrized entries: the rule name for validation rules and the
// destination code for skips.
type ReservedCode struct {
	Kind  ReservedKind
	Param string
}

// Non-parametrized catalogue entries.
var (
	CodeLang                 = ReservedCode{Kind: ReservedLang}
	CodeMode                 = ReservedCode{Kind: ReservedMode}
	CodeOrder                = ReservedCode{Kind: ReservedOrder}
	CodePriority             = ReservedCode{Kind: ReservedPriority}
	CodeInCurrentNavigation  = ReservedCode{Kind: ReservedInCurrentNavigation}
	CodeShowErrors           = ReservedCode{Kind: ReservedShowErrors}
	CodeValue                = ReservedCode{Kind: ReservedValue}
	CodeLabel                = ReservedCode{Kind: ReservedLabel}
	CodeConditionalRelevance = ReservedCode{Kind: ReservedConditionalRelevance}
	CodeModeRelevance        = ReservedCode{Kind: ReservedModeRelevance}
	CodeChildrenRelevance    = ReservedCode{Kind: ReservedChildrenRelevance}
	CodeNotSkipped           = ReservedCode{Kind: ReservedNotSkipped}
	CodePrioritised          = ReservedCode{Kind: ReservedPrioritised}
	CodeRelevance            = ReservedCode{Kind: ReservedRelevance}
	CodeValidity             = ReservedCode{Kind: ReservedValidity}
)

// ValidationRuleCode returns the slot of the validation rule with the given name.
func ValidationRuleCode(name string) ReservedCode {
	return ReservedCode{Kind: ReservedValidationRule, Param: name}
}

// SkipCode returns the slot of a skip to the given destination.
func SkipCode(destination string) ReservedCode {
	return ReservedCode{Kind: ReservedSkip, Param: destination}
}

// ParseReservedCode maps an instruction code string to its catalogue entry.
func ParseReservedCode(s string) (ReservedCode, bool) {
	if name, ok := strings.CutPrefix(s, ValidationPrefix); ok {
		if name == "" {
			return ReservedCode{}, false
		}
		return ValidationRuleCode(name), true
	}
	if dest, ok := strings.CutPrefix(s, SkipPrefix); ok {
		if dest == "" {
			return ReservedCode{}, false
		}
		return SkipCode(dest), true
	}
	kind, ok := reservedByName[s]
	if !ok {
		return ReservedCode{}, false
	}
	return ReservedCode{Kind: kind}, true
}

// MustParseReservedCode is ParseReservedCode for codes known at compile time.
func MustParseReservedCode(s string) ReservedCode {
	rc, ok := ParseReservedCode(s)
	if !ok {
		panic(fmt.Sprintf("ir: unknown reserved code %q", s))
	}
	return rc
}

// String returns the instruction code of the slot.
func (r ReservedCode) String() string {
	switch r.Kind {
	case ReservedValidationRule:
		return ValidationPrefix + r.Param
	case ReservedSkip:
		return SkipPrefix + r.Param
	default:
		return reservedCatalogue[r.Kind].Name
	}
}

// Meta returns the static metadata of the slot.
func (r ReservedCode) Meta() ReservedMeta {
	return reservedCatalogue[r.Kind]
}

// IsRelevanceFamily reports whether a failed evaluation of this slot falls
// back to true rather than the type default.
func (r ReservedCode) IsRelevanceFamily() bool {
	switch r.Kind {
	case ReservedRelevance, ReservedConditionalRelevance, ReservedChildrenRelevance,
		ReservedModeRelevance, ReservedNotSkipped, ReservedPrioritised, ReservedValidity:
		return true
	}
	return false
}

// MarshalJSON encodes the slot as its instruction code.
func (r ReservedCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes an instruction code string.
func (r *ReservedCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	rc, ok := ParseReservedCode(s)
	if !ok {
		return fmt.Errorf("unknown reserved code %q", s)
	}
	*r = rc
	return nil
}
