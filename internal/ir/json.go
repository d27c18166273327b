package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// componentJSON is the wire shape of a component. The kind is not stored:
// it is inferred from the code pattern on decode.
type componentJSON struct {
	Code         string            `json:"code"`
	GroupType    GroupType         `json:"group_type,omitempty"`
	Children     []Component       `json:"children,omitempty"`
	Instructions []json.RawMessage `json:"instructions,omitempty"`
	Errors       []ComponentError  `json:"errors,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c Component) MarshalJSON() ([]byte, error) {
	aux := componentJSON{
		Code:     c.code,
		Children: c.children,
		Errors:   c.errors,
	}
	if c.kind == KindGroup && c.groupType == GroupTypeEnd {
		aux.GroupType = GroupTypeEnd
	}
	for _, ins := range c.instructions {
		raw, err := MarshalInstruction(ins)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", c.code, err)
		}
		aux.Instructions = append(aux.Instructions, raw)
	}
	return json.Marshal(aux)
}

// UnmarshalJSON implements json.Unmarshaler. Code patterns and child kinds
// are checked exactly as the constructors check them.
func (c *Component) UnmarshalJSON(data []byte) error {
	var aux componentJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	kind, ok := KindOfCode(aux.Code)
	if !ok {
		return &CodeError{Kind: "component", Code: aux.Code}
	}
	var instructions []Instruction
	for _, raw := range aux.Instructions {
		ins, err := UnmarshalInstruction(raw)
		if err != nil {
			return fmt.Errorf("component %s: %w", aux.Code, err)
		}
		instructions = append(instructions, ins)
	}
	var (
		built Component
		err   error
	)
	switch kind {
	case KindSurvey:
		built, err = NewSurvey(aux.Children, instructions)
	case KindGroup:
		built, err = NewGroup(aux.Code, aux.GroupType, aux.Children, instructions)
	case KindQuestion:
		built, err = NewQuestion(aux.Code, aux.Children, instructions)
	case KindAnswer:
		built, err = NewAnswer(aux.Code, aux.Children, instructions)
	}
	if err != nil {
		return err
	}
	if len(aux.Errors) > 0 {
		built = built.Duplicate(WithComponentErrors(aux.Errors))
	}
	*c = built
	return nil
}

type stateJSON struct {
	Code       string             `json:"code"`
	Text       string             `json:"text,omitempty"`
	Active     *bool              `json:"is_active,omitempty"`
	ReturnType ReturnType         `json:"return_type,omitempty"`
	SkipTo     string             `json:"skip_to,omitempty"`
	ToEnd      bool               `json:"to_end,omitempty"`
	Errors     []InstructionError `json:"errors,omitempty"`
}

type referenceJSON struct {
	Code       string             `json:"code"`
	References map[string]string  `json:"references"`
	Errors     []InstructionError `json:"errors,omitempty"`
}

type randomGroupsJSON struct {
	Code   string             `json:"code"`
	Groups []RandomGroup      `json:"groups"`
	Errors []InstructionError `json:"errors,omitempty"`
}

type priorityGroupsJSON struct {
	Code       string             `json:"code"`
	Priorities []PriorityGroup    `json:"priorities"`
	Errors     []InstructionError `json:"errors,omitempty"`
}

type parentRelevanceJSON struct {
	Code     string             `json:"code"`
	Children [][]string         `json:"children"`
	Errors   []InstructionError `json:"errors,omitempty"`
}

// MarshalInstruction encodes any instruction variant.
func MarshalInstruction(ins Instruction) ([]byte, error) {
	switch v := ins.(type) {
	case State:
		active := v.Active
		return json.Marshal(stateJSON{
			Code: v.Code, Text: v.Text, Active: &active,
			ReturnType: v.ReturnType, Errors: v.Errors,
		})
	case SkipInstruction:
		active := v.Active
		return json.Marshal(stateJSON{
			Code: v.Code, Text: v.Text, Active: &active,
			ReturnType: v.ReturnType, SkipTo: v.SkipTo, ToEnd: v.ToEnd,
			Errors: v.Errors,
		})
	case Reference:
		return json.Marshal(referenceJSON{Code: v.Code, References: v.References, Errors: v.Errors})
	case RandomGroups:
		return json.Marshal(randomGroupsJSON{Code: RandomGroupsCode, Groups: v.Groups, Errors: v.Errors})
	case PriorityGroups:
		return json.Marshal(priorityGroupsJSON{Code: PriorityGroupsCode, Priorities: v.Groups, Errors: v.Errors})
	case ParentRelevance:
		return json.Marshal(parentRelevanceJSON{Code: ParentRelevanceCode, Children: v.Children, Errors: v.Errors})
	}
	return nil, fmt.Errorf("unsupported instruction type %T", ins)
}

// UnmarshalInstruction decodes an instruction. The variant is chosen by its
// code: skip_to_*, reference_*, random_group, priority_groups,
// parent_relevance, or a reserved state code.
func UnmarshalInstruction(data []byte) (Instruction, error) {
	var head struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch {
	case head.Code == RandomGroupsCode:
		var aux randomGroupsJSON
		if err := json.Unmarshal(data, &aux); err != nil {
			return nil, err
		}
		for i, g := range aux.Groups {
			if g.Type == "" {
				aux.Groups[i].Type = RandomRandom
			} else {
				aux.Groups[i].Type = RandomType(strings.ToUpper(string(g.Type)))
			}
		}
		return RandomGroups{Groups: aux.Groups, Errors: aux.Errors}, nil
	case head.Code == PriorityGroupsCode:
		var aux priorityGroupsJSON
		if err := json.Unmarshal(data, &aux); err != nil {
			return nil, err
		}
		return PriorityGroups{Groups: aux.Priorities, Errors: aux.Errors}, nil
	case head.Code == ParentRelevanceCode:
		var aux parentRelevanceJSON
		if err := json.Unmarshal(data, &aux); err != nil {
			return nil, err
		}
		return ParentRelevance{Children: aux.Children, Errors: aux.Errors}, nil
	case IsReferenceCode(head.Code):
		var aux referenceJSON
		if err := json.Unmarshal(data, &aux); err != nil {
			return nil, err
		}
		return Reference{Code: aux.Code, References: aux.References, Errors: aux.Errors}, nil
	}

	var aux stateJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return nil, err
	}
	rc, ok := ParseReservedCode(aux.Code)
	if !ok {
		return nil, fmt.Errorf("unknown instruction code %q", aux.Code)
	}
	meta := rc.Meta()
	state := State{
		Code:       aux.Code,
		Text:       aux.Text,
		ReturnType: aux.ReturnType,
		Errors:     aux.Errors,
	}
	if state.ReturnType == "" {
		state.ReturnType = meta.ReturnType
	} else if rt, ok := ParseReturnType(string(state.ReturnType)); ok {
		state.ReturnType = rt
	} else {
		return nil, fmt.Errorf("instruction %s: unknown return type %q", aux.Code, aux.ReturnType)
	}
	if aux.Active != nil {
		state.Active = *aux.Active
	} else {
		// Values default to stored input; other runtime slots to computed.
		state.Active = meta.Runtime && rc.Kind != ReservedValue
	}
	if rc.Kind == ReservedSkip {
		skipTo := aux.SkipTo
		if skipTo == "" {
			skipTo = rc.Param
		}
		return SkipInstruction{State: state, SkipTo: skipTo, ToEnd: aux.ToEnd}, nil
	}
	return state, nil
}

type indexJSON struct {
	Type       string   `json:"type"`
	ID         string   `json:"id,omitempty"`
	IDs        []string `json:"ids,omitempty"`
	ShowErrors bool     `json:"show_errors,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (i GroupIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal(indexJSON{Type: "group", ID: i.ID, ShowErrors: i.showErrors})
}

// MarshalJSON implements json.Marshaler.
func (i GroupsIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal(indexJSON{Type: "groups", IDs: i.IDs, ShowErrors: i.showErrors})
}

// MarshalJSON implements json.Marshaler.
func (i QuestionIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal(indexJSON{Type: "question", ID: i.ID, ShowErrors: i.showErrors})
}

// MarshalJSON implements json.Marshaler.
func (i EndIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal(indexJSON{Type: "end", ID: i.GroupID})
}

// UnmarshalNavigationIndex decodes any index variant.
func UnmarshalNavigationIndex(data []byte) (NavigationIndex, error) {
	var aux indexJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return nil, err
	}
	switch aux.Type {
	case "group":
		return GroupIndex{ID: aux.ID, showErrors: aux.ShowErrors}, nil
	case "groups":
		return GroupsIndex{IDs: aux.IDs, showErrors: aux.ShowErrors}, nil
	case "question":
		return QuestionIndex{ID: aux.ID, showErrors: aux.ShowErrors}, nil
	case "end":
		if aux.ShowErrors {
			return nil, ErrEndShowErrors
		}
		return EndIndex{GroupID: aux.ID}, nil
	}
	return nil, fmt.Errorf("unknown navigation index type %q", aux.Type)
}

type directionJSON struct {
	Type  string          `json:"type"`
	Index json.RawMessage `json:"index,omitempty"`
}

// MarshalDirection encodes any direction variant.
func MarshalDirection(d NavigationDirection) ([]byte, error) {
	aux := directionJSON{Type: DirectionName(d)}
	if aux.Type == "" {
		return nil, fmt.Errorf("unsupported direction type %T", d)
	}
	if jump, ok := d.(JumpDirection); ok {
		raw, err := json.Marshal(jump.Index)
		if err != nil {
			return nil, err
		}
		aux.Index = raw
	}
	return json.Marshal(aux)
}

// UnmarshalDirection decodes any direction variant.
func UnmarshalDirection(data []byte) (NavigationDirection, error) {
	var aux directionJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return nil, err
	}
	if aux.Type == "jump" {
		if len(aux.Index) == 0 {
			return nil, fmt.Errorf("jump direction requires an index")
		}
		idx, err := UnmarshalNavigationIndex(aux.Index)
		if err != nil {
			return nil, fmt.Errorf("jump: %w", err)
		}
		return JumpDirection{Index: idx}, nil
	}
	return ParseDirectionName(aux.Type)
}

// NavigationIndexJSON wraps an index so it can be embedded in JSON
// documents and decoded without knowing the variant in advance.
type NavigationIndexJSON struct {
	NavigationIndex
}

// MarshalJSON implements json.Marshaler.
func (w NavigationIndexJSON) MarshalJSON() ([]byte, error) {
	if w.NavigationIndex == nil {
		return []byte("null"), nil
	}
	return json.Marshal(w.NavigationIndex)
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *NavigationIndexJSON) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		w.NavigationIndex = nil
		return nil
	}
	idx, err := UnmarshalNavigationIndex(data)
	if err != nil {
		return err
	}
	w.NavigationIndex = idx
	return nil
}
