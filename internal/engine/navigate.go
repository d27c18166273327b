package engine

import (
	"slices"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// Outline is the navigable structure of a survey in display order: the
// regular groups with their questions, and the END group.
type Outline struct {
	Groups []OutlineGroup
	End    string
}

// OutlineGroup is one regular group and its questions.
type OutlineGroup struct {
	Code      string
	Questions []string
}

// NewOutline reads the outline of a survey whose children are already in
// display order (see SortTree).
func NewOutline(survey ir.Component) Outline {
	var o Outline
	for _, g := range survey.Children() {
		if g.HasErrors() {
			continue
		}
		if g.IsEndGroup() {
			o.End = g.Code()
			continue
		}
		og := OutlineGroup{Code: g.Code()}
		for _, q := range g.Children() {
			if q.Kind() == ir.KindQuestion && !q.HasErrors() {
				og.Questions = append(og.Questions, q.Code())
			}
		}
		o.Groups = append(o.Groups, og)
	}
	return o
}

// unit is one page at group or question granularity.
type unit struct {
	group    int
	question int // -1 for a whole group
}

// Move is one navigation request against the state machine.
type Move struct {
	// Current is the caller's index; nil only for Start.
	Current   ir.NavigationIndex
	Direction ir.NavigationDirection
	Mode      ir.NavigationMode
	// SkipInvalid lets Next leave an invalid page and submit an invalid
	// survey.
	SkipInvalid bool
	// CurrentValid is the validity of the units covered by Current.
	CurrentValid bool
}

// Transition computes the next navigation index.
//
// Start, Next and Previous only stop on units that are relevant and have
// at least one relevant question. Jump is taken verbatim. Resume keeps the
// stored index when it belongs to the requested mode and re-derives it
// otherwise. ChangeLanguage keeps the index.
//
// Unless SkipInvalid is set, Next from an invalid page returns the current
// index with show-errors set, and Next into End while some relevant
// question is invalid returns the first invalid unit with show-errors set.
func Transition(o Outline, b Bindings, m Move) (ir.NavigationIndex, error) {
	if !validMode(m.Mode) {
		return nil, &NavigationError{Code: ErrCodeInvalidMode, Message: "unknown navigation mode " + string(m.Mode)}
	}
	if m.Current != nil {
		if err := o.check(m.Current); err != nil {
			return nil, err
		}
	}
	nav := navigator{o: o, b: b, mode: m.Mode}

	var next ir.NavigationIndex
	switch d := m.Direction.(type) {
	case ir.StartDirection:
		next = nav.start()
	case ir.NextDirection:
		if m.Current == nil {
			return nil, missingIndex(d)
		}
		next = nav.next(m.Current)
	case ir.PreviousDirection:
		if m.Current == nil {
			return nil, missingIndex(d)
		}
		next = nav.previous(m.Current)
	case ir.JumpDirection:
		if d.Index == nil {
			return nil, missingIndex(d)
		}
		if err := o.check(d.Index); err != nil {
			return nil, err
		}
		return d.Index, nil
	case ir.ResumeDirection:
		if m.Current == nil {
			return nil, missingIndex(d)
		}
		return nav.resume(m.Current), nil
	case ir.ChangeLanguageDirection:
		if m.Current == nil {
			return nil, missingIndex(d)
		}
		return m.Current, nil
	default:
		return nil, &NavigationError{Code: ErrCodeMissingIndex, Message: "no navigation direction"}
	}

	if m.SkipInvalid {
		return next, nil
	}
	if _, ok := m.Direction.(ir.NextDirection); !ok {
		return next, nil
	}
	if _, atEnd := m.Current.(ir.EndIndex); !atEnd && !m.CurrentValid {
		return m.Current.WithShowErrors(true)
	}
	if _, toEnd := next.(ir.EndIndex); toEnd {
		if first, ok := nav.firstInvalid(); ok {
			return first.WithShowErrors(true)
		}
	}
	return next, nil
}

func validMode(mode ir.NavigationMode) bool {
	switch mode {
	case ir.ModeAllInOne, ir.ModeGroupByGroup, ir.ModeQuestionByQuestion:
		return true
	}
	return false
}

func missingIndex(d ir.NavigationDirection) *NavigationError {
	return &NavigationError{
		Code:    ErrCodeMissingIndex,
		Message: ir.DirectionName(d) + " needs a navigation index",
	}
}

// check rejects indices naming components outside the outline.
func (o Outline) check(idx ir.NavigationIndex) error {
	switch v := idx.(type) {
	case ir.GroupIndex:
		if o.group(v.ID) < 0 {
			return unknownComponent(v.ID)
		}
	case ir.GroupsIndex:
		for _, id := range v.IDs {
			if o.group(id) < 0 {
				return unknownComponent(id)
			}
		}
	case ir.QuestionIndex:
		if g, _ := o.question(v.ID); g < 0 {
			return unknownComponent(v.ID)
		}
	case ir.EndIndex:
		if v.GroupID != o.End {
			return unknownComponent(v.GroupID)
		}
	}
	return nil
}

func (o Outline) group(code string) int {
	return slices.IndexFunc(o.Groups, func(g OutlineGroup) bool { return g.Code == code })
}

func (o Outline) question(code string) (int, int) {
	for gi, g := range o.Groups {
		if qi := slices.Index(g.Questions, code); qi >= 0 {
			return gi, qi
		}
	}
	return -1, -1
}

type navigator struct {
	o    Outline
	b    Bindings
	mode ir.NavigationMode
}

// units lists the pages of the current mode in display order.
func (n navigator) units() []unit {
	var out []unit
	for gi, g := range n.o.Groups {
		if n.mode != ir.ModeQuestionByQuestion {
			out = append(out, unit{group: gi, question: -1})
			continue
		}
		for qi := range g.Questions {
			out = append(out, unit{group: gi, question: qi})
		}
	}
	return out
}

func (n navigator) navigable(u unit) bool {
	g := n.o.Groups[u.group]
	if !n.b.Relevant(g.Code) {
		return false
	}
	if u.question >= 0 {
		return n.b.Relevant(g.Questions[u.question])
	}
	return slices.ContainsFunc(g.Questions, n.b.Relevant)
}

func (n navigator) invalid(u unit) bool {
	g := n.o.Groups[u.group]
	if u.question >= 0 {
		return !n.b.Valid(g.Questions[u.question])
	}
	for _, q := range g.Questions {
		if n.b.Relevant(q) && !n.b.Valid(q) {
			return true
		}
	}
	return false
}

func (n navigator) index(u unit) ir.NavigationIndex {
	g := n.o.Groups[u.group]
	if u.question >= 0 {
		return ir.QuestionIndex{ID: g.Questions[u.question]}
	}
	return ir.GroupIndex{ID: g.Code}
}

func (n navigator) end() ir.NavigationIndex {
	return ir.EndIndex{GroupID: n.o.End}
}

// all is the all-in-one page: every navigable group.
func (n navigator) all() ir.NavigationIndex {
	var ids []string
	for gi, g := range n.o.Groups {
		if n.navigable(unit{group: gi, question: -1}) {
			ids = append(ids, g.Code)
		}
	}
	if len(ids) == 0 {
		return n.end()
	}
	return ir.GroupsIndex{IDs: ids}
}

// span returns the first and last unit positions covered by idx under the
// current mode. For a group without questions under question mode, last
// is first-1.
func (n navigator) span(units []unit, idx ir.NavigationIndex) (int, int) {
	var groups []int
	switch v := idx.(type) {
	case ir.QuestionIndex:
		gi, qi := n.o.question(v.ID)
		if n.mode == ir.ModeQuestionByQuestion {
			p := slices.Index(units, unit{group: gi, question: qi})
			return p, p
		}
		groups = []int{gi}
	case ir.GroupIndex:
		groups = []int{n.o.group(v.ID)}
	case ir.GroupsIndex:
		for _, id := range v.IDs {
			groups = append(groups, n.o.group(id))
		}
	}
	if len(groups) == 0 {
		return len(units), len(units) - 1
	}
	first, last := len(units), -1
	for i, u := range units {
		if slices.Contains(groups, u.group) {
			first = min(first, i)
			last = max(last, i)
		}
	}
	if last < 0 {
		// No questions: position where the group's questions would be.
		g := slices.Min(groups)
		first = slices.IndexFunc(units, func(u unit) bool { return u.group > g })
		if first < 0 {
			first = len(units)
		}
		last = first - 1
	}
	return first, last
}

func (n navigator) forward(units []unit, from int) (ir.NavigationIndex, bool) {
	for i := max(from, 0); i < len(units); i++ {
		if n.navigable(units[i]) {
			return n.index(units[i]), true
		}
	}
	return nil, false
}

func (n navigator) backward(units []unit, from int) (ir.NavigationIndex, bool) {
	for i := min(from, len(units)-1); i >= 0; i-- {
		if n.navigable(units[i]) {
			return n.index(units[i]), true
		}
	}
	return nil, false
}

func (n navigator) start() ir.NavigationIndex {
	if n.mode == ir.ModeAllInOne {
		return n.all()
	}
	if idx, ok := n.forward(n.units(), 0); ok {
		return idx
	}
	return n.end()
}

func (n navigator) next(current ir.NavigationIndex) ir.NavigationIndex {
	if _, ok := current.(ir.EndIndex); ok || n.mode == ir.ModeAllInOne {
		return n.end()
	}
	units := n.units()
	_, last := n.span(units, current)
	if idx, ok := n.forward(units, last+1); ok {
		return idx
	}
	return n.end()
}

func (n navigator) previous(current ir.NavigationIndex) ir.NavigationIndex {
	if n.mode == ir.ModeAllInOne {
		if _, ok := current.(ir.EndIndex); ok {
			return n.all()
		}
		return current
	}
	units := n.units()
	first := len(units)
	if _, ok := current.(ir.EndIndex); !ok {
		first, _ = n.span(units, current)
	}
	if idx, ok := n.backward(units, first-1); ok {
		return idx
	}
	return current
}

func (n navigator) resume(current ir.NavigationIndex) ir.NavigationIndex {
	implied, ok := ir.ImpliedMode(current)
	if !ok || implied == n.mode {
		return current
	}
	if n.mode == ir.ModeAllInOne {
		return n.all()
	}
	if q, ok := current.(ir.QuestionIndex); ok && n.mode == ir.ModeGroupByGroup {
		gi, _ := n.o.question(q.ID)
		return ir.GroupIndex{ID: n.o.Groups[gi].Code}
	}
	units := n.units()
	first, _ := n.span(units, current)
	if idx, ok := n.forward(units, first); ok {
		return idx
	}
	return n.end()
}

// firstInvalid finds the first navigable unit with an invalid relevant
// question.
func (n navigator) firstInvalid() (ir.NavigationIndex, bool) {
	if n.mode == ir.ModeAllInOne {
		for gi := range n.o.Groups {
			u := unit{group: gi, question: -1}
			if n.navigable(u) && n.invalid(u) {
				return n.all(), true
			}
		}
		return nil, false
	}
	for _, u := range n.units() {
		if n.navigable(u) && n.invalid(u) {
			return n.index(u), true
		}
	}
	return nil, false
}
