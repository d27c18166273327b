package ir

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// NavigationMode is the granularity of navigation.
type NavigationMode string

const (
	ModeAllInOne           NavigationMode = "ALL_IN_ONE"
	ModeGroupByGroup       NavigationMode = "GROUP_BY_GROUP"
	ModeQuestionByQuestion NavigationMode = "QUESTION_BY_QUESTION"
)

// ParseNavigationMode parses a mode name case-insensitively; dashes are
// accepted in place of underscores.
func ParseNavigationMode(s string) (NavigationMode, error) {
	m := NavigationMode(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	switch m {
	case ModeAllInOne, ModeGroupByGroup, ModeQuestionByQuestion:
		return m, nil
	}
	return "", fmt.Errorf("unknown navigation mode %q", s)
}

// ErrEndShowErrors is returned when asking an End index to show errors.
var ErrEndShowErrors = errors.New("end navigation index cannot show errors")

// NavigationIndex is a sealed interface over the four navigation positions.
// The show-errors flag is transient and excluded from Equal.
type NavigationIndex interface {
	// ShowErrors reports whether the caller should display validation errors.
	ShowErrors() bool
	// WithShowErrors returns a copy with the flag set. End indices reject true.
	WithShowErrors(show bool) (NavigationIndex, error)

	navigationIndex() // Sealed
}

// GroupIndex shows one group.
type GroupIndex struct {
	ID         string
	showErrors bool
}

// GroupsIndex shows several groups at once (all-in-one).
type GroupsIndex struct {
	IDs        []string
	showErrors bool
}

// QuestionIndex shows one question.
type QuestionIndex struct {
	ID         string
	showErrors bool
}

// EndIndex is the terminal position; GroupID is the END group.
type EndIndex struct {
	GroupID string
}

func (GroupIndex) navigationIndex()    {}
func (GroupsIndex) navigationIndex()   {}
func (QuestionIndex) navigationIndex() {}
func (EndIndex) navigationIndex()      {}

// ShowErrors implements NavigationIndex.
func (i GroupIndex) ShowErrors() bool { return i.showErrors }

// ShowErrors implements NavigationIndex.
func (i GroupsIndex) ShowErrors() bool { return i.showErrors }

// ShowErrors implements NavigationIndex.
func (i QuestionIndex) ShowErrors() bool { return i.showErrors }

// ShowErrors implements NavigationIndex.
func (EndIndex) ShowErrors() bool { return false }

// WithShowErrors implements NavigationIndex.
func (i GroupIndex) WithShowErrors(show bool) (NavigationIndex, error) {
	i.showErrors = show
	return i, nil
}

// WithShowErrors implements NavigationIndex.
func (i GroupsIndex) WithShowErrors(show bool) (NavigationIndex, error) {
	i.showErrors = show
	return i, nil
}

// WithShowErrors implements NavigationIndex.
func (i QuestionIndex) WithShowErrors(show bool) (NavigationIndex, error) {
	i.showErrors = show
	return i, nil
}

// WithShowErrors implements NavigationIndex.
func (i EndIndex) WithShowErrors(show bool) (NavigationIndex, error) {
	if show {
		return nil, ErrEndShowErrors
	}
	return i, nil
}

// ImpliedMode returns the navigation mode an index was produced under.
// End indices belong to every mode.
func ImpliedMode(idx NavigationIndex) (NavigationMode, bool) {
	switch idx.(type) {
	case GroupsIndex:
		return ModeAllInOne, true
	case GroupIndex:
		return ModeGroupByGroup, true
	case QuestionIndex:
		return ModeQuestionByQuestion, true
	case EndIndex:
		return "", false
	}
	return "", false
}

// EqualIndex compares two indices ignoring the show-errors flag.
func EqualIndex(a, b NavigationIndex) bool {
	switch x := a.(type) {
	case GroupIndex:
		y, ok := b.(GroupIndex)
		return ok && x.ID == y.ID
	case GroupsIndex:
		y, ok := b.(GroupsIndex)
		return ok && slices.Equal(x.IDs, y.IDs)
	case QuestionIndex:
		y, ok := b.(QuestionIndex)
		return ok && x.ID == y.ID
	case EndIndex:
		y, ok := b.(EndIndex)
		return ok && x.GroupID == y.GroupID
	}
	return a == nil && b == nil
}

// IndexString renders an index for logs and CLI output.
func IndexString(idx NavigationIndex) string {
	var s string
	switch v := idx.(type) {
	case GroupIndex:
		s = "Group(" + v.ID + ")"
	case GroupsIndex:
		s = "Groups(" + strings.Join(v.IDs, ",") + ")"
	case QuestionIndex:
		s = "Question(" + v.ID + ")"
	case EndIndex:
		s = "End(" + v.GroupID + ")"
	default:
		return "<nil>"
	}
	if idx.ShowErrors() {
		s += "!"
	}
	return s
}

// ParseIndexString parses the IndexString form, e.g. "Group(G1)",
// "Groups(G1,G2)", "Question(Q3)!" or "End(Gend)".
func ParseIndexString(s string) (NavigationIndex, error) {
	s = strings.TrimSpace(s)
	show := strings.HasSuffix(s, "!")
	body := strings.TrimSuffix(s, "!")
	open := strings.IndexByte(body, '(')
	if open <= 0 || !strings.HasSuffix(body, ")") {
		return nil, fmt.Errorf("malformed navigation index %q", s)
	}
	arg := body[open+1 : len(body)-1]
	if arg == "" {
		return nil, fmt.Errorf("navigation index %q has no id", s)
	}
	var idx NavigationIndex
	switch strings.ToLower(body[:open]) {
	case "group":
		idx = GroupIndex{ID: arg}
	case "groups":
		idx = GroupsIndex{IDs: strings.Split(arg, ",")}
	case "question":
		idx = QuestionIndex{ID: arg}
	case "end":
		idx = EndIndex{GroupID: arg}
	default:
		return nil, fmt.Errorf("unknown navigation index type in %q", s)
	}
	return idx.WithShowErrors(show)
}

// NavigationDirection is a sealed interface over navigation requests.
type NavigationDirection interface {
	navigationDirection() // Sealed
}

// StartDirection begins a fresh navigation and draws new random orders.
type StartDirection struct{}

// PreviousDirection moves back one unit.
type PreviousDirection struct{}

// NextDirection moves forward one unit.
type NextDirection struct{}

// JumpDirection moves to Index verbatim.
type JumpDirection struct {
	Index NavigationIndex
}

// ResumeDirection restores a stored index under the requested mode.
type ResumeDirection struct{}

// ChangeLanguageDirection re-evaluates the current index in another language.
type ChangeLanguageDirection struct{}

func (StartDirection) navigationDirection()          {}
func (PreviousDirection) navigationDirection()       {}
func (NextDirection) navigationDirection()           {}
func (JumpDirection) navigationDirection()           {}
func (ResumeDirection) navigationDirection()         {}
func (ChangeLanguageDirection) navigationDirection() {}

// DirectionName returns the wire name of a direction.
func DirectionName(d NavigationDirection) string {
	switch d.(type) {
	case StartDirection:
		return "start"
	case PreviousDirection:
		return "previous"
	case NextDirection:
		return "next"
	case JumpDirection:
		return "jump"
	case ResumeDirection:
		return "resume"
	case ChangeLanguageDirection:
		return "change_language"
	}
	return ""
}

// ParseDirectionName parses the wire name of a payload-free direction.
// Jump needs an index and is built directly.
func ParseDirectionName(s string) (NavigationDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start":
		return StartDirection{}, nil
	case "previous", "prev":
		return PreviousDirection{}, nil
	case "next":
		return NextDirection{}, nil
	case "resume":
		return ResumeDirection{}, nil
	case "change_language", "change-language":
		return ChangeLanguageDirection{}, nil
	}
	return nil, fmt.Errorf("unknown navigation direction %q", s)
}
