package engine

import (
	"errors"
	"fmt"
)

// ErrDesignHasErrors is returned when navigating a design that carries
// compilation errors.
var ErrDesignHasErrors = errors.New("design has errors")

// NavigationError represents a request the state machine cannot serve.
type NavigationError struct {
	// Code identifies the error category.
	Code NavigationErrorCode

	// Message is a human-readable description.
	Message string

	// Component is the offending component code, if any.
	Component string
}

// NavigationErrorCode categorizes navigation errors.
type NavigationErrorCode string

const (
	// ErrCodeUnknownComponent indicates an index names a component that is
	// not a navigable group or question of the design.
	ErrCodeUnknownComponent NavigationErrorCode = "UNKNOWN_COMPONENT"

	// ErrCodeMissingIndex indicates a direction that needs a current index
	// was sent without one.
	ErrCodeMissingIndex NavigationErrorCode = "MISSING_INDEX"

	// ErrCodeInvalidMode indicates an unknown navigation mode.
	ErrCodeInvalidMode NavigationErrorCode = "INVALID_MODE"

	// ErrCodeInvalidValue indicates a stored value key that is not
	// "Component.field".
	ErrCodeInvalidValue NavigationErrorCode = "INVALID_VALUE"
)

// Error implements the error interface.
func (e *NavigationError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s (component=%s)", e.Code, e.Message, e.Component)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNavigationError reports whether err is a NavigationError with the given
// code. Uses errors.As to handle wrapped errors.
func IsNavigationError(err error, code NavigationErrorCode) bool {
	var ne *NavigationError
	if errors.As(err, &ne) {
		return ne.Code == code
	}
	return false
}

func unknownComponent(code string) *NavigationError {
	return &NavigationError{
		Code:      ErrCodeUnknownComponent,
		Message:   "not a navigable component",
		Component: code,
	}
}
