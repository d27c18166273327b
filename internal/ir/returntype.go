package ir

import "strings"

// ReturnType is the runtime type an instruction evaluates to.
type ReturnType string

const (
	ReturnBoolean ReturnType = "BOOLEAN"
	ReturnString  ReturnType = "STRING"
	ReturnInt     ReturnType = "INT"
	ReturnDouble  ReturnType = "DOUBLE"
	ReturnList    ReturnType = "LIST"
	ReturnMap     ReturnType = "MAP"
	ReturnDate    ReturnType = "DATE"
	ReturnFile    ReturnType = "FILE"
)

// DefaultDate is the value a DATE field falls back to when evaluation fails.
// SQL datetime layout, UTC.
const DefaultDate = "1970-01-01 00:00:00"

// ParseReturnType parses a return type name case-insensitively.
func ParseReturnType(s string) (ReturnType, bool) {
	rt := ReturnType(strings.ToUpper(strings.TrimSpace(s)))
	switch rt {
	case ReturnBoolean, ReturnString, ReturnInt, ReturnDouble,
		ReturnList, ReturnMap, ReturnDate, ReturnFile:
		return rt, true
	}
	return "", false
}

// Default returns the fallback value for the type, used when a runtime
// type check fails.
func (rt ReturnType) Default() any {
	switch rt {
	case ReturnBoolean:
		return false
	case ReturnInt:
		return int64(0)
	case ReturnDouble:
		return float64(0)
	case ReturnList:
		return []any{}
	case ReturnMap, ReturnFile:
		return map[string]any{}
	case ReturnDate:
		return DefaultDate
	default:
		return ""
	}
}
