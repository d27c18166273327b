package compiler

import (
	"strconv"
	"strings"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// The compiler writes synthesized expressions in the same syntax the
// bundled evaluator reads. Every operand is parenthesized so composition
// never depends on operator precedence.

func ref(component string, code ir.ReservedCode) string {
	return component + "." + code.String()
}

func rawRef(component, code string) string {
	return component + "." + code
}

func andAll(terms []string) string {
	return join(terms, " && ")
}

func orAll(terms []string) string {
	return join(terms, " || ")
}

func join(terms []string, op string) string {
	switch len(terms) {
	case 0:
		return ""
	case 1:
		return terms[0]
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = "(" + t + ")"
	}
	return strings.Join(parts, op)
}

func not(term string) string {
	return "!(" + term + ")"
}

func lessThan(a, b string) string {
	return "(" + a + " < " + b + ")"
}

func greaterThan(a, b string) string {
	return "(" + a + " > " + b + ")"
}

// countTrueBelow renders "fewer than limit of terms are true".
func countTrueBelow(terms []string, limit int) string {
	return "length([for b in [" + strings.Join(terms, ", ") + "] : b if b]) < " + strconv.Itoa(limit)
}

func inEnum(value string, codes []string) string {
	quoted := make([]string, len(codes))
	for i, c := range codes {
		quoted[i] = strconv.Quote(c)
	}
	return "in_enum(" + value + ", [" + strings.Join(quoted, ", ") + "])"
}
