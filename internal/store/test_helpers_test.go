package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/qlarr-surveys/survey-engine/internal/compiler"
	"github.com/qlarr-surveys/survey-engine/internal/expr"
	"github.com/qlarr-surveys/survey-engine/internal/ir"
	tu "github.com/qlarr-surveys/survey-engine/internal/testutil"
)

// createTestStore opens a fresh store with sequential revision IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(tu.NewSequentialIDs("rev")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// compileTestDesign compiles a two-group survey. label varies the design
// hash.
func compileTestDesign(t *testing.T, label string) *ir.CompiledSurvey {
	t.Helper()
	survey := tu.Survey(
		tu.Group("G1",
			tu.Question("Q1", tu.Value(ir.ReturnString), tu.Label(label)),
			tu.Question("Q2", tu.Value(ir.ReturnInt), tu.Relevance(`Q1.value == "yes"`)),
		),
		tu.Group("G2", tu.Question("Q3", tu.Value(ir.ReturnBoolean))),
		tu.End(),
	)
	cs, err := compiler.Compile(context.Background(), survey, expr.NewHCLValidator())
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	if cs.HasErrors() {
		t.Fatal("test design has errors")
	}
	return cs
}
