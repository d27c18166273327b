package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

func TestLoadDesign_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	cs := compileTestDesign(t, "Name?")
	if _, err := s.SaveDesign(ctx, "survey-1", cs); err != nil {
		t.Fatalf("SaveDesign() failed: %v", err)
	}

	loaded, err := s.LoadDesign(ctx, cs.Hash)
	if err != nil {
		t.Fatalf("LoadDesign() failed: %v", err)
	}

	if loaded.Hash != cs.Hash {
		t.Errorf("Hash = %q, want %q", loaded.Hash, cs.Hash)
	}
	rehash, err := ir.DesignHash(loaded.Survey)
	if err != nil {
		t.Fatalf("DesignHash() failed: %v", err)
	}
	if rehash != cs.Hash {
		t.Errorf("stored tree hashes to %q, want %q", rehash, cs.Hash)
	}
	if !reflect.DeepEqual(loaded.Schema, cs.Schema) {
		t.Errorf("Schema = %+v, want %+v", loaded.Schema, cs.Schema)
	}
	if len(loaded.Index) != len(cs.Index) {
		t.Errorf("len(Index) = %d, want %d", len(loaded.Index), len(cs.Index))
	}
	if len(loaded.DependencyMap) != len(cs.DependencyMap) {
		t.Errorf("len(DependencyMap) = %d, want %d", len(loaded.DependencyMap), len(cs.DependencyMap))
	}
}

func TestLoadDesign_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.LoadDesign(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLatestDesign(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	v1 := compileTestDesign(t, "Name?")
	v2 := compileTestDesign(t, "Your name?")

	for _, cs := range []*ir.CompiledSurvey{v1, v2} {
		if _, err := s.SaveDesign(ctx, "survey-1", cs); err != nil {
			t.Fatalf("SaveDesign() failed: %v", err)
		}
	}

	cs, rev, err := s.LatestDesign(ctx, "survey-1")
	if err != nil {
		t.Fatalf("LatestDesign() failed: %v", err)
	}
	if cs.Hash != v2.Hash {
		t.Errorf("latest hash = %q, want %q", cs.Hash, v2.Hash)
	}
	if rev.ID != "rev-2" || rev.Seq != 2 {
		t.Errorf("revision = %+v, want rev-2 at seq 2", rev)
	}

	// Reverting to v1 is a new revision.
	rev, err = s.SaveDesign(ctx, "survey-1", v1)
	if err != nil {
		t.Fatalf("SaveDesign() failed: %v", err)
	}
	if rev.ID != "rev-3" {
		t.Errorf("revert revision = %q, want rev-3", rev.ID)
	}
}

func TestLatestDesign_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, _, err := s.LatestDesign(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListDesigns_Empty(t *testing.T) {
	s := createTestStore(t)
	revisions, err := s.ListDesigns(context.Background())
	if err != nil {
		t.Fatalf("ListDesigns() failed: %v", err)
	}
	if revisions == nil {
		t.Error("revisions is nil, want empty slice")
	}
}

func TestListDesigns_Order(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	v1 := compileTestDesign(t, "Name?")
	v2 := compileTestDesign(t, "Your name?")

	saves := []struct {
		survey string
		cs     *ir.CompiledSurvey
	}{
		{"survey-b", v1},
		{"survey-a", v2},
		{"survey-b", v2},
	}
	for _, sv := range saves {
		if _, err := s.SaveDesign(ctx, sv.survey, sv.cs); err != nil {
			t.Fatalf("SaveDesign() failed: %v", err)
		}
	}

	revisions, err := s.ListDesigns(ctx)
	if err != nil {
		t.Fatalf("ListDesigns() failed: %v", err)
	}
	if len(revisions) != 3 {
		t.Fatalf("len(revisions) = %d, want 3", len(revisions))
	}
	for i, sv := range saves {
		if revisions[i].SurveyID != sv.survey || revisions[i].Seq != int64(i+1) {
			t.Errorf("revisions[%d] = %+v, want %s at seq %d", i, revisions[i], sv.survey, i+1)
		}
	}
}

func TestLoadResponse_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	cs := compileTestDesign(t, "Name?")
	if _, err := s.SaveDesign(ctx, "survey-1", cs); err != nil {
		t.Fatalf("SaveDesign() failed: %v", err)
	}

	saved, err := s.SaveResponse(ctx, Response{
		ID:         "resp-1",
		DesignHash: cs.Hash,
		Index:      ir.QuestionIndex{ID: "Q2"},
		Mode:       ir.ModeQuestionByQuestion,
		Lang:       "de",
		Values: map[string]any{
			"Q1.value": "yes",
			"Q2.value": 9007199254740993,
		},
	})
	if err != nil {
		t.Fatalf("SaveResponse() failed: %v", err)
	}

	loaded, err := s.LoadResponse(ctx, "resp-1")
	if err != nil {
		t.Fatalf("LoadResponse() failed: %v", err)
	}
	if loaded.DesignHash != cs.Hash || loaded.Seq != saved.Seq {
		t.Errorf("loaded = %+v, want design %s at seq %d", loaded, cs.Hash, saved.Seq)
	}
	if !ir.EqualIndex(loaded.Index, ir.QuestionIndex{ID: "Q2"}) {
		t.Errorf("Index = %s, want Question(Q2)", ir.IndexString(loaded.Index))
	}
	if loaded.Mode != ir.ModeQuestionByQuestion || loaded.Lang != "de" {
		t.Errorf("mode/lang = %s/%s", loaded.Mode, loaded.Lang)
	}
	if loaded.Values["Q1.value"] != "yes" {
		t.Errorf("Q1.value = %v, want yes", loaded.Values["Q1.value"])
	}
	if n, ok := loaded.Values["Q2.value"].(json.Number); !ok || n.String() != "9007199254740993" {
		t.Errorf("Q2.value = %#v, want exact json.Number", loaded.Values["Q2.value"])
	}
}

func TestLoadResponse_NilIndex(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	cs := compileTestDesign(t, "Name?")
	if _, err := s.SaveDesign(ctx, "survey-1", cs); err != nil {
		t.Fatalf("SaveDesign() failed: %v", err)
	}
	if _, err := s.SaveResponse(ctx, Response{ID: "resp-1", DesignHash: cs.Hash, Mode: ir.ModeAllInOne, Lang: "en"}); err != nil {
		t.Fatalf("SaveResponse() failed: %v", err)
	}

	loaded, err := s.LoadResponse(ctx, "resp-1")
	if err != nil {
		t.Fatalf("LoadResponse() failed: %v", err)
	}
	if loaded.Index != nil {
		t.Errorf("Index = %s, want nil", ir.IndexString(loaded.Index))
	}
	if loaded.Values == nil || len(loaded.Values) != 0 {
		t.Errorf("Values = %#v, want empty map", loaded.Values)
	}
}

func TestLoadResponse_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.LoadResponse(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
