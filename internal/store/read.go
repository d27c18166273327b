package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// LoadDesign returns the compiled design with the given hash.
func (s *Store) LoadDesign(ctx context.Context, hash string) (*ir.CompiledSurvey, error) {
	var artifact string
	err := s.db.QueryRowContext(ctx, `SELECT artifact FROM designs WHERE hash = ?`, hash).Scan(&artifact)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("design %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load design: %w", err)
	}
	return unmarshalArtifact(artifact)
}

// LatestDesign returns the newest design saved under surveyID.
func (s *Store) LatestDesign(ctx context.Context, surveyID string) (*ir.CompiledSurvey, Revision, error) {
	rev, err := latestRevision(ctx, s.db, surveyID)
	if err != nil {
		return nil, Revision{}, err
	}
	cs, err := s.LoadDesign(ctx, rev.DesignHash)
	if err != nil {
		return nil, Revision{}, err
	}
	return cs, rev, nil
}

// ListDesigns returns every revision.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the store holds no revisions.
func (s *Store) ListDesigns(ctx context.Context) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.survey_id, r.design_hash, r.seq, d.has_errors
		FROM revisions r JOIN designs d ON d.hash = r.design_hash
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	revisions := []Revision{}
	for rows.Next() {
		var rev Revision
		if err := rows.Scan(&rev.ID, &rev.SurveyID, &rev.DesignHash, &rev.Seq, &rev.HasErrors); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return revisions, nil
}

// LoadResponse returns the stored state of a respondent.
func (s *Store) LoadResponse(ctx context.Context, id string) (Response, error) {
	var (
		r    Response
		idx  *string
		mode string
		vals string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, design_hash, nav_index, mode, lang, vals, seq
		FROM responses WHERE id = ?
	`, id).Scan(&r.ID, &r.DesignHash, &idx, &mode, &r.Lang, &vals, &r.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Response{}, fmt.Errorf("response %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Response{}, fmt.Errorf("load response: %w", err)
	}
	r.Mode = ir.NavigationMode(mode)
	if r.Index, err = unmarshalIndex(idx); err != nil {
		return Response{}, err
	}
	if r.Values, err = unmarshalValues(vals); err != nil {
		return Response{}, err
	}
	return r, nil
}
