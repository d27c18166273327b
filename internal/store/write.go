package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// Revision records one save of a survey's design.
type Revision struct {
	ID         string `json:"id"`
	SurveyID   string `json:"survey_id"`
	DesignHash string `json:"design_hash"`
	Seq        int64  `json:"seq"`
	HasErrors  bool   `json:"has_errors"`
}

// Response is the stored navigation state of one respondent.
type Response struct {
	ID         string
	DesignHash string
	// Index is nil before the first navigation step.
	Index  ir.NavigationIndex
	Mode   ir.NavigationMode
	Lang   string
	Values map[string]any
	Seq    int64
}

// SaveDesign stores a compiled design under surveyID.
//
// The artifact is written once per design hash (ON CONFLICT DO NOTHING).
// Saving the hash that is already the survey's latest revision is a no-op
// returning that revision.
func (s *Store) SaveDesign(ctx context.Context, surveyID string, cs *ir.CompiledSurvey) (Revision, error) {
	if surveyID == "" {
		return Revision{}, errors.New("save design: empty survey id")
	}
	artifact, err := marshalArtifact(cs)
	if err != nil {
		return Revision{}, fmt.Errorf("save design: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Revision{}, fmt.Errorf("save design: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO designs (hash, artifact, has_errors)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, cs.Hash, artifact, cs.HasErrors()); err != nil {
		return Revision{}, fmt.Errorf("save design: %w", err)
	}

	latest, err := latestRevision(ctx, tx, surveyID)
	switch {
	case err == nil && latest.DesignHash == cs.Hash:
		return latest, tx.Commit()
	case err != nil && !errors.Is(err, ErrNotFound):
		return Revision{}, fmt.Errorf("save design: %w", err)
	}

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return Revision{}, fmt.Errorf("save design: %w", err)
	}
	rev := Revision{
		ID:         s.ids.Generate(),
		SurveyID:   surveyID,
		DesignHash: cs.Hash,
		Seq:        seq,
		HasErrors:  cs.HasErrors(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (id, survey_id, design_hash, seq)
		VALUES (?, ?, ?, ?)
	`, rev.ID, rev.SurveyID, rev.DesignHash, rev.Seq); err != nil {
		return Revision{}, fmt.Errorf("save design: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Revision{}, fmt.Errorf("save design: %w", err)
	}
	return rev, nil
}

// SaveResponse inserts or replaces a response. The design must already be
// stored. The response's seq is advanced on every save.
func (s *Store) SaveResponse(ctx context.Context, r Response) (Response, error) {
	if r.ID == "" {
		r.ID = s.ids.Generate()
	}
	idx, err := marshalIndex(r.Index)
	if err != nil {
		return Response{}, fmt.Errorf("save response: %w", err)
	}
	vals, err := marshalValues(r.Values)
	if err != nil {
		return Response{}, fmt.Errorf("save response: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Response{}, fmt.Errorf("save response: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return Response{}, fmt.Errorf("save response: %w", err)
	}
	r.Seq = seq
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO responses (id, design_hash, nav_index, mode, lang, vals, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			design_hash = excluded.design_hash,
			nav_index = excluded.nav_index,
			mode = excluded.mode,
			lang = excluded.lang,
			vals = excluded.vals,
			seq = excluded.seq
	`, r.ID, r.DesignHash, idx, string(r.Mode), r.Lang, vals, r.Seq); err != nil {
		return Response{}, fmt.Errorf("save response: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Response{}, fmt.Errorf("save response: %w", err)
	}
	return r, nil
}

// latestRevision returns the newest revision of a survey.
func latestRevision(ctx context.Context, q queryRower, surveyID string) (Revision, error) {
	var rev Revision
	err := q.QueryRowContext(ctx, `
		SELECT r.id, r.survey_id, r.design_hash, r.seq, d.has_errors
		FROM revisions r JOIN designs d ON d.hash = r.design_hash
		WHERE r.survey_id = ?
		ORDER BY r.seq DESC, r.id COLLATE BINARY DESC
		LIMIT 1
	`, surveyID).Scan(&rev.ID, &rev.SurveyID, &rev.DesignHash, &rev.Seq, &rev.HasErrors)
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, fmt.Errorf("survey %q: %w", surveyID, ErrNotFound)
	}
	if err != nil {
		return Revision{}, fmt.Errorf("query revision: %w", err)
	}
	return rev, nil
}
