package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/socratic/internal/model"
)

// AppendDialogue stores one completed dialogue with its turns in a single
// transaction.
func (s *Store) AppendDialogue(ctx context.Context, rec model.DialogueRecord) error {
	dean, err := marshalOptional(rec.Dean)
	if err != nil {
		return fmt.Errorf("encode dean verdict: %w", err)
	}
	assessment, err := marshalOptional(rec.Assessment)
	if err != nil {
		return fmt.Errorf("encode assessment: %w", err)
	}
	summary, err := marshalOptional(rec.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO dialogues (run_id, question, category, difficulty, persona, provider, model,
			final_verdict, understanding_level, total_iterations, dean_json, assessment_json, summary_json, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Question, rec.Category, rec.Difficulty, rec.Persona, rec.Provider, rec.Model,
		rec.FinalVerdict, rec.UnderstandingLevel, rec.TotalIterations, dean, assessment, summary, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dialogue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i, t := range rec.History {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (dialogue_id, position, role, content, iteration) VALUES (?, ?, ?, ?, ?)`,
			id, i, t.Role, t.Content, t.Iteration,
		); err != nil {
			return fmt.Errorf("insert turn %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// AppendSkip stores a skip notice.
func (s *Store) AppendSkip(ctx context.Context, n model.SkipNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO skips (run_id, question, persona, reason, at) VALUES (?, ?, ?, ?, ?)`,
		n.RunID, n.Question, n.Persona, n.Reason, n.At,
	)
	if err != nil {
		return fmt.Errorf("insert skip: %w", err)
	}
	return nil
}

const dialogueColumns = `id, run_id, question, category, difficulty, persona, provider, model,
	final_verdict, understanding_level, total_iterations, dean_json, assessment_json, summary_json, completed_at`

// ListDialogues returns the dialogues of a run in completion order,
// including their transcripts.
func (s *Store) ListDialogues(runID string) ([]model.DialogueRecord, error) {
	rows, err := s.db.Query(`SELECT `+dialogueColumns+` FROM dialogues WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	var recs []model.DialogueRecord
	for rows.Next() {
		rec, err := scanDialogue(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recs {
		if recs[i].History, err = s.getTurns(recs[i].ID); err != nil {
			return nil, fmt.Errorf("get turns of dialogue %d: %w", recs[i].ID, err)
		}
	}
	return recs, nil
}

// GetDialogue returns one dialogue with its transcript, or nil when it does
// not exist.
func (s *Store) GetDialogue(id int64) (*model.DialogueRecord, error) {
	rec, err := scanDialogue(s.db.QueryRow(`SELECT `+dialogueColumns+` FROM dialogues WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.History, err = s.getTurns(id); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSkips returns the skip notices of a run.
func (s *Store) ListSkips(runID string) ([]model.SkipNotice, error) {
	rows, err := s.db.Query(`SELECT run_id, question, persona, reason, at FROM skips WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SkipNotice
	for rows.Next() {
		var n model.SkipNotice
		if err := rows.Scan(&n.RunID, &n.Question, &n.Persona, &n.Reason, &n.At); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) getTurns(dialogueID int64) ([]model.Turn, error) {
	rows, err := s.db.Query(
		`SELECT role, content, iteration FROM turns WHERE dialogue_id = ? ORDER BY position`, dialogueID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	turns := []model.Turn{}
	for rows.Next() {
		var t model.Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.Iteration); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func scanDialogue(row scanner) (model.DialogueRecord, error) {
	var (
		rec                       model.DialogueRecord
		dean, assessment, summary string
	)
	err := row.Scan(&rec.ID, &rec.RunID, &rec.Question, &rec.Category, &rec.Difficulty, &rec.Persona,
		&rec.Provider, &rec.Model, &rec.FinalVerdict, &rec.UnderstandingLevel, &rec.TotalIterations,
		&dean, &assessment, &summary, &rec.CompletedAt)
	if err != nil {
		return rec, err
	}
	if err := unmarshalOptional(dean, &rec.Dean); err != nil {
		return rec, fmt.Errorf("decode dean verdict: %w", err)
	}
	if err := unmarshalOptional(assessment, &rec.Assessment); err != nil {
		return rec, fmt.Errorf("decode assessment: %w", err)
	}
	if err := unmarshalOptional(summary, &rec.Summary); err != nil {
		return rec, fmt.Errorf("decode summary: %w", err)
	}
	return rec, nil
}

func marshalOptional[T any](v *T) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func unmarshalOptional[T any](s string, dst **T) error {
	if s == "" {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return err
	}
	*dst = v
	return nil
}
