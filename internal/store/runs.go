package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/socratic/internal/model"
)

const runColumns = `id, provider, model, max_iterations, prompt_variant, input_path, started_at, finished_at, completed, skipped`

// CreateRun records the start of a batch run.
func (s *Store) CreateRun(r model.RunInfo) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, provider, model, max_iterations, prompt_variant, input_path, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Provider, r.Model, r.MaxIterations, r.PromptVariant, r.InputPath, r.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun stores the end time and outcome counts of a run.
func (s *Store) FinishRun(id string, at time.Time, completed, skipped int) error {
	res, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, completed = ?, skipped = ? WHERE id = ?`,
		at, completed, skipped, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// GetRun returns a run by ID. Returns nil and no error if it does not exist.
func (s *Store) GetRun(id string) (*model.RunInfo, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]model.RunInfo, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.RunInfo
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.RunInfo, error) {
	var (
		r        model.RunInfo
		finished sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Provider, &r.Model, &r.MaxIterations, &r.PromptVariant, &r.InputPath,
		&r.StartedAt, &finished, &r.Completed, &r.Skipped)
	if err != nil {
		return r, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}
