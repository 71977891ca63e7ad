package store

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pavelanni/socratic/internal/model"
)

// ExportRun builds the export of one run with all its dialogues and skip
// notices.
func (s *Store) ExportRun(runID string) (*model.RunExport, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	dialogues, err := s.ListDialogues(runID)
	if err != nil {
		return nil, fmt.Errorf("list dialogues: %w", err)
	}
	skips, err := s.ListSkips(runID)
	if err != nil {
		return nil, fmt.Errorf("list skips: %w", err)
	}
	if dialogues == nil {
		dialogues = []model.DialogueRecord{}
	}
	if skips == nil {
		skips = []model.SkipNotice{}
	}
	return &model.RunExport{Run: *run, Dialogues: dialogues, Skipped: skips}, nil
}

// ExportAllRuns exports every stored run, newest first.
func (s *Store) ExportAllRuns() ([]model.RunExport, error) {
	runs, err := s.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]model.RunExport, 0, len(runs))
	for _, r := range runs {
		exp, err := s.ExportRun(r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *exp)
	}
	return out, nil
}

// WriteJSONL writes the dialogues of the given exports as one JSON record
// per line.
func WriteJSONL(w io.Writer, exports []model.RunExport) error {
	enc := json.NewEncoder(w)
	for _, exp := range exports {
		for _, rec := range exp.Dialogues {
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("encode dialogue %d: %w", rec.ID, err)
			}
		}
	}
	return nil
}
