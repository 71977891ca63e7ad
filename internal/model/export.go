package model

import "time"

// DialogueRecord is the persisted result of one completed dialogue.
type DialogueRecord struct {
	ID                 int64              `json:"id,omitempty"`
	RunID              string             `json:"run_id"`
	Question           string             `json:"question"`
	Category           string             `json:"category"`
	Difficulty         string             `json:"difficulty"`
	Persona            PersonaName        `json:"persona"`
	Provider           string             `json:"provider"`
	Model              string             `json:"model"`
	History            []Turn             `json:"history"`
	FinalVerdict       Verdict            `json:"final_verdict"`
	UnderstandingLevel UnderstandingLevel `json:"understanding_level"`
	TotalIterations    int                `json:"total_iterations"`
	Dean               *DeanVerdict       `json:"dean,omitempty"`
	Assessment         *Assessment        `json:"assessment"`
	Summary            *Summary           `json:"summary,omitempty"`
	CompletedAt        time.Time          `json:"completed_at"`
}

// RecordFromState builds the output record for a terminal state.
func RecordFromState(runID string, s ConversationState, at time.Time) DialogueRecord {
	total := s.Iteration - 1
	if s.Summary != nil {
		total = s.Summary.TotalIterations
	}
	return DialogueRecord{
		RunID:              runID,
		Question:           s.Question,
		Category:           s.Category,
		Difficulty:         s.Difficulty,
		Persona:            s.Persona.Name,
		Provider:           s.Provider,
		Model:              s.Model,
		History:            cloneTurns(s.History),
		FinalVerdict:       s.Verdict,
		UnderstandingLevel: s.Understanding,
		TotalIterations:    total,
		Dean:               s.LastDean,
		Assessment:         s.Assessment,
		Summary:            s.Summary,
		CompletedAt:        at,
	}
}

// SkipNotice records a question whose dialogue could not be completed.
type SkipNotice struct {
	RunID    string    `json:"run_id"`
	Question string    `json:"question"`
	Persona  string    `json:"persona,omitempty"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

// RunExport is the top-level JSON structure for run export.
type RunExport struct {
	Run       RunInfo          `json:"run"`
	Dialogues []DialogueRecord `json:"dialogues"`
	Skipped   []SkipNotice     `json:"skipped"`
}
