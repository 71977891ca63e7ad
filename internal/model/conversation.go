package model

// ConversationState is the dialogue state for one question. Values are
// never mutated in place: every With* method returns a new state whose
// history does not share a backing array with the receiver.
type ConversationState struct {
	Question      string             `json:"question"`
	Category      string             `json:"category"`
	Difficulty    string             `json:"difficulty"`
	Persona       Persona            `json:"persona"`
	Provider      string             `json:"provider"`
	Model         string             `json:"model"`
	History       []Turn             `json:"history"`
	Iteration     int                `json:"iteration"`
	MaxIterations int                `json:"max_iterations"`
	Verdict       Verdict            `json:"verdict,omitempty"`
	Understanding UnderstandingLevel `json:"understanding_level,omitempty"`
	LastDean      *DeanVerdict       `json:"dean,omitempty"`
	Assessment    *Assessment        `json:"assessment,omitempty"`
	Summary       *Summary           `json:"summary,omitempty"`
	Stage         Stage              `json:"stage"`
}

// WithTurn returns a copy of s with t appended to the history.
func (s ConversationState) WithTurn(t Turn) ConversationState {
	history := make([]Turn, len(s.History), len(s.History)+1)
	copy(history, s.History)
	s.History = append(history, t)
	return s
}

// WithStage returns a copy of s in the given stage.
func (s ConversationState) WithStage(st Stage) ConversationState {
	s.History = cloneTurns(s.History)
	s.Stage = st
	return s
}

// LastTurn returns the most recent turn with the given role.
func (s ConversationState) LastTurn(role Role) (Turn, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == role {
			return s.History[i], true
		}
	}
	return Turn{}, false
}

// CompletedRounds is the number of evaluated rounds so far.
func (s ConversationState) CompletedRounds() int {
	return s.Iteration - 1
}

func cloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
