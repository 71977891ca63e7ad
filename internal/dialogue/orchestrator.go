// Package dialogue drives the student, teacher and dean roles through one
// question's Socratic dialogue and decides when the dialogue ends.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/pavelanni/socratic/internal/model"
	"github.com/pavelanni/socratic/internal/persona"
)

// excerptRunes is the length of a student-turn excerpt in the summary.
const excerptRunes = 150

// Next is the result of the branch after a dean evaluation.
type Next int

const (
	NextStudent Next = iota
	NextAssessment
)

func (n Next) String() string {
	if n == NextAssessment {
		return "assessment"
	}
	return "student"
}

// Orchestrator sequences the role adapters for one dialogue at a time. It
// holds no per-dialogue state and may be shared between goroutines.
type Orchestrator struct {
	adapters Adapters
	personas *persona.Catalog
}

// New creates an Orchestrator over the given adapters and persona catalog.
func New(a Adapters, personas *persona.Catalog) *Orchestrator {
	return &Orchestrator{adapters: a, personas: personas}
}

// NewConversation creates the initial state for one input row. All
// configuration problems are reported here, before any adapter call.
func (o *Orchestrator) NewConversation(row model.QuestionRow, name model.PersonaName, cfg model.RunConfig) (model.ConversationState, error) {
	if err := ValidateRunConfig(cfg); err != nil {
		return model.ConversationState{}, err
	}
	if strings.TrimSpace(row.Question) == "" {
		return model.ConversationState{}, &ConfigError{Field: "question", Value: row.Question, Reason: "must not be empty"}
	}
	p, err := o.personas.Lookup(name)
	if err != nil {
		return model.ConversationState{}, &ConfigError{Field: "persona", Value: string(name), Reason: "not in persona catalog"}
	}
	return model.ConversationState{
		Question:      row.Question,
		Category:      row.Category,
		Difficulty:    row.Difficulty,
		Persona:       p,
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		Iteration:     1,
		MaxIterations: cfg.MaxIterations,
		Stage:         model.StageAwaitingStudent,
	}, nil
}

func backendOf(s model.ConversationState) Backend {
	return Backend{Provider: s.Provider, Model: s.Model}
}

// RunStudentTurn asks the student for its next answer and appends it.
func (o *Orchestrator) RunStudentTurn(ctx context.Context, s model.ConversationState) model.ConversationState {
	req := StudentRequest{
		Backend:      backendOf(s),
		Question:     s.Question,
		Persona:      s.Persona,
		PriorHistory: s.History,
	}
	if t, ok := s.LastTurn(model.RoleTeacher); ok {
		req.LastTeacher = t.Content
	}

	content, err := o.adapters.Student(ctx, req)
	if err != nil {
		slog.Error("student turn failed", "iteration", s.Iteration, "error", &AdapterError{Role: "student", Err: err})
		content = placeholder(err)
	}

	s = s.WithTurn(model.Turn{Role: model.RoleStudent, Content: content, Iteration: s.Iteration})
	s.Stage = model.StageAwaitingTeacher
	return s
}

// RunTeacherTurn asks the teacher to respond to the latest student turn.
func (o *Orchestrator) RunTeacherTurn(ctx context.Context, s model.ConversationState) model.ConversationState {
	latest, _ := s.LastTurn(model.RoleStudent)
	content, err := o.adapters.Teacher(ctx, TeacherRequest{
		Backend:       backendOf(s),
		Question:      s.Question,
		LatestStudent: latest.Content,
		History:       s.History,
		Iteration:     s.Iteration,
	})
	if err != nil {
		slog.Error("teacher turn failed", "iteration", s.Iteration, "error", &AdapterError{Role: "teacher", Err: err})
		content = placeholder(err)
	}

	s = s.WithTurn(model.Turn{Role: model.RoleTeacher, Content: content, Iteration: s.Iteration})
	s.Stage = model.StageAwaitingDean
	return s
}

// RunDeanTurn evaluates the round, records the arbitrated verdict and
// advances the iteration. The iteration advances even when the dean call
// or its decoding fails.
func (o *Orchestrator) RunDeanTurn(ctx context.Context, s model.ConversationState) model.ConversationState {
	raw, err := o.adapters.Dean(ctx, DeanRequest{
		Backend:       backendOf(s),
		Question:      s.Question,
		History:       s.History,
		Iteration:     s.Iteration,
		MaxIterations: s.MaxIterations,
	})
	if err != nil {
		slog.Error("dean turn failed", "iteration", s.Iteration, "error", &AdapterError{Role: "dean", Err: err})
		raw = ""
	}

	v := Decide(raw, s.Iteration, s.MaxIterations)
	slog.Info("dean verdict",
		"iteration", s.Iteration,
		"max_iterations", s.MaxIterations,
		"verdict", v.Verdict,
		"understanding", v.Understanding,
		"correctness", v.AnswerCorrectness,
	)

	s = s.WithStage(s.Stage)
	s.Verdict = v.Verdict
	s.Understanding = v.Understanding
	s.LastDean = &v
	s.Iteration++

	if SelectNext(s) == NextAssessment {
		s.Stage = model.StageAwaitingAssessment
	} else {
		s.Stage = model.StageAwaitingStudent
	}
	return s
}

// SelectNext is the only branch point of the dialogue. It must be called
// after the dean has advanced the iteration.
func SelectNext(s model.ConversationState) Next {
	if s.Verdict.Terminal() || s.Iteration-1 >= s.MaxIterations {
		return NextAssessment
	}
	return NextStudent
}

// RunAssessment produces the final report and summary. A state that already
// carries a report, or has not reached a terminal verdict, is returned
// unchanged.
func (o *Orchestrator) RunAssessment(ctx context.Context, s model.ConversationState) model.ConversationState {
	if s.Assessment != nil {
		slog.Warn("assessment already recorded, ignoring", "question", s.Question)
		return s
	}
	if SelectNext(s) != NextAssessment {
		slog.Warn("assessment requested before a terminal verdict, ignoring",
			"question", s.Question, "iteration", s.Iteration)
		return s
	}

	var report model.Assessment
	raw, err := o.adapters.Assess(ctx, AssessmentRequest{
		Backend:       backendOf(s),
		Persona:       s.Persona,
		History:       s.History,
		Understanding: s.Understanding,
	})
	if err != nil {
		aerr := &AdapterError{Role: "assessment", Err: err}
		slog.Error("assessment failed", "error", aerr)
		report = FallbackAssessment(s.Persona, s.Understanding, aerr)
	} else {
		report = ParseAssessment(raw, s.Persona, s.Understanding)
	}

	summary := Summarize(s)
	s = s.WithStage(model.StageTerminal)
	s.Assessment = &report
	s.Summary = &summary
	return s
}

// Summarize derives the transcript summary of a finished dialogue.
func Summarize(s model.ConversationState) model.Summary {
	students := lo.Filter(s.History, func(t model.Turn, _ int) bool {
		return t.Role == model.RoleStudent
	})
	return model.Summary{
		TotalIterations:    s.Iteration - 1,
		ConversationLength: len(s.History),
		LearningProgression: lo.Map(students, func(t model.Turn, _ int) string {
			return excerpt(t.Content, excerptRunes)
		}),
	}
}

// Run drives s through the state machine until it is terminal. The context
// is only checked between steps; an in-flight adapter call always completes.
func (o *Orchestrator) Run(ctx context.Context, s model.ConversationState) (model.ConversationState, error) {
	for s.Stage != model.StageTerminal {
		if err := ctx.Err(); err != nil {
			return s, fmt.Errorf("dialogue interrupted at iteration %d: %w", s.Iteration, err)
		}
		switch s.Stage {
		case model.StageAwaitingStudent:
			s = o.RunStudentTurn(ctx, s)
		case model.StageAwaitingTeacher:
			s = o.RunTeacherTurn(ctx, s)
		case model.StageAwaitingDean:
			s = o.RunDeanTurn(ctx, s)
		case model.StageAwaitingAssessment:
			s = o.RunAssessment(ctx, s)
			if s.Stage != model.StageTerminal {
				return s, errors.New("assessment did not complete")
			}
		default:
			return s, fmt.Errorf("unknown dialogue stage %q", s.Stage)
		}
	}
	return s, nil
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
