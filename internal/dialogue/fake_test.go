package dialogue

import (
	"context"
	"fmt"
	"sync"

	"github.com/pavelanni/socratic/internal/model"
	"github.com/pavelanni/socratic/internal/persona"
)

const validAssessmentJSON = `{
  "mental_model_development": {
    "initial_state": "vague",
    "final_state": "solid",
    "key_breakthroughs": ["bias vs variance"],
    "persistent_misconceptions": []
  },
  "learning_patterns": {"preferred_learning_style": "examples"},
  "cognitive_skills_demonstrated": {"analytical_thinking": "good"},
  "persona_consistency": {"trait_alignment": "high"},
  "recommendations": {"next_learning_steps": ["regularization"]},
  "overall_assessment": {
    "learning_effectiveness": "good",
    "engagement_level": "high",
    "readiness_for_advanced_topics": "partial",
    "summary": "Learned the core idea."
  }
}`

func deanJSON(verdict, understanding, correctness string) string {
	return fmt.Sprintf(`{"verdict": %q, "understanding_level": %q, "answer_correctness": %q, "reasoning": "r", "key_insights_gained": ["i"], "remaining_gaps": []}`,
		verdict, understanding, correctness)
}

// fakeAdapters records every request and answers with scripted functions.
type fakeAdapters struct {
	mu sync.Mutex

	student func(StudentRequest) (string, error)
	teacher func(TeacherRequest) (string, error)
	dean    func(DeanRequest) (string, error)
	assess  func(AssessmentRequest) (string, error)

	studentReqs []StudentRequest
	teacherReqs []TeacherRequest
	deanReqs    []DeanRequest
	assessReqs  []AssessmentRequest
}

func newFakeAdapters() *fakeAdapters {
	return &fakeAdapters{
		student: func(r StudentRequest) (string, error) {
			return fmt.Sprintf("student answer %d", len(r.PriorHistory)/2+1), nil
		},
		teacher: func(r TeacherRequest) (string, error) {
			return fmt.Sprintf("teacher question %d", r.Iteration), nil
		},
		dean: func(DeanRequest) (string, error) {
			return deanJSON("continue", "developing", "partially_correct"), nil
		},
		assess: func(AssessmentRequest) (string, error) {
			return validAssessmentJSON, nil
		},
	}
}

func (f *fakeAdapters) Student(_ context.Context, r StudentRequest) (string, error) {
	f.mu.Lock()
	f.studentReqs = append(f.studentReqs, r)
	f.mu.Unlock()
	return f.student(r)
}

func (f *fakeAdapters) Teacher(_ context.Context, r TeacherRequest) (string, error) {
	f.mu.Lock()
	f.teacherReqs = append(f.teacherReqs, r)
	f.mu.Unlock()
	return f.teacher(r)
}

func (f *fakeAdapters) Dean(_ context.Context, r DeanRequest) (string, error) {
	f.mu.Lock()
	f.deanReqs = append(f.deanReqs, r)
	f.mu.Unlock()
	return f.dean(r)
}

func (f *fakeAdapters) Assess(_ context.Context, r AssessmentRequest) (string, error) {
	f.mu.Lock()
	f.assessReqs = append(f.assessReqs, r)
	f.mu.Unlock()
	return f.assess(r)
}

func testConfig(maxIterations int) model.RunConfig {
	return model.RunConfig{
		RunID:         "run-1",
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		MaxIterations: maxIterations,
	}
}

func newTestOrchestrator(f *fakeAdapters) *Orchestrator {
	return New(f, persona.Default())
}

func testRow() model.QuestionRow {
	return model.QuestionRow{
		Question:   "What is the bias-variance tradeoff?",
		Category:   "ml",
		Difficulty: "medium",
	}
}

// stateAt builds a state in the awaiting-dean stage of the given iteration
// with a complete transcript for all rounds so far.
func stateAt(iteration, maxIterations int) model.ConversationState {
	p, _ := persona.Default().Lookup(model.PersonaMethodical)
	s := model.ConversationState{
		Question:      testRow().Question,
		Persona:       p,
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		Iteration:     iteration,
		MaxIterations: maxIterations,
		Stage:         model.StageAwaitingDean,
	}
	for i := 1; i <= iteration; i++ {
		s = s.WithTurn(model.Turn{Role: model.RoleStudent, Content: fmt.Sprintf("s%d", i), Iteration: i})
		s = s.WithTurn(model.Turn{Role: model.RoleTeacher, Content: fmt.Sprintf("t%d", i), Iteration: i})
	}
	return s
}

// memSink collects records in memory.
type memSink struct {
	mu        sync.Mutex
	dialogues []model.DialogueRecord
	skips     []model.SkipNotice
	err       error
}

func (m *memSink) AppendDialogue(_ context.Context, rec model.DialogueRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.dialogues = append(m.dialogues, rec)
	return nil
}

func (m *memSink) AppendSkip(_ context.Context, n model.SkipNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.skips = append(m.skips, n)
	return nil
}
