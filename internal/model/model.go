package model

import "time"

// PersonaName identifies a simulated student persona.
type PersonaName string

const (
	PersonaCuriousNovice PersonaName = "Curious Novice"
	PersonaOverconfident PersonaName = "Overconfident"
	PersonaMethodical    PersonaName = "Methodical"
	PersonaStruggler     PersonaName = "Struggler"
	PersonaFastLearner   PersonaName = "Fast Learner"
	PersonaDistracted    PersonaName = "Distracted"
)

// TraitLevel is an ordinal persona trait value.
type TraitLevel string

const (
	TraitLow    TraitLevel = "Low"
	TraitMedium TraitLevel = "Medium"
	TraitHigh   TraitLevel = "High"
)

// Valid reports whether l is one of the three trait levels.
func (l TraitLevel) Valid() bool {
	switch l {
	case TraitLow, TraitMedium, TraitHigh:
		return true
	}
	return false
}

// Traits holds the five trait dimensions of a persona.
type Traits struct {
	ProblemUnderstanding     TraitLevel `json:"problem_understanding" yaml:"problem_understanding"`
	InstructionUnderstanding TraitLevel `json:"instruction_understanding" yaml:"instruction_understanding"`
	Calculation              TraitLevel `json:"calculation" yaml:"calculation"`
	KnowledgeMastery         TraitLevel `json:"knowledge_mastery" yaml:"knowledge_mastery"`
	ThirstForLearning        TraitLevel `json:"thirst_for_learning" yaml:"thirst_for_learning"`
}

// Persona is a named bundle of trait levels.
type Persona struct {
	Name   PersonaName `json:"name"`
	Traits Traits      `json:"traits"`
}

// Role represents a transcript role.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Turn is one role's contribution to the transcript.
type Turn struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Iteration int    `json:"iteration"`
}

// Verdict controls loop continuation. The zero value means unset.
type Verdict string

const (
	VerdictContinue     Verdict = "continue"
	VerdictSatisfactory Verdict = "satisfactory"
	VerdictMaxReached   Verdict = "max_reached"
)

// Terminal reports whether the verdict ends the dialogue.
func (v Verdict) Terminal() bool {
	return v == VerdictSatisfactory || v == VerdictMaxReached
}

// UnderstandingLevel is the dean's ordinal assessment of comprehension.
type UnderstandingLevel string

const (
	UnderstandingPoor       UnderstandingLevel = "poor"
	UnderstandingDeveloping UnderstandingLevel = "developing"
	UnderstandingGood       UnderstandingLevel = "good"
	UnderstandingExcellent  UnderstandingLevel = "excellent"
)

// Correctness is the dean's judgement of the latest answer.
type Correctness string

const (
	CorrectnessCorrect          Correctness = "correct"
	CorrectnessPartiallyCorrect Correctness = "partially_correct"
	CorrectnessIncorrect        Correctness = "incorrect"
	CorrectnessUnknown          Correctness = "unknown"
)

// DeanVerdict is the dean's structured evaluation of one round.
type DeanVerdict struct {
	Verdict           Verdict            `json:"verdict"`
	Understanding     UnderstandingLevel `json:"understanding_level"`
	AnswerCorrectness Correctness        `json:"answer_correctness"`
	Reasoning         string             `json:"reasoning"`
	Insights          []string           `json:"key_insights_gained"`
	Gaps              []string           `json:"remaining_gaps"`
}

// Stage is a state of the dialogue state machine.
type Stage string

const (
	StageAwaitingStudent    Stage = "awaiting_student"
	StageAwaitingTeacher    Stage = "awaiting_teacher"
	StageAwaitingDean       Stage = "awaiting_dean"
	StageAwaitingAssessment Stage = "awaiting_assessment"
	StageTerminal           Stage = "terminal"
)

// QuestionRow is one input question.
type QuestionRow struct {
	ID         int64  `json:"id,omitempty"`
	Question   string `json:"question"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// RunConfig holds the per-run batch settings.
type RunConfig struct {
	RunID         string
	Provider      string
	Model         string
	MaxIterations int
	PromptVariant string
}

// RunInfo describes a stored batch run.
type RunInfo struct {
	ID            string     `json:"id"`
	Provider      string     `json:"provider"`
	Model         string     `json:"model"`
	MaxIterations int        `json:"max_iterations"`
	PromptVariant string     `json:"prompt_variant"`
	InputPath     string     `json:"input_path"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Completed     int        `json:"completed"`
	Skipped       int        `json:"skipped"`
}
