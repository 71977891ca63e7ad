package dialogue

import (
	"context"

	"github.com/pavelanni/socratic/internal/model"
)

// Backend selects the text-generation provider and model for a call.
type Backend struct {
	Provider string
	Model    string
}

// StudentRequest is the input of the student role.
type StudentRequest struct {
	Backend
	Question     string
	Persona      model.Persona
	PriorHistory []model.Turn
	// LastTeacher is empty on the first round.
	LastTeacher string
}

// TeacherRequest is the input of the teacher role.
type TeacherRequest struct {
	Backend
	Question      string
	LatestStudent string
	History       []model.Turn
	Iteration     int
}

// DeanRequest is the input of the dean role.
type DeanRequest struct {
	Backend
	Question      string
	History       []model.Turn
	Iteration     int
	MaxIterations int
}

// AssessmentRequest is the input of the final cognitive-state report.
type AssessmentRequest struct {
	Backend
	Persona       model.Persona
	History       []model.Turn
	Understanding model.UnderstandingLevel
}

// Adapters generates the text for each role. Implementations own prompt
// wording, transport and retries. The Dean and Assess results are nominally
// JSON and are decoded by the parser.
type Adapters interface {
	Student(ctx context.Context, req StudentRequest) (string, error)
	Teacher(ctx context.Context, req TeacherRequest) (string, error)
	Dean(ctx context.Context, req DeanRequest) (string, error)
	Assess(ctx context.Context, req AssessmentRequest) (string, error)
}
