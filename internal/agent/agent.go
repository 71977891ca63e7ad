// Package agent implements the dialogue roles on top of the prompt
// templates and the llm backends.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/socratic/internal/dialogue"
	"github.com/pavelanni/socratic/internal/llm"
	"github.com/pavelanni/socratic/internal/llm/prompts"
)

const (
	studentSystem    = "You are role-playing a student. Answer in character and never mention that you are an AI."
	teacherSystem    = "You are a patient Socratic tutor. Guide with questions, never lecture."
	deanSystem       = "You are an academic dean. Respond ONLY with a JSON object, no prose and no code fences."
	assessmentSystem = "You are a cognitive scientist. Respond ONLY with a JSON object, no prose and no code fences."
)

// Temperatures per role.
const (
	studentTemperature    = 0.8
	teacherTemperature    = 0.5
	deanTemperature       = 0.1
	assessmentTemperature = 0.3
)

// Generator runs one request on a provider and model.
type Generator interface {
	Generate(ctx context.Context, provider, model string, req llm.Request) (string, error)
}

// Roles renders role prompts and sends them to the backend named in each
// request.
type Roles struct {
	gen     Generator
	prompts *prompts.Set
	variant prompts.PromptVariant
}

var _ dialogue.Adapters = (*Roles)(nil)

// New creates the role adapters. The dean uses the given prompt variant.
func New(gen Generator, set *prompts.Set, variant prompts.PromptVariant) (*Roles, error) {
	if !prompts.IsValidVariant(string(variant)) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	return &Roles{gen: gen, prompts: set, variant: variant}, nil
}

func (r *Roles) Student(ctx context.Context, req dialogue.StudentRequest) (string, error) {
	p, err := r.prompts.Student(req.Question, req.Persona, req.PriorHistory, req.LastTeacher)
	if err != nil {
		return "", fmt.Errorf("render student prompt: %w", err)
	}
	return r.call(ctx, "student", req.Backend, llm.Request{
		System:      studentSystem,
		Prompt:      p,
		Temperature: studentTemperature,
	})
}

func (r *Roles) Teacher(ctx context.Context, req dialogue.TeacherRequest) (string, error) {
	p, err := r.prompts.Teacher(req.Question, req.LatestStudent, req.History, req.Iteration)
	if err != nil {
		return "", fmt.Errorf("render teacher prompt: %w", err)
	}
	return r.call(ctx, "teacher", req.Backend, llm.Request{
		System:      teacherSystem,
		Prompt:      p,
		Temperature: teacherTemperature,
	})
}

func (r *Roles) Dean(ctx context.Context, req dialogue.DeanRequest) (string, error) {
	p, err := r.prompts.Dean(r.variant, req.Question, req.History, req.Iteration, req.MaxIterations)
	if err != nil {
		return "", fmt.Errorf("render dean prompt: %w", err)
	}
	return r.call(ctx, "dean", req.Backend, llm.Request{
		System:      deanSystem,
		Prompt:      p,
		JSON:        true,
		Temperature: deanTemperature,
	})
}

func (r *Roles) Assess(ctx context.Context, req dialogue.AssessmentRequest) (string, error) {
	p, err := r.prompts.Assessment(req.Persona, req.Understanding, req.History)
	if err != nil {
		return "", fmt.Errorf("render assessment prompt: %w", err)
	}
	return r.call(ctx, "assessment", req.Backend, llm.Request{
		System:      assessmentSystem,
		Prompt:      p,
		JSON:        true,
		Temperature: assessmentTemperature,
	})
}

func (r *Roles) call(ctx context.Context, role string, b dialogue.Backend, req llm.Request) (string, error) {
	out, err := r.gen.Generate(ctx, b.Provider, b.Model, req)
	if err != nil {
		return "", err
	}
	slog.Debug("role response", "role", role, "provider", b.Provider, "model", b.Model, "raw", out)
	return out, nil
}
