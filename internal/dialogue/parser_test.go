package dialogue

import (
	"errors"
	"strings"
	"testing"

	"github.com/pavelanni/socratic/internal/model"
	"github.com/pavelanni/socratic/internal/persona"
)

func TestDecodeDean(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantErr     bool
		wantVerdict model.Verdict
		wantLevel   model.UnderstandingLevel
		wantCorrect model.Correctness
	}{
		{
			name:        "valid",
			raw:         deanJSON("continue", "developing", "incorrect"),
			wantVerdict: model.VerdictContinue,
			wantLevel:   model.UnderstandingDeveloping,
			wantCorrect: model.CorrectnessIncorrect,
		},
		{
			name:        "code fenced",
			raw:         "```json\n" + deanJSON("satisfactory", "good", "correct") + "\n```",
			wantVerdict: model.VerdictSatisfactory,
			wantLevel:   model.UnderstandingGood,
			wantCorrect: model.CorrectnessCorrect,
		},
		{
			name:        "fence tag on one line",
			raw:         "```json " + deanJSON("satisfactory", "excellent", "correct") + "```",
			wantVerdict: model.VerdictSatisfactory,
			wantLevel:   model.UnderstandingExcellent,
			wantCorrect: model.CorrectnessCorrect,
		},
		{
			name:        "loose enum spelling",
			raw:         `{"verdict": "Max Reached", "understanding_level": "Excellent", "answer_correctness": "partially-correct"}`,
			wantVerdict: model.VerdictMaxReached,
			wantLevel:   model.UnderstandingExcellent,
			wantCorrect: model.CorrectnessPartiallyCorrect,
		},
		{name: "empty", raw: "", wantErr: true},
		{name: "whitespace", raw: "  \n\t", wantErr: true},
		{name: "prose", raw: "The student did well.", wantErr: true},
		{name: "truncated", raw: `{"verdict": "continue", "understanding_level": "go`, wantErr: true},
		{name: "missing verdict", raw: `{"understanding_level": "good", "answer_correctness": "correct"}`, wantErr: true},
		{name: "missing correctness", raw: `{"verdict": "continue", "understanding_level": "good"}`, wantErr: true},
		{name: "null object", raw: `null`, wantErr: true},
		{name: "array", raw: `[1, 2]`, wantErr: true},
		{name: "unknown verdict", raw: deanJSON("maybe", "good", "correct"), wantErr: true},
		{name: "unknown level", raw: deanJSON("continue", "stellar", "correct"), wantErr: true},
		{name: "unknown correctness", raw: deanJSON("continue", "good", "mostly"), wantErr: true},
		{name: "trailing text", raw: deanJSON("continue", "good", "correct") + " and more", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DecodeDean(tt.raw)
			if tt.wantErr {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("expected ParseError, got %v", err)
				}
				if pe.Kind != ParseKindDean {
					t.Errorf("expected kind dean, got %q", pe.Kind)
				}
				if pe.Raw != tt.raw {
					t.Errorf("ParseError should carry the raw text")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDean: %v", err)
			}
			if v.Verdict != tt.wantVerdict {
				t.Errorf("verdict = %q, want %q", v.Verdict, tt.wantVerdict)
			}
			if v.Understanding != tt.wantLevel {
				t.Errorf("understanding = %q, want %q", v.Understanding, tt.wantLevel)
			}
			if v.AnswerCorrectness != tt.wantCorrect {
				t.Errorf("correctness = %q, want %q", v.AnswerCorrectness, tt.wantCorrect)
			}
			if v.Insights == nil || v.Gaps == nil {
				t.Error("insights and gaps should never be nil")
			}
		})
	}
}

func TestDecideNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"{",
		"}",
		"```",
		"```json\n```",
		`{"verdict": null, "understanding_level": null, "answer_correctness": null}`,
		`{"verdict": 1, "understanding_level": 2, "answer_correctness": 3}`,
		`{"verdict": "continue"}`,
		`"just a string"`,
		strings.Repeat("x", 5000),
		"\x00\xff\xfe",
	}
	for _, raw := range inputs {
		for iteration := 1; iteration <= 6; iteration++ {
			v := Decide(raw, iteration, 5)
			if v.Verdict == "" || v.Understanding == "" || v.AnswerCorrectness == "" {
				t.Fatalf("Decide(%q, %d) returned incomplete verdict %+v", raw, iteration, v)
			}
		}
	}
}

func TestDecodeAssessment(t *testing.T) {
	a, err := DecodeAssessment(validAssessmentJSON)
	if err != nil {
		t.Fatalf("DecodeAssessment: %v", err)
	}
	if a.Overall == nil || a.Overall.Summary != "Learned the core idea." {
		t.Errorf("unexpected overall: %+v", a.Overall)
	}
	if a.MentalModel == nil || a.MentalModel.FinalState != "solid" {
		t.Errorf("unexpected mental model: %+v", a.MentalModel)
	}

	_, err = DecodeAssessment(`{"overall_assessment": {"summary": "x"}}`)
	if err == nil || !strings.Contains(err.Error(), "mental_model_development") {
		t.Errorf("expected missing mental_model_development, got %v", err)
	}
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != ParseKindAssessment {
		t.Errorf("expected an assessment ParseError, got %v", err)
	}
}

func TestParseAssessmentFallback(t *testing.T) {
	p, err := persona.Default().Lookup(model.PersonaStruggler)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	for _, raw := range []string{"", "not json", `{"mental_model_development": {}}`, `{"overall_assessment": `} {
		a := ParseAssessment(raw, p, model.UnderstandingDeveloping)
		if a.MentalModel == nil || a.Overall == nil {
			t.Fatalf("fallback for %q is not well formed", raw)
		}
		if a.Error == "" {
			t.Errorf("fallback for %q should carry the error", raw)
		}
		if a.MentalModel.InitialState != "Student began with low knowledge level" {
			t.Errorf("unexpected initial state %q", a.MentalModel.InitialState)
		}
		if a.MentalModel.FinalState != "Final understanding: developing" {
			t.Errorf("unexpected final state %q", a.MentalModel.FinalState)
		}
		if a.LearningPatterns.PreferredLearningStyle != "Based on Struggler persona characteristics" {
			t.Errorf("unexpected learning style %q", a.LearningPatterns.PreferredLearningStyle)
		}
	}

	a := FallbackAssessment(p, "", nil)
	if a.MentalModel.FinalState != "Final understanding: unknown" {
		t.Errorf("unset understanding should read unknown, got %q", a.MentalModel.FinalState)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"```{\"a\":1}```", `{"a":1}`},
		{"  \n```JSON\n{}\n```  ", `{}`},
		{"```json {\"a\":1}```", `{"a":1}`},
		{"```json{\"a\":\n1}\n```", "{\"a\":\n1}"},
	}
	for _, tt := range tests {
		if got := StripCodeFences(tt.in); got != tt.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
