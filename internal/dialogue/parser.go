package dialogue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/pavelanni/socratic/internal/model"
)

const maxLoggedRaw = 2000

// rawDean mirrors the dean's wire format. Required fields are pointers so
// that absence can be told apart from an empty value.
type rawDean struct {
	Verdict       *string  `json:"verdict"`
	Understanding *string  `json:"understanding_level"`
	Correctness   *string  `json:"answer_correctness"`
	Reasoning     string   `json:"reasoning"`
	Insights      []string `json:"key_insights_gained"`
	Gaps          []string `json:"remaining_gaps"`
}

// DecodeDean strictly decodes a dean response. Missing required fields and
// values outside the closed enums are decode failures.
func DecodeDean(raw string) (model.DeanVerdict, error) {
	var r rawDean
	if err := decodeObject(raw, &r); err != nil {
		return model.DeanVerdict{}, &ParseError{Kind: ParseKindDean, Raw: raw, Err: err}
	}

	var missing []string
	if r.Verdict == nil {
		missing = append(missing, "verdict")
	}
	if r.Understanding == nil {
		missing = append(missing, "understanding_level")
	}
	if r.Correctness == nil {
		missing = append(missing, "answer_correctness")
	}
	if len(missing) > 0 {
		return model.DeanVerdict{}, &ParseError{
			Kind: ParseKindDean,
			Raw:  raw,
			Err:  fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")),
		}
	}

	verdict, err := parseVerdict(*r.Verdict)
	if err != nil {
		return model.DeanVerdict{}, &ParseError{Kind: ParseKindDean, Raw: raw, Err: err}
	}
	level, err := parseUnderstanding(*r.Understanding)
	if err != nil {
		return model.DeanVerdict{}, &ParseError{Kind: ParseKindDean, Raw: raw, Err: err}
	}
	correctness, err := parseCorrectness(*r.Correctness)
	if err != nil {
		return model.DeanVerdict{}, &ParseError{Kind: ParseKindDean, Raw: raw, Err: err}
	}

	return model.DeanVerdict{
		Verdict:           verdict,
		Understanding:     level,
		AnswerCorrectness: correctness,
		Reasoning:         r.Reasoning,
		Insights:          nonNil(r.Insights),
		Gaps:              nonNil(r.Gaps),
	}, nil
}

// DecodeAssessment strictly decodes a cognitive-state report. The
// mental_model_development and overall_assessment sections are required.
func DecodeAssessment(raw string) (model.Assessment, error) {
	var a model.Assessment
	if err := decodeObject(raw, &a); err != nil {
		return model.Assessment{}, &ParseError{Kind: ParseKindAssessment, Raw: raw, Err: err}
	}
	var missing []string
	if a.MentalModel == nil {
		missing = append(missing, "mental_model_development")
	}
	if a.Overall == nil {
		missing = append(missing, "overall_assessment")
	}
	if len(missing) > 0 {
		return model.Assessment{}, &ParseError{
			Kind: ParseKindAssessment,
			Raw:  raw,
			Err:  fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")),
		}
	}
	a.Error = ""
	return a, nil
}

// ParseAssessment decodes a report, substituting the fixed fallback report
// when decoding fails. It never fails.
func ParseAssessment(raw string, p model.Persona, final model.UnderstandingLevel) model.Assessment {
	a, err := DecodeAssessment(raw)
	if err != nil {
		reportParseFailure(err)
		return FallbackAssessment(p, final, err)
	}
	return a
}

// FallbackAssessment is the deterministic report used when the assessment
// response cannot be decoded.
func FallbackAssessment(p model.Persona, final model.UnderstandingLevel, cause error) model.Assessment {
	finalText := string(final)
	if finalText == "" {
		finalText = "unknown"
	}
	errText := ""
	if cause != nil {
		errText = cause.Error()
	}
	return model.Assessment{
		MentalModel: &model.MentalModelDevelopment{
			InitialState:             fmt.Sprintf("Student began with %s knowledge level", strings.ToLower(string(p.Traits.KnowledgeMastery))),
			FinalState:               "Final understanding: " + finalText,
			KeyBreakthroughs:         []string{"Assessment incomplete due to parsing error"},
			PersistentMisconceptions: []string{"Unable to assess"},
		},
		LearningPatterns: model.LearningPatterns{
			PreferredLearningStyle: fmt.Sprintf("Based on %s persona characteristics", p.Name),
			ResponseToGuidance:     "Unable to assess due to error",
			QuestionAskingBehavior: "Unknown",
			ConfidenceProgression:  "Unable to track",
		},
		CognitiveSkills: model.CognitiveSkills{
			AnalyticalThinking:    "unknown",
			ConceptualConnections: "unknown",
			SelfReflection:        "unknown",
			KnowledgeApplication:  "unknown",
		},
		PersonaConsistency: model.PersonaConsistency{
			TraitAlignment:     "Unable to assess",
			AuthenticBehaviors: []string{"Assessment incomplete"},
			PersonaDevelopment: "Unknown",
		},
		Recommendations: model.Recommendations{
			NextLearningSteps:  []string{"Retry assessment with proper JSON formatting"},
			TeachingStrategies: []string{"Standard Socratic method"},
			KnowledgeGaps:      []string{"Assessment incomplete"},
		},
		Overall: &model.OverallAssessment{
			LearningEffectiveness:      "unknown",
			EngagementLevel:            "unknown",
			ReadinessForAdvancedTopics: "unknown",
			Summary:                    "Cognitive assessment incomplete due to technical error.",
		},
		Error: errText,
	}
}

func decodeObject(raw string, v any) error {
	text := StripCodeFences(raw)
	if text == "" {
		return errors.New("empty response")
	}
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

// StripCodeFences removes a surrounding markdown code fence, if any.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		// Drop the language tag line (```json).
		s = s[nl+1:]
	} else if s != "" && unicode.IsLetter(rune(s[0])) {
		// Tag and body on one line: ```json {...}```
		if i := strings.IndexAny(s, "{["); i >= 0 {
			s = s[i:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func parseVerdict(s string) (model.Verdict, error) {
	switch v := model.Verdict(normalizeEnum(s)); v {
	case model.VerdictContinue, model.VerdictSatisfactory, model.VerdictMaxReached:
		return v, nil
	}
	return "", fmt.Errorf("invalid verdict %q", s)
}

func parseUnderstanding(s string) (model.UnderstandingLevel, error) {
	switch l := model.UnderstandingLevel(normalizeEnum(s)); l {
	case model.UnderstandingPoor, model.UnderstandingDeveloping, model.UnderstandingGood, model.UnderstandingExcellent:
		return l, nil
	}
	return "", fmt.Errorf("invalid understanding_level %q", s)
}

func parseCorrectness(s string) (model.Correctness, error) {
	switch c := model.Correctness(normalizeEnum(s)); c {
	case model.CorrectnessCorrect, model.CorrectnessPartiallyCorrect, model.CorrectnessIncorrect, model.CorrectnessUnknown:
		return c, nil
	}
	return "", fmt.Errorf("invalid answer_correctness %q", s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// reportParseFailure logs a decode failure with the offending text.
func reportParseFailure(err error) {
	var pe *ParseError
	if !errors.As(err, &pe) {
		slog.Warn("response parse failed", "error", err)
		return
	}
	slog.Warn("response parse failed, using fallback",
		"kind", pe.Kind,
		"error", pe.Err,
		"raw", excerpt(pe.Raw, maxLoggedRaw),
	)
}
