// Package prompts renders the role prompts from embedded text templates.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/pavelanni/socratic/internal/model"
)

//go:embed templates/*.tmpl
var embedded embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const (
	maxContentRunes     = 10000
	studentContextTurns = 4
	studentExcerptRunes = 200
	historyExcerptRunes = 150
	deanRounds          = 2
)

// PromptVariant selects how strictly the dean judges answers.
type PromptVariant string

const (
	PromptStrict   PromptVariant = "strict"
	PromptStandard PromptVariant = "standard"
	PromptLenient  PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// Line is one labelled entry of a conversation excerpt.
type Line struct {
	Label   string
	Content string
}

// Round is one student/teacher exchange shown to the dean.
type Round struct {
	Number  int
	Student string
	Teacher string
}

// StudentData holds template data for student prompts.
type StudentData struct {
	Question        string
	Persona         model.Persona
	Context         []Line
	TeacherGuidance string
}

// TeacherData holds template data for the teacher prompt.
type TeacherData struct {
	Question      string
	LatestStudent string
	Context       []Line
	Iteration     int
}

// DeanData holds template data for dean prompts.
type DeanData struct {
	Question      string
	LatestStudent string
	Rounds        []Round
	Iteration     int
	MaxIterations int
}

// AssessmentData holds template data for the assessment prompt.
type AssessmentData struct {
	Persona            model.Persona
	FinalUnderstanding string
	Journey            []Line
}

// Set is a parsed set of role templates.
type Set struct {
	studentInitial  *template.Template
	studentContinue *template.Template
	teacher         *template.Template
	assessment      *template.Template
	dean            map[PromptVariant]*template.Template
}

var (
	defaultOnce sync.Once
	defaultSet  *Set
	defaultErr  error
)

// Default returns the templates embedded in the binary. They are parsed
// once.
func Default() (*Set, error) {
	defaultOnce.Do(func() {
		defaultSet, defaultErr = Load(embedded)
	})
	return defaultSet, defaultErr
}

// Load parses the templates under templates/ in fsys.
func Load(fsys fs.FS) (*Set, error) {
	parse := func(name string, shared ...string) (*template.Template, error) {
		files := append([]string{"templates/" + name + ".tmpl"}, lo.Map(shared, func(s string, _ int) string {
			return "templates/" + s + ".tmpl"
		})...)
		t, err := template.New(name + ".tmpl").Option("missingkey=error").ParseFS(fsys, files...)
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
		}
		return t, nil
	}

	s := &Set{dean: make(map[PromptVariant]*template.Template)}
	var err error
	if s.studentInitial, err = parse("student_initial", "traits"); err != nil {
		return nil, err
	}
	if s.studentContinue, err = parse("student_continue", "traits"); err != nil {
		return nil, err
	}
	if s.teacher, err = parse("teacher"); err != nil {
		return nil, err
	}
	if s.assessment, err = parse("assessment", "traits"); err != nil {
		return nil, err
	}
	for v := range validVariants {
		t, err := parse("dean_"+string(v), "dean_common")
		if err != nil {
			return nil, err
		}
		s.dean[v] = t
	}
	return s, nil
}

// Student builds the student prompt: the initial prompt when there is no
// teacher guidance yet, otherwise the continuation prompt with the last
// four history entries.
func (s *Set) Student(question string, p model.Persona, history []model.Turn, lastTeacher string) (string, error) {
	if lastTeacher == "" || len(history) == 0 {
		return execute(s.studentInitial, StudentData{Question: question, Persona: p})
	}
	recent := history[max(len(history)-studentContextTurns, 0):]
	return execute(s.studentContinue, StudentData{
		Question: question,
		Persona:  p,
		Context: lo.Map(recent, func(t model.Turn, _ int) Line {
			return Line{Label: roleLabel(t.Role), Content: Excerpt(t.Content, studentExcerptRunes)}
		}),
		TeacherGuidance: lastTeacher,
	})
}

// Teacher builds the teacher prompt. Earlier turns are shown once the
// conversation has more than one round.
func (s *Set) Teacher(question, latestStudent string, history []model.Turn, iteration int) (string, error) {
	data := TeacherData{
		Question:      question,
		LatestStudent: Sanitize(latestStudent),
		Iteration:     iteration,
	}
	if len(history) > 2 {
		data.Context = lo.Map(history, func(t model.Turn, _ int) Line {
			return Line{
				Label:   fmt.Sprintf("%s (Round %d)", roleLabel(t.Role), t.Iteration),
				Content: Excerpt(t.Content, historyExcerptRunes),
			}
		})
	}
	return execute(s.teacher, data)
}

// Dean builds the dean prompt for the given variant with the last two
// rounds of the conversation.
func (s *Set) Dean(variant PromptVariant, question string, history []model.Turn, iteration, maxIterations int) (string, error) {
	t, ok := s.dean[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	rounds := pairRounds(history)
	latest := ""
	if len(rounds) > 0 {
		latest = rounds[len(rounds)-1].Student
	}
	if len(rounds) > deanRounds {
		rounds = rounds[len(rounds)-deanRounds:]
	}
	return execute(t, DeanData{
		Question:      question,
		LatestStudent: latest,
		Rounds:        rounds,
		Iteration:     iteration,
		MaxIterations: maxIterations,
	})
}

// Assessment builds the cognitive-state prompt.
func (s *Set) Assessment(p model.Persona, final model.UnderstandingLevel, history []model.Turn) (string, error) {
	students := lo.Filter(history, func(t model.Turn, _ int) bool { return t.Role == model.RoleStudent })
	return execute(s.assessment, AssessmentData{
		Persona:            p,
		FinalUnderstanding: string(final),
		Journey: lo.Map(students, func(t model.Turn, i int) Line {
			return Line{Label: fmt.Sprintf("Round %d", i+1), Content: Excerpt(t.Content, historyExcerptRunes)}
		}),
	})
}

// pairRounds zips student turns with the teacher turn that follows them.
// A trailing student turn without a reply is dropped.
func pairRounds(history []model.Turn) []Round {
	var rounds []Round
	for i := 0; i+1 < len(history); i++ {
		if history[i].Role != model.RoleStudent || history[i+1].Role != model.RoleTeacher {
			continue
		}
		rounds = append(rounds, Round{
			Number:  history[i].Iteration,
			Student: Sanitize(history[i].Content),
			Teacher: history[i+1].Content,
		})
		i++
	}
	return rounds
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func roleLabel(r model.Role) string {
	if r == model.RoleTeacher {
		return "Teacher"
	}
	return "Student"
}

// Excerpt shortens s to n runes, marking the cut with "...".
func Excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// Sanitize strips tags a student turn could use to break out of its
// delimiters and caps its length.
func Sanitize(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxContentRunes {
		answer = string([]rune(answer)[:maxContentRunes]) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
