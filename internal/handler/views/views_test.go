package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/pavelanni/socratic/internal/i18n"
	"github.com/pavelanni/socratic/internal/model"
)

func renderString(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestPages(t *testing.T) {
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := model.DialogueRecord{
		ID:       7,
		RunID:    "run 1",
		Question: `Is <b>x</b> & "y" equal?`,
		Persona:  model.PersonaStruggler,
		History: []model.Turn{
			{Role: model.RoleStudent, Content: "<script>alert(1)</script>", Iteration: 1},
			{Role: model.RoleTeacher, Content: "Why?", Iteration: 1},
		},
		FinalVerdict:       model.VerdictSatisfactory,
		UnderstandingLevel: model.UnderstandingGood,
		TotalIterations:    1,
		Dean:               &model.DeanVerdict{AnswerCorrectness: model.CorrectnessCorrect, Insights: []string{"ratio"}},
		Assessment: &model.Assessment{
			Overall: &model.OverallAssessment{Summary: "Solid.", EngagementLevel: "high"},
		},
	}

	tests := []struct {
		name    string
		c       templ.Component
		want    []string
		notWant []string
	}{
		{
			name: "no runs",
			c:    RunsPage("", nil),
			want: []string{"<!doctype html>", "<title>Runs</title>", "No runs yet"},
		},
		{
			name: "runs",
			c: RunsPage("/reports", []model.RunInfo{
				{ID: "run 1", Provider: "ollama", Model: "llama3", MaxIterations: 4, StartedAt: started, Completed: 3, Skipped: 1},
			}),
			want: []string{`<a href="/reports/">`, `href="/reports/runs/run%201"`, "<td>4</td>", "<td>2026-03-01 12:00</td>", "<td>-</td>", "<th>Provider</th>"},
		},
		{
			name: "run",
			c: RunPage("", model.RunExport{
				Run:       model.RunInfo{ID: "run 1", Provider: "ollama", Model: "llama3", MaxIterations: 4, PromptVariant: "strict"},
				Dialogues: []model.DialogueRecord{rec},
			}),
			want:    []string{"Run run 1", "ollama / llama3", "1 dialogue", `href="/dialogues/7"`, "Is &lt;b&gt;x&lt;/b&gt; &amp; &#34;y&#34; equal?"},
			notWant: []string{"<b>x</b>", "skipped question"},
		},
		{
			name: "dialogue",
			c:    DialoguePage("", rec),
			want: []string{
				`data-role="student"`, `data-role="teacher"`, "Student, round 1", "Teacher, round 1",
				"&lt;script&gt;alert(1)&lt;/script&gt;", ": correct</p>", "<li>ratio</li>", "<p>-</p>", "Solid.",
			},
			notWant: []string{"<script>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := renderString(t, context.Background(), tt.c)
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Errorf("body missing %q", w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(body, w) {
					t.Errorf("body should not contain %q", w)
				}
			}
			if !strings.HasSuffix(body, "</body></html>") {
				t.Error("layout not closed")
			}
		})
	}
}

func TestPagesLocalized(t *testing.T) {
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	ctx := i18n.WithLocalizer(context.Background(), i18n.NewLocalizer("ru"))
	body := renderString(t, ctx, RunPage("", model.RunExport{Run: model.RunInfo{ID: "r1"}}))
	for _, w := range []string{"Запуск r1", "Отчёты Socratic"} {
		if !strings.Contains(body, w) {
			t.Errorf("body missing %q", w)
		}
	}
}

func TestRenderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	if err := RunsPage("", nil).Render(ctx, &buf); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}
