package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/socratic/internal/model"
)

var testTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.CreateRun(model.RunInfo{
		ID:            id,
		Provider:      "gemini",
		Model:         "gemini",
		MaxIterations: 5,
		PromptVariant: "standard",
		InputPath:     "questions.csv",
		StartedAt:     testTime,
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
}

func testRecord(runID, question string) model.DialogueRecord {
	return model.DialogueRecord{
		RunID:      runID,
		Question:   question,
		Category:   "physics",
		Difficulty: "easy",
		Persona:    model.PersonaMethodical,
		Provider:   "gemini",
		Model:      "gemini",
		History: []model.Turn{
			{Role: model.RoleStudent, Content: "It is disorder.", Iteration: 1},
			{Role: model.RoleTeacher, Content: "What does disorder mean here?", Iteration: 1},
		},
		FinalVerdict:       model.VerdictSatisfactory,
		UnderstandingLevel: model.UnderstandingGood,
		TotalIterations:    1,
		Dean: &model.DeanVerdict{
			Verdict:           model.VerdictSatisfactory,
			Understanding:     model.UnderstandingGood,
			AnswerCorrectness: model.CorrectnessCorrect,
			Reasoning:         "clear",
			Insights:          []string{"microstates"},
			Gaps:              []string{},
		},
		Summary: &model.Summary{
			TotalIterations:     1,
			ConversationLength:  2,
			LearningProgression: []string{"It is disorder."},
		},
		CompletedAt: testTime.Add(time.Minute),
	}
}

func TestImportQuestions(t *testing.T) {
	s := newTestStore(t)
	rows := []model.QuestionRow{
		{Question: "What is entropy?", Category: "physics", Difficulty: "easy"},
		{Question: "Why is the sky blue?", Category: "physics", Difficulty: "medium"},
	}

	hash, err := s.LatestSetHash("q.csv")
	if err != nil {
		t.Fatalf("LatestSetHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected no hash before import, got %q", hash)
	}

	id, imported, err := s.ImportQuestions("q.csv", "abc", rows)
	if err != nil {
		t.Fatalf("ImportQuestions: %v", err)
	}
	if !imported {
		t.Error("first import should store the rows")
	}

	// Same contents again reuse the set.
	id2, imported, err := s.ImportQuestions("q.csv", "abc", rows)
	if err != nil {
		t.Fatalf("ImportQuestions again: %v", err)
	}
	if imported || id2 != id {
		t.Errorf("reimport: got id=%d imported=%v, want id=%d imported=false", id2, imported, id)
	}

	count, err := s.QuestionCount()
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 questions, got %d", count)
	}

	// Changed contents create a new set.
	id3, imported, err := s.ImportQuestions("q.csv", "def", rows[:1])
	if err != nil {
		t.Fatalf("ImportQuestions changed: %v", err)
	}
	if !imported || id3 == id {
		t.Errorf("changed file should create a new set, got id=%d imported=%v", id3, imported)
	}
	if hash, _ := s.LatestSetHash("q.csv"); hash != "def" {
		t.Errorf("LatestSetHash = %q, want def", hash)
	}

	list, err := s.ListQuestions(id)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(list))
	}
	if list[0].Question != "What is entropy?" || list[1].Difficulty != "medium" {
		t.Errorf("rows out of order or incomplete: %+v", list)
	}
	if list[0].ID == 0 {
		t.Error("expected row IDs to be set")
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	r, err := s.GetRun("missing")
	if err != nil || r != nil {
		t.Fatalf("GetRun(missing) = %v, %v; want nil, nil", r, err)
	}

	createTestRun(t, s, "run-1")
	r, err = s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if r.Provider != "gemini" || r.MaxIterations != 5 || !r.StartedAt.Equal(testTime) {
		t.Errorf("unexpected run %+v", r)
	}
	if r.FinishedAt != nil {
		t.Error("new run should not be finished")
	}

	if err := s.FinishRun("run-1", testTime.Add(time.Hour), 3, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	r, _ = s.GetRun("run-1")
	if r.FinishedAt == nil || !r.FinishedAt.Equal(testTime.Add(time.Hour)) {
		t.Errorf("FinishedAt = %v", r.FinishedAt)
	}
	if r.Completed != 3 || r.Skipped != 1 {
		t.Errorf("counts = %d/%d, want 3/1", r.Completed, r.Skipped)
	}

	if err := s.FinishRun("nope", testTime, 0, 0); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	createTestRun(t, s, "run-2")
	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestDialogues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	if err := s.AppendDialogue(ctx, testRecord("run-1", "What is entropy?")); err != nil {
		t.Fatalf("AppendDialogue: %v", err)
	}
	noDean := testRecord("run-1", "Why is the sky blue?")
	noDean.Dean = nil
	noDean.Summary = nil
	noDean.History = nil
	if err := s.AppendDialogue(ctx, noDean); err != nil {
		t.Fatalf("AppendDialogue: %v", err)
	}

	recs, err := s.ListDialogues("run-1")
	if err != nil {
		t.Fatalf("ListDialogues: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 dialogues, got %d", len(recs))
	}

	got := recs[0]
	if got.Question != "What is entropy?" || got.Persona != model.PersonaMethodical {
		t.Errorf("unexpected record %+v", got)
	}
	if len(got.History) != 2 || got.History[1].Role != model.RoleTeacher || got.History[1].Iteration != 1 {
		t.Errorf("history not restored: %+v", got.History)
	}
	if got.Dean == nil || got.Dean.AnswerCorrectness != model.CorrectnessCorrect || got.Dean.Insights[0] != "microstates" {
		t.Errorf("dean verdict not restored: %+v", got.Dean)
	}
	if got.Summary == nil || got.Summary.ConversationLength != 2 {
		t.Errorf("summary not restored: %+v", got.Summary)
	}
	if got.Assessment != nil {
		t.Error("assessment should stay nil")
	}

	if recs[1].Dean != nil || recs[1].Summary != nil {
		t.Error("absent records should stay nil")
	}
	if len(recs[1].History) != 0 {
		t.Errorf("expected empty history, got %d turns", len(recs[1].History))
	}

	one, err := s.GetDialogue(got.ID)
	if err != nil {
		t.Fatalf("GetDialogue: %v", err)
	}
	if one.Question != got.Question || len(one.History) != 2 {
		t.Errorf("GetDialogue = %+v", one)
	}
	if missing, err := s.GetDialogue(9999); err != nil || missing != nil {
		t.Errorf("GetDialogue(9999) = %v, %v; want nil, nil", missing, err)
	}

	other, err := s.ListDialogues("run-2")
	if err != nil {
		t.Fatalf("ListDialogues: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no dialogues for another run, got %d", len(other))
	}
}

func TestSkips(t *testing.T) {
	s := newTestStore(t)
	createTestRun(t, s, "run-1")

	err := s.AppendSkip(context.Background(), model.SkipNotice{
		RunID:    "run-1",
		Question: "",
		Persona:  string(model.PersonaStruggler),
		Reason:   `invalid question "": must not be empty`,
		At:       testTime,
	})
	if err != nil {
		t.Fatalf("AppendSkip: %v", err)
	}
	skips, err := s.ListSkips("run-1")
	if err != nil {
		t.Fatalf("ListSkips: %v", err)
	}
	if len(skips) != 1 || skips[0].Persona != "Struggler" || !skips[0].At.Equal(testTime) {
		t.Errorf("unexpected skips %+v", skips)
	}
}

func TestConcurrentAppends(t *testing.T) {
	s := newTestStore(t)
	createTestRun(t, s, "run-1")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%4 == 0 {
				errs <- s.AppendSkip(context.Background(), model.SkipNotice{RunID: "run-1", Question: "q", Reason: "r", At: testTime})
				return
			}
			errs <- s.AppendDialogue(context.Background(), testRecord("run-1", fmt.Sprintf("q%d", i)))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recs, err := s.ListDialogues("run-1")
	if err != nil {
		t.Fatalf("ListDialogues: %v", err)
	}
	skips, err := s.ListSkips("run-1")
	if err != nil {
		t.Fatalf("ListSkips: %v", err)
	}
	if len(recs) != 15 || len(skips) != 5 {
		t.Errorf("got %d dialogues and %d skips, want 15 and 5", len(recs), len(skips))
	}
	for _, r := range recs {
		if len(r.History) != 2 {
			t.Errorf("dialogue %q has %d turns, want 2", r.Question, len(r.History))
		}
	}
}

func TestExportRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	if _, err := s.ExportRun("missing"); err == nil {
		t.Error("expected error for missing run")
	}

	exp, err := s.ExportRun("run-1")
	if err != nil {
		t.Fatalf("ExportRun: %v", err)
	}
	if exp.Dialogues == nil || exp.Skipped == nil {
		t.Error("empty export should have non-nil slices")
	}

	if err := s.AppendDialogue(ctx, testRecord("run-1", "What is entropy?")); err != nil {
		t.Fatalf("AppendDialogue: %v", err)
	}
	if err := s.AppendSkip(ctx, model.SkipNotice{RunID: "run-1", Question: "bad", Reason: "boom", At: testTime}); err != nil {
		t.Fatalf("AppendSkip: %v", err)
	}

	exports, err := s.ExportAllRuns()
	if err != nil {
		t.Fatalf("ExportAllRuns: %v", err)
	}
	if len(exports) != 1 || len(exports[0].Dialogues) != 1 || len(exports[0].Skipped) != 1 {
		t.Fatalf("unexpected export %+v", exports)
	}

	data, err := json.Marshal(exports[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"run":{"id":"run-1"`, `"final_verdict":"satisfactory"`, `"skipped":[{`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("export JSON missing %s", want)
		}
	}

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, exports); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 JSONL line, got %d", len(lines))
	}
	var rec model.DialogueRecord
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if rec.Question != "What is entropy?" || len(rec.History) != 2 {
		t.Errorf("unexpected line %+v", rec)
	}
}
