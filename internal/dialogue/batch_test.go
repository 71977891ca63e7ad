package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/socratic/internal/model"
	"github.com/pavelanni/socratic/internal/persona"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBatch(f *fakeAdapters, sink Sink, workers int) *Batch {
	return &Batch{
		Orchestrator: newTestOrchestrator(f),
		Config:       testConfig(2),
		Sink:         sink,
		Pick:         FixedPersona(model.PersonaMethodical),
		Workers:      workers,
		Now:          func() time.Time { return fixedNow },
	}
}

func TestBatchRun(t *testing.T) {
	rows := []model.QuestionRow{
		{Question: "What is overfitting?", Category: "ml", Difficulty: "easy"},
		{Question: "", Category: "ml"},
		{Question: "What is a gradient?", Category: "math", Difficulty: "medium"},
		{Question: "explode", Category: "ml"},
	}
	f := newFakeAdapters()
	f.teacher = func(r TeacherRequest) (string, error) {
		if r.Question == "explode" {
			panic("unexpected nil")
		}
		return "why?", nil
	}
	sink := &memSink{}

	stats, err := newTestBatch(f, sink, 3).Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Completed != 2 || stats.Skipped != 2 {
		t.Errorf("stats = %+v, want 2 completed and 2 skipped", stats)
	}
	if len(sink.dialogues)+len(sink.skips) != len(rows) {
		t.Errorf("got %d records and %d skips for %d rows", len(sink.dialogues), len(sink.skips), len(rows))
	}
	for _, rec := range sink.dialogues {
		if rec.RunID != "run-1" || rec.Provider != "openai" || rec.Model != "gpt-4o-mini" {
			t.Errorf("record missing run metadata: %+v", rec)
		}
		if rec.Assessment == nil || rec.FinalVerdict == "" {
			t.Errorf("record for %q is incomplete", rec.Question)
		}
		if !rec.CompletedAt.Equal(fixedNow) {
			t.Errorf("completed at = %v", rec.CompletedAt)
		}
	}
	for _, n := range sink.skips {
		if n.Reason == "" || n.RunID != "run-1" {
			t.Errorf("skip notice incomplete: %+v", n)
		}
	}
}

func TestBatchRunInvalidConfig(t *testing.T) {
	sink := &memSink{}
	b := newTestBatch(newFakeAdapters(), sink, 1)
	b.Config.MaxIterations = 0

	_, err := b.Run(context.Background(), []model.QuestionRow{testRow()})
	if !IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if len(sink.dialogues)+len(sink.skips) != 0 {
		t.Error("nothing should be written for an invalid configuration")
	}
}

func TestBatchRunUnknownPersonaSkips(t *testing.T) {
	sink := &memSink{}
	b := newTestBatch(newFakeAdapters(), sink, 1)
	b.Pick = FixedPersona("Nobody")

	stats, err := b.Run(context.Background(), []model.QuestionRow{testRow()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Skipped != 1 || len(sink.skips) != 1 {
		t.Fatalf("expected one skip, got %+v", stats)
	}
	if sink.skips[0].Persona != "Nobody" {
		t.Errorf("skip persona = %q", sink.skips[0].Persona)
	}
}

func TestBatchRunSinkError(t *testing.T) {
	sink := &memSink{err: errors.New("disk full")}
	_, err := newTestBatch(newFakeAdapters(), sink, 2).Run(context.Background(), []model.QuestionRow{testRow(), testRow()})
	if err == nil {
		t.Fatal("expected sink error")
	}
}

func TestBatchRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &memSink{}
	stats, err := newTestBatch(newFakeAdapters(), sink, 1).Run(ctx, []model.QuestionRow{testRow(), testRow()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stats.Completed != 0 || stats.Skipped != 2 {
		t.Errorf("want 0 completed and 2 skipped, got %+v", stats)
	}
	if len(sink.skips) != 2 {
		t.Errorf("every row should leave a skip notice, got %d", len(sink.skips))
	}
}

func TestBatchRunCancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFakeAdapters()
	f.dean = func(DeanRequest) (string, error) {
		cancel()
		return deanJSON("continue", "developing", "partially_correct"), nil
	}
	rows := []model.QuestionRow{testRow(), testRow(), testRow(), testRow()}
	sink := &memSink{}

	stats, err := newTestBatch(f, sink, 1).Run(ctx, rows)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := len(sink.dialogues) + len(sink.skips); got != len(rows) {
		t.Fatalf("got %d records and %d skips for %d rows", len(sink.dialogues), len(sink.skips), len(rows))
	}
	if stats.Completed+stats.Skipped != len(rows) {
		t.Errorf("stats = %+v, want %d rows accounted for", stats, len(rows))
	}
	for _, n := range sink.skips {
		if !strings.Contains(n.Reason, "canceled") {
			t.Errorf("skip reason = %q", n.Reason)
		}
		if n.Persona != string(model.PersonaMethodical) {
			t.Errorf("skip persona = %q", n.Persona)
		}
	}
}

func TestRandomPersonaDeterministic(t *testing.T) {
	names := persona.Default().Names()
	a := RandomPersona(names, 42)
	b := RandomPersona(names, 42)

	seen := map[model.PersonaName]bool{}
	for i := 0; i < 50; i++ {
		x, y := a(i, testRow()), b(i, testRow())
		if x != y {
			t.Fatalf("row %d: %q vs %q", i, x, y)
		}
		seen[x] = true
	}
	if len(seen) < 2 {
		t.Errorf("50 picks used only %d personas", len(seen))
	}
	// Order of calls must not matter.
	if a(7, testRow()) != b(7, testRow()) {
		t.Error("pick depends on call order")
	}
}
