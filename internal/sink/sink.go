// Package sink writes dialogue records and skip notices to their outputs.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pavelanni/socratic/internal/dialogue"
	"github.com/pavelanni/socratic/internal/model"
)

// JSONL appends one JSON object per line. Skip notices carry
// "type":"skip" so readers can tell them from dialogue records.
type JSONL struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
	c   io.Closer
}

// NewJSONL writes to w. Close does not close w.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{w: w, enc: json.NewEncoder(w)}
}

// OpenJSONL opens path for appending, creating it and its directory.
func OpenJSONL(path string) (*JSONL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	j := NewJSONL(f)
	j.c = f
	return j, nil
}

type skipLine struct {
	Type string `json:"type"`
	model.SkipNotice
}

func (j *JSONL) AppendDialogue(_ context.Context, rec model.DialogueRecord) error {
	return j.write(rec)
}

func (j *JSONL) AppendSkip(_ context.Context, n model.SkipNotice) error {
	return j.write(skipLine{Type: "skip", SkipNotice: n})
}

func (j *JSONL) write(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(v); err != nil {
		return fmt.Errorf("write jsonl: %w", err)
	}
	if f, ok := j.w.(*os.File); ok {
		return f.Sync()
	}
	return nil
}

func (j *JSONL) Close() error {
	if j.c == nil {
		return nil
	}
	return j.c.Close()
}

// Multi fans every append out to all sinks in order. It stops at the first
// failing sink.
type Multi []dialogue.Sink

func (m Multi) AppendDialogue(ctx context.Context, rec model.DialogueRecord) error {
	for _, s := range m {
		if err := s.AppendDialogue(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) AppendSkip(ctx context.Context, n model.SkipNotice) error {
	for _, s := range m {
		if err := s.AppendSkip(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink that implements io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

var (
	_ dialogue.Sink = (*JSONL)(nil)
	_ dialogue.Sink = Multi(nil)
)
