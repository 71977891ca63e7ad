package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pavelanni/socratic/internal/model"
)

// Sink receives exactly one record or one skip notice per input row.
// Implementations must be safe for concurrent use.
type Sink interface {
	AppendDialogue(ctx context.Context, rec model.DialogueRecord) error
	AppendSkip(ctx context.Context, n model.SkipNotice) error
}

// PersonaPicker chooses the persona for the i-th input row.
type PersonaPicker func(i int, row model.QuestionRow) model.PersonaName

// FixedPersona always returns name.
func FixedPersona(name model.PersonaName) PersonaPicker {
	return func(int, model.QuestionRow) model.PersonaName { return name }
}

// RandomPersona picks uniformly from names with a seeded source. The same
// seed yields the same assignment regardless of worker scheduling.
func RandomPersona(names []model.PersonaName, seed uint64) PersonaPicker {
	return func(i int, _ model.QuestionRow) model.PersonaName {
		r := rand.New(rand.NewPCG(seed, uint64(i)))
		return names[r.IntN(len(names))]
	}
}

// BatchStats counts the outcome of a batch run.
type BatchStats struct {
	Completed int
	Skipped   int
}

// Batch runs one dialogue per input row.
type Batch struct {
	Orchestrator *Orchestrator
	Config       model.RunConfig
	Sink         Sink
	Pick         PersonaPicker
	// Workers bounds concurrent dialogues; values below 1 mean 1.
	Workers int
	// Pace is the minimum delay between dialogue starts; zero disables pacing.
	Pace time.Duration
	Now  func() time.Time
}

// Run processes rows in order of start. A failure in one dialogue becomes a
// skip notice and never stops the batch; only sink failures and context
// cancellation are returned. After cancellation every row that was not
// started is still written as a skip notice.
func (b *Batch) Run(ctx context.Context, rows []model.QuestionRow) (BatchStats, error) {
	if err := ValidateRunConfig(b.Config); err != nil {
		return BatchStats{}, err
	}
	if b.Orchestrator == nil || b.Sink == nil || b.Pick == nil {
		return BatchStats{}, errors.New("batch: orchestrator, sink and persona picker are required")
	}
	now := b.Now
	if now == nil {
		now = time.Now
	}
	workers := b.Workers
	if workers < 1 {
		workers = 1
	}

	var limiter *rate.Limiter
	if b.Pace > 0 {
		limiter = rate.NewLimiter(rate.Every(b.Pace), 1)
	}

	var (
		mu    sync.Mutex
		stats BatchStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	started := 0
	var stopErr error
	for i, row := range rows {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				stopErr = err
				break
			}
		}
		if err := gctx.Err(); err != nil {
			stopErr = err
			break
		}
		started++
		g.Go(func() error {
			completed, err := b.runOne(gctx, i, row, now)
			if err != nil {
				return err
			}
			mu.Lock()
			if completed {
				stats.Completed++
			} else {
				stats.Skipped++
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	if stopErr == nil {
		return stats, nil
	}

	// Rows never started still get a skip notice.
	if err := ctx.Err(); err != nil {
		stopErr = err
	}
	slog.Warn("batch stopped early", "unstarted", len(rows)-started, "error", stopErr)
	for i := started; i < len(rows); i++ {
		if err := b.skip(ctx, rows[i], b.Pick(i, rows[i]), stopErr, now); err != nil {
			return stats, err
		}
		stats.Skipped++
	}
	return stats, stopErr
}

// runOne runs a single dialogue and writes its record or skip notice. It
// reports whether the dialogue completed; the error is non-nil only when
// the sink itself failed.
func (b *Batch) runOne(ctx context.Context, i int, row model.QuestionRow, now func() time.Time) (completed bool, err error) {
	name := b.Pick(i, row)
	log := slog.With("question_index", i+1, "persona", name)

	final, runErr := b.safeRun(ctx, row, name)
	if runErr != nil {
		log.Error("dialogue skipped", "question", row.Question, "error", runErr)
		return false, b.skip(ctx, row, name, runErr, now)
	}

	rec := model.RecordFromState(b.Config.RunID, final, now())
	if err := b.Sink.AppendDialogue(context.WithoutCancel(ctx), rec); err != nil {
		return false, fmt.Errorf("record dialogue: %w", err)
	}
	log.Info("dialogue completed",
		"verdict", rec.FinalVerdict,
		"understanding", rec.UnderstandingLevel,
		"total_iterations", rec.TotalIterations,
	)
	return true, nil
}

func (b *Batch) skip(ctx context.Context, row model.QuestionRow, name model.PersonaName, cause error, now func() time.Time) error {
	notice := model.SkipNotice{
		RunID:    b.Config.RunID,
		Question: row.Question,
		Persona:  string(name),
		Reason:   cause.Error(),
		At:       now(),
	}
	if err := b.Sink.AppendSkip(context.WithoutCancel(ctx), notice); err != nil {
		return fmt.Errorf("record skip: %w", err)
	}
	return nil
}

// safeRun creates and drives one conversation, converting a panic into an
// error so that one bad question cannot take the batch down.
func (b *Batch) safeRun(ctx context.Context, row model.QuestionRow, name model.PersonaName) (s model.ConversationState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dialogue panicked: %v", r)
		}
	}()
	s, err = b.Orchestrator.NewConversation(row, name, b.Config)
	if err != nil {
		return s, err
	}
	return b.Orchestrator.Run(ctx, s)
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
