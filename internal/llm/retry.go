package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// RetryPolicy retries rate-limited calls with a linear backoff: the n-th
// retry waits n × Backoff.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetry is three attempts, waiting 2s then 4s.
var DefaultRetry = RetryPolicy{Attempts: 3, Backoff: 2 * time.Second}

// Do calls fn until it succeeds, fails with an error that is not a rate
// limit, or the attempts are used up.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := max(p.Attempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !IsRateLimited(err) || attempt == attempts {
			break
		}
		wait := time.Duration(attempt) * p.Backoff
		slog.Warn("rate limited, retrying", "attempt", attempt, "max_attempts", attempts, "wait", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}

// IsRateLimited reports whether err is a rate-limit or quota error from any
// backend.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var anthErr *anthropic.Error
	if errors.As(err, &anthErr) && anthErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	// Gemini and Ollama surface rate limits only in the message text.
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"quota", "rate limit", "ratelimit", "resource_exhausted", "resource exhausted", "429"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
