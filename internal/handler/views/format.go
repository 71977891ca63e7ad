// Package views renders the report pages.
package views

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/pavelanni/socratic/internal/i18n"
	"github.com/pavelanni/socratic/internal/model"
)

const timeLayout = "2006-01-02 15:04"

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}

func homeURL(base string) templ.SafeURL {
	return templ.URL(base + "/")
}

func runURL(base, id string) templ.SafeURL {
	return templ.URL(base + "/runs/" + url.PathEscape(id))
}

func dialogueURL(base string, id int64) templ.SafeURL {
	return templ.URL(base + "/dialogues/" + strconv.FormatInt(id, 10))
}

// roleLabel is the message ID for a transcript role.
func roleLabel(r model.Role) string {
	if r == model.RoleTeacher {
		return "Teacher"
	}
	return "Student"
}

func runSummary(ctx context.Context, r model.RunInfo) string {
	return fmt.Sprintf("%s / %s, %s: %d, %s: %s",
		r.Provider, r.Model,
		i18n.T(ctx, "MaxIterations"), r.MaxIterations,
		i18n.T(ctx, "PromptVariant"), r.PromptVariant)
}
