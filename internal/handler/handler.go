// Package handler serves a read-only report over the stored runs.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/socratic/internal/handler/views"
	appI18n "github.com/pavelanni/socratic/internal/i18n"
	"github.com/pavelanni/socratic/internal/model"
)

// Reports is the subset of the store the report server reads from.
type Reports interface {
	ListRuns() ([]model.RunInfo, error)
	ExportRun(runID string) (*model.RunExport, error)
	GetRun(id string) (*model.RunInfo, error)
	GetDialogue(id int64) (*model.DialogueRecord, error)
}

// Config holds the report server settings.
type Config struct {
	// BasePath is the URL prefix the router is mounted under, e.g. "/reports".
	BasePath string
	// Username and PasswordHash enable HTTP basic auth when PasswordHash is
	// set. PasswordHash is a bcrypt hash.
	Username     string
	PasswordHash string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  Reports
	config Config
}

// New creates a new Handler.
func New(s Reports, cfg Config) *Handler {
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
	return &Handler{store: s, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(appI18n.Middleware)
		r.Get("/", h.handleRuns)
		r.Get("/runs/{runID}", h.handleRun)
		r.Get("/dialogues/{dialogueID}", h.handleDialogue)
		r.Get("/api/runs", h.handleAPIRuns)
		r.Get("/api/runs/{runID}", h.handleAPIRun)
		r.Get("/api/dialogues/{dialogueID}", h.handleAPIDialogue)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns()
	if err != nil {
		serverError(w, "failed to list runs", err)
		return
	}
	render(w, r, views.RunsPage(h.config.BasePath, runs))
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	exp, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	render(w, r, views.RunPage(h.config.BasePath, *exp))
}

func (h *Handler) handleDialogue(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadDialogue(w, r)
	if !ok {
		return
	}
	render(w, r, views.DialoguePage(h.config.BasePath, *rec))
}

func (h *Handler) handleAPIRuns(w http.ResponseWriter, _ *http.Request) {
	runs, err := h.store.ListRuns()
	if err != nil {
		serverError(w, "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []model.RunInfo{}
	}
	writeJSON(w, runs)
}

func (h *Handler) handleAPIRun(w http.ResponseWriter, r *http.Request) {
	exp, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, exp)
}

func (h *Handler) handleAPIDialogue(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadDialogue(w, r)
	if !ok {
		return
	}
	writeJSON(w, rec)
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*model.RunExport, bool) {
	runID := chi.URLParam(r, "runID")
	run, err := h.store.GetRun(runID)
	if err != nil {
		serverError(w, "failed to get run", err)
		return nil, false
	}
	if run == nil {
		http.Error(w, appI18n.T(r.Context(), "NotFound"), http.StatusNotFound)
		return nil, false
	}
	exp, err := h.store.ExportRun(runID)
	if err != nil {
		serverError(w, "failed to export run", err)
		return nil, false
	}
	return exp, true
}

func (h *Handler) loadDialogue(w http.ResponseWriter, r *http.Request) (*model.DialogueRecord, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "dialogueID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid dialogue ID", http.StatusBadRequest)
		return nil, false
	}
	rec, err := h.store.GetDialogue(id)
	if err != nil {
		serverError(w, "failed to get dialogue", err)
		return nil, false
	}
	if rec == nil {
		http.Error(w, appI18n.T(r.Context(), "NotFound"), http.StatusNotFound)
		return nil, false
	}
	return rec, true
}

func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func serverError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
