package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/socratic/internal/agent"
	"github.com/pavelanni/socratic/internal/dataset"
	"github.com/pavelanni/socratic/internal/dialogue"
	"github.com/pavelanni/socratic/internal/handler"
	appI18n "github.com/pavelanni/socratic/internal/i18n"
	"github.com/pavelanni/socratic/internal/llm"
	"github.com/pavelanni/socratic/internal/llm/prompts"
	"github.com/pavelanni/socratic/internal/model"
	"github.com/pavelanni/socratic/internal/persona"
	"github.com/pavelanni/socratic/internal/sink"
	"github.com/pavelanni/socratic/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "socratic",
		Short: "Simulated Socratic tutoring dialogues powered by LLMs",
	}

	run := runCmd()
	root.AddCommand(run, exportCmd(), serveCmd(), personasCmd())

	// Make "run" the default when no subcommand is given.
	root.RunE = run.RunE

	// Register run flags on root so bare `socratic --input ...` still works.
	root.Flags().AddFlagSet(run.Flags())

	return root
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one dialogue per question and store the results",
		RunE:  runDialogues,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "questions.csv", "Questions file (.csv or .json)")
	f.String("db", "socratic.db", "SQLite database path")
	f.StringP("provider", "p", llm.ProviderGemini, "LLM provider (openai, ollama, gemini, anthropic)")
	f.StringP("model", "m", "", "Model name or alias (empty = provider default)")
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the OpenAI-compatible provider (or OPENAI_API_KEY)")
	f.String("ollama-url", "", "Ollama server URL (empty = http://localhost:11434)")
	f.String("gemini-key", "", "Gemini API key (or GEMINI_API_KEY)")
	f.String("anthropic-key", "", "Anthropic API key (or ANTHROPIC_API_KEY)")
	f.Int("max-iterations", 5, "Maximum student/teacher rounds per question")
	f.String("persona", "", "Use this persona for every question (empty = random per question)")
	f.String("personas", "", "YAML persona catalog (empty = built-in personas)")
	f.Uint64("seed", 0, "Seed for random persona assignment (0 = time based)")
	f.Int("workers", 1, "Number of dialogues run concurrently")
	f.Duration("pace", time.Second, "Minimum delay between question starts (0 disables pacing)")
	f.StringP("output", "o", "outputs/results.jsonl", "JSONL output file (empty = database only)")
	f.String("prompt-variant", string(prompts.PromptStandard), "Dean prompt variant (strict, standard, lenient)")
	f.IntP("limit", "n", 0, "Process only the first N questions (0 = all)")
	f.Int("retry-attempts", llm.DefaultRetry.Attempts, "Attempts per LLM call on rate-limit errors")
	f.Duration("retry-backoff", llm.DefaultRetry.Backoff, "Backoff unit between retries (grows linearly)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored runs as JSON or JSONL",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "socratic.db", "SQLite database path")
	f.String("run", "", "Run ID to export (empty = all runs)")
	f.String("format", "json", "Output format (json, jsonl)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only report of stored runs",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "socratic.db", "SQLite database path")
	f.StringP("lang", "l", "en", "Default UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /reports)")
	f.String("report-user", "admin", "Basic auth user name")
	f.String("report-password", "", "Basic auth password (empty = no auth)")
	f.String("report-password-hash", "", "Basic auth bcrypt hash, used instead of --report-password")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func personasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List the student personas and their traits",
		RunE:  runPersonas,
	}
	f := cmd.Flags()
	f.String("personas", "", "YAML persona catalog (empty = built-in personas)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SOCRATIC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("socratic")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/socratic")
	v.AddConfigPath("/etc/socratic")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// loadDotEnv reads .env into the process environment when it exists.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("error reading .env", "error", err)
	}
}

func loadPersonas(path string) (*persona.Catalog, error) {
	if path == "" {
		return persona.Default(), nil
	}
	return persona.LoadFile(path)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// llmConfig collects provider settings from flags, SOCRATIC_* variables and
// the providers' conventional environment variables.
func llmConfig(v *viper.Viper) llm.Config {
	return llm.Config{
		OpenAIURL:    v.GetString("llm-url"),
		OpenAIKey:    firstNonEmpty(v.GetString("llm-key"), os.Getenv("OPENAI_API_KEY")),
		OllamaURL:    v.GetString("ollama-url"),
		GeminiKey:    firstNonEmpty(v.GetString("gemini-key"), os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		AnthropicKey: firstNonEmpty(v.GetString("anthropic-key"), os.Getenv("ANTHROPIC_API_KEY")),
	}
}

// pickPersonas returns the persona picker for a run: a fixed persona when
// name is set, otherwise a seeded random choice per question.
func pickPersonas(cat *persona.Catalog, name string, seed uint64) (dialogue.PersonaPicker, uint64, error) {
	if name != "" {
		if _, err := cat.Lookup(model.PersonaName(name)); err != nil {
			return nil, 0, &dialogue.ConfigError{Field: "persona", Value: name, Reason: err.Error()}
		}
		return dialogue.FixedPersona(model.PersonaName(name)), 0, nil
	}
	if cat.Len() == 0 {
		return nil, 0, &dialogue.ConfigError{Field: "personas", Value: "", Reason: "catalog is empty"}
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return dialogue.RandomPersona(cat.Names(), seed), seed, nil
}

func runDialogues(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	loadDotEnv()
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(promptVariant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
		promptVariant = string(prompts.PromptStandard)
	}

	personas, err := loadPersonas(v.GetString("personas"))
	if err != nil {
		return fmt.Errorf("load personas: %w", err)
	}
	pick, seed, err := pickPersonas(personas, v.GetString("persona"), v.GetUint64("seed"))
	if err != nil {
		return err
	}

	// Resolve the provider and model before any question is touched.
	catalog := llm.DefaultCatalog()
	provider := strings.ToLower(v.GetString("provider"))
	info, err := catalog.Lookup(provider)
	if err != nil {
		return &dialogue.ConfigError{Field: "provider", Value: provider, Reason: err.Error()}
	}
	modelName := firstNonEmpty(v.GetString("model"), info.DefaultModel)

	cfg := model.RunConfig{
		RunID:         uuid.NewString(),
		Provider:      provider,
		Model:         modelName,
		MaxIterations: v.GetInt("max-iterations"),
		PromptVariant: promptVariant,
	}
	if err := dialogue.ValidateRunConfig(cfg); err != nil {
		return err
	}

	registry := llm.NewRegistry(catalog, llm.RetryPolicy{
		Attempts: v.GetInt("retry-attempts"),
		Backoff:  v.GetDuration("retry-backoff"),
	})
	defer registry.Close()
	if err := registry.Open(ctx, provider, llmConfig(v)); err != nil {
		return fmt.Errorf("open LLM provider: %w", err)
	}
	if err := registry.Validate(provider, modelName); err != nil {
		return &dialogue.ConfigError{Field: "model", Value: modelName, Reason: err.Error()}
	}
	if err := registry.Ping(ctx, provider); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}

	set, err := prompts.Default()
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	roles, err := agent.New(registry, set, prompts.PromptVariant(promptVariant))
	if err != nil {
		return fmt.Errorf("create role adapters: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	input := v.GetString("input")
	rows, err := loadQuestions(db, input)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	if limit := v.GetInt("limit"); limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	sinks := sink.Multi{db}
	if out := v.GetString("output"); out != "" {
		jsonl, err := sink.OpenJSONL(out)
		if err != nil {
			return err
		}
		defer jsonl.Close()
		sinks = append(sinks, jsonl)
	}

	started := time.Now()
	if err := db.CreateRun(model.RunInfo{
		ID:            cfg.RunID,
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		MaxIterations: cfg.MaxIterations,
		PromptVariant: cfg.PromptVariant,
		InputPath:     input,
		StartedAt:     started,
	}); err != nil {
		return err
	}

	slog.Info("starting run",
		"run_id", cfg.RunID,
		"provider", cfg.Provider,
		"model", cfg.Model,
		"max_iterations", cfg.MaxIterations,
		"prompt_variant", cfg.PromptVariant,
		"questions", len(rows),
		"persona", v.GetString("persona"),
		"seed", seed,
		"workers", v.GetInt("workers"),
	)

	batch := &dialogue.Batch{
		Orchestrator: dialogue.New(roles, personas),
		Config:       cfg,
		Sink:         sinks,
		Pick:         pick,
		Workers:      v.GetInt("workers"),
		Pace:         v.GetDuration("pace"),
	}
	stats, runErr := batch.Run(ctx, rows)

	if err := db.FinishRun(cfg.RunID, time.Now(), stats.Completed, stats.Skipped); err != nil {
		slog.Error("failed to record run end", "run_id", cfg.RunID, "error", err)
	}
	slog.Info("run finished",
		"run_id", cfg.RunID,
		"completed", stats.Completed,
		"skipped", stats.Skipped,
		"elapsed", time.Since(started).Round(time.Second),
	)
	if runErr != nil {
		return fmt.Errorf("run %s: %w", cfg.RunID, runErr)
	}
	return nil
}

// loadQuestions imports the input file unless the same contents were
// imported before and returns its rows from the database.
func loadQuestions(db *store.Store, path string) ([]model.QuestionRow, error) {
	file, err := dataset.Load(path)
	if err != nil {
		return nil, err
	}
	prev, err := db.LatestSetHash(path)
	if err != nil {
		return nil, fmt.Errorf("check import status for %s: %w", path, err)
	}
	setID, imported, err := db.ImportQuestions(path, file.Hash, file.Rows)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	switch {
	case !imported:
		slog.Info("questions file unchanged, skipping import", "path", path)
	case prev != "":
		slog.Warn("questions file changed since last import, imported as a new set", "path", path, "count", len(file.Rows))
	default:
		slog.Info("imported questions", "path", path, "count", len(file.Rows))
	}
	return db.ListQuestions(setID)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	format := strings.ToLower(v.GetString("format"))
	if format != "json" && format != "jsonl" {
		return fmt.Errorf("unknown export format %q (want json or jsonl)", format)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var exports []model.RunExport
	if runID := v.GetString("run"); runID != "" {
		exp, err := db.ExportRun(runID)
		if err != nil {
			return fmt.Errorf("export run: %w", err)
		}
		exports = []model.RunExport{*exp}
	} else {
		if exports, err = db.ExportAllRuns(); err != nil {
			return fmt.Errorf("export runs: %w", err)
		}
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "jsonl" {
		return store.WriteJSONL(w, exports)
	}

	var payload any = exports
	if len(exports) == 1 && v.GetString("run") != "" {
		payload = exports[0]
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	slog.Info("exported runs", "count", len(exports), "format", format)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	hash := v.GetString("report-password-hash")
	if hash == "" && v.GetString("report-password") != "" {
		if hash, err = handler.HashPassword(v.GetString("report-password")); err != nil {
			return fmt.Errorf("hash report password: %w", err)
		}
	}
	if hash == "" {
		slog.Warn("report server has no password; anyone who can reach it can read the transcripts")
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	h := handler.New(db, handler.Config{
		BasePath:     basePath,
		Username:     v.GetString("report-user"),
		PasswordHash: hash,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if basePath != "" {
		r.Route(basePath, h.Routes)
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting report server",
		"addr", addr,
		"lang", lang,
		"languages", appI18n.Languages(),
		"base_path", basePath,
		"auth", hash != "",
	)
	return http.ListenAndServe(addr, r)
}

func runPersonas(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	cat, err := loadPersonas(v.GetString("personas"))
	if err != nil {
		return fmt.Errorf("load personas: %w", err)
	}
	return writePersonas(cmd.OutOrStdout(), cat)
}

func writePersonas(out io.Writer, cat *persona.Catalog) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERSONA\tPROBLEM\tINSTRUCTIONS\tCALCULATION\tKNOWLEDGE\tTHIRST")
	personas := lo.FilterMap(cat.Names(), func(n model.PersonaName, _ int) (model.Persona, bool) {
		p, err := cat.Lookup(n)
		return p, err == nil
	})
	for _, p := range personas {
		t := p.Traits
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.Name,
			t.ProblemUnderstanding, t.InstructionUnderstanding, t.Calculation,
			t.KnowledgeMastery, t.ThirstForLearning)
	}
	return tw.Flush()
}
