package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/pavelanni/socratic/internal/model"

	_ "modernc.org/sqlite"
)

// Store persists question sets, runs and dialogue records in SQLite. It is
// safe for concurrent use; record writes are serialized.
type Store struct {
	db *sql.DB
	// mu serializes the multi-statement writes of AppendDialogue.
	mu sync.Mutex
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS question_sets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		hash TEXT NOT NULL,
		imported_at DATETIME NOT NULL,
		UNIQUE (path, hash)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		set_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		question TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (set_id) REFERENCES question_sets(id)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		max_iterations INTEGER NOT NULL,
		prompt_variant TEXT NOT NULL DEFAULT '',
		input_path TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		completed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS dialogues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		question TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		persona TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		final_verdict TEXT NOT NULL,
		understanding_level TEXT NOT NULL DEFAULT '',
		total_iterations INTEGER NOT NULL,
		dean_json TEXT NOT NULL DEFAULT '',
		assessment_json TEXT NOT NULL DEFAULT '',
		summary_json TEXT NOT NULL DEFAULT '',
		completed_at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dialogue_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		FOREIGN KEY (dialogue_id) REFERENCES dialogues(id)
	);

	CREATE TABLE IF NOT EXISTS skips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		question TEXT NOT NULL,
		persona TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL,
		at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_dialogues_run ON dialogues(run_id);
	CREATE INDEX IF NOT EXISTS idx_turns_dialogue ON turns(dialogue_id);
	CREATE INDEX IF NOT EXISTS idx_skips_run ON skips(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ImportQuestions stores rows as the question set for (path, hash). When
// the same file contents were imported before, the existing set is reused
// and imported is false.
func (s *Store) ImportQuestions(path, hash string, rows []model.QuestionRow) (setID int64, imported bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.QueryRow(`SELECT id FROM question_sets WHERE path = ? AND hash = ?`, path, hash).Scan(&setID)
	if err == nil {
		return setID, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("check import status for %s: %w", path, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO question_sets (path, hash, imported_at) VALUES (?, ?, ?)`, path, hash, time.Now())
	if err != nil {
		return 0, false, err
	}
	if setID, err = res.LastInsertId(); err != nil {
		return 0, false, err
	}
	for i, r := range rows {
		if _, err := tx.Exec(
			`INSERT INTO questions (set_id, position, question, category, difficulty) VALUES (?, ?, ?, ?, ?)`,
			setID, i, r.Question, r.Category, r.Difficulty,
		); err != nil {
			return 0, false, fmt.Errorf("insert question %d: %w", i+1, err)
		}
	}
	return setID, true, tx.Commit()
}

// LatestSetHash returns the hash of the most recent import of path, or ""
// when the file was never imported.
func (s *Store) LatestSetHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(
		`SELECT hash FROM question_sets WHERE path = ? ORDER BY id DESC LIMIT 1`, path,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// ListQuestions returns the rows of a question set in file order.
func (s *Store) ListQuestions(setID int64) ([]model.QuestionRow, error) {
	rows, err := s.db.Query(
		`SELECT id, question, category, difficulty FROM questions WHERE set_id = ? ORDER BY position`, setID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.QuestionRow
	for rows.Next() {
		var q model.QuestionRow
		if err := rows.Scan(&q.ID, &q.Question, &q.Category, &q.Difficulty); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// QuestionCount returns the number of stored questions across all sets.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}
