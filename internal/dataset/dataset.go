// Package dataset reads input question rows from CSV or JSON files.
package dataset

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavelanni/socratic/internal/model"
)

// File is a loaded input file.
type File struct {
	Path string
	// Hash is the hex SHA-256 of the file contents.
	Hash string
	Rows []model.QuestionRow
}

// Load reads path, choosing the format by extension (.csv or .json).
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	var rows []model.QuestionRow
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = ParseCSV(bytes.NewReader(data))
	case ".json":
		rows, err = ParseJSON(data)
	default:
		return File{}, fmt.Errorf("unsupported input format %q (want .csv or .json)", ext)
	}
	if err != nil {
		return File{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return File{Path: path, Hash: Hash(data), Rows: rows}, nil
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ParseCSV reads rows from CSV with a header. The question column is
// required; category and difficulty are optional. Column names are matched
// case-insensitively and extra columns are ignored.
func ParseCSV(r io.Reader) ([]model.QuestionRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty CSV")
	}
	if err != nil {
		return nil, err
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := cols["question"]; !ok {
		return nil, errors.New(`CSV header has no "question" column`)
	}
	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []model.QuestionRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		// Rows with an empty question are kept so that they are reported
		// as skipped rather than silently lost.
		if isBlank(rec) {
			continue
		}
		rows = append(rows, model.QuestionRow{
			Question:   field(rec, "question"),
			Category:   field(rec, "category"),
			Difficulty: field(rec, "difficulty"),
		})
	}
	return rows, nil
}

// ParseJSON reads rows from a JSON array of objects with question,
// category and difficulty keys.
func ParseJSON(data []byte) ([]model.QuestionRow, error) {
	var rows []model.QuestionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Question = strings.TrimSpace(rows[i].Question)
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
