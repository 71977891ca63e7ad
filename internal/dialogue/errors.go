package dialogue

import (
	"fmt"

	"github.com/pavelanni/socratic/internal/model"
)

// AdapterError reports a failed text-generation call for one role.
type AdapterError struct {
	Role string
	Err  error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter: %v", e.Role, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// ParseKind names the record a ParseError was decoding.
type ParseKind string

const (
	ParseKindDean       ParseKind = "dean"
	ParseKindAssessment ParseKind = "assessment"
)

// ParseError reports text that could not be decoded into the expected record.
// It never leaves the parser; callers only see the fallback record.
type ParseError struct {
	Kind ParseKind
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigError reports an invalid dialogue setting, detected before any
// adapter call.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// placeholder is the turn content substituted for a failed adapter call.
func placeholder(err error) string {
	return "Error: " + err.Error()
}

// ValidateRunConfig checks the run-level settings shared by all dialogues.
func ValidateRunConfig(cfg model.RunConfig) error {
	if cfg.Provider == "" {
		return &ConfigError{Field: "provider", Value: cfg.Provider, Reason: "must not be empty"}
	}
	if cfg.Model == "" {
		return &ConfigError{Field: "model", Value: cfg.Model, Reason: "must not be empty"}
	}
	if cfg.MaxIterations < 1 {
		return &ConfigError{Field: "max-iterations", Value: fmt.Sprint(cfg.MaxIterations), Reason: "must be at least 1"}
	}
	return nil
}
