// Package persona provides the read-only catalog of simulated student personas.
package persona

import (
	"fmt"
	"os"
	"sort"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/pavelanni/socratic/internal/model"
)

// Catalog maps persona names to trait levels. It is never modified after
// construction and is safe for concurrent use.
type Catalog struct {
	traits map[model.PersonaName]model.Traits
}

// UnknownPersonaError is returned by Lookup for names not in the catalog.
type UnknownPersonaError struct {
	Name model.PersonaName
}

func (e *UnknownPersonaError) Error() string {
	return fmt.Sprintf("unknown persona %q", string(e.Name))
}

// Default returns the built-in six-persona catalog.
func Default() *Catalog {
	return &Catalog{traits: map[model.PersonaName]model.Traits{
		model.PersonaCuriousNovice: {
			ProblemUnderstanding:     model.TraitMedium,
			InstructionUnderstanding: model.TraitMedium,
			Calculation:              model.TraitLow,
			KnowledgeMastery:         model.TraitLow,
			ThirstForLearning:        model.TraitHigh,
		},
		model.PersonaOverconfident: {
			ProblemUnderstanding:     model.TraitLow,
			InstructionUnderstanding: model.TraitLow,
			Calculation:              model.TraitMedium,
			KnowledgeMastery:         model.TraitLow,
			ThirstForLearning:        model.TraitMedium,
		},
		model.PersonaMethodical: {
			ProblemUnderstanding:     model.TraitHigh,
			InstructionUnderstanding: model.TraitHigh,
			Calculation:              model.TraitMedium,
			KnowledgeMastery:         model.TraitMedium,
			ThirstForLearning:        model.TraitMedium,
		},
		model.PersonaStruggler: {
			ProblemUnderstanding:     model.TraitLow,
			InstructionUnderstanding: model.TraitMedium,
			Calculation:              model.TraitLow,
			KnowledgeMastery:         model.TraitLow,
			ThirstForLearning:        model.TraitLow,
		},
		model.PersonaFastLearner: {
			ProblemUnderstanding:     model.TraitHigh,
			InstructionUnderstanding: model.TraitHigh,
			Calculation:              model.TraitHigh,
			KnowledgeMastery:         model.TraitHigh,
			ThirstForLearning:        model.TraitHigh,
		},
		model.PersonaDistracted: {
			ProblemUnderstanding:     model.TraitMedium,
			InstructionUnderstanding: model.TraitLow,
			Calculation:              model.TraitMedium,
			KnowledgeMastery:         model.TraitMedium,
			ThirstForLearning:        model.TraitLow,
		},
	}}
}

// fileEntry is one persona in a YAML catalog file.
type fileEntry struct {
	Name   string       `yaml:"name"`
	Traits model.Traits `yaml:"traits"`
}

// LoadFile reads a catalog from a YAML file of the form:
//
//	personas:
//	  - name: Curious Novice
//	    traits:
//	      problem_understanding: Medium
//	      ...
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog and validates every entry.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Personas []fileEntry `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}
	if len(doc.Personas) == 0 {
		return nil, fmt.Errorf("parse personas: no personas defined")
	}
	c := &Catalog{traits: make(map[model.PersonaName]model.Traits, len(doc.Personas))}
	for _, e := range doc.Personas {
		if e.Name == "" {
			return nil, fmt.Errorf("parse personas: entry without name")
		}
		if err := validateTraits(e.Traits); err != nil {
			return nil, fmt.Errorf("persona %q: %w", e.Name, err)
		}
		name := model.PersonaName(e.Name)
		if _, dup := c.traits[name]; dup {
			return nil, fmt.Errorf("persona %q: defined twice", e.Name)
		}
		c.traits[name] = e.Traits
	}
	return c, nil
}

func validateTraits(t model.Traits) error {
	fields := []struct {
		name  string
		level model.TraitLevel
	}{
		{"problem_understanding", t.ProblemUnderstanding},
		{"instruction_understanding", t.InstructionUnderstanding},
		{"calculation", t.Calculation},
		{"knowledge_mastery", t.KnowledgeMastery},
		{"thirst_for_learning", t.ThirstForLearning},
	}
	for _, f := range fields {
		if !f.level.Valid() {
			return fmt.Errorf("trait %s: invalid level %q (want Low, Medium or High)", f.name, f.level)
		}
	}
	return nil
}

// Lookup returns the persona with the given name.
func (c *Catalog) Lookup(name model.PersonaName) (model.Persona, error) {
	t, ok := c.traits[name]
	if !ok {
		return model.Persona{}, &UnknownPersonaError{Name: name}
	}
	return model.Persona{Name: name, Traits: t}, nil
}

// Names returns the persona names in sorted order.
func (c *Catalog) Names() []model.PersonaName {
	names := lo.Keys(c.traits)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Len returns the number of personas.
func (c *Catalog) Len() int {
	return len(c.traits)
}
