package persona

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/socratic/internal/model"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if c.Len() != 6 {
		t.Fatalf("expected 6 personas, got %d", c.Len())
	}

	p, err := c.Lookup(model.PersonaFastLearner)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Traits.Calculation != model.TraitHigh {
		t.Errorf("Fast Learner calculation = %q, want High", p.Traits.Calculation)
	}

	p, err = c.Lookup(model.PersonaDistracted)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Traits.InstructionUnderstanding != model.TraitLow {
		t.Errorf("Distracted instruction understanding = %q, want Low", p.Traits.InstructionUnderstanding)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Default().Lookup("Genius")
	var unknown *UnknownPersonaError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownPersonaError, got %v", err)
	}
	if unknown.Name != "Genius" {
		t.Errorf("unexpected name %q", unknown.Name)
	}
}

func TestNamesSorted(t *testing.T) {
	names := Default().Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		wantLen int
	}{
		{
			name: "valid",
			yaml: `
personas:
  - name: Skeptic
    traits:
      problem_understanding: High
      instruction_understanding: Medium
      calculation: Medium
      knowledge_mastery: Medium
      thirst_for_learning: Low
`,
			wantLen: 1,
		},
		{
			name: "invalid level",
			yaml: `
personas:
  - name: Skeptic
    traits:
      problem_understanding: Huge
      instruction_understanding: Medium
      calculation: Medium
      knowledge_mastery: Medium
      thirst_for_learning: Low
`,
			wantErr: true,
		},
		{
			name: "missing trait",
			yaml: `
personas:
  - name: Skeptic
    traits:
      problem_understanding: High
`,
			wantErr: true,
		},
		{"empty", "personas: []", true, 0},
		{"not yaml", "personas: [unclosed", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if c.Len() != tt.wantLen {
				t.Errorf("expected %d personas, got %d", tt.wantLen, c.Len())
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	data := []byte(`personas:
  - name: Night Owl
    traits:
      problem_understanding: Medium
      instruction_understanding: Medium
      calculation: High
      knowledge_mastery: Medium
      thirst_for_learning: High
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	p, err := c.Lookup("Night Owl")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Traits.Calculation != model.TraitHigh {
		t.Errorf("calculation = %q, want High", p.Traits.Calculation)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
