package catalog

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"info_arena/internal/domain"
)

func TestGeneratePieceNamesUnique(t *testing.T) {
	cat := Default()
	rng := rand.New(rand.NewSource(3))
	names, err := cat.GeneratePieceNames(rng, 40)
	if err != nil {
		t.Fatalf("GeneratePieceNames: %v", err)
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			t.Fatalf("duplicate piece name %q", name)
		}
		seen[name] = struct{}{}
	}
}

func TestGeneratePieceNamesExhaustsVocabulary(t *testing.T) {
	cat := Catalog{
		PieceQualifiers: []string{"Q1", "Q2"},
		PieceCategories: []string{"sales data"},
	}
	rng := rand.New(rand.NewSource(3))
	_, err := cat.GeneratePieceNames(rng, 3)
	var cfgErr domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("want ConfigurationError for exhausted vocabulary, got %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := "task_templates:\n  - \"Merge %s\"\npiece_qualifiers:\n  - \"alpha\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.TaskTemplates) != 1 || cat.TaskTemplates[0] != "Merge %s" {
		t.Fatalf("task templates not overridden: %v", cat.TaskTemplates)
	}
	if len(cat.PieceQualifiers) != 1 {
		t.Fatalf("qualifiers not overridden: %v", cat.PieceQualifiers)
	}
	if len(cat.PieceCategories) != len(Default().PieceCategories) {
		t.Fatalf("categories should keep defaults: %v", cat.PieceCategories)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.TaskTemplates) == 0 || len(cat.PieceCategories) == 0 {
		t.Fatalf("defaults missing: %+v", cat)
	}
}
