// Package catalog holds the generation pools the world is built from: piece
// name vocabulary and task description templates. A YAML file can override
// the built-in defaults run by run.
package catalog

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"info_arena/internal/domain"
)

type Catalog struct {
	PieceQualifiers []string `yaml:"piece_qualifiers"`
	PieceCategories []string `yaml:"piece_categories"`
	TaskTemplates   []string `yaml:"task_templates"`
}

// Default is the built-in catalog, enough vocabulary for a few hundred
// uniquely named pieces.
func Default() Catalog {
	return Catalog{
		PieceQualifiers: []string{
			"Q1", "Q2", "Q3", "Q4",
			"annual", "regional", "draft", "audited",
			"internal", "archived", "preliminary", "revised",
		},
		PieceCategories: []string{
			"sales data", "market analysis", "customer survey",
			"supply forecast", "pricing model", "risk assessment",
			"competitor brief", "budget projection", "inventory report",
			"compliance review",
		},
		TaskTemplates: []string{
			"Compile a briefing that combines: %s",
			"Produce a consolidated report covering: %s",
			"Cross-check and merge the following sources: %s",
			"Draft an executive summary synthesizing: %s",
		},
	}
}

// Load reads a catalog from a YAML file. Missing sections fall back to the
// defaults; an empty path returns the defaults unchanged.
func Load(path string) (Catalog, error) {
	cat := Default()
	if path == "" {
		return cat, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var loaded Catalog
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(loaded.PieceQualifiers) > 0 {
		cat.PieceQualifiers = loaded.PieceQualifiers
	}
	if len(loaded.PieceCategories) > 0 {
		cat.PieceCategories = loaded.PieceCategories
	}
	if len(loaded.TaskTemplates) > 0 {
		cat.TaskTemplates = loaded.TaskTemplates
	}
	return cat, nil
}

// GeneratePieceNames draws total unique names from the qualifier x category
// cross product.
func (c Catalog) GeneratePieceNames(rng *rand.Rand, total int) ([]string, error) {
	capacity := len(c.PieceQualifiers) * len(c.PieceCategories)
	if total <= 0 {
		return nil, domain.ConfigurationError{Reason: "total pieces must be positive"}
	}
	if total > capacity {
		return nil, domain.ConfigurationError{Reason: fmt.Sprintf(
			"catalog vocabulary supports %d unique pieces, %d requested", capacity, total,
		)}
	}

	combos := make([]string, 0, capacity)
	for _, qualifier := range c.PieceQualifiers {
		for _, category := range c.PieceCategories {
			combos = append(combos, qualifier+" "+category)
		}
	}
	rng.Shuffle(len(combos), func(i, j int) {
		combos[i], combos[j] = combos[j], combos[i]
	})
	return combos[:total], nil
}
