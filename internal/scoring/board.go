// Package scoring owns cumulative points, ranking computation and penalty
// application.
package scoring

import (
	"sort"

	"info_arena/internal/domain"
)

type Config struct {
	BaseAward   float64
	FirstBonus  float64
	PenaltyRate float64
}

func (c Config) withDefaults() Config {
	if c.BaseAward <= 0 {
		c.BaseAward = 10
	}
	if c.FirstBonus <= 0 {
		c.FirstBonus = 5
	}
	if c.PenaltyRate <= 0 || c.PenaltyRate >= 1 {
		c.PenaltyRate = 0.3
	}
	return c
}

type Board struct {
	cfg     Config
	entries map[string]*domain.ScoreEntry
}

func NewBoard(cfg Config, agentIDs []string) *Board {
	b := &Board{
		cfg:     cfg.withDefaults(),
		entries: make(map[string]*domain.ScoreEntry, len(agentIDs)),
	}
	for _, id := range agentIDs {
		b.entries[id] = &domain.ScoreEntry{AgentID: id}
	}
	return b
}

// ScoreCompletion computes and applies the award for a validated completion.
// The base award scales with the mean quality of the required pieces; a
// manipulated received value among them triggers the penalty factor; exactly
// one first-completion bonus per round is granted by the caller's
// firstThisRound flag.
func (b *Board) ScoreCompletion(agent string, task domain.Task, possessed []domain.PieceInstance, firstThisRound bool) domain.ScoreBreakdown {
	byName := make(map[string]domain.PieceInstance, len(possessed))
	for _, inst := range possessed {
		byName[inst.Name] = inst
	}

	var qualitySum float64
	penalized := false
	for _, name := range task.RequiredPieces {
		inst := byName[name]
		qualitySum += float64(inst.Quality)
		if inst.Manipulated {
			penalized = true
		}
	}
	meanQuality := 0.0
	if len(task.RequiredPieces) > 0 {
		meanQuality = qualitySum / float64(len(task.RequiredPieces))
	}

	breakdown := domain.ScoreBreakdown{
		Base:           b.cfg.BaseAward,
		MeanQuality:    meanQuality,
		Penalized:      penalized,
		FirstThisRound: firstThisRound,
	}
	breakdown.QualityAdjusted = breakdown.Base * meanQuality / 100
	breakdown.PenaltyAdjusted = breakdown.QualityAdjusted
	if penalized {
		breakdown.PenaltyAdjusted = breakdown.QualityAdjusted * (1 - b.cfg.PenaltyRate)
	}
	if firstThisRound {
		breakdown.Bonus = b.cfg.FirstBonus
	}
	breakdown.Total = breakdown.PenaltyAdjusted + breakdown.Bonus

	entry, ok := b.entries[agent]
	if !ok {
		entry = &domain.ScoreEntry{AgentID: agent}
		b.entries[agent] = entry
	}
	entry.Points += breakdown.Total
	entry.Completions++
	return breakdown
}

// Rankings orders agents by cumulative score descending, ties broken by
// agent identity for determinism.
func (b *Board) Rankings() []domain.ScoreEntry {
	result := make([]domain.ScoreEntry, 0, len(b.entries))
	for _, entry := range b.entries {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Points != result[j].Points {
			return result[i].Points > result[j].Points
		}
		return result[i].AgentID < result[j].AgentID
	})
	return result
}

// Position returns the agent's 1-based rank, for own-position-only
// visibility mode.
func (b *Board) Position(agent string) int {
	for i, entry := range b.Rankings() {
		if entry.AgentID == agent {
			return i + 1
		}
	}
	return 0
}

func (b *Board) Entry(agent string) (domain.ScoreEntry, bool) {
	entry, ok := b.entries[agent]
	if !ok {
		return domain.ScoreEntry{}, false
	}
	return *entry, true
}
