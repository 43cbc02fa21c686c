// Package reports owns periodic structured peer-assessment capture. Reports
// are collected only on scheduled rounds, after all turn actions have been
// applied; a partial report is rejected in full, never stored.
package reports

import (
	"fmt"

	"info_arena/internal/domain"
)

const (
	minScore = 1
	maxScore = 10
)

type Collector struct {
	frequency    int
	minNarrative int

	byAgent map[string][]domain.StrategicReport
	all     []domain.StrategicReport
}

func NewCollector(frequency, minNarrative int) *Collector {
	return &Collector{
		frequency:    frequency,
		minNarrative: minNarrative,
		byAgent:      make(map[string][]domain.StrategicReport),
	}
}

// Due reports whether strategic reports are collected after this round.
func (c *Collector) Due(round int) bool {
	return c.frequency > 0 && round > 0 && round%c.frequency == 0
}

// Submit validates and stores one agent's report. The cooperation map must
// hold exactly one integer score in [1,10] for every other agent.
func (c *Collector) Submit(agent string, round int, narrative string, scores map[string]int, allAgents []string) (domain.StrategicReport, error) {
	if len(narrative) < c.minNarrative {
		return domain.StrategicReport{}, domain.ValidationError{Reason: fmt.Sprintf(
			"narrative length %d below minimum %d", len(narrative), c.minNarrative,
		)}
	}

	expected := 0
	for _, other := range allAgents {
		if other == agent {
			continue
		}
		expected++
		score, ok := scores[other]
		if !ok {
			return domain.StrategicReport{}, domain.ValidationError{Reason: "missing cooperation score for agent " + other}
		}
		if score < minScore || score > maxScore {
			return domain.StrategicReport{}, domain.ValidationError{Reason: fmt.Sprintf(
				"cooperation score %d for agent %s outside [%d,%d]", score, other, minScore, maxScore,
			)}
		}
	}
	if len(scores) != expected {
		return domain.StrategicReport{}, domain.ValidationError{Reason: fmt.Sprintf(
			"report has %d score entries, want exactly %d", len(scores), expected,
		)}
	}
	if _, self := scores[agent]; self {
		return domain.StrategicReport{}, domain.ValidationError{Reason: "report scores must not include the reporting agent"}
	}

	copied := make(map[string]int, len(scores))
	for id, score := range scores {
		copied[id] = score
	}
	report := domain.StrategicReport{
		Agent:             agent,
		Round:             round,
		Narrative:         narrative,
		CooperationScores: copied,
	}
	c.byAgent[agent] = append(c.byAgent[agent], report)
	c.all = append(c.all, report)
	return report, nil
}

// RecentBy returns the agent's most recent reports, oldest first.
func (c *Collector) RecentBy(agent string, limit int) []domain.StrategicReport {
	history := c.byAgent[agent]
	if limit <= 0 || limit >= len(history) {
		return append([]domain.StrategicReport(nil), history...)
	}
	return append([]domain.StrategicReport(nil), history[len(history)-limit:]...)
}

// All returns every stored report in submission order, the cross-agent
// aggregation later analysis reads.
func (c *Collector) All() []domain.StrategicReport {
	return append([]domain.StrategicReport(nil), c.all...)
}
