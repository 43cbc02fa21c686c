// Package ledger owns the canonical mapping of information-piece ownership.
// It is the single source of truth: agent-local caches are reconciled against
// it and never trusted for validation.
package ledger

import (
	"fmt"
	"math/rand"
	"sort"

	"info_arena/internal/domain"
)

type Ledger struct {
	qualities map[string]int
	// owners maps agent -> piece name -> instance. Each possession is a
	// distinct instance; only quality is shared across instances of a name.
	owners    map[string]map[string]domain.PieceInstance
	directory map[string]map[string]struct{}
}

func New() *Ledger {
	return &Ledger{
		qualities: make(map[string]int),
		owners:    make(map[string]map[string]domain.PieceInstance),
		directory: make(map[string]map[string]struct{}),
	}
}

// InitializeDistribution assigns every generated piece name to at least one
// agent, then fills the remaining per-agent slots by random sampling with
// replacement across agents. Duplicates across agents are intentional; they
// create the partial redundancy the experiment needs. Quality per name is
// drawn once from a fixed categorical distribution and applied to every
// instance of that name.
func (l *Ledger) InitializeDistribution(rng *rand.Rand, pieceNames []string, agentIDs []string, piecesPerAgent int) error {
	if len(agentIDs) == 0 {
		return domain.ConfigurationError{Reason: "no agents to distribute pieces to"}
	}
	if piecesPerAgent <= 0 {
		return domain.ConfigurationError{Reason: "pieces per agent must be positive"}
	}
	if piecesPerAgent*len(agentIDs) < len(pieceNames) {
		return domain.ConfigurationError{Reason: fmt.Sprintf(
			"%d agents with %d slots each cannot cover %d pieces",
			len(agentIDs), piecesPerAgent, len(pieceNames),
		)}
	}

	for _, name := range pieceNames {
		if _, exists := l.qualities[name]; exists {
			return domain.ConfigurationError{Reason: fmt.Sprintf("piece name %q generated twice", name)}
		}
		l.qualities[name] = rollQuality(rng)
		l.directory[name] = make(map[string]struct{})
	}
	for _, id := range agentIDs {
		l.owners[id] = make(map[string]domain.PieceInstance)
	}

	// Covering pass: every piece lands with at least one agent.
	for i, name := range pieceNames {
		agent := agentIDs[i%len(agentIDs)]
		l.assign(agent, name)
	}

	// Fill pass: remaining slots sampled with replacement across agents.
	for _, id := range agentIDs {
		attempts := 0
		for len(l.owners[id]) < piecesPerAgent && attempts < len(pieceNames)*8 {
			name := pieceNames[rng.Intn(len(pieceNames))]
			l.assign(id, name)
			attempts++
		}
	}
	return nil
}

func (l *Ledger) assign(agent, name string) {
	if _, owned := l.owners[agent][name]; owned {
		return
	}
	quality := l.qualities[name]
	l.owners[agent][name] = domain.PieceInstance{
		Name:    name,
		Quality: quality,
		Value:   quality,
	}
	l.directory[name][agent] = struct{}{}
}

// Transfer copies a piece from one agent to another with a sender-claimed
// value. Information is non-rivalrous: the sender keeps its copy. Ownership
// and directory update in the same operation, so callers never observe a
// stale directory.
func (l *Ledger) Transfer(from, to, pieceName string, claimedValue, round int) (domain.TransferRecord, error) {
	senderInst, ok := l.owners[from][pieceName]
	if !ok {
		return domain.TransferRecord{}, domain.NotPossessedError{Agent: from, Piece: pieceName}
	}
	if _, ok := l.owners[to]; !ok {
		return domain.TransferRecord{}, domain.ValidationError{Reason: "unknown recipient " + to}
	}

	manipulated := claimedValue != senderInst.Value
	l.owners[to][pieceName] = domain.PieceInstance{
		Name:         pieceName,
		Quality:      l.qualities[pieceName],
		Value:        claimedValue,
		ReceivedFrom: from,
		Manipulated:  manipulated,
	}
	l.directory[pieceName][to] = struct{}{}

	return domain.TransferRecord{
		From:         from,
		To:           to,
		Piece:        pieceName,
		Quality:      l.qualities[pieceName],
		ClaimedValue: claimedValue,
		SenderValue:  senderInst.Value,
		Manipulated:  manipulated,
		Round:        round,
	}, nil
}

// DirectorySnapshot maps each piece name to the agents currently holding it.
// No value or quality leaks through this view.
func (l *Ledger) DirectorySnapshot() map[string][]string {
	snapshot := make(map[string][]string, len(l.directory))
	for name, holders := range l.directory {
		ids := make([]string, 0, len(holders))
		for id := range holders {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		snapshot[name] = ids
	}
	return snapshot
}

func (l *Ledger) Possesses(agent, pieceName string) bool {
	_, ok := l.owners[agent][pieceName]
	return ok
}

func (l *Ledger) Possessions(agent string) []domain.PieceInstance {
	owned := l.owners[agent]
	result := make([]domain.PieceInstance, 0, len(owned))
	for _, inst := range owned {
		result = append(result, inst)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (l *Ledger) Instance(agent, pieceName string) (domain.PieceInstance, bool) {
	inst, ok := l.owners[agent][pieceName]
	return inst, ok
}

func (l *Ledger) Quality(pieceName string) (int, bool) {
	q, ok := l.qualities[pieceName]
	return q, ok
}

func (l *Ledger) PieceNames() []string {
	names := make([]string, 0, len(l.qualities))
	for name := range l.qualities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reconcile compares an agent's locally cached possession set against the
// ledger. Callers resolve any discrepancy in favor of the ledger before any
// validation decision.
func (l *Ledger) Reconcile(agent string, local []string) domain.Divergence {
	localSet := make(map[string]struct{}, len(local))
	for _, name := range local {
		localSet[name] = struct{}{}
	}
	div := domain.Divergence{Agent: agent}
	for name := range l.owners[agent] {
		if _, ok := localSet[name]; !ok {
			div.Missing = append(div.Missing, name)
		}
	}
	for name := range localSet {
		if _, ok := l.owners[agent][name]; !ok {
			div.Extra = append(div.Extra, name)
		}
	}
	sort.Strings(div.Missing)
	sort.Strings(div.Extra)
	return div
}

// rollQuality draws from the fixed categorical distribution:
// 5% in [0,19], 15% in [20,59], 60% in [60,79], 20% in [80,100].
func rollQuality(rng *rand.Rand) int {
	roll := rng.Float64()
	switch {
	case roll < 0.05:
		return rng.Intn(20)
	case roll < 0.20:
		return 20 + rng.Intn(40)
	case roll < 0.80:
		return 60 + rng.Intn(20)
	default:
		return 80 + rng.Intn(21)
	}
}
