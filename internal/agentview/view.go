// Package agentview maintains each agent's private working memory: a cached
// possession set and a bounded history of its own actions. The cache can drift
// from the authoritative ledger and is reconciled at the start of every turn.
package agentview

import (
	"sort"

	"info_arena/internal/domain"
	"info_arena/internal/ledger"
)

const defaultHistoryLimit = 20

type View struct {
	agent        string
	possessions  map[string]struct{}
	history      []domain.Action
	historyLimit int
}

func New(agent string, historyLimit int) *View {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &View{
		agent:        agent,
		possessions:  make(map[string]struct{}),
		historyLimit: historyLimit,
	}
}

func (v *View) Agent() string { return v.agent }

// NotePossession records a piece the agent believes it holds, typically after
// a transfer lands.
func (v *View) NotePossession(pieceName string) {
	v.possessions[pieceName] = struct{}{}
}

func (v *View) Possessions() []string {
	names := make([]string, 0, len(v.possessions))
	for name := range v.possessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecordAction appends to the bounded history, evicting the oldest entry once
// the limit is reached.
func (v *View) RecordAction(action domain.Action) {
	v.history = append(v.history, action)
	if len(v.history) > v.historyLimit {
		v.history = v.history[len(v.history)-v.historyLimit:]
	}
}

func (v *View) History() []domain.Action {
	return append([]domain.Action(nil), v.history...)
}

// Sync reconciles the cached possession set against the ledger. The ledger
// always wins: after Sync the cache matches the authoritative state exactly,
// and the returned divergence describes what had drifted.
func (v *View) Sync(l *ledger.Ledger) domain.Divergence {
	div := l.Reconcile(v.agent, v.Possessions())
	if div.Empty() {
		return div
	}
	v.possessions = make(map[string]struct{})
	for _, inst := range l.Possessions(v.agent) {
		v.possessions[inst.Name] = struct{}{}
	}
	return div
}
