// Package comms owns message and broadcast history. System notifications live
// in a channel disjoint from agent-authored messages: agents form beliefs
// about each other from the agent channels only, and mixing the two would
// poison that signal.
package comms

import (
	"fmt"
	"strings"
	"time"

	"info_arena/internal/domain"
)

type Log struct {
	seq        int64
	direct     []domain.Message
	broadcasts []domain.Message
	system     map[string][]domain.Message

	round       int
	maxPerRound int
	roundCounts map[string]int
}

// NewLog creates a communication log. maxPerRound caps agent-authored
// messages (direct plus broadcast) per sender per round; zero means
// unlimited.
func NewLog(maxPerRound int) *Log {
	return &Log{
		system:      make(map[string][]domain.Message),
		roundCounts: make(map[string]int),
		maxPerRound: maxPerRound,
	}
}

// BeginRound resets the per-round send counters.
func (l *Log) BeginRound(round int) {
	l.round = round
	l.roundCounts = make(map[string]int)
}

// Record appends an agent-authored message with a strictly increasing
// sequence number. Non-broadcast messages must name a recipient.
func (l *Log) Record(from, to, body string, kind domain.MessageKind) (domain.Message, error) {
	switch kind {
	case domain.MessageKindDirect:
		if strings.TrimSpace(to) == "" {
			return domain.Message{}, domain.ValidationError{Reason: "direct message requires a recipient"}
		}
	case domain.MessageKindBroadcast:
		to = domain.BroadcastRecipient
	default:
		return domain.Message{}, domain.ValidationError{Reason: "agents cannot author " + string(kind) + " messages"}
	}
	if l.maxPerRound > 0 && l.roundCounts[from] >= l.maxPerRound {
		return domain.Message{}, domain.ValidationError{Reason: fmt.Sprintf(
			"agent %s exceeded %d messages this round", from, l.maxPerRound,
		)}
	}

	l.seq++
	l.roundCounts[from]++
	msg := domain.Message{
		Seq:       l.seq,
		Round:     l.round,
		Kind:      kind,
		From:      from,
		To:        to,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if kind == domain.MessageKindBroadcast {
		l.broadcasts = append(l.broadcasts, msg)
	} else {
		l.direct = append(l.direct, msg)
	}
	return msg, nil
}

// SystemNotify appends an engine-authored notification visible only to the
// named agent, never merged into the agent-authored history.
func (l *Log) SystemNotify(agent, body string) domain.Message {
	l.seq++
	msg := domain.Message{
		Seq:       l.seq,
		Round:     l.round,
		Kind:      domain.MessageKindSystem,
		From:      "system",
		To:        agent,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	l.system[agent] = append(l.system[agent], msg)
	return msg
}

// RecentFor returns the most recent limit entries of the requested kind
// visible to the agent, oldest of the window first.
func (l *Log) RecentFor(agent string, kind domain.MessageKind, limit int) []domain.Message {
	var visible []domain.Message
	switch kind {
	case domain.MessageKindDirect:
		for _, msg := range l.direct {
			if msg.From == agent || msg.To == agent {
				visible = append(visible, msg)
			}
		}
	case domain.MessageKindBroadcast:
		visible = l.broadcasts
	case domain.MessageKindSystem:
		visible = l.system[agent]
	}
	if limit <= 0 || limit >= len(visible) {
		return append([]domain.Message(nil), visible...)
	}
	return append([]domain.Message(nil), visible[len(visible)-limit:]...)
}
