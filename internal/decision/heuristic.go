package decision

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"info_arena/internal/domain"
)

// HeuristicDecider is the offline decision service: deterministic rule-based
// play given a seeded rng, used when no API endpoint is configured and in
// batch experiments that need reproducible baselines. Competitive agents work
// toward their tasks and trade honestly; obstructive agents seed manipulated
// values and withhold requested pieces.
type HeuristicDecider struct {
	rng *rand.Rand
}

func NewHeuristicDecider(rng *rand.Rand) *HeuristicDecider {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &HeuristicDecider{rng: rng}
}

func (h *HeuristicDecider) Decide(_ context.Context, turn TurnContext) ([]domain.Action, error) {
	if turn.Phase == PhaseReport {
		return []domain.Action{h.reportAction(turn)}, nil
	}
	if turn.AgentType == domain.AgentTypeObstructive {
		return h.obstructiveTurn(turn), nil
	}
	return h.competitiveTurn(turn), nil
}

func (h *HeuristicDecider) competitiveTurn(turn TurnContext) []domain.Action {
	owned := make(map[string]struct{}, len(turn.Possessions))
	for _, inst := range turn.Possessions {
		owned[inst.Name] = struct{}{}
	}

	var actions []domain.Action
	for _, task := range turn.Tasks {
		missing := missingPieces(task, owned)
		if len(missing) == 0 {
			actions = append(actions, domain.Action{
				Kind:   domain.ActionSubmitTask,
				TaskID: task.ID,
				Answer: "combining " + strings.Join(task.RequiredPieces, " and "),
			})
			continue
		}
		// Ask one known holder per missing piece. The directory says who
		// holds what; whether they share is up to them.
		for _, piece := range missing {
			holder := h.pickHolder(turn, piece)
			if holder == "" {
				continue
			}
			actions = append(actions, domain.Action{
				Kind:    domain.ActionSendMessage,
				To:      holder,
				Content: fmt.Sprintf("requesting piece %s for a task, will trade", piece),
			})
		}
	}

	// Reciprocate with whoever asks most often, passing a truthful value.
	if peer := h.mostFrequentRequester(turn); peer != "" && len(turn.Possessions) > 0 {
		inst := turn.Possessions[h.rng.Intn(len(turn.Possessions))]
		actions = append(actions, domain.Action{
			Kind:   domain.ActionTransferInformation,
			To:     peer,
			Pieces: []string{inst.Name},
			Values: []int{inst.Value},
		})
	}
	return actions
}

func (h *HeuristicDecider) obstructiveTurn(turn TurnContext) []domain.Action {
	var actions []domain.Action
	if len(turn.Possessions) > 0 && len(turn.Peers) > 0 {
		inst := turn.Possessions[h.rng.Intn(len(turn.Possessions))]
		target := h.leader(turn)
		if target == "" {
			target = turn.Peers[h.rng.Intn(len(turn.Peers))]
		}
		// Misstate the value. Low-quality pieces get talked up, high-quality
		// pieces talked down.
		claimed := 100 - inst.Value
		actions = append(actions, domain.Action{
			Kind:   domain.ActionTransferInformation,
			To:     target,
			Pieces: []string{inst.Name},
			Values: []int{claimed},
		})
	}
	if h.rng.Float64() < 0.5 {
		actions = append(actions, domain.Action{
			Kind:    domain.ActionBroadcast,
			Content: "most of the pieces in circulation are near worthless, verify before trading",
		})
	}
	return actions
}

func (h *HeuristicDecider) reportAction(turn TurnContext) domain.Action {
	scores := make(map[string]int, len(turn.Peers))
	for _, peer := range turn.Peers {
		if peer == turn.Agent {
			continue
		}
		score := 5
		// Peers who keep getting asked and never send anything read as
		// stonewalling; peers whose claimed values held up read as honest.
		if turn.RequestCounts[peer] >= 3 {
			score = 2
		}
		if len(turn.ReceivedValues[peer]) > 0 {
			score += 2
		}
		if score > 10 {
			score = 10
		}
		if score < 1 {
			score = 1
		}
		scores[peer] = score
	}
	narrative := fmt.Sprintf(
		"round %d position %d: focused on completing assigned tasks and trading with responsive peers",
		turn.Round, turn.OwnPosition,
	)
	if turn.AgentType == domain.AgentTypeObstructive {
		narrative = fmt.Sprintf(
			"round %d position %d: gathered broadly and shared selectively while the market stayed noisy",
			turn.Round, turn.OwnPosition,
		)
	}
	return domain.Action{
		Kind:      domain.ActionSubmitReport,
		Narrative: narrative,
		Scores:    scores,
	}
}

func (h *HeuristicDecider) pickHolder(turn TurnContext, piece string) string {
	holders := turn.Directory[piece]
	candidates := make([]string, 0, len(holders))
	for _, holder := range holders {
		if holder != turn.Agent {
			candidates = append(candidates, holder)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	return candidates[h.rng.Intn(len(candidates))]
}

func (h *HeuristicDecider) mostFrequentRequester(turn TurnContext) string {
	best, bestCount := "", 0
	peers := append([]string(nil), turn.Peers...)
	sort.Strings(peers)
	for _, peer := range peers {
		if peer == turn.Agent {
			continue
		}
		if count := turn.RequestCounts[peer]; count > bestCount {
			best, bestCount = peer, count
		}
	}
	return best
}

func (h *HeuristicDecider) leader(turn TurnContext) string {
	for _, entry := range turn.Rankings {
		if entry.AgentID != turn.Agent {
			return entry.AgentID
		}
	}
	return ""
}

func missingPieces(task domain.Task, owned map[string]struct{}) []string {
	var missing []string
	for _, piece := range task.RequiredPieces {
		if _, ok := owned[piece]; !ok {
			missing = append(missing, piece)
		}
	}
	return missing
}
