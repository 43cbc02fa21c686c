package eventlog

import (
	"encoding/json"
	"testing"

	"info_arena/internal/domain"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func sampleEvents(t *testing.T) []domain.Event {
	t.Helper()
	return []domain.Event{
		{RunID: "r1", Seq: 1, Kind: domain.EventDistributionCreated, Payload: mustJSON(t, domain.DistributionPayload{
			Possessions: map[string][]domain.PieceInstance{
				"alice": {{Name: "alpha", Quality: 70, Value: 70}},
				"bob":   {{Name: "beta", Quality: 60, Value: 60}},
			},
		})},
		{RunID: "r1", Seq: 2, Round: 1, Kind: domain.EventTransferApplied, Payload: mustJSON(t, domain.TransferRecord{
			From: "bob", To: "alice", Piece: "beta", ClaimedValue: 90, Round: 1,
		})},
		{RunID: "r1", Seq: 3, Round: 2, Agent: "alice", Kind: domain.EventTaskCompleted, Payload: mustJSON(t, domain.CompletionPayload{
			TaskID: "t1", Pieces: []string{"alpha", "beta"},
			Breakdown: domain.ScoreBreakdown{Total: 11.5},
		})},
		{RunID: "r1", Seq: 4, Round: 2, Kind: domain.EventSimulationFinished, Payload: mustJSON(t, domain.SimulationFinishedPayload{Rounds: 2})},
	}
}

func TestReplayReconstructsState(t *testing.T) {
	state, err := Replay(sampleEvents(t))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !state.Finished || state.Round != 2 {
		t.Fatalf("final state wrong: finished=%v round=%d", state.Finished, state.Round)
	}
	if _, ok := state.Possessions["alice"]["beta"]; !ok {
		t.Fatalf("transfer not reflected in replayed possessions")
	}
	if _, ok := state.Possessions["bob"]["beta"]; !ok {
		t.Fatalf("sender must keep its copy")
	}
	rankings := state.Rankings()
	if rankings[0].AgentID != "alice" || rankings[0].Points != 11.5 || rankings[0].Completions != 1 {
		t.Fatalf("rankings wrong: %+v", rankings)
	}
}

func TestReplayRejectsOutOfOrderSequence(t *testing.T) {
	events := sampleEvents(t)
	events[2].Seq = 2
	if _, err := Replay(events); err == nil {
		t.Fatalf("expected strictly increasing sequence check to fail")
	}
}

func TestReplayRejectsDoubleCompletion(t *testing.T) {
	events := sampleEvents(t)
	dup := events[2]
	dup.Seq = 5
	events = append(events, dup)
	if _, err := Replay(events); err == nil {
		t.Fatalf("expected duplicate completion to fail replay")
	}
}
