package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arena.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[simulation]
rounds = 6
agent_count = 3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulation.Rounds != 6 || cfg.Simulation.AgentCount != 3 {
		t.Fatalf("explicit values lost: %+v", cfg.Simulation)
	}
	if cfg.Simulation.PiecesPerTask != 4 || cfg.Simulation.Visibility != "full" {
		t.Fatalf("defaults not applied: %+v", cfg.Simulation)
	}
	if cfg.Storage.DBPath != "info_arena.db" {
		t.Fatalf("db path default missing: %q", cfg.Storage.DBPath)
	}
	if cfg.Raw == nil || cfg.Path != path {
		t.Fatalf("raw decode or path missing")
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[simulation]
rounds = 20
agent_count = 6
obstructive_count = 2
total_pieces = 18
pieces_per_agent = 5
pieces_per_task = 3
replenish_tasks = true
ranking_visibility = "own"
seed = 99
runs = 4
workers = 2

[scoring]
base_award = 12.0
first_bonus = 4.0
penalty_rate = 0.25

[reports]
frequency = 5
min_narrative = 80

[comms]
max_messages_per_round = 6

[decider]
kind = "api"
endpoint = "http://localhost:9000/v1/chat/completions"
model = "arena-model"
timeout_ms = 20000

[storage]
db_path = "runs.db"
archive_dir = "archives"

[server]
addr = "127.0.0.1:9100"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Simulation.ObstructiveCount != 2 || cfg.Scoring.PenaltyRate != 0.25 {
		t.Fatalf("values not decoded: %+v", cfg)
	}
	if cfg.Decider.Kind != "api" || cfg.Comms.MaxMessagesPerRound != 6 {
		t.Fatalf("sections not decoded: %+v", cfg)
	}
}

func TestValidateRejectsImpossibleCoverage(t *testing.T) {
	path := writeConfig(t, `
[simulation]
agent_count = 2
pieces_per_agent = 2
total_pieces = 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected coverage validation failure")
	}
}

func TestValidateRejectsAPIDeciderWithoutEndpoint(t *testing.T) {
	path := writeConfig(t, `
[decider]
kind = "api"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected endpoint validation failure")
	}
}
