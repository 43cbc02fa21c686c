// Package config loads the TOML run configuration. The loaded value is
// immutable and threaded through constructors; batch runs derive per-run
// seeds from it without sharing state.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Scoring    ScoringConfig    `toml:"scoring"`
	Reports    ReportsConfig    `toml:"reports"`
	Comms      CommsConfig      `toml:"comms"`
	Decider    DeciderConfig    `toml:"decider"`
	Storage    StorageConfig    `toml:"storage"`
	Server     ServerConfig     `toml:"server"`

	Raw  map[string]any `toml:"-"`
	Path string         `toml:"-"`
}

type SimulationConfig struct {
	Rounds           int    `toml:"rounds"`
	AgentCount       int    `toml:"agent_count"`
	ObstructiveCount int    `toml:"obstructive_count"`
	TotalPieces      int    `toml:"total_pieces"`
	PiecesPerAgent   int    `toml:"pieces_per_agent"`
	PiecesPerTask    int    `toml:"pieces_per_task"`
	ReplenishTasks   bool   `toml:"replenish_tasks"`
	Visibility       string `toml:"ranking_visibility"`
	Seed             int64  `toml:"seed"`
	Runs             int    `toml:"runs"`
	Workers          int    `toml:"workers"`
	CatalogPath      string `toml:"catalog_path"`
}

type ScoringConfig struct {
	BaseAward   float64 `toml:"base_award"`
	FirstBonus  float64 `toml:"first_bonus"`
	PenaltyRate float64 `toml:"penalty_rate"`
}

type ReportsConfig struct {
	Frequency    int `toml:"frequency"`
	MinNarrative int `toml:"min_narrative"`
	Window       int `toml:"window"`
}

type CommsConfig struct {
	MaxMessagesPerRound int `toml:"max_messages_per_round"`
	MessageWindow       int `toml:"message_window"`
	BroadcastWindow     int `toml:"broadcast_window"`
	SystemWindow        int `toml:"system_window"`
}

type DeciderConfig struct {
	Kind      string `toml:"kind"`
	Endpoint  string `toml:"endpoint"`
	Model     string `toml:"model"`
	AuthToken string `toml:"auth_token"`
	TimeoutMS int    `toml:"timeout_ms"`
	Retries   int    `toml:"retries"`
}

type StorageConfig struct {
	DBPath     string `toml:"db_path"`
	ArchiveDir string `toml:"archive_dir"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

func Load(path string) (Config, error) {
	resolved := filepath.Clean(path)
	bytes, err := os.ReadFile(resolved)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(bytes), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}
	var raw map[string]any
	if _, err := toml.Decode(string(bytes), &raw); err != nil {
		return Config{}, fmt.Errorf("decode raw config: %w", err)
	}
	cfg.Raw = raw
	cfg.Path = resolved
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.Simulation.Rounds <= 0 {
		c.Simulation.Rounds = 10
	}
	if c.Simulation.AgentCount <= 0 {
		c.Simulation.AgentCount = 4
	}
	if c.Simulation.TotalPieces <= 0 {
		c.Simulation.TotalPieces = 12
	}
	if c.Simulation.PiecesPerAgent <= 0 {
		c.Simulation.PiecesPerAgent = 5
	}
	if c.Simulation.PiecesPerTask <= 0 {
		c.Simulation.PiecesPerTask = 4
	}
	if c.Simulation.Visibility == "" {
		c.Simulation.Visibility = "full"
	}
	if c.Simulation.Runs <= 0 {
		c.Simulation.Runs = 1
	}
	if c.Simulation.Workers <= 0 {
		c.Simulation.Workers = 1
	}
	if c.Reports.Frequency < 0 {
		c.Reports.Frequency = 0
	}
	if c.Reports.MinNarrative <= 0 {
		c.Reports.MinNarrative = 40
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "info_arena.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8090"
	}
	return c
}

// Validate rejects configurations no run could start from.
func (c Config) Validate() error {
	if c.Simulation.ObstructiveCount < 0 || c.Simulation.ObstructiveCount > c.Simulation.AgentCount {
		return fmt.Errorf("obstructive_count %d outside [0,%d]", c.Simulation.ObstructiveCount, c.Simulation.AgentCount)
	}
	if c.Simulation.PiecesPerAgent*c.Simulation.AgentCount < c.Simulation.TotalPieces {
		return fmt.Errorf("%d agents with %d pieces each cannot cover %d total pieces",
			c.Simulation.AgentCount, c.Simulation.PiecesPerAgent, c.Simulation.TotalPieces)
	}
	if c.Simulation.PiecesPerTask > c.Simulation.TotalPieces {
		return fmt.Errorf("pieces_per_task %d exceeds total_pieces %d",
			c.Simulation.PiecesPerTask, c.Simulation.TotalPieces)
	}
	switch c.Simulation.Visibility {
	case "full", "own":
	default:
		return fmt.Errorf("unknown ranking_visibility %q", c.Simulation.Visibility)
	}
	if c.Decider.Kind == "api" && c.Decider.Endpoint == "" {
		return fmt.Errorf("decider kind api requires an endpoint")
	}
	return nil
}
