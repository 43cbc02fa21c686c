package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"info_arena/internal/batch"
	"info_arena/internal/catalog"
	"info_arena/internal/config"
	"info_arena/internal/decision"
	"info_arena/internal/domain"
	"info_arena/internal/engine"
	"info_arena/internal/eventbus"
	"info_arena/internal/eventlog/archive"
	sqlitelog "info_arena/internal/eventlog/sqlite"
	"info_arena/internal/scoring"
	"info_arena/internal/transport"
)

type app struct {
	cfg    config.Config
	store  *sqlitelog.Store
	stream *transport.StreamServer
}

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	addrFlag := flag.String("addr", "", "http listen address override")
	dbPathFlag := flag.String("db", "", "sqlite database path override")
	archiveFlag := flag.String("archive", "", "event archive directory override")
	runsFlag := flag.Int("runs", 0, "number of simulation runs override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *runsFlag > 0 {
		cfg.Simulation.Runs = *runsFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	addr := firstNonEmpty(*addrFlag, cfg.Server.Addr, "127.0.0.1:8090")
	dbPath := filepath.Clean(firstNonEmpty(*dbPathFlag, cfg.Storage.DBPath, "info_arena.db"))
	archiveDir := firstNonEmpty(*archiveFlag, cfg.Storage.ArchiveDir, "")

	vocab, err := catalog.Load(cfg.Simulation.CatalogPath)
	if err != nil {
		log.Fatalf("load piece catalog: %v", err)
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create db directory: %v", err)
		}
	}

	store, err := sqlitelog.Open(dbPath)
	if err != nil {
		log.Fatalf("open sqlite event log: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migrate sqlite: %v", err)
	}

	bus := eventbus.New(256)

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	archives := &archiveSet{dir: archiveDir}
	defer func() {
		_ = archives.CloseAll()
	}()

	build := func(index int) (*engine.Engine, error) {
		runSeed := seed + int64(index)
		runID := uuid.NewString()

		rng := rand.New(rand.NewSource(runSeed))
		pieces, err := vocab.GeneratePieceNames(rng, cfg.Simulation.TotalPieces)
		if err != nil {
			return nil, err
		}

		engCfg := engine.Config{
			RunID:               runID,
			Rounds:              cfg.Simulation.Rounds,
			Agents:              agentSpecs(cfg.Simulation.AgentCount, cfg.Simulation.ObstructiveCount),
			PieceNames:          pieces,
			PiecesPerAgent:      cfg.Simulation.PiecesPerAgent,
			TaskTemplates:       vocab.TaskTemplates,
			PiecesPerTask:       cfg.Simulation.PiecesPerTask,
			ReplenishTasks:      cfg.Simulation.ReplenishTasks,
			Scoring: scoring.Config{
				BaseAward:   cfg.Scoring.BaseAward,
				FirstBonus:  cfg.Scoring.FirstBonus,
				PenaltyRate: cfg.Scoring.PenaltyRate,
			},
			ReportFrequency:     cfg.Reports.Frequency,
			MinNarrative:        cfg.Reports.MinNarrative,
			ReportWindow:        cfg.Reports.Window,
			MaxMessagesPerRound: cfg.Comms.MaxMessagesPerRound,
			Visibility:          domain.RankingVisibility(cfg.Simulation.Visibility),
			MessageWindow:       cfg.Comms.MessageWindow,
			BroadcastWindow:     cfg.Comms.BroadcastWindow,
			SystemWindow:        cfg.Comms.SystemWindow,
			DecisionTimeout:     durationMS(cfg.Decider.TimeoutMS, 30*time.Second),
			Seed:                runSeed,
		}

		decider, err := buildDecider(cfg.Decider, runSeed)
		if err != nil {
			return nil, err
		}

		sinks := []engine.Sink{store, bus}
		if archiveDir != "" {
			sinks = append(sinks, archives.ForRun())
		}

		snapshot, _ := json.Marshal(map[string]any{
			"rounds":            engCfg.Rounds,
			"agent_count":       cfg.Simulation.AgentCount,
			"obstructive_count": cfg.Simulation.ObstructiveCount,
			"total_pieces":      cfg.Simulation.TotalPieces,
			"seed":              runSeed,
			"decider":           firstNonEmpty(cfg.Decider.Kind, "heuristic"),
		})
		if err := store.CreateRun(ctx, domain.Run{
			ID:        runID,
			Config:    snapshot,
			StartedAt: time.Now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("create run record: %w", err)
		}

		return engine.New(engCfg, decider, multiSink(sinks), log.Default()), nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		runner := batch.NewRunner(cfg.Simulation.Workers, log.Default())
		results := runner.Run(ctx, cfg.Simulation.Runs, build)
		for _, res := range results {
			if res.Err != nil {
				continue
			}
			if err := store.FinishRun(ctx, res.RunID, res.Rankings); err != nil {
				log.Printf("finish run run=%s err=%v", res.RunID, err)
				continue
			}
			if len(res.Rankings) > 0 {
				top := res.Rankings[0]
				log.Printf("run finished run=%s winner=%s points=%.1f", res.RunID, top.AgentID, top.Points)
			}
		}
	}()

	a := &app{
		cfg:    cfg,
		store:  store,
		stream: transport.NewStreamServer(bus, log.Default()),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/config", a.handleConfig)
	mux.HandleFunc("/runs", a.handleRuns)
	mux.HandleFunc("/runs/", a.handleRunByID)

	server := &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf(
		"info_arena started addr=%s db=%s runs=%d agents=%d rounds=%d decider=%s",
		addr,
		dbPath,
		cfg.Simulation.Runs,
		cfg.Simulation.AgentCount,
		cfg.Simulation.Rounds,
		firstNonEmpty(cfg.Decider.Kind, "heuristic"),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server failed: %v", err)
	}
	<-done
}

func (a *app) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *app) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"path": a.cfg.Path,
		"raw":  a.cfg.Raw,
	})
}

func (a *app) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := queryInt(r, "limit", 50)
	runs, err := a.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *app) handleRunByID(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/runs/")
	parts := strings.Split(trimmed, "/")
	runID := parts[0]
	if runID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("run id is required"))
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		run, err := a.store.GetRun(r.Context(), runID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	action := parts[1]
	switch action {
	case "rankings":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		run, err := a.store.GetRun(r.Context(), runID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, run.Rankings)
	case "events":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		afterSeq := int64(queryInt(r, "after_seq", 0))
		limit := queryInt(r, "limit", 1000)
		events, err := a.store.ListEvents(r.Context(), runID, afterSeq, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	case "stream":
		a.stream.Handler(func(r *http.Request) string {
			trimmed := strings.TrimPrefix(r.URL.Path, "/runs/")
			return strings.Split(trimmed, "/")[0]
		})(w, r)
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown action: %s", action))
	}
}

// multiSink fans an event out to every sink; the first failure aborts the
// write so the engine sees it as fatal.
type multiSink []engine.Sink

func (m multiSink) Append(ctx context.Context, event domain.Event) error {
	for _, s := range m {
		if err := s.Append(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// archiveSet hands out one archive writer per run. Concurrent runs cannot
// share a writer because each writer keeps a single open file.
type archiveSet struct {
	dir string

	mu      sync.Mutex
	writers []*archive.Writer
}

func (a *archiveSet) ForRun() *archive.Writer {
	a.mu.Lock()
	defer a.mu.Unlock()
	w := archive.NewWriter(a.dir)
	a.writers = append(a.writers, w)
	return w
}

func (a *archiveSet) CloseAll() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for _, w := range a.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func agentSpecs(total, obstructive int) []engine.AgentSpec {
	specs := make([]engine.AgentSpec, 0, total)
	for i := 1; i <= total; i++ {
		typ := domain.AgentTypeCompetitive
		if i <= obstructive {
			typ = domain.AgentTypeObstructive
		}
		specs = append(specs, engine.AgentSpec{
			ID:   fmt.Sprintf("agent_%d", i),
			Type: typ,
		})
	}
	return specs
}

func buildDecider(cfg config.DeciderConfig, seed int64) (decision.Decider, error) {
	if cfg.Kind == "api" {
		return decision.NewAPIDecider(decision.APIDeciderConfig{
			Endpoint:  cfg.Endpoint,
			Model:     cfg.Model,
			AuthToken: cfg.AuthToken,
			Timeout:   durationMS(cfg.TimeoutMS, 0),
			Retries:   cfg.Retries,
			Logger:    log.Default(),
		})
	}
	return decision.NewHeuristicDecider(rand.New(rand.NewSource(seed))), nil
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func durationMS(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
