// Package batch executes independent simulation runs on a worker pool. Runs
// share nothing, so there is no cross-run synchronization; a failed run is
// reported in its result and never stops the others.
package batch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"info_arena/internal/domain"
	"info_arena/internal/engine"
)

type Result struct {
	Index    int
	RunID    string
	Rankings []domain.ScoreEntry
	Err      error
}

type Runner struct {
	workers int
	logger  *log.Logger
}

func NewRunner(workers int, logger *log.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{workers: workers, logger: logger}
}

// Run builds and executes `runs` simulations, at most `workers` at a time.
// Results come back indexed by run position regardless of finish order.
func (r *Runner) Run(ctx context.Context, runs int, build func(index int) (*engine.Engine, error)) []Result {
	if runs <= 0 {
		return nil
	}
	results := make([]Result, runs)
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				results[index] = r.runOne(ctx, index, build)
			}
		}()
	}
	for index := 0; index < runs; index++ {
		jobs <- index
	}
	close(jobs)
	wg.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, index int, build func(index int) (*engine.Engine, error)) Result {
	eng, err := build(index)
	if err != nil {
		return Result{Index: index, Err: fmt.Errorf("build run %d: %w", index, err)}
	}
	result := Result{Index: index, RunID: eng.RunID()}
	if err := eng.Run(ctx); err != nil {
		result.Err = err
		r.logger.Printf("batch run failed index=%d run=%s err=%v", index, eng.RunID(), err)
		return result
	}
	result.Rankings = eng.Rankings()
	return result
}
