// Package tasks owns task definitions, generation and possession-based
// submission validation.
package tasks

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/google/uuid"

	"info_arena/internal/domain"
)

// PossessionChecker is the slice of the ledger that submission validation
// needs. Local agent caches never satisfy this; the ledger does.
type PossessionChecker interface {
	Possesses(agent, pieceName string) bool
}

type Registry struct {
	tasks map[string]*domain.Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*domain.Task)}
}

// Generate builds a new unsolved task from requiredCount distinct piece
// names sampled from the universe and a textual template.
func (r *Registry) Generate(rng *rand.Rand, templates []string, universe []string, requiredCount int, assignTo string, round int) (domain.Task, error) {
	if requiredCount <= 0 {
		return domain.Task{}, domain.ConfigurationError{Reason: "task requires at least one piece"}
	}
	if requiredCount > len(universe) {
		return domain.Task{}, domain.ConfigurationError{Reason: fmt.Sprintf(
			"task requires %d distinct pieces, universe has %d", requiredCount, len(universe),
		)}
	}
	if len(templates) == 0 {
		return domain.Task{}, domain.ConfigurationError{Reason: "no task templates configured"}
	}

	indices := rng.Perm(len(universe))[:requiredCount]
	required := make([]string, 0, requiredCount)
	for _, i := range indices {
		required = append(required, universe[i])
	}
	sort.Strings(required)

	template := templates[rng.Intn(len(templates))]
	task := domain.Task{
		ID:             uuid.NewString(),
		Description:    fmt.Sprintf(template, strings.Join(required, ", ")),
		RequiredPieces: required,
		AssignedTo:     assignTo,
		CreatedRound:   round,
	}
	r.tasks[task.ID] = &task
	return task, nil
}

func (r *Registry) Get(taskID string) (domain.Task, bool) {
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.Task{}, false
	}
	return *task, true
}

// ActiveFor returns the agent's unsolved tasks ordered by creation round,
// then id for determinism.
func (r *Registry) ActiveFor(agent string) []domain.Task {
	result := make([]domain.Task, 0)
	for _, task := range r.tasks {
		if task.AssignedTo == agent && !task.Completed {
			result = append(result, *task)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedRound != result[j].CreatedRound {
			return result[i].CreatedRound < result[j].CreatedRound
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ValidateSubmission accepts an answer iff every required piece name appears
// verbatim in the answer text AND the ledger confirms the agent possesses it.
// The double check is the anti-fraud core: an agent cannot claim pieces it
// only saw mentioned by others.
func (r *Registry) ValidateSubmission(agent, taskID, answer string, ledger PossessionChecker) error {
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.ValidationError{Reason: "unknown task " + taskID}
	}
	if task.Completed {
		return domain.ValidationError{Reason: "task " + taskID + " is already completed"}
	}
	if task.AssignedTo != agent {
		return domain.ValidationError{Reason: fmt.Sprintf("task %s is assigned to %s, not %s", taskID, task.AssignedTo, agent)}
	}

	var missing []string
	for _, name := range task.RequiredPieces {
		if !strings.Contains(answer, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return domain.IncompleteAnswerError{TaskID: taskID, Missing: missing}
	}

	for _, name := range task.RequiredPieces {
		if !ledger.Possesses(agent, name) {
			return domain.UnauthorizedClaimError{Agent: agent, TaskID: taskID, Piece: name}
		}
	}
	return nil
}

// Complete marks the task terminal and records who solved it and when.
func (r *Registry) Complete(taskID, agent string, round int) (domain.Task, error) {
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.Task{}, domain.ValidationError{Reason: "unknown task " + taskID}
	}
	if task.Completed {
		return domain.Task{}, domain.ValidationError{Reason: "task " + taskID + " is already completed"}
	}
	task.Completed = true
	task.CompletedBy = agent
	task.CompletedRound = round
	return *task, nil
}
