package domain

import "fmt"

// ConfigurationError aborts a run before round 1. All other errors in this
// file are per-action: they reject the single action and the round continues.
type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NotPossessedError rejects a transfer referencing a piece the sender does
// not hold. A claim alone never moves a piece.
type NotPossessedError struct {
	Agent string
	Piece string
}

func (e NotPossessedError) Error() string {
	return fmt.Sprintf("agent %s does not possess piece %q", e.Agent, e.Piece)
}

// UnauthorizedClaimError rejects a task submission naming a piece the
// submitting agent does not actually possess, however complete the answer
// text looks.
type UnauthorizedClaimError struct {
	Agent  string
	TaskID string
	Piece  string
}

func (e UnauthorizedClaimError) Error() string {
	return fmt.Sprintf("agent %s claims piece %q for task %s without possessing it", e.Agent, e.Piece, e.TaskID)
}

// IncompleteAnswerError rejects a task submission whose answer text does not
// mention every required piece name.
type IncompleteAnswerError struct {
	TaskID  string
	Missing []string
}

func (e IncompleteAnswerError) Error() string {
	return fmt.Sprintf("answer for task %s is missing required pieces %v", e.TaskID, e.Missing)
}

// ValidationError rejects malformed reports, messages and action payloads.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return "validation error: " + e.Reason
}

// DecisionServiceError marks a failed or timed-out decision call. The turn
// degrades to an empty action list; it is never fatal to the round.
type DecisionServiceError struct {
	Agent string
	Cause error
}

func (e DecisionServiceError) Error() string {
	return fmt.Sprintf("decision service failed for agent %s: %v", e.Agent, e.Cause)
}

func (e DecisionServiceError) Unwrap() error {
	return e.Cause
}
