package domain

import "strings"

type ActionKind string

const (
	ActionSendMessage         ActionKind = "send_message"
	ActionBroadcast           ActionKind = "broadcast"
	ActionTransferInformation ActionKind = "transfer_information"
	ActionSubmitTask          ActionKind = "submit_task"
	ActionSubmitReport        ActionKind = "submit_report"
)

// Action is the closed tagged variant the decision service returns. Exactly
// one kind applies per action; the other fields are ignored for that kind.
type Action struct {
	Kind ActionKind `json:"kind"`

	// send_message / broadcast
	To      string `json:"to,omitempty"`
	Content string `json:"content,omitempty"`

	// transfer_information
	Pieces []string `json:"pieces,omitempty"`
	Values []int    `json:"values,omitempty"`

	// submit_task
	TaskID string `json:"task_id,omitempty"`
	Answer string `json:"answer,omitempty"`

	// submit_report
	Narrative string         `json:"narrative,omitempty"`
	Scores    map[string]int `json:"scores,omitempty"`
}

// Validate checks the per-kind field requirements. Unknown kinds and missing
// fields are rejected here, before any state is touched.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionSendMessage:
		if strings.TrimSpace(a.To) == "" {
			return ValidationError{Reason: "send_message requires a recipient"}
		}
		if a.To == BroadcastRecipient {
			return ValidationError{Reason: "send_message cannot target the broadcast sentinel"}
		}
		if a.Content == "" {
			return ValidationError{Reason: "send_message requires content"}
		}
	case ActionBroadcast:
		if a.Content == "" {
			return ValidationError{Reason: "broadcast requires content"}
		}
	case ActionTransferInformation:
		if strings.TrimSpace(a.To) == "" {
			return ValidationError{Reason: "transfer_information requires a recipient"}
		}
		if len(a.Pieces) == 0 {
			return ValidationError{Reason: "transfer_information requires at least one piece"}
		}
		if len(a.Pieces) != len(a.Values) {
			return ValidationError{Reason: "transfer_information pieces and values must align"}
		}
		for _, v := range a.Values {
			if v < 0 || v > 100 {
				return ValidationError{Reason: "transfer value must be in [0,100]"}
			}
		}
	case ActionSubmitTask:
		if strings.TrimSpace(a.TaskID) == "" {
			return ValidationError{Reason: "submit_task requires a task id"}
		}
		if strings.TrimSpace(a.Answer) == "" {
			return ValidationError{Reason: "submit_task requires an answer"}
		}
	case ActionSubmitReport:
		if strings.TrimSpace(a.Narrative) == "" {
			return ValidationError{Reason: "submit_report requires a narrative"}
		}
		if len(a.Scores) == 0 {
			return ValidationError{Reason: "submit_report requires cooperation scores"}
		}
	default:
		return ValidationError{Reason: "unknown action kind " + string(a.Kind)}
	}
	return nil
}
