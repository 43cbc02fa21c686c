package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"info_arena/internal/domain"
)

const (
	defaultAPIRetries        = 2
	defaultAPIRetryBackoff   = 1500 * time.Millisecond
	defaultAPITimeout        = 2 * time.Minute
	defaultMaxOutputTokens   = 4096
	maxHTTPErrorBodyReadSize = 64 * 1024
)

type APIDeciderConfig struct {
	Endpoint        string
	Model           string
	AuthToken       string
	Timeout         time.Duration
	Retries         int
	RetryBackoff    time.Duration
	MaxOutputTokens int
	Logger          *log.Logger
	Client          *http.Client
}

// APIDecider asks a chat-completion endpoint for the agent's actions. The
// model receives the full turn context as JSON and must answer with the
// actions envelope; the reply is schema-validated before it reaches the
// engine.
type APIDecider struct {
	endpoint        string
	model           string
	authToken       string
	retries         int
	retryBackoff    time.Duration
	maxOutputTokens int
	logger          *log.Logger
	client          *http.Client
}

func NewAPIDecider(cfg APIDeciderConfig) (*APIDecider, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("empty API endpoint")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid API endpoint %q: %w", endpoint, err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("empty model")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = defaultAPIRetries
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultAPIRetryBackoff
	}
	maxOutputTokens := cfg.MaxOutputTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = defaultMaxOutputTokens
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &APIDecider{
		endpoint:        endpoint,
		model:           model,
		authToken:       strings.TrimSpace(cfg.AuthToken),
		retries:         retries,
		retryBackoff:    retryBackoff,
		maxOutputTokens: maxOutputTokens,
		logger:          cfg.Logger,
		client:          client,
	}, nil
}

func (d *APIDecider) Decide(ctx context.Context, turn TurnContext) ([]domain.Action, error) {
	var lastErr error
	for attempt := 1; attempt <= d.retries+1; attempt++ {
		actions, err := d.decideOnce(ctx, turn)
		if err == nil {
			return actions, nil
		}
		lastErr = err
		if !isRetryableAPIError(err) || attempt == d.retries+1 {
			break
		}
		wait := time.Duration(attempt) * d.retryBackoff
		d.logger.Printf("decision api retry agent=%s round=%d attempt=%d wait=%s reason=%v",
			turn.Agent, turn.Round, attempt, wait, err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown decision api error")
	}
	return nil, domain.DecisionServiceError{Agent: turn.Agent, Cause: lastErr}
}

func (d *APIDecider) decideOnce(ctx context.Context, turn TurnContext) ([]domain.Action, error) {
	turnJSON, err := json.Marshal(turn)
	if err != nil {
		return nil, fmt.Errorf("marshal turn context: %w", err)
	}
	payload := chatRequest{
		Model:     d.model,
		MaxTokens: d.maxOutputTokens,
		Messages: []chatMessage{
			{Role: "system", Content: instructionsFor(turn.Phase)},
			{Role: "user", Content: string(turnJSON)},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create API request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.authToken)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("decision api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxHTTPErrorBodyReadSize))
		if readErr != nil {
			return nil, fmt.Errorf("decision api status=%d and read body failed: %w", resp.StatusCode, readErr)
		}
		return nil, apiHTTPError{
			statusCode: resp.StatusCode,
			body:       strings.TrimSpace(string(errBody)),
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read decision api response: %w", err)
	}
	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("unmarshal chat response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("chat response has no choices")
	}
	actions, err := ParseActions([]byte(chat.Choices[0].Message.Content))
	if err != nil {
		return nil, fmt.Errorf("parse model output: %w; output: %s", err, truncate(chat.Choices[0].Message.Content, 800))
	}
	return actions, nil
}

func isRetryableAPIError(err error) bool {
	var statusErr apiHTTPError
	if errors.As(err, &statusErr) {
		return statusErr.statusCode == http.StatusTooManyRequests || statusErr.statusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiHTTPError struct {
	statusCode int
	body       string
}

func (e apiHTTPError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("decision api status=%d", e.statusCode)
	}
	return fmt.Sprintf("decision api status=%d body=%s", e.statusCode, e.body)
}

func instructionsFor(phase Phase) string {
	if phase == PhaseReport {
		return reportInstructions
	}
	return turnInstructions
}

const turnInstructions = `You are an agent in a turn-based information-trading simulation.
The user message is your full view of the simulation as JSON.
Return only valid JSON. Do not wrap output in markdown fences.
Required top-level JSON shape:
{
  "actions": [
    {"kind": "send_message", "to": "agent_id", "content": "text"},
    {"kind": "broadcast", "content": "text"},
    {"kind": "transfer_information", "to": "agent_id", "pieces": ["name"], "values": [0]},
    {"kind": "submit_task", "task_id": "id", "answer": "text"}
  ]
}
Values are integers in [0,100]. Submit a task only when your answer mentions
every required piece you actually possess. Do not submit reports this phase.`

const reportInstructions = `You are an agent in a turn-based information-trading simulation.
This is the reporting phase. The user message is your full view as JSON.
Return only valid JSON. Do not wrap output in markdown fences.
Required top-level JSON shape:
{
  "actions": [
    {"kind": "submit_report", "narrative": "your strategy so far", "scores": {"agent_id": 5}}
  ]
}
Scores are integers in [1,10], exactly one per other agent, none for yourself.`
