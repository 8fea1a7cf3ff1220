package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a minimal JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the orchestrator.
// Messages arrive already protocol-prepared and stripped of orchestration
// metadata.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial chunks
// carry Delta; the final chunk carries the accumulated Content plus any tool
// calls the model requested.
type Response struct {
	Partial      bool            `json:"partial"`
	Delta        string          `json:"delta,omitempty"`
	Content      string          `json:"content,omitempty"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Usage        *TokenUsage     `json:"usage,omitempty"`
}

// Info describes a model implementation and the history dialect it requires.
type Info struct {
	Name          string        `json:"name"`
	Provider      string        `json:"provider"`
	Dialect       core.Protocol `json:"dialect"`
	SupportsTools bool          `json:"supports_tools"`
	// StrictToolPairing marks providers requiring every function_call to be
	// immediately followed by its output in replayed history.
	StrictToolPairing bool `json:"strict_tool_pairing"`
	// EmitsPlaceholderIDs marks providers that stream a constant placeholder
	// identifier per item, requiring call_id/output-index correlation.
	EmitsPlaceholderIDs bool `json:"emits_placeholder_ids"`
}

// Model is the minimal interface the orchestrator needs to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns metadata about the model implementation.
	Info() Info
}

// MockTurn scripts one turn of a MockModel: optional streamed chunks, final
// text, and tool calls to request.
type MockTurn struct {
	Text      string
	Chunks    []string
	ToolCalls []core.ToolCall
}

// MockModel is a lightweight in-memory Model for tests and examples. Turns
// are consumed in order; once exhausted it echoes the last user message,
// optionally behind a fixed delay.
type MockModel struct {
	mu         sync.Mutex
	info       Info
	turns      []MockTurn
	next       int
	echoPrefix string
	delay      time.Duration
}

// NewMockModel constructs a MockModel speaking the given dialect with tool
// support enabled.
func NewMockModel(name string, dialect core.Protocol) *MockModel {
	return &MockModel{
		info: Info{Name: name, Provider: "mock", Dialect: dialect, SupportsTools: true},
	}
}

// AddTurn appends a scripted turn.
func (m *MockModel) AddTurn(turn MockTurn) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return m
}

// SetEcho makes the fallback response prefix+<last user message> instead of
// the default mock text.
func (m *MockModel) SetEcho(prefix string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echoPrefix = prefix
	return m
}

// SetDelay inserts a fixed pause before each generation, handy for
// exercising concurrency windows in tests.
func (m *MockModel) SetDelay(d time.Duration) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	var turn MockTurn
	scripted := m.next < len(m.turns)
	if scripted {
		turn = m.turns[m.next]
		m.next++
	}
	echoPrefix, delay := m.echoPrefix, m.delay
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if delay > 0 {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-time.After(delay):
			}
		}

		if !scripted {
			turn.Text = fmt.Sprintf("Mock response to: %s", lastUserText(req.Messages))
			if echoPrefix != "" {
				turn.Text = echoPrefix + lastUserText(req.Messages)
			}
		}

		if req.Stream {
			chunks := turn.Chunks
			if len(chunks) == 0 && turn.Text != "" {
				chunks = []string{turn.Text}
			}
			for _, c := range chunks {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Delta: c}:
				}
			}
		}

		finish := "stop"
		if len(turn.ToolCalls) > 0 {
			finish = "tool_calls"
		}
		respCh <- Response{
			Partial:      false,
			Content:      turn.Text,
			ToolCalls:    turn.ToolCalls,
			FinishReason: finish,
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func lastUserText(messages []core.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == core.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
