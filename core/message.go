package core

import (
	"fmt"
	"maps"
	"time"
)

// Role identifies the conversational role of a message. Roles are semantic
// (who speaks), not transport-level.
type Role string

const (
	// RoleUser marks input originating from the human user or a calling agent.
	RoleUser Role = "user"
	// RoleAssistant marks model-produced output.
	RoleAssistant Role = "assistant"
	// RoleSystem marks orchestration guidance (instructions, guardrail output).
	RoleSystem Role = "system"
	// RoleTool marks tool results in the chat-completions dialect.
	RoleTool Role = "tool"
)

// Type discriminates non-chat entries in a thread.
type Type string

const (
	// TypeMessage is a plain conversational message (the default).
	TypeMessage Type = "message"
	// TypeFunctionCall is a tool invocation request emitted by a model.
	TypeFunctionCall Type = "function_call"
	// TypeFunctionCallOutput is the result paired to a TypeFunctionCall via CallID.
	TypeFunctionCallOutput Type = "function_call_output"
	// TypeReasoning is a provider reasoning trace item.
	TypeReasoning Type = "reasoning"
)

// Protocol tags which backend dialect produced a message. Once stamped it is
// never mutated; replaying a thread against a model requiring a different
// dialect is a hard error, not a silent coercion.
type Protocol string

const (
	// ProtocolResponses is the item-based dialect (typed function_call /
	// function_call_output entries, no role=tool messages).
	ProtocolResponses Protocol = "responses"
	// ProtocolChatCompletions is the message-based dialect (assistant
	// tool_calls annotations answered by role=tool messages).
	ProtocolChatCompletions Protocol = "chat-completions"
)

// UserSender is the literal used for the sender slot when the human user
// initiates a thread.
const UserSender = "user"

// ToolCall is the chat-completions style annotation attached to an assistant
// message that requested one or more tool invocations.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is the only persisted entity of the runtime. All fields except the
// Role/Type discriminators are optional; zero values mean "absent".
type Message struct {
	Role        Role   `json:"role,omitempty"`
	Type        Type   `json:"type,omitempty"`
	Agent       string `json:"agent,omitempty"`        // declared recipient / owner
	CallerAgent string `json:"caller_agent,omitempty"` // sender; empty when the human user sent it
	Timestamp   int64  `json:"timestamp,omitempty"`    // milliseconds since epoch, assigned at append

	// Function call correlation. CallID links a function_call to its
	// function_call_output. Name/Arguments belong to the call, Output to
	// the result.
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`

	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	HistoryProtocol Protocol `json:"history_protocol,omitempty"`
	MessageOrigin   string   `json:"message_origin,omitempty"` // provenance tag, auditing only

	// Extra preserves unknown provider fields verbatim.
	Extra map[string]any `json:"extra,omitempty"`
}

// NewUserMessage creates a user-authored text message addressed to agent and
// attributed to caller (empty caller means the human user).
func NewUserMessage(agent, caller, text string) Message {
	return Message{Role: RoleUser, Type: TypeMessage, Agent: agent, CallerAgent: caller, Content: text}
}

// NewAssistantMessage creates an assistant text message owned by agent.
func NewAssistantMessage(agent, caller, text string) Message {
	return Message{Role: RoleAssistant, Type: TypeMessage, Agent: agent, CallerAgent: caller, Content: text}
}

// NewSystemMessage creates a system guidance message for the given thread.
func NewSystemMessage(agent, caller, text string) Message {
	return Message{Role: RoleSystem, Type: TypeMessage, Agent: agent, CallerAgent: caller, Content: text}
}

// NewFunctionCall creates a function_call entry for the given thread.
func NewFunctionCall(agent, caller, callID, name, arguments string) Message {
	return Message{
		Role: RoleAssistant, Type: TypeFunctionCall,
		Agent: agent, CallerAgent: caller,
		CallID: callID, Name: name, Arguments: arguments,
	}
}

// NewFunctionCallOutput creates the output entry paired to callID.
func NewFunctionCallOutput(agent, caller, callID, output string) Message {
	return Message{
		Type:  TypeFunctionCallOutput,
		Agent: agent, CallerAgent: caller,
		CallID: callID, Output: output,
	}
}

// Sender returns the message's sender name, substituting the user literal
// when no caller agent is recorded.
func (m Message) Sender() string {
	if m.CallerAgent == "" {
		return UserSender
	}
	return m.CallerAgent
}

// IsEmpty reports whether the message carries neither a role nor a type and
// is therefore not appendable.
func (m Message) IsEmpty() bool { return m.Role == "" && m.Type == "" }

// Clone returns a deep copy safe for independent mutation.
func (m Message) Clone() Message {
	c := m
	if m.ToolCalls != nil {
		c.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(c.ToolCalls, m.ToolCalls)
	}
	if m.Extra != nil {
		c.Extra = make(map[string]any, len(m.Extra))
		maps.Copy(c.Extra, m.Extra)
	}
	return c
}

// ThreadID renders the identity of a (sender, recipient) conversation as
// "sender->recipient". An empty sender means the human user.
func ThreadID(sender, recipient string) string {
	if sender == "" {
		sender = UserSender
	}
	return fmt.Sprintf("%s->%s", sender, recipient)
}

// NowMillis returns the current wall clock in milliseconds since epoch, the
// resolution Message timestamps use.
func NowMillis() int64 { return time.Now().UnixMilli() }

// RunResult is the terminal outcome of one orchestrated run.
type RunResult struct {
	RunID       string    `json:"run_id"`
	Agent       string    `json:"agent"`
	CallerAgent string    `json:"caller_agent,omitempty"`
	FinalText   string    `json:"final_text"`
	NewMessages []Message `json:"new_messages,omitempty"`
}
