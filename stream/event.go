// Package stream implements the streaming multiplexer: typed run events,
// the one-shot deferred final-result slot, and first-ready merging of a
// primary agent's event source with the events of agents it delegates to.
package stream

import "github.com/hupe1980/agentrelay/core"

// EventType categorizes run events. The item-level types project one-to-one
// onto persisted messages: tool_call_item <-> function_call,
// tool_call_output_item <-> function_call_output, message_output_item <->
// assistant message.
type EventType string

const (
	// EventMessageDelta is a streamed fragment of assistant text.
	EventMessageDelta EventType = "message_delta"
	// EventMessageOutputItem is a completed assistant message.
	EventMessageOutputItem EventType = "message_output_item"
	// EventToolCallItem is an emitted function call.
	EventToolCallItem EventType = "tool_call_item"
	// EventToolCallOutputItem is a completed function call result.
	EventToolCallOutputItem EventType = "tool_call_output_item"
	// EventError carries a non-fatal error surfaced mid-stream.
	EventError EventType = "error"
)

// Event is one element of a run's event stream. Item events carry the
// persisted message they correspond to; delta events carry only the text
// fragment.
type Event struct {
	Type        EventType     `json:"type"`
	Agent       string        `json:"agent,omitempty"`
	CallerAgent string        `json:"caller_agent,omitempty"`
	RunID       string        `json:"run_id,omitempty"`
	ItemID      string        `json:"item_id,omitempty"`
	CallID      string        `json:"call_id,omitempty"`
	OutputIndex int           `json:"output_index,omitempty"`
	Delta       string        `json:"delta,omitempty"`
	Message     *core.Message `json:"message,omitempty"`
	Err         error         `json:"-"`
}

// Tag stamps routing and run-correlation metadata onto an event without
// overwriting values already present.
func Tag(ev Event, agent, callerAgent, runID string) Event {
	if ev.Agent == "" {
		ev.Agent = agent
	}
	if ev.CallerAgent == "" {
		ev.CallerAgent = callerAgent
	}
	if ev.RunID == "" {
		ev.RunID = runID
	}
	return ev
}
