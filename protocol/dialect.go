package protocol

import (
	"fmt"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/stream"
)

// PlaceholderItemID is the constant identifier some backends emit for every
// streamed item in a turn in place of a real one.
const PlaceholderItemID = "__fake_id__"

// InferProtocol derives a message's dialect from its shape when no explicit
// stamp exists. A role=tool message implies chat-completions, as does a
// tool_calls annotation; item-typed entries imply the responses dialect.
// An empty return means the shape is dialect-neutral.
func InferProtocol(msg core.Message) core.Protocol {
	if msg.HistoryProtocol != "" {
		return msg.HistoryProtocol
	}
	if msg.Role == core.RoleTool || len(msg.ToolCalls) > 0 {
		return core.ProtocolChatCompletions
	}
	switch msg.Type {
	case core.TypeFunctionCall, core.TypeFunctionCallOutput, core.TypeReasoning:
		return core.ProtocolResponses
	}
	return ""
}

// StampProtocol records the dialect on a message on first write. Restamping
// with a conflicting value is refused: history_protocol is set once, never
// mutated.
func StampProtocol(msg *core.Message, p core.Protocol) error {
	if msg.HistoryProtocol == "" {
		msg.HistoryProtocol = p
		return nil
	}
	if msg.HistoryProtocol != p {
		return fmt.Errorf("message already stamped %q, refusing restamp to %q", msg.HistoryProtocol, p)
	}
	return nil
}

// ValidateProtocol checks that every message of a thread view is replayable
// against a model requiring the given dialect. The first conflicting stamp
// (explicit or inferred) fails the whole view with
// IncompatibleChatHistoryError before any model call is made.
func ValidateProtocol(history []core.Message, threadID string, required core.Protocol) error {
	if required == "" {
		return nil
	}
	for _, m := range history {
		stamped := InferProtocol(m)
		if stamped != "" && stamped != required {
			return &core.IncompatibleChatHistoryError{
				ThreadID: threadID,
				Stamped:  stamped,
				Required: required,
			}
		}
	}
	return nil
}

// RewritePlaceholderIDs assigns stable per-item identifiers to events whose
// backend emitted the constant placeholder: tool call events key on their
// call_id, message events on their output index. Consumers can then key on
// item identifiers without collision across multiple tool calls in one turn.
func RewritePlaceholderIDs(events []stream.Event) []stream.Event {
	out := make([]stream.Event, len(events))
	for i, ev := range events {
		if ev.ItemID != "" && ev.ItemID != PlaceholderItemID {
			out[i] = ev
			continue
		}
		switch {
		case ev.CallID != "":
			ev.ItemID = fmt.Sprintf("item_%s", ev.CallID)
		default:
			ev.ItemID = fmt.Sprintf("item_out_%d", ev.OutputIndex)
		}
		out[i] = ev
	}
	return out
}
