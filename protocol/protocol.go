// Package protocol implements the message-protocol normalizer: pure,
// idempotent transformations applied at the two boundaries of the runtime:
// outbound to a model and inbound to the thread store.
//
// Storage order is never touched; every pass returns a new slice shaped for
// the boundary it serves.
package protocol

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/core"
)

// OriginAdjacencyRepair tags function_call_output entries synthesized while
// reordering a history for a strict-adjacency provider.
const OriginAdjacencyRepair = "adjacency_repair"

// StampMetadata sets routing metadata on a message bound for the store:
// agent, caller agent, a fresh timestamp and the default message type.
// It never overwrites fields already present.
func StampMetadata(msg *core.Message, agent, callerAgent string) {
	if msg.Agent == "" {
		msg.Agent = agent
	}
	if msg.CallerAgent == "" {
		msg.CallerAgent = callerAgent
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = core.NowMillis()
	}
	if msg.Type == "" {
		msg.Type = core.TypeMessage
	}
}

// StripMetadata removes orchestration metadata before a message crosses the
// model boundary. Model-facing payloads must never contain routing fields.
func StripMetadata(msg core.Message) core.Message {
	out := msg.Clone()
	out.Agent = ""
	out.CallerAgent = ""
	out.Timestamp = 0
	out.MessageOrigin = ""
	out.HistoryProtocol = ""
	return out
}

// StripMetadataAll applies StripMetadata to every message.
func StripMetadataAll(history []core.Message) []core.Message {
	out := make([]core.Message, len(history))
	for i, m := range history {
		out[i] = StripMetadata(m)
	}
	return out
}

// SanitizeToolCalls strips the tool_calls annotation from every assistant
// message before the last one. Providers assume only the most recent turn
// can have outstanding calls; replaying stale pending calls confuses them.
// The pass is idempotent.
func SanitizeToolCalls(history []core.Message) []core.Message {
	lastAssistant := -1
	for i, m := range history {
		if m.Role == core.RoleAssistant {
			lastAssistant = i
		}
	}

	out := make([]core.Message, len(history))
	for i, m := range history {
		if m.Role == core.RoleAssistant && i != lastAssistant && len(m.ToolCalls) > 0 {
			c := m.Clone()
			c.ToolCalls = nil
			out[i] = c
			continue
		}
		out[i] = m
	}
	return out
}

// EnsureNonNullToolContent gives synthesized content to assistant messages
// that carry tool calls but no text. Some backends reject null content next
// to tool calls while others require it; synthesis makes replay
// backend-agnostic.
func EnsureNonNullToolContent(history []core.Message) []core.Message {
	out := make([]core.Message, len(history))
	for i, m := range history {
		if m.Role == core.RoleAssistant && len(m.ToolCalls) > 0 && m.Content == "" {
			names := make([]string, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				names[j] = tc.Name
			}
			c := m.Clone()
			c.Content = fmt.Sprintf("Using tools: %s", strings.Join(names, ", "))
			out[i] = c
			continue
		}
		out[i] = m
	}
	return out
}

// ReorderForStrictAdjacency rearranges a history so that every function_call
// is immediately followed by its function_call_output, as required by
// providers with strict adjacency rules. An existing matching output is
// relocated; when none exists yet, one is synthesized from the nearest
// subsequent non-empty assistant message, tagged with the call's routing
// metadata and a fresh timestamp.
//
// Calls for which neither an output nor later assistant text exists are
// left unpaired and reported in the second return value; the strict provider
// adapter must reject the turn rather than guess.
func ReorderForStrictAdjacency(history []core.Message) ([]core.Message, []string) {
	outputs := make(map[string]core.Message)
	consumed := make(map[int]bool)
	for i, m := range history {
		if m.Type == core.TypeFunctionCallOutput && m.CallID != "" {
			if _, seen := outputs[m.CallID]; !seen {
				outputs[m.CallID] = m
				consumed[i] = true
			}
		}
	}

	var out []core.Message
	var unpaired []string
	for i, m := range history {
		if consumed[i] {
			continue // relocated next to its call
		}
		out = append(out, m)
		if m.Type != core.TypeFunctionCall || m.CallID == "" {
			continue
		}
		if paired, ok := outputs[m.CallID]; ok {
			out = append(out, paired)
			continue
		}
		if synth, ok := synthesizeOutput(history, i, m); ok {
			out = append(out, synth)
			continue
		}
		unpaired = append(unpaired, m.CallID)
	}
	return out, unpaired
}

// synthesizeOutput builds a function_call_output from the nearest subsequent
// non-empty assistant message.
func synthesizeOutput(history []core.Message, callIndex int, call core.Message) (core.Message, bool) {
	for _, m := range history[callIndex+1:] {
		if m.Role == core.RoleAssistant && m.Type == core.TypeMessage && m.Content != "" {
			synth := core.NewFunctionCallOutput(call.Agent, call.CallerAgent, call.CallID, m.Content)
			synth.Timestamp = core.NowMillis()
			synth.MessageOrigin = OriginAdjacencyRepair
			synth.HistoryProtocol = call.HistoryProtocol
			return synth, true
		}
	}
	return core.Message{}, false
}
