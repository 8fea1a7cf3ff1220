package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func TestStampMetadata(t *testing.T) {
	m := core.Message{Role: core.RoleUser, Content: "hi"}
	StampMetadata(&m, "Worker", "Planner")

	assert.Equal(t, "Worker", m.Agent)
	assert.Equal(t, "Planner", m.CallerAgent)
	assert.NotZero(t, m.Timestamp)
	assert.Equal(t, core.TypeMessage, m.Type)

	// Existing values stay put.
	m2 := core.Message{Role: core.RoleUser, Agent: "Other", Timestamp: 9}
	StampMetadata(&m2, "Worker", "Planner")
	assert.Equal(t, "Other", m2.Agent)
	assert.Equal(t, int64(9), m2.Timestamp)
}

func TestStripMetadata(t *testing.T) {
	m := core.Message{
		Role:            core.RoleAssistant,
		Content:         "text",
		Agent:           "Worker",
		CallerAgent:     "Planner",
		Timestamp:       123,
		MessageOrigin:   "somewhere",
		HistoryProtocol: core.ProtocolResponses,
	}
	out := StripMetadata(m)

	assert.Empty(t, out.Agent)
	assert.Empty(t, out.CallerAgent)
	assert.Zero(t, out.Timestamp)
	assert.Empty(t, out.MessageOrigin)
	assert.Empty(t, out.HistoryProtocol)
	assert.Equal(t, "text", out.Content)

	// Source untouched.
	assert.Equal(t, "Worker", m.Agent)
}

func TestSanitizeToolCalls(t *testing.T) {
	history := []core.Message{
		{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{ID: "c1", Name: "old"}}},
		{Role: core.RoleTool, CallID: "c1", Content: "done"},
		{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{ID: "c2", Name: "current"}}},
	}

	out := SanitizeToolCalls(history)
	assert.Empty(t, out[0].ToolCalls)
	assert.Len(t, out[2].ToolCalls, 1)

	// Idempotent.
	again := SanitizeToolCalls(out)
	assert.Equal(t, out, again)
}

func TestEnsureNonNullToolContent(t *testing.T) {
	history := []core.Message{
		{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{ID: "c1", Name: "search"}, {ID: "c2", Name: "fetch"}}},
		{Role: core.RoleAssistant, Content: "kept", ToolCalls: []core.ToolCall{{ID: "c3", Name: "x"}}},
	}

	out := EnsureNonNullToolContent(history)
	assert.Equal(t, "Using tools: search, fetch", out[0].Content)
	assert.Equal(t, "kept", out[1].Content)

	// Idempotent.
	again := EnsureNonNullToolContent(out)
	assert.Equal(t, out, again)
}

func TestReorderForStrictAdjacency_RelocatesOutput(t *testing.T) {
	call := core.NewFunctionCall("W", "P", "c1", "lookup", "{}")
	interim := core.NewAssistantMessage("W", "P", "thinking out loud")
	output := core.NewFunctionCallOutput("W", "P", "c1", "42")

	out, unpaired := ReorderForStrictAdjacency([]core.Message{call, interim, output})
	require.Empty(t, unpaired)
	require.Len(t, out, 3)

	assert.Equal(t, core.TypeFunctionCall, out[0].Type)
	assert.Equal(t, core.TypeFunctionCallOutput, out[1].Type)
	assert.Equal(t, "c1", out[1].CallID)
	assert.Equal(t, "thinking out loud", out[2].Content)
}

func TestReorderForStrictAdjacency_SynthesizesOutput(t *testing.T) {
	call := core.NewFunctionCall("W", "P", "c1", "lookup", "{}")
	later := core.NewAssistantMessage("W", "P", "the answer is 42")

	out, unpaired := ReorderForStrictAdjacency([]core.Message{call, later})
	require.Empty(t, unpaired)
	require.Len(t, out, 3)

	synth := out[1]
	assert.Equal(t, core.TypeFunctionCallOutput, synth.Type)
	assert.Equal(t, "c1", synth.CallID)
	assert.Equal(t, "the answer is 42", synth.Output)
	assert.Equal(t, OriginAdjacencyRepair, synth.MessageOrigin)
	assert.NotZero(t, synth.Timestamp)
}

func TestReorderForStrictAdjacency_ReportsUnpaired(t *testing.T) {
	call := core.NewFunctionCall("W", "P", "c1", "lookup", "{}")

	out, unpaired := ReorderForStrictAdjacency([]core.Message{call})
	assert.Equal(t, []string{"c1"}, unpaired)
	require.Len(t, out, 1)
}

func TestReorderForStrictAdjacency_AlreadyAdjacentUnchanged(t *testing.T) {
	call := core.NewFunctionCall("W", "P", "c1", "lookup", "{}")
	output := core.NewFunctionCallOutput("W", "P", "c1", "42")
	final := core.NewAssistantMessage("W", "P", "done")

	out, unpaired := ReorderForStrictAdjacency([]core.Message{call, output, final})
	require.Empty(t, unpaired)
	require.Len(t, out, 3)
	assert.Equal(t, core.TypeFunctionCallOutput, out[1].Type)
	assert.Equal(t, "done", out[2].Content)
}
