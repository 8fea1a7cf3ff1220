package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

func testAgent(name string) *Agent {
	return &Agent{
		Name:  name,
		Model: model.NewMockModel("mock", core.ProtocolChatCompletions),
	}
}

func TestGraph_AddAgentAndGet(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddAgent(testAgent("Planner")))
	require.NoError(t, g.AddAgent(testAgent("Worker")))

	a, err := g.Get("Planner")
	require.NoError(t, err)
	assert.Equal(t, "Planner", a.Name)

	_, err = g.Get("Stranger")
	assert.Error(t, err)

	// Duplicate registration is refused.
	assert.Error(t, g.AddAgent(testAgent("Planner")))
}

func TestGraph_AddAgentValidates(t *testing.T) {
	g := NewGraph()
	assert.Error(t, g.AddAgent(&Agent{Name: ""}))
	assert.Error(t, g.AddAgent(&Agent{Name: "NoModel"}))
}

func TestGraph_Edges(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddAgent(testAgent("Planner")))
	require.NoError(t, g.AddAgent(testAgent("Worker")))
	require.NoError(t, g.AddAgent(testAgent("Reviewer")))

	require.NoError(t, g.AddEdge("Planner", "Worker"))
	require.NoError(t, g.AddEdge("Planner", "Reviewer"))

	assert.Equal(t, []string{"Worker", "Reviewer"}, g.Recipients("Planner"))
	assert.Empty(t, g.Recipients("Worker"))

	// Unknown endpoints, self-edges and duplicates are refused.
	assert.Error(t, g.AddEdge("Planner", "Stranger"))
	assert.Error(t, g.AddEdge("Stranger", "Worker"))
	assert.Error(t, g.AddEdge("Planner", "Planner"))
	assert.Error(t, g.AddEdge("Planner", "Worker"))
}

func TestGraph_EntryPoint(t *testing.T) {
	g := NewGraph()
	_, err := g.EntryPoint()
	assert.Error(t, err)

	require.NoError(t, g.AddAgent(testAgent("First")))
	require.NoError(t, g.AddAgent(testAgent("Second")))

	entry, err := g.EntryPoint()
	require.NoError(t, err)
	assert.Equal(t, "First", entry)
}

func TestGraph_Names(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddAgent(testAgent("B")))
	require.NoError(t, g.AddAgent(testAgent("A")))
	assert.Equal(t, []string{"A", "B"}, g.Names())
}

func TestAgent_ValidateDuplicateTools(t *testing.T) {
	a := testAgent("Dup")
	a.Tools = nil
	require.NoError(t, a.Validate())
}
