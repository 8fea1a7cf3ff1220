package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Sender(t *testing.T) {
	m := NewUserMessage("Planner", "", "hi")
	assert.Equal(t, UserSender, m.Sender())

	m = NewUserMessage("Worker", "Planner", "hi")
	assert.Equal(t, "Planner", m.Sender())
}

func TestMessage_IsEmpty(t *testing.T) {
	assert.True(t, Message{}.IsEmpty())
	assert.False(t, Message{Role: RoleUser}.IsEmpty())
	assert.False(t, Message{Type: TypeFunctionCall}.IsEmpty())
}

func TestMessage_Clone(t *testing.T) {
	m := Message{
		Role:      RoleAssistant,
		Content:   "text",
		ToolCalls: []ToolCall{{ID: "c1", Name: "lookup"}},
		Extra:     map[string]any{"k": "v"},
	}
	c := m.Clone()

	c.ToolCalls[0].Name = "changed"
	c.Extra["k"] = "changed"

	assert.Equal(t, "lookup", m.ToolCalls[0].Name)
	assert.Equal(t, "v", m.Extra["k"])
}

func TestThreadID(t *testing.T) {
	assert.Equal(t, "user->Planner", ThreadID("", "Planner"))
	assert.Equal(t, "Planner->Worker", ThreadID("Planner", "Worker"))
}

func TestConcurrencyViolationError_Text(t *testing.T) {
	err := &ConcurrencyViolationError{Recipient: "Worker"}
	assert.Contains(t, err.Error(), "Cannot send another message to 'Worker'")

	err = &ConcurrencyViolationError{Tool: "deploy"}
	assert.Contains(t, err.Error(), "Tool 'deploy' allows only one call at a time")
}

func TestConstructors(t *testing.T) {
	fc := NewFunctionCall("Worker", "Planner", "c1", "lookup", `{"q":1}`)
	assert.Equal(t, TypeFunctionCall, fc.Type)
	assert.Equal(t, RoleAssistant, fc.Role)
	assert.Equal(t, "c1", fc.CallID)

	out := NewFunctionCallOutput("Worker", "Planner", "c1", "42")
	assert.Equal(t, TypeFunctionCallOutput, out.Type)
	assert.Equal(t, "c1", out.CallID)
	assert.Equal(t, "42", out.Output)
}
