package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func TestStore_AppendStampsIncreasingTimestamps(t *testing.T) {
	s := NewStore()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(core.NewUserMessage("A", "", "m")))
	}

	msgs := s.AllMessages()
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i].Timestamp, msgs[i-1].Timestamp)
	}
}

func TestStore_AppendRejectsEmpty(t *testing.T) {
	s := NewStore()
	err := s.Append(core.Message{})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestStore_AppendKeepsExplicitTimestamp(t *testing.T) {
	s := NewStore()
	m := core.NewUserMessage("A", "", "m")
	m.Timestamp = 42
	require.NoError(t, s.Append(m))
	assert.Equal(t, int64(42), s.AllMessages()[0].Timestamp)
}

func TestStore_ConversationIsBidirectional(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AppendMany([]core.Message{
		core.NewUserMessage("Planner", "", "user to planner"),
		core.NewAssistantMessage("Planner", "", "planner to user"),
		core.NewUserMessage("Worker", "Planner", "planner to worker"),
		core.NewAssistantMessage("Worker", "Planner", "worker to planner"),
		core.NewUserMessage("Worker", "Reviewer", "reviewer to worker"),
	}))

	view := s.Conversation("Worker", "Planner")
	require.Len(t, view, 2)
	assert.Equal(t, "planner to worker", view[0].Content)
	assert.Equal(t, "worker to planner", view[1].Content)

	userView := s.Conversation("Planner", "")
	require.Len(t, userView, 2)
}

func TestStore_LoadSeedsHistory(t *testing.T) {
	seed := []core.Message{
		{Role: core.RoleUser, Agent: "A", Content: "old", Timestamp: 100},
	}
	s := NewStore(func(o *Options) {
		o.Load = func() []core.Message { return seed }
	})

	require.Equal(t, 1, s.Len())

	// New appends must sort after the loaded history.
	require.NoError(t, s.Append(core.NewUserMessage("A", "", "new")))
	msgs := s.AllMessages()
	assert.Greater(t, msgs[1].Timestamp, msgs[0].Timestamp)
}

func TestStore_ReplaceAllAndClear(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(core.NewUserMessage("A", "", "m")))

	s.ReplaceAll([]core.Message{
		{Role: core.RoleUser, Agent: "B", Content: "only", Timestamp: 7},
	})
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "only", s.AllMessages()[0].Content)

	s.Clear()
	assert.Equal(t, 0, s.Len())
}
