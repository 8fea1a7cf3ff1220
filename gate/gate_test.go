package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func TestGate_RecipientExclusivity(t *testing.T) {
	g := New()

	token, err := g.Acquire("Worker")
	require.NoError(t, err)
	assert.True(t, g.InFlight("Worker"))

	_, err = g.Acquire("Worker")
	require.Error(t, err)

	var violation *core.ConcurrencyViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "Worker", violation.Recipient)
	assert.Contains(t, err.Error(), "Cannot send another message to 'Worker'")

	token.Release()
	assert.False(t, g.InFlight("Worker"))

	token2, err := g.Acquire("Worker")
	require.NoError(t, err)
	token2.Release()
}

func TestGate_DistinctRecipientsDoNotContend(t *testing.T) {
	g := New()

	t1, err := g.Acquire("Worker")
	require.NoError(t, err)
	t2, err := g.Acquire("Reviewer")
	require.NoError(t, err)

	t1.Release()
	t2.Release()
}

func TestGate_SerializedTool(t *testing.T) {
	g := New()

	token, err := g.AcquireTool("deploy")
	require.NoError(t, err)

	_, err = g.AcquireTool("deploy")
	require.Error(t, err)

	var violation *core.ConcurrencyViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "deploy", violation.Tool)

	// Tool and recipient namespaces are independent.
	rt, err := g.Acquire("deploy")
	require.NoError(t, err)
	rt.Release()

	token.Release()
	token2, err := g.AcquireTool("deploy")
	require.NoError(t, err)
	token2.Release()
}

func TestToken_ReleaseIsIdempotent(t *testing.T) {
	g := New()

	token, err := g.Acquire("Worker")
	require.NoError(t, err)

	token.Release()
	token.Release() // second release must not free a slot someone else holds

	token2, err := g.Acquire("Worker")
	require.NoError(t, err)

	token.Release() // stale release of the first token
	assert.True(t, g.InFlight("Worker"))

	token2.Release()
}

func TestToken_NilReleaseIsSafe(t *testing.T) {
	var token *Token
	assert.NotPanics(t, func() { token.Release() })
}
