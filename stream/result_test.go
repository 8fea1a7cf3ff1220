package stream

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func TestResult_SettleOnce(t *testing.T) {
	r := NewResult()
	assert.False(t, r.Settled())

	ok := r.Settle(&core.RunResult{FinalText: "first"}, nil)
	assert.True(t, ok)
	assert.True(t, r.Settled())

	ok = r.Settle(&core.RunResult{FinalText: "second"}, nil)
	assert.False(t, ok)

	got, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", got.FinalText)
}

func TestResult_SettleWithError(t *testing.T) {
	r := NewResult()
	r.Settle(nil, fmt.Errorf("boom"))

	_, err := r.Wait(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestResult_AdoptForwardsWaiters(t *testing.T) {
	outer := NewResult()
	inner := NewResult()

	done := make(chan *core.RunResult, 1)
	go func() {
		got, _ := outer.Wait(context.Background())
		done <- got
	}()

	require.True(t, outer.Adopt(inner))
	assert.False(t, outer.Settled())

	inner.Settle(&core.RunResult{FinalText: "from inner"}, nil)

	select {
	case got := <-done:
		assert.Equal(t, "from inner", got.FinalText)
	case <-time.After(time.Second):
		t.Fatal("waiter not released through adoption")
	}
	assert.True(t, outer.Settled())
}

func TestResult_SettleAfterAdoptIsIgnored(t *testing.T) {
	outer := NewResult()
	inner := NewResult()
	require.True(t, outer.Adopt(inner))

	assert.False(t, outer.Settle(&core.RunResult{FinalText: "ignored"}, nil))

	inner.Settle(&core.RunResult{FinalText: "kept"}, nil)
	got, err := outer.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kept", got.FinalText)
}

func TestResult_AdoptChain(t *testing.T) {
	first := NewResult()
	second := NewResult()
	third := NewResult()

	require.True(t, first.Adopt(second))
	require.True(t, second.Adopt(third))

	third.Settle(&core.RunResult{FinalText: "end of chain"}, nil)

	got, err := first.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "end of chain", got.FinalText)
}

func TestResult_AdoptRejectsSelfAndSettled(t *testing.T) {
	r := NewResult()
	assert.False(t, r.Adopt(r))
	assert.False(t, r.Adopt(nil))

	r.Settle(&core.RunResult{}, nil)
	assert.False(t, r.Adopt(NewResult()))
}

func TestResult_WaitHonorsContext(t *testing.T) {
	r := NewResult()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
