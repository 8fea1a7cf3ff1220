package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func TestStream_ProduceAndConsume(t *testing.T) {
	s := New(4)
	ctx := context.Background()

	go func() {
		for i := 0; i < 3; i++ {
			_ = s.Send(ctx, Event{Type: EventMessageDelta, Delta: "x"})
		}
		s.Result().Settle(&core.RunResult{FinalText: "done"}, nil)
		s.CloseSend()
	}()

	var count int
	for range s.Events() {
		count++
	}
	assert.Equal(t, 3, count)

	res, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "done", res.FinalText)
}

func TestStream_SendAfterConsumerCloseReturnsErrClosed(t *testing.T) {
	s := New(1)
	s.Close()

	err := s.Send(context.Background(), Event{Type: EventMessageDelta})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStream_ResultSurvivesAbandonedConsumer(t *testing.T) {
	s := New(1)
	ctx := context.Background()

	go func() {
		// Fill beyond the buffer so the producer hits the detached consumer.
		for i := 0; i < 10; i++ {
			if err := s.Send(ctx, Event{Type: EventMessageDelta, Delta: "d"}); err != nil {
				break
			}
		}
		s.Result().Settle(&core.RunResult{FinalText: "still settles"}, nil)
		s.CloseSend()
	}()

	// Abandon immediately without reading any events.
	s.Close()

	res, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "still settles", res.FinalText)
}

func TestStream_TagDoesNotOverwrite(t *testing.T) {
	ev := Tag(Event{Agent: "preset"}, "A", "B", "run-1")
	assert.Equal(t, "preset", ev.Agent)
	assert.Equal(t, "B", ev.CallerAgent)
	assert.Equal(t, "run-1", ev.RunID)
}

func TestStream_SendHonorsContext(t *testing.T) {
	s := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Send(ctx, Event{Type: EventMessageDelta}))
	// Buffer full, nobody reading, consumer still attached.
	err := s.Send(ctx, Event{Type: EventMessageDelta})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
